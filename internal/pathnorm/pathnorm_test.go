package pathnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var uploadPaths = []string{
	"/to-upload/file1.txt",
	"/to-upload/myfolder/file2.txt",
	"/to-upload/myotherfolder/subfolder/file3.txt",
}

func TestNormalizeCommonRoot(t *testing.T) {
	got := Normalize(uploadPaths, "")
	assert.Equal(t, []string{
		"/file1.txt",
		"/myfolder/file2.txt",
		"/myotherfolder/subfolder/file3.txt",
	}, got)
}

func TestNormalizeExplicitRoot(t *testing.T) {
	want := []string{
		"/mychosenroot/file1.txt",
		"/mychosenroot/myfolder/file2.txt",
		"/mychosenroot/myotherfolder/subfolder/file3.txt",
	}
	for _, root := range []string{"/mychosenroot", "mychosenroot", "/mychosenroot/", "//mychosenroot//"} {
		t.Run(root, func(t *testing.T) {
			assert.Equal(t, want, Normalize(uploadPaths, root))
		})
	}
}

func TestNormalizeOrderIndependent(t *testing.T) {
	reversed := []string{uploadPaths[2], uploadPaths[1], uploadPaths[0]}
	got := Normalize(reversed, "")
	assert.Equal(t, []string{
		"/myotherfolder/subfolder/file3.txt",
		"/myfolder/file2.txt",
		"/file1.txt",
	}, got)
}

func TestNormalizeEdgeCases(t *testing.T) {
	cases := []struct {
		name  string
		paths []string
		root  string
		want  []string
	}{
		{"empty input", nil, "", []string{}},
		{"single file keeps full path", []string{"/a/b/c.txt"}, "", []string{"/a/b/c.txt"}},
		{"no shared ancestor", []string{"/a/x.txt", "/b/y.txt"}, "", []string{"/a/x.txt", "/b/y.txt"}},
		{"files in same dir", []string{"/a/b/x.txt", "/a/b/y.txt"}, "", []string{"/x.txt", "/y.txt"}},
		{"file names never stripped", []string{"/a/x.txt", "/a/x.txt/"}, "", []string{"/x.txt", "/x.txt"}},
		{"partial segment is not shared", []string{"/abc/x.txt", "/abd/y.txt"}, "", []string{"/abc/x.txt", "/abd/y.txt"}},
		{"backslashes", []string{`\dir\one.txt`, `\dir\sub\two.txt`}, "", []string{"/one.txt", "/sub/two.txt"}},
		{"root slash only", []string{"/a/x.txt", "/a/y.txt"}, "/", []string{"/x.txt", "/y.txt"}},
		{"nested root", []string{"/a/x.txt"}, "docs/v1/", []string{"/docs/v1/a/x.txt"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Normalize(c.paths, c.root))
		})
	}
}

func TestNormalizeRoot(t *testing.T) {
	assert.Equal(t, "", NormalizeRoot(""))
	assert.Equal(t, "", NormalizeRoot("/"))
	assert.Equal(t, "/a/b", NormalizeRoot("a//b/"))
	assert.Equal(t, "/a", NormalizeRoot("/a/./"))
}

func TestClean(t *testing.T) {
	assert.Equal(t, "/", Clean(""))
	assert.Equal(t, "/a/b", Clean("a/b/"))
	assert.Equal(t, "/b", Clean("/a/../b"))
}

func TestNormalizeUnder(t *testing.T) {
	paths := []string{
		"/to-upload/sub/a.txt",
		"/to-upload/sub/b.txt",
	}

	// Normalize strips the shared sub directory, NormalizeUnder keeps it
	assert.Equal(t, []string{"/a.txt", "/b.txt"}, Normalize(paths, ""))
	assert.Equal(t, []string{"/sub/a.txt", "/sub/b.txt"}, NormalizeUnder(paths, "/to-upload", ""))
	assert.Equal(t, []string{"/dst/sub/a.txt", "/dst/sub/b.txt"}, NormalizeUnder(paths, "/to-upload", "dst/"))

	assert.Equal(t, []string{"/file.txt"}, NormalizeUnder([]string{"/file.txt"}, "/", ""))
	assert.Equal(t, []string{"/other/x"}, NormalizeUnder([]string{"/other/x"}, "/to-upload", ""))
	assert.Empty(t, NormalizeUnder(nil, "/to-upload", ""))
}
