// Package pathnorm maps scanned source paths onto container paths.
package pathnorm

import (
	"path"
	"slices"
	"strings"
)

const sep = "/"

// Normalize strips the longest common directory prefix shared by all paths
// and, when explicitRoot is non-empty, prefixes every result with it.
//
// The result is aligned with the input: out[i] is the container path of
// paths[i]. Every result starts with a single slash. The common prefix is
// computed on a sorted copy so the mapping does not depend on input order.
// With a single path, or no shared ancestor, the prefix is empty.
func Normalize(paths []string, explicitRoot string) []string {
	if len(paths) == 0 {
		return []string{}
	}

	split := make([][]string, len(paths))
	for i, p := range paths {
		split[i] = Segments(p)
	}

	prefixLen := 0
	if len(paths) > 1 {
		prefixLen = commonDirPrefix(split)
	}

	root := NormalizeRoot(explicitRoot)
	out := make([]string, len(paths))
	for i, segs := range split {
		out[i] = root + sep + strings.Join(segs[prefixLen:], sep)
	}
	return out
}

// NormalizeUnder strips the anchor directory from every path and, when
// explicitRoot is non-empty, prefixes every result with it. Unlike
// Normalize the stripped prefix does not depend on which files are present,
// so a tree keeps its container paths as files come and go. Paths outside
// anchor are kept whole.
func NormalizeUnder(paths []string, anchor string, explicitRoot string) []string {
	anchorSegs := Segments(anchor)
	root := NormalizeRoot(explicitRoot)

	out := make([]string, len(paths))
	for i, p := range paths {
		segs := Segments(p)
		if len(segs) > len(anchorSegs) && slices.Equal(segs[:len(anchorSegs)], anchorSegs) {
			segs = segs[len(anchorSegs):]
		}
		out[i] = root + sep + strings.Join(segs, sep)
	}
	return out
}

// NormalizeRoot renders root with one leading slash and no trailing slash.
// An empty or "/" root normalizes to "".
func NormalizeRoot(root string) string {
	segs := Segments(root)
	if len(segs) == 0 {
		return ""
	}
	return sep + strings.Join(segs, sep)
}

// Segments splits p into its non-empty slash separated parts, resolving
// "." and ".." lexically. Backslashes are treated as separators.
func Segments(p string) []string {
	p = strings.ReplaceAll(p, "\\", sep)
	p = path.Clean(sep + p)
	if p == sep {
		return []string{}
	}
	return strings.Split(strings.TrimPrefix(p, sep), sep)
}

// Clean returns p in canonical container form: "/a/b".
func Clean(p string) string {
	return sep + strings.Join(Segments(p), sep)
}

// commonDirPrefix returns how many leading directory segments all entries
// share. The last segment of each entry is the file name and never counts.
func commonDirPrefix(split [][]string) int {
	sorted := slices.Clone(split)
	slices.SortFunc(sorted, func(a, b []string) int {
		return strings.Compare(strings.Join(a, sep), strings.Join(b, sep))
	})

	first := sorted[0]
	n := len(first) - 1
	for _, segs := range sorted[1:] {
		n = min(n, len(segs)-1)
		for i := 0; i < n; i++ {
			if segs[i] != first[i] {
				n = i
				break
			}
		}
	}
	return max(n, 0)
}
