package scanner

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/openmined/syftfiles/internal/utils"
	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFileName is read from the scan root when present.
const IgnoreFileName = ".sfcignore"

var defaultIgnoreLines = []string{
	IgnoreFileName,
	"*.sfc.tmp.*",
	// OS-specific
	".DS_Store",
	"Thumbs.db",
}

// IgnoreList filters scanned paths with gitignore rules.
type IgnoreList struct {
	baseDir string
	extra   []string
	ignore  *gitignore.GitIgnore
}

func NewIgnoreList(baseDir string, extra ...string) *IgnoreList {
	return &IgnoreList{baseDir: baseDir, extra: extra}
}

// Load compiles the default rules, the extra rules and the rules from the
// ignore file in the base directory.
func (s *IgnoreList) Load() {
	ignoreLines := append([]string{}, defaultIgnoreLines...)
	ignoreLines = append(ignoreLines, s.extra...)

	ignorePath := filepath.Join(s.baseDir, IgnoreFileName)
	if utils.FileExists(ignorePath) {
		ignoreLines = append(ignoreLines, readIgnoreFile(ignorePath)...)
	}

	s.ignore = gitignore.CompileIgnoreLines(ignoreLines...)
}

// ShouldIgnore reports whether relPath, relative to the base directory,
// matches an ignore rule.
func (s *IgnoreList) ShouldIgnore(relPath string) bool {
	if s == nil || s.ignore == nil {
		return false
	}
	return s.ignore.MatchesPath(relPath)
}

func readIgnoreFile(path string) []string {
	file, err := os.Open(path)
	if err != nil {
		slog.Warn("failed to open ignore file", "path", path, "error", err)
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			lines = append(lines, line)
		}
	}

	if err := scanner.Err(); err != nil {
		slog.Warn("error reading ignore file", "path", path, "error", err)
	} else {
		slog.Debug("loaded ignore file", "path", path, "rules", len(lines))
	}
	return lines
}
