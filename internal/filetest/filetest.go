// Package filetest provides helpers for tests that process source files and
// compare multi-line outputs.
package filetest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kylelemons/godebug/diff"
)

// SourceFiles returns the list of source files in dir corresponding to the
// specified extension.
func SourceFiles(t *testing.T, dir, ext string) []os.FileInfo {
	t.Helper()

	if ext != "" && ext[0] != '.' {
		ext = "." + ext
	}

	dents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}

	res := make([]os.FileInfo, 0, len(dents))
	for _, dent := range dents {
		if !dent.Type().IsRegular() {
			continue
		}
		if ext != "" && filepath.Ext(dent.Name()) != ext {
			continue
		}
		fi, err := dent.Info()
		if err != nil {
			t.Fatal(err)
		}
		res = append(res, fi)
	}
	return res
}

// Diff fails the test with a line diff when got differs from want.
func Diff(t *testing.T, label, want, got string) {
	t.Helper()

	if patch := diff.Diff(want, got); patch != "" {
		t.Errorf("unexpected %s:\n%s", label, patch)
	}
}
