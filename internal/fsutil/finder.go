// Package fsutil provides file system utility functions.
package fsutil

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// bundleSuffixes are directories that hold binaries, never manifests, and
// can be large enough that walking them is noticeable.
var bundleSuffixes = []string{".xcframework", ".framework", ".bundle"}

// FindFilesByExtension recursively searches rootPath for files ending with
// extension and returns their full paths in lexical order. Hidden
// directories and binary bundles are not descended into.
func FindFilesByExtension(rootPath string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}

	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != rootPath && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), extension) {
			files = append(files, path)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func skipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, suffix := range bundleSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
