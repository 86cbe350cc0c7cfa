package runtime

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spaolacci/murmur3"
)

// FileSet is an immutable in-memory set of named rule source files handed to
// a Compiler.
type FileSet struct {
	names []string
	files map[string]string
}

// NewFileSet builds a file set from a name -> source map.
func NewFileSet(files map[string]string) *FileSet {
	copied := make(map[string]string, len(files))
	names := make([]string, 0, len(files))
	for name, src := range files {
		copied[name] = src
		names = append(names, name)
	}
	sort.Strings(names)
	return &FileSet{names: names, files: copied}
}

// LoadDir reads every .yml/.yaml file under dir into a file set, keyed by
// path relative to dir.
func LoadDir(dir string) (*FileSet, error) {
	resolved, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve rule path: %w", err)
	}

	files := make(map[string]string)
	err = filepath.WalkDir(resolved, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isYAMLFile(path) {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read rule file %s: %w", path, err)
		}
		rel, err := filepath.Rel(resolved, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(raw)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk rule directory: %w", err)
	}

	return NewFileSet(files), nil
}

// Names returns the file names in sorted order.
func (s *FileSet) Names() []string {
	return s.names
}

// Source returns the contents of one file.
func (s *FileSet) Source(name string) (string, bool) {
	src, ok := s.files[name]
	return src, ok
}

// Len returns the number of files.
func (s *FileSet) Len() int {
	return len(s.names)
}

// Fingerprint returns a stable content hash of the file set, used as the
// compiled program version.
func (s *FileSet) Fingerprint() string {
	h := murmur3.New128()
	for _, name := range s.names {
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write([]byte(s.files[name]))
		h.Write([]byte{0})
	}
	hi, lo := h.Sum128()
	return fmt.Sprintf("%016x%016x", hi, lo)
}

func isYAMLFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml")
}
