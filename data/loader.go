// Package data reads test case definition files, expanding their constants and parameters,
// and compiles the definitions into executable test cases.
package data

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Source is the content of a definition file after constants and parameters have been
// expanded. A parameterized file produces one Source per parameter set, each with its own
// Data; other files produce one.
type Source struct {
	FilePath string
	Params   Substitutions
	Data     []byte
}

// ParseInto parses the data as JSON or YAML, rejecting unknown properties.
func (s Source) ParseInto(target interface{}) error {
	if err := ParseJSONOrYAMLStrict(s.Data, target); err != nil {
		return fmt.Errorf("error parsing %q %s: %w", s.FilePath, s.Params, err)
	}
	return nil
}

// IsDefinitionFile reports whether a file name has one of the recognized extensions.
func IsDefinitionFile(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// LoadFile reads one definition file and expands its substitutions.
func LoadFile(fsys fs.FS, filePath string) ([]Source, error) {
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", filePath, err)
	}
	sources, err := expandSubstitutions(data)
	if err != nil {
		return nil, fmt.Errorf("error reading %q: %w", filePath, err)
	}
	for i := range sources {
		sources[i].FilePath = filePath
	}
	return sources, nil
}

// LoadDir reads every definition file under a directory, recursively, in path order.
func LoadDir(fsys fs.FS, dir string) ([]Source, error) {
	var paths []string
	err := fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsDefinitionFile(p) {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	var ret []Source
	for _, p := range paths {
		sources, err := LoadFile(fsys, p)
		if err != nil {
			return nil, err
		}
		ret = append(ret, sources...)
	}
	return ret, nil
}
