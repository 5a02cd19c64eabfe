package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source produces catalog entries. The only implementation in this
// package is FileSource, which reads catalog files from disk (including
// local snapshots of upstream catalogs); no upstream scraper is included.
type Source interface {
	// Name is the stable source identifier used for refresh bookkeeping.
	Name() string
	// Fetch returns the source's current entries.
	Fetch(ctx context.Context) ([]*Entry, error)
}

// FileSource reads entries from a YAML or JSON catalog file. It backs the
// user-editable custom catalog and local snapshots of upstream catalogs.
type FileSource struct {
	name   string
	path   string
	origin Origin
}

// NewFileSource creates a file-backed source. The origin tag is stamped
// onto every entry the file yields that does not name its own origin.
func NewFileSource(name, path string, origin Origin) *FileSource {
	return &FileSource{name: name, path: path, origin: origin}
}

// Name returns the source identifier.
func (s *FileSource) Name() string { return s.name }

// Path returns the backing file path, used by the catalog watcher.
func (s *FileSource) Path() string { return s.path }

// catalogFile is the on-disk shape of a catalog file.
type catalogFile struct {
	Servers []*Entry `yaml:"servers" json:"servers"`
}

// Fetch parses the backing file. A missing file is an empty catalog, not
// an error, so a fresh install works before the user writes one.
func (s *FileSource) Fetch(ctx context.Context) ([]*Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read catalog file %s: %w", s.path, err)
	}

	var file catalogFile
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".json":
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog file %s: %w", s.path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog file %s: %w", s.path, err)
		}
	}

	for _, e := range file.Servers {
		if e.Origin == "" {
			e.Origin = s.origin
		}
	}
	return file.Servers, nil
}
