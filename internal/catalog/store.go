package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Store persists the CrawlResult as a single JSON metadata file. Saves are
// atomic: the payload is written to a temporary file in the same directory
// and renamed over the destination, so a crash mid-write never corrupts the
// previous good file.
type Store struct {
	path   string
	logger *zap.Logger
}

// NewStore returns a store backed by the given metadata file path.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("metadata path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create metadata dir: %w", err)
	}
	return &Store{path: path, logger: logger}, nil
}

// Load reads the metadata file. A missing file yields an empty result, not
// an error; a present but unreadable file is an error so a corrupt store is
// never silently replaced.
func (s *Store) Load() (*CrawlResult, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("no existing metadata, starting fresh", zap.String("path", s.path))
			return NewCrawlResult(), nil
		}
		return nil, fmt.Errorf("read metadata %s: %w", s.path, err)
	}

	result := NewCrawlResult()
	if err := json.Unmarshal(data, result); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", s.path, err)
	}
	result.ensureIndex()
	return result, nil
}

// Save recomputes the derived counts and atomically replaces the metadata
// file with the given result.
func (s *Store) Save(result *CrawlResult) error {
	result.Recount()

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".metadata-*.json")
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp metadata: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace metadata %s: %w", s.path, err)
	}

	s.logger.Debug("metadata saved",
		zap.String("path", s.path),
		zap.Int("products", result.TotalProducts),
		zap.Int("images", result.TotalImages),
	)
	return nil
}

// Path returns the metadata file location.
func (s *Store) Path() string {
	return s.path
}
