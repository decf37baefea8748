package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"algometa/internal/metadata"
)

// Dir stores each record as <dir>/<guid>.json.
type Dir struct {
	dir    string
	logger *zap.Logger
}

// NewDir returns a Dir store rooted at dir, creating it if needed.
func NewDir(dir string, logger *zap.Logger) (*Dir, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory not set")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	logger.Debug("Opened directory store", zap.String("dir", dir))
	return &Dir{dir: dir, logger: logger}, nil
}

func (d *Dir) path(guid string) string {
	return filepath.Join(d.dir, guid+".json")
}

func (d *Dir) Get(ctx context.Context, guid string) (*metadata.AlgorithmRecord, error) {
	if err := checkGUID(guid); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(d.path(guid))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, guid)
		}
		return nil, fmt.Errorf("failed to read %s: %w", guid, err)
	}
	rec, err := metadata.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", guid, err)
	}
	return rec, nil
}

// Put writes rec to a temp file in the store directory and renames it over
// the previous version.
func (d *Dir) Put(ctx context.Context, rec *metadata.AlgorithmRecord) error {
	if err := checkGUID(rec.GUID); err != nil {
		return err
	}
	data, err := metadata.Encode(rec)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(d.dir, "."+rec.GUID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", rec.GUID, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", rec.GUID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", rec.GUID, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", rec.GUID, err)
	}
	if err := os.Rename(tmp.Name(), d.path(rec.GUID)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", rec.GUID, err)
	}
	d.logger.Debug("Record saved", zap.String("guid", rec.GUID), zap.Int("bytes", len(data)))
	return nil
}

func (d *Dir) Keys(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		guid := strings.TrimSuffix(name, ".json")
		if !metadata.ValidGUID(guid) {
			d.logger.Debug("Ignoring file with invalid identifier", zap.String("file", name))
			continue
		}
		keys = append(keys, guid)
	}
	sort.Strings(keys)
	return keys, nil
}

func (d *Dir) Close() error { return nil }
