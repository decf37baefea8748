// Package store persists algorithm records, one per identifier.
//
// Two backends implement Store: Dir keeps one <guid>.json file per record
// and SQLite keeps one row per record in an embedded database. Saves replace
// a single record atomically; there are no multi-record transactions.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"algometa/internal/config"
	"algometa/internal/metadata"
)

// ErrNotFound is returned by Get when no record exists for an identifier.
var ErrNotFound = errors.New("record not found")

// Store is a keyed collection of algorithm records.
type Store interface {
	// Get loads one record. Missing records yield ErrNotFound and records
	// that fail to decode yield an error wrapping metadata.ErrMalformedRecord.
	Get(ctx context.Context, guid string) (*metadata.AlgorithmRecord, error)
	// Put replaces the stored record for rec.GUID.
	Put(ctx context.Context, rec *metadata.AlgorithmRecord) error
	// Keys lists stored identifiers in ascending order.
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Open returns the backend selected by cfg.
func Open(cfg config.StoreConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Backend {
	case config.BackendDir, "":
		return NewDir(cfg.Dir, logger)
	case config.BackendSQLite:
		return NewSQLite(cfg.DatabasePath, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// Loaded is the result of LoadOrCreate.
type Loaded struct {
	Record *metadata.AlgorithmRecord
	// Created is set when no record existed and a skeleton was built.
	Created bool
	// Repaired names list members that were missing or malformed and have
	// been reset to empty lists.
	Repaired []string
}

// Dirty reports whether the record differs from what is stored before any
// further change is made to it.
func (l Loaded) Dirty() bool { return l.Created || len(l.Repaired) > 0 }

// LoadOrCreate returns the stored record for guid, or a skeleton named
// nameHint when there is none. Existing records get their list members
// normalized to empty lists before use. Malformed records are returned as
// errors and never replaced.
func LoadOrCreate(ctx context.Context, s Store, guid, nameHint string) (Loaded, error) {
	guid = metadata.NormalizeGUID(guid)
	if !metadata.ValidGUID(guid) {
		return Loaded{}, fmt.Errorf("%w: %q", metadata.ErrInvalidGUID, guid)
	}
	rec, err := s.Get(ctx, guid)
	switch {
	case errors.Is(err, ErrNotFound):
		return Loaded{Record: metadata.NewRecord(guid, nameHint), Created: true}, nil
	case err != nil:
		return Loaded{}, err
	}
	repaired := rec.EnsureLists()
	if rec.GUID == "" {
		rec.GUID = guid
		repaired = append(repaired, "guid")
	}
	if rec.Name == "" && nameHint != "" {
		rec.Name = nameHint
		repaired = append(repaired, "name")
	}
	return Loaded{Record: rec, Repaired: repaired}, nil
}

// ScanStats counts what Scan visited.
type ScanStats struct {
	Records   int
	Malformed []string
}

// Scan decodes every stored record in key order and calls fn with the key
// and the record. Malformed records are skipped and listed; any other error
// stops the scan.
func Scan(ctx context.Context, s Store, fn func(key string, rec *metadata.AlgorithmRecord) error) (ScanStats, error) {
	var stats ScanStats
	keys, err := s.Keys(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list records: %w", err)
	}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		rec, err := s.Get(ctx, key)
		if errors.Is(err, metadata.ErrMalformedRecord) {
			stats.Malformed = append(stats.Malformed, key)
			continue
		}
		if err != nil {
			return stats, err
		}
		stats.Records++
		if err := fn(key, rec); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// Copy writes every decodable record of from into to.
func Copy(ctx context.Context, from, to Store) (ScanStats, error) {
	return Scan(ctx, from, func(_ string, rec *metadata.AlgorithmRecord) error {
		if err := to.Put(ctx, rec); err != nil {
			return fmt.Errorf("failed to copy %s: %w", rec.GUID, err)
		}
		return nil
	})
}

func checkGUID(guid string) error {
	if !metadata.ValidGUID(guid) {
		return fmt.Errorf("%w: %q", metadata.ErrInvalidGUID, guid)
	}
	return nil
}
