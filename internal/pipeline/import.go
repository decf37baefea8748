package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"algometa/internal/logging"
	"algometa/internal/metadata"
	"algometa/internal/reconcile"
)

// Import merges externally produced records, such as those written by the
// stub-filling tools, into the store with the fill-only rules. A file holds
// one record object or an array of them. Undecodable entries are logged
// and counted.
func (p *Pipeline) Import(ctx context.Context, paths []string) (Result, error) {
	var res Result
	log := p.logs.Get(logging.CategoryReconcile)
	for _, path := range paths {
		recs, bad, err := readRecords(path)
		if err != nil {
			return res, err
		}
		if bad > 0 {
			log.Warn("Skipped undecodable records", zap.String("path", path), zap.Int("count", bad))
			res.Skipped += bad
		}
		for _, in := range recs {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			guid := metadata.NormalizeGUID(in.GUID)
			if !metadata.ValidGUID(guid) {
				log.Warn("Skipping record with invalid identifier", zap.String("path", path), zap.String("guid", in.GUID))
				res.Skipped++
				continue
			}
			res.Sections++
			err := p.update(ctx, &res, guid, in.Name, func(rec *metadata.AlgorithmRecord) reconcile.Changes {
				return reconcile.MergeRecord(rec, in)
			})
			if err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

func readRecords(path string) ([]*metadata.AlgorithmRecord, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, 0, fmt.Errorf("%s: %w: %v", path, metadata.ErrMalformedRecord, err)
		}
		var recs []*metadata.AlgorithmRecord
		bad := 0
		for _, raw := range raws {
			rec, err := metadata.Decode(raw)
			if err != nil {
				bad++
				continue
			}
			recs = append(recs, rec)
		}
		return recs, bad, nil
	}
	rec, err := metadata.Decode(data)
	if err != nil {
		return nil, 1, nil
	}
	return []*metadata.AlgorithmRecord{rec}, 0, nil
}
