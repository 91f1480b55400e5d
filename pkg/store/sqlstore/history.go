package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/systemsbiology/sbeams-core/pkg/registry"
	"github.com/systemsbiology/sbeams-core/pkg/store"
)

const loadColumns = `load_id, file_name, kind, checksum, inserted, updated, deleted, error_count, loaded_at`

// RecordLoad implements store.History. A zero ID or LoadedAt is filled in.
func (s *Store) RecordLoad(ctx context.Context, rec store.LoadRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.LoadedAt.IsZero() {
		rec.LoadedAt = time.Now()
	}
	_, err := s.view().exec(ctx, `
		INSERT INTO driver_table_load (`+loadColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.File, rec.Kind.String(), rec.Checksum,
		rec.Inserted, rec.Updated, rec.Deleted, rec.Errors, rec.LoadedAt.UTC())
	if err != nil {
		return fmt.Errorf("recording load of %s: %w", rec.File, err)
	}
	return nil
}

func scanLoad(sc scanner) (store.LoadRecord, error) {
	var rec store.LoadRecord
	var id, kind string
	err := sc.Scan(&id, &rec.File, &kind, &rec.Checksum,
		&rec.Inserted, &rec.Updated, &rec.Deleted, &rec.Errors, &rec.LoadedAt)
	if err != nil {
		return rec, err
	}
	if rec.ID, err = uuid.Parse(id); err != nil {
		return rec, fmt.Errorf("load id %q: %w", id, err)
	}
	if rec.Kind, err = registry.ParseKind(kind); err != nil {
		return rec, err
	}
	return rec, nil
}

// LastLoad implements store.History.
func (s *Store) LastLoad(ctx context.Context, file string) (store.LoadRecord, error) {
	row := s.view().queryRow(ctx, `
		SELECT `+loadColumns+`
		FROM driver_table_load
		WHERE file_name = ?
		ORDER BY loaded_at DESC
		LIMIT 1`, file)
	rec, err := scanLoad(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("load of %s: %w", file, store.ErrNotFound)
	}
	if err != nil {
		return rec, fmt.Errorf("querying last load of %s: %w", file, err)
	}
	return rec, nil
}

// Loads implements store.History. It returns the latest load of each file,
// newest first.
func (s *Store) Loads(ctx context.Context) ([]store.LoadRecord, error) {
	rows, err := s.view().query(ctx, `
		SELECT `+loadColumns+`
		FROM driver_table_load
		ORDER BY loaded_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying loads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	seen := make(map[string]bool)
	var out []store.LoadRecord
	for rows.Next() {
		rec, err := scanLoad(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning load: %w", err)
		}
		if seen[rec.File] {
			continue
		}
		seen[rec.File] = true
		out = append(out, rec)
	}
	return out, rows.Err()
}
