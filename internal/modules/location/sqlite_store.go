// README: Location store backed by SQLite for single-node and embedded deployments.
package location

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS ubicaciones (
	unit_id TEXT PRIMARY KEY,
	latitud REAL NOT NULL,
	longitud REAL NOT NULL,
	ruta TEXT,
	actualizado TEXT NOT NULL
);`

// sqliteNow renders a fixed-width UTC timestamp, so text comparison orders
// values chronologically.
const sqliteNow = `strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, unitID string, lat, lon float64, route *string) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}

	var ruta sql.NullString
	if route != nil {
		ruta = sql.NullString{String: *route, Valid: true}
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO ubicaciones (unit_id, latitud, longitud, ruta, actualizado)
		 VALUES (?, ?, ?, ?, `+sqliteNow+`)
		 ON CONFLICT(unit_id)
		 DO UPDATE SET latitud = excluded.latitud,
				 longitud = excluded.longitud,
				 ruta = COALESCE(excluded.ruta, ubicaciones.ruta),
				 actualizado = MAX(ubicaciones.actualizado, excluded.actualizado);`,
		unitID,
		lat,
		lon,
		ruta,
	)
	if err != nil {
		return fmt.Errorf("upsert location: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, unitID string) (*Record, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT unit_id, latitud, longitud, ruta, actualizado FROM ubicaciones WHERE unit_id = ?;`,
		unitID,
	)
	rec, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT unit_id, latitud, longitud, ruta, actualizado FROM ubicaciones ORDER BY unit_id;`,
	)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row rowScanner) (*Record, error) {
	var (
		rec            Record
		ruta           sql.NullString
		actualizadoStr string
	)
	if err := row.Scan(&rec.UnitID, &rec.Latitude, &rec.Longitude, &ruta, &actualizadoStr); err != nil {
		return nil, err
	}
	if ruta.Valid {
		v := ruta.String
		rec.Route = &v
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, actualizadoStr)
	if err != nil {
		return nil, fmt.Errorf("parse actualizado %q: %w", actualizadoStr, err)
	}
	rec.UpdatedAt = updatedAt
	return &rec, nil
}
