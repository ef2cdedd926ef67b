// README: Location store backed by PostgreSQL; one row per unit, atomic ON CONFLICT upsert.
package location

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS ubicaciones (
    unit_id     TEXT PRIMARY KEY,
    latitud     DOUBLE PRECISION NOT NULL,
    longitud    DOUBLE PRECISION NOT NULL,
    ruta        TEXT,
    actualizado TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Upsert runs as a single statement so the row lock taken on conflict
// serializes concurrent reports for the same unit. clock_timestamp() is read
// after the lock, and GREATEST keeps actualizado from moving backwards.
func (s *PostgresStore) Upsert(ctx context.Context, unitID string, lat, lon float64, route *string) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO ubicaciones (unit_id, latitud, longitud, ruta, actualizado)
        VALUES ($1, $2, $3, $4, clock_timestamp())
        ON CONFLICT (unit_id)
        DO UPDATE SET latitud = EXCLUDED.latitud,
                      longitud = EXCLUDED.longitud,
                      ruta = COALESCE(EXCLUDED.ruta, ubicaciones.ruta),
                      actualizado = GREATEST(ubicaciones.actualizado, clock_timestamp())`,
		unitID, lat, lon, route,
	)
	if err != nil {
		return fmt.Errorf("upsert location: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, unitID string) (*Record, error) {
	row := s.db.QueryRow(ctx, `
        SELECT unit_id, latitud, longitud, ruta, actualizado
        FROM ubicaciones
        WHERE unit_id = $1`, unitID,
	)

	var r Record
	err := row.Scan(&r.UnitID, &r.Latitude, &r.Longitude, &r.Route, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.Query(ctx, `
        SELECT unit_id, latitud, longitud, ruta, actualizado
        FROM ubicaciones
        ORDER BY unit_id`)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.UnitID, &r.Latitude, &r.Longitude, &r.Route, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}
	return records, nil
}
