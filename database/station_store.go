// database/station_store.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"divvymon/models"
)

// StationStore persists station rows in MariaDB. Each upsert runs in its own
// transaction so a classification decision is durable the moment the call
// returns, and the row lock serializes writers even though this process only
// ever writes sequentially.
type StationStore struct {
	db *sql.DB
}

func NewStationStore(db *sql.DB) *StationStore {
	return &StationStore{db: db}
}

// EnsureSchema creates the stations table if it does not exist yet.
func (s *StationStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS stations (
			id               VARCHAR(64) PRIMARY KEY,
			station_name     VARCHAR(255) NOT NULL,
			short_name       VARCHAR(64) NOT NULL,
			total_docks      INT NOT NULL,
			docks_in_service INT NOT NULL,
			status           VARCHAR(64) NOT NULL,
			latitude         DOUBLE NOT NULL,
			longitude        DOUBLE NOT NULL,
			is_electric      BOOLEAN NOT NULL DEFAULT FALSE,
			observed_at      DATETIME NOT NULL,
			last_updated     DATETIME NOT NULL
		)
	`)
	if err != nil {
		return &StoreError{Op: "ensure schema", Err: err}
	}
	return nil
}

// GetStation looks a station up by its natural key. Absent is not an error:
// it returns (nil, nil).
func (s *StationStore) GetStation(ctx context.Context, id string) (*models.PersistedStation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, station_name, short_name, total_docks, docks_in_service,
		       status, latitude, longitude, is_electric, observed_at, last_updated
		FROM stations
		WHERE id = ?
	`, id)

	st, err := scanStation(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, &StoreError{Op: fmt.Sprintf("get station %s", id), Err: err}
	}
	return st, nil
}

// UpsertStation inserts or overwrites the row for rec.ID and classifies the
// observation. The electrified transition is computed from the existing row
// BEFORE the overwrite destroys it; that ordering is what makes the
// classification trustworthy, so do not reorder these statements.
func (s *StationStore) UpsertStation(ctx context.Context, rec models.StationRecord) (models.Classification, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", &StoreError{Op: "begin upsert transaction", Err: err}
	}
	defer tx.Rollback()

	var existingElectric bool
	err = tx.QueryRowContext(ctx,
		"SELECT is_electric FROM stations WHERE id = ? FOR UPDATE", rec.ID,
	).Scan(&existingElectric)

	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO stations (
				id, station_name, short_name, total_docks, docks_in_service,
				status, latitude, longitude, is_electric, observed_at, last_updated
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW())
		`, rec.ID, rec.Name, rec.ShortName, rec.TotalDocks, rec.DocksInService,
			rec.Status, rec.Latitude, rec.Longitude, rec.IsElectric, rec.ObservedAt)
		if err != nil {
			return "", &StoreError{Op: fmt.Sprintf("insert station %s", rec.ID), Err: err}
		}
		if err := tx.Commit(); err != nil {
			return "", &StoreError{Op: fmt.Sprintf("commit insert for station %s", rec.ID), Err: err}
		}
		return models.ClassificationNew, nil

	case err != nil:
		return "", &StoreError{Op: fmt.Sprintf("look up station %s", rec.ID), Err: err}
	}

	// Snapshot the transition before the overwrite.
	wasElectrified := !existingElectric && rec.IsElectric

	_, err = tx.ExecContext(ctx, `
		UPDATE stations SET
			station_name = ?, short_name = ?, total_docks = ?, docks_in_service = ?,
			status = ?, latitude = ?, longitude = ?, is_electric = ?,
			observed_at = ?, last_updated = NOW()
		WHERE id = ?
	`, rec.Name, rec.ShortName, rec.TotalDocks, rec.DocksInService,
		rec.Status, rec.Latitude, rec.Longitude, rec.IsElectric, rec.ObservedAt, rec.ID)
	if err != nil {
		return "", &StoreError{Op: fmt.Sprintf("update station %s", rec.ID), Err: err}
	}
	if err := tx.Commit(); err != nil {
		return "", &StoreError{Op: fmt.Sprintf("commit update for station %s", rec.ID), Err: err}
	}

	if wasElectrified {
		return models.ClassificationElectrified, nil
	}
	return models.ClassificationUnchanged, nil
}

// AllStations returns every persisted station ordered by id.
func (s *StationStore) AllStations(ctx context.Context) ([]models.PersistedStation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, station_name, short_name, total_docks, docks_in_service,
		       status, latitude, longitude, is_electric, observed_at, last_updated
		FROM stations
		ORDER BY id
	`)
	if err != nil {
		return nil, &StoreError{Op: "query all stations", Err: err}
	}
	defer rows.Close()

	var stations []models.PersistedStation
	for rows.Next() {
		st, err := scanStation(rows)
		if err != nil {
			log.Printf("ERROR Database: Failed to scan station row: %v", err)
			continue
		}
		stations = append(stations, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "iterate station rows", Err: err}
	}
	return stations, nil
}

// CountStations reports how many stations are persisted. A zero count before
// the first cycle means this process is seeding an empty store.
func (s *StationStore) CountStations(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM stations").Scan(&count); err != nil {
		return 0, &StoreError{Op: "count stations", Err: err}
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStation(row rowScanner) (*models.PersistedStation, error) {
	var st models.PersistedStation
	err := row.Scan(
		&st.ID, &st.Name, &st.ShortName, &st.TotalDocks, &st.DocksInService,
		&st.Status, &st.Latitude, &st.Longitude, &st.IsElectric,
		&st.ObservedAt, &st.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	return &st, nil
}
