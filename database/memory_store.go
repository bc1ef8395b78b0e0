// database/memory_store.go
package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"divvymon/models"
)

// MemoryStationStore is a map-backed station store with the same
// upsert-and-classify semantics as StationStore. It backs tests and any run
// that has no database available.
type MemoryStationStore struct {
	mu       sync.RWMutex
	stations map[string]*models.PersistedStation
}

func NewMemoryStationStore() *MemoryStationStore {
	return &MemoryStationStore{stations: make(map[string]*models.PersistedStation)}
}

func (s *MemoryStationStore) GetStation(ctx context.Context, id string) (*models.PersistedStation, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stations[id]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

func (s *MemoryStationStore) UpsertStation(ctx context.Context, rec models.StationRecord) (models.Classification, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.stations[rec.ID]
	if !ok {
		s.stations[rec.ID] = &models.PersistedStation{
			StationRecord: rec,
			LastUpdated:   time.Now().UTC(),
		}
		return models.ClassificationNew, nil
	}

	// Same ordering as the SQL store: decide the transition before the
	// overwrite erases the prior is_electric value.
	wasElectrified := !existing.IsElectric && rec.IsElectric

	existing.StationRecord = rec
	existing.LastUpdated = time.Now().UTC()

	if wasElectrified {
		return models.ClassificationElectrified, nil
	}
	return models.ClassificationUnchanged, nil
}

func (s *MemoryStationStore) AllStations(ctx context.Context) ([]models.PersistedStation, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	stations := make([]models.PersistedStation, 0, len(s.stations))
	for _, st := range s.stations {
		stations = append(stations, *st)
	}
	sort.Slice(stations, func(i, j int) bool { return stations[i].ID < stations[j].ID })
	return stations, nil
}

func (s *MemoryStationStore) CountStations(ctx context.Context) (int, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stations), nil
}
