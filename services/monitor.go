// services/monitor.go
package services

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sync"
	"time"

	"divvymon/config"
	"divvymon/models"
	"divvymon/scraper"
)

const feedSourceName = "DIVVY_STATIONS"

// StationStore is the persistence the monitor reconciles against.
type StationStore interface {
	GetStation(ctx context.Context, id string) (*models.PersistedStation, error)
	UpsertStation(ctx context.Context, rec models.StationRecord) (models.Classification, error)
	AllStations(ctx context.Context) ([]models.PersistedStation, error)
	CountStations(ctx context.Context) (int, error)
}

// FeedVersionStore remembers upstream freshness between cycles. Optional: a
// nil store disables the portal short-circuit.
type FeedVersionStore interface {
	Get(ctx context.Context, sourceName string) (*models.FeedVersion, error)
	Record(ctx context.Context, v models.FeedVersion) error
}

// FeedFetcher yields a snapshot of raw station rows. The bool reports
// degradation: true means the snapshot is missing its tail and must not count
// as a completed sync.
type FeedFetcher interface {
	FetchAll(ctx context.Context) ([]models.RawStation, bool, error)
}

// Renderer produces the map artifact attached to a post. The monitor owns the
// artifact and removes it after posting.
type Renderer interface {
	RenderStationMap(station *models.PersistedStation) (string, error)
}

// Notifier publishes a station announcement and returns an opaque post handle.
type Notifier interface {
	PostNewStation(station *models.PersistedStation, mapPath string) (string, error)
	PostElectrifiedStation(station *models.PersistedStation, mapPath string) (string, error)
}

// CycleSummary reports what one reconciliation cycle did. Counters live here,
// not on the monitor; every cycle starts from zero.
type CycleSummary struct {
	Fetched      int
	Invalid      int
	New          int
	Electrified  int
	Posted       int
	SkippedByCap int
	SkippedFetch bool
	Partial      bool
}

// Monitor drives the fetch → reconcile → notify cycle. It holds no
// reconciliation state of its own beyond the bootstrap flag; the store is the
// source of truth.
type Monitor struct {
	cfg      *config.Config
	store    StationStore
	versions FeedVersionStore
	fetcher  FeedFetcher
	renderer Renderer
	poster   Notifier

	// Swappable for tests; defaults to scraper.FetchPortalUpdated.
	checkPortal func(pageURL, selector string, timeout time.Duration) (time.Time, error)

	// Serializes cycles and forced posts: the store has exactly one writer.
	mu sync.Mutex

	// True until the first cycle of a process that started against an empty
	// store has completed. That cycle seeds the store and announces nothing.
	firstRun bool
}

func NewMonitor(ctx context.Context, cfg *config.Config, store StationStore, versions FeedVersionStore,
	fetcher FeedFetcher, renderer Renderer, poster Notifier) (*Monitor, error) {

	count, err := store.CountStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to determine store state: %w", err)
	}

	m := &Monitor{
		cfg:         cfg,
		store:       store,
		versions:    versions,
		fetcher:     fetcher,
		renderer:    renderer,
		poster:      poster,
		checkPortal: scraper.FetchPortalUpdated,
		firstRun:    count == 0,
	}
	if m.firstRun {
		log.Println("Service: Empty store detected; the first cycle will seed it without posting.")
	}
	return m, nil
}

// RunCycle performs one fetch → reconcile → notify pass. Store errors abort
// the cycle; validation and notification failures are per-record and logged.
func (m *Monitor) RunCycle(ctx context.Context) (CycleSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var summary CycleSummary

	if m.skipFetch(ctx) {
		summary.SkippedFetch = true
		return summary, nil
	}

	log.Println("Service: Fetching station data...")
	raw, partial, err := m.fetcher.FetchAll(ctx)
	if err != nil {
		return summary, fmt.Errorf("fetch aborted: %w", err)
	}
	summary.Fetched = len(raw)
	summary.Partial = partial

	observedAt := time.Now().UTC()
	var newCandidates []string

	for _, r := range raw {
		rec, err := models.ParseStation(r, m.cfg.Bounds, observedAt)
		if err != nil {
			summary.Invalid++
			log.Printf("WARN Service: Skipping station id=%q name=%q: %v", r.ID, r.StationName, err)
			continue
		}

		classification, err := m.store.UpsertStation(ctx, rec)
		if err != nil {
			return summary, err
		}

		switch classification {
		case models.ClassificationNew:
			summary.New++
			newCandidates = append(newCandidates, rec.ID)
		case models.ClassificationElectrified:
			summary.Electrified++
			// An existing station flipping to electric is always newsworthy:
			// no batching, no cap.
			if m.shouldNotify() {
				if m.notifyStation(ctx, models.ClassificationElectrified, rec.ID) {
					summary.Posted++
				}
			}
		}
	}

	if m.shouldNotify() && len(newCandidates) > 0 {
		keep := newCandidates
		if limit := m.cfg.Features.MaxNewPosts; limit > 0 && len(keep) > limit {
			keep = keep[:limit]
			summary.SkippedByCap = len(newCandidates) - len(keep)
			log.Printf("Service: New-station post cap (%d) reached; %d stations skipped (they will not be re-announced).",
				limit, summary.SkippedByCap)
		}
		for _, id := range keep {
			if m.notifyStation(ctx, models.ClassificationNew, id) {
				summary.Posted++
			}
		}
	}

	// A partial snapshot is not a completed sync. Leaving the stamp alone keeps
	// the portal short-circuit from skipping the next cycle, so the missing
	// tail gets another chance.
	if m.versions != nil && !partial {
		now := time.Now().UTC()
		if err := m.versions.Record(ctx, models.FeedVersion{
			SourceName:   feedSourceName,
			PortalURL:    m.cfg.API.PortalPageURL,
			LastSyncedAt: &now,
		}); err != nil {
			log.Printf("WARN Service: Failed to record feed sync time: %v", err)
		}
	}

	m.logSummary(summary)
	// A partial bootstrap has only seeded part of the inventory; keep
	// suppressing until a complete pass so the tail is not announced.
	if !partial {
		m.firstRun = false
	}
	return summary, nil
}

// RunForced bypasses classification and posts about one already-persisted
// station: the given id, or a randomly chosen one when id is empty. Used to
// verify the notification path without waiting for a real change.
func (m *Monitor) RunForced(ctx context.Context, stationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var station *models.PersistedStation
	if stationID == "" {
		all, err := m.store.AllStations(ctx)
		if err != nil {
			return err
		}
		if len(all) == 0 {
			return fmt.Errorf("no stations persisted yet; run a cycle first")
		}
		station = &all[rand.Intn(len(all))]
	} else {
		st, err := m.store.GetStation(ctx, stationID)
		if err != nil {
			return err
		}
		if st == nil {
			return fmt.Errorf("station %s not found in store", stationID)
		}
		station = st
	}

	log.Printf("Service: Forced post for station %s (%s)", station.ID, station.Name)

	kind := models.ClassificationNew
	if station.IsElectric {
		kind = models.ClassificationElectrified
	}
	if !m.notify(models.ChangeEvent{Kind: kind, Station: station}) {
		return fmt.Errorf("forced post for station %s failed", station.ID)
	}
	return nil
}

// Run is the continuous-service loop: cycle, sleep, repeat. A failed cycle
// sleeps the longer error cooldown instead of the poll interval so a systemic
// failure does not busy-loop. Cancellation is honored between cycles only.
func (m *Monitor) Run(ctx context.Context) {
	log.Printf("Service: Starting monitor loop (interval %s, error cooldown %s)",
		m.cfg.Monitor.PollInterval, m.cfg.Monitor.ErrorCooldown)

	for {
		delay := m.cfg.Monitor.PollInterval
		if _, err := m.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				log.Println("Service: Monitor loop stopped.")
				return
			}
			log.Printf("ERROR Service: Cycle failed: %v", err)
			delay = m.cfg.Monitor.ErrorCooldown
		}

		select {
		case <-ctx.Done():
			log.Println("Service: Monitor loop stopped.")
			return
		case <-time.After(delay):
		}
	}
}

func (m *Monitor) shouldNotify() bool {
	return !m.firstRun && m.cfg.Features.PostingEnabled
}

// skipFetch asks the portal page whether the dataset changed since the last
// completed sync. Any failure here means "fetch anyway"; the check only ever
// saves work, it never blocks a cycle.
func (m *Monitor) skipFetch(ctx context.Context) bool {
	if m.versions == nil || m.cfg.API.PortalPageURL == "" || m.firstRun {
		return false
	}

	updated, err := m.checkPortal(m.cfg.API.PortalPageURL, m.cfg.ScraperSelectors.PortalLastUpdated, m.cfg.API.Timeouts.Soda)
	if err != nil {
		log.Printf("WARN Service: Portal freshness check failed, fetching anyway: %v", err)
		return false
	}

	prev, err := m.versions.Get(ctx, feedSourceName)
	if err != nil {
		log.Printf("WARN Service: Could not load feed version, fetching anyway: %v", err)
		return false
	}

	now := time.Now().UTC()
	if err := m.versions.Record(ctx, models.FeedVersion{
		SourceName:    feedSourceName,
		PortalURL:     m.cfg.API.PortalPageURL,
		PortalUpdated: &updated,
		LastCheckedAt: &now,
	}); err != nil {
		log.Printf("WARN Service: Failed to record portal check: %v", err)
	}

	if prev != nil && prev.LastSyncedAt != nil && !updated.After(*prev.LastSyncedAt) {
		log.Printf("Service: Portal unchanged since last sync (%s); skipping fetch this cycle.",
			prev.LastSyncedAt.Format("2006-01-02 15:04"))
		return true
	}
	return false
}

// notifyStation resolves the persisted row and notifies about it. Returns
// whether a post was actually published.
func (m *Monitor) notifyStation(ctx context.Context, kind models.Classification, id string) bool {
	station, err := m.store.GetStation(ctx, id)
	if err != nil || station == nil {
		log.Printf("ERROR Service: Could not load station %s for notification: %v", id, err)
		return false
	}
	return m.notify(models.ChangeEvent{Kind: kind, Station: station})
}

// notify renders the map artifact, posts, and cleans the artifact up.
// Failures are logged and swallowed: the classification is already committed
// and the store is the source of truth, so notification stays best-effort.
func (m *Monitor) notify(ev models.ChangeEvent) bool {
	mapPath, err := m.renderer.RenderStationMap(ev.Station)
	if err != nil {
		log.Printf("ERROR Service: Failed to render map for station %s: %v", ev.Station.ID, err)
		return false
	}
	defer func() {
		if err := os.Remove(mapPath); err != nil {
			log.Printf("WARN Service: Failed to remove map artifact %s: %v", mapPath, err)
		}
	}()

	var postErr error
	switch ev.Kind {
	case models.ClassificationNew:
		_, postErr = m.poster.PostNewStation(ev.Station, mapPath)
	case models.ClassificationElectrified:
		_, postErr = m.poster.PostElectrifiedStation(ev.Station, mapPath)
	default:
		return false
	}
	if postErr != nil {
		log.Printf("ERROR Service: Failed to post about station %s: %v", ev.Station.ID, postErr)
		return false
	}
	return true
}

func (m *Monitor) logSummary(summary CycleSummary) {
	if summary.Partial {
		log.Printf("WARN Service: Cycle ran on a partial snapshot (%d rows); sync stamp withheld.", summary.Fetched)
	}
	if m.firstRun {
		log.Printf("Service: First run completed: loaded %d stations (%d invalid rows skipped).",
			summary.Fetched-summary.Invalid, summary.Invalid)
		return
	}
	if summary.New == 0 && summary.Electrified == 0 {
		log.Println("Service: No changes detected.")
		return
	}
	log.Printf("Service: Changes detected: %d new, %d electrified (%d posted, %d skipped by cap, %d invalid rows).",
		summary.New, summary.Electrified, summary.Posted, summary.SkippedByCap, summary.Invalid)
}
