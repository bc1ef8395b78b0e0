// scraper/feed_fetcher.go
package scraper

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/jszwec/csvutil"

	"divvymon/config"
	"divvymon/models"
)

// FeedFetcher pages through the Chicago Data Portal's SODA CSV endpoint for
// Divvy stations. Transient transport failures are retried with exponential
// backoff up to a ceiling; when retries run out mid-pagination, whatever was
// accumulated so far is returned as a partial snapshot rather than failing
// the whole cycle.
type FeedFetcher struct {
	baseURL    string
	pageSize   int
	maxRetries int
	client     *http.Client

	// Overridable so tests do not sleep through real backoff.
	backoff func(retry int) time.Duration
}

func NewFeedFetcher(cfg config.APIConfig) *FeedFetcher {
	return &FeedFetcher{
		baseURL:    cfg.StationsCSVURL,
		pageSize:   cfg.PageSize,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: cfg.Timeouts.Soda},
		backoff: func(retry int) time.Duration {
			return time.Duration(1<<uint(retry)) * time.Second
		},
	}
}

// FetchAll fetches the full station snapshot, one page at a time. The error
// return is non-nil only when the context is cancelled; exhausted retries
// degrade to a partial snapshot instead, reported via the second return so
// callers do not mistake the truncated snapshot for a completed sync.
func (f *FeedFetcher) FetchAll(ctx context.Context) ([]models.RawStation, bool, error) {
	var all []models.RawStation
	offset := 0
	retryCount := 0
	partial := false

	for {
		records, rowsInPage, err := f.fetchPage(ctx, offset)
		if err != nil {
			retryCount++
			if retryCount > f.maxRetries {
				log.Printf("ERROR Scraper: Max retries exceeded at offset %d: %v", offset, err)
				partial = true
				break
			}
			log.Printf("WARN Scraper: Retry %d/%d at offset %d: %v", retryCount, f.maxRetries, offset, err)
			select {
			case <-ctx.Done():
				return all, true, ctx.Err()
			case <-time.After(f.backoff(retryCount)):
			}
			continue
		}
		retryCount = 0

		all = append(all, records...)
		if rowsInPage < f.pageSize {
			break
		}
		offset += rowsInPage
		log.Printf("Scraper: Fetched %d stations so far", len(all))
	}

	if partial {
		log.Printf("WARN Scraper: Returning partial snapshot of %d stations", len(all))
	} else {
		log.Printf("Scraper: Processed %d total stations from feed", len(all))
	}
	return all, partial, nil
}

// fetchPage requests one page of the CSV feed and decodes it row by row.
// Rows that fail to decode are skipped and logged; they never abort the page.
// The second return value is the number of data rows seen, which drives
// pagination regardless of how many of them decoded cleanly.
func (f *FeedFetcher) fetchPage(ctx context.Context, offset int) ([]models.RawStation, int, error) {
	params := url.Values{}
	params.Set("$offset", fmt.Sprintf("%d", offset))
	params.Set("$limit", fmt.Sprintf("%d", f.pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build feed request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch feed page at offset %d: %w", offset, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("feed page at offset %d: received status code %d", offset, resp.StatusCode)
	}

	return decodeStationsCSV(resp.Body)
}

func decodeStationsCSV(r io.Reader) ([]models.RawStation, int, error) {
	csvReader := csv.NewReader(r)
	csvReader.FieldsPerRecord = -1

	dec, err := csvutil.NewDecoder(csvReader)
	if err != nil {
		if errors.Is(err, io.EOF) {
			// Empty body: the portal signals the end of pagination this way.
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to create CSV decoder: %w", err)
	}

	var records []models.RawStation
	rowsInPage := 0
	for {
		var raw models.RawStation
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			rowsInPage++
			log.Printf("WARN Scraper: Skipping malformed CSV row: %v", err)
			continue
		}
		rowsInPage++
		records = append(records, raw)
	}
	return records, rowsInPage, nil
}
