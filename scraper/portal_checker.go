// scraper/portal_checker.go
package scraper

import (
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Regex to find dates in the portal's "Updated Month D, YYYY" metadata text.
var portalUpdatedRegex = regexp.MustCompile(`Updated\s+([A-Z][a-z]+ \d{1,2}, \d{4})`)

const portalDateLayout = "January 2, 2006"

// FetchPortalUpdated scrapes the dataset's portal page and extracts the date
// the portal last reported the dataset as updated. The container selector
// comes from config because the portal's markup shifts between redesigns.
// Callers treat a failure here as non-fatal and fall through to a full fetch.
func FetchPortalUpdated(pageURL, containerSelector string, timeout time.Duration) (time.Time, error) {
	if containerSelector == "" {
		log.Println("WARN Scraper: No CSS selector configured for the portal updated stamp, searching the whole page body.")
		containerSelector = "body"
	}
	log.Printf("Scraper: Checking portal updated stamp from %s (container: '%s')\n", pageURL, containerSelector)

	client := http.Client{Timeout: timeout}
	res, err := client.Get(pageURL)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get URL %s: %w", pageURL, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("failed to get URL %s: status code %d", pageURL, res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse HTML from %s: %w", pageURL, err)
	}

	var foundDateText string
	doc.Find(containerSelector).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if portalUpdatedRegex.MatchString(text) {
			foundDateText = text
			return false
		}
		return true
	})

	if foundDateText == "" {
		return time.Time{}, fmt.Errorf("no 'Updated ...' stamp found on %s within container '%s'", pageURL, containerSelector)
	}

	matches := portalUpdatedRegex.FindStringSubmatch(foundDateText)
	updated, err := time.Parse(portalDateLayout, matches[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse portal updated date '%s': %w", matches[1], err)
	}

	log.Printf("Scraper: Portal reports dataset updated %s\n", updated.Format("2006-01-02"))
	return updated, nil
}
