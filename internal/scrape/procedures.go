// Package scrape extracts the national procedure reference table (code/name
// pairs) from its published HTML page.
package scrape

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Procedure is one row of the reference table.
type Procedure struct {
	Code string
	Name string
}

// Extract parses an HTML document and returns one Procedure per table row
// that carries at least a code and a name cell. Rows with fewer than two
// cells (headers rendered as data, spacer rows) are skipped rather than
// treated as errors, so a sloppy page still yields the usable rows.
// DOM order is preserved.
func Extract(r io.Reader) ([]Procedure, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var procs []Procedure
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		code := strings.TrimSpace(cells.Eq(0).Text())
		name := strings.TrimSpace(cells.Eq(1).Text())
		if code == "" || name == "" {
			return
		}
		procs = append(procs, Procedure{Code: code, Name: name})
	})

	return procs, nil
}

// Fetch downloads the page at url and extracts its procedure table.
func Fetch(ctx context.Context, client *http.Client, url string) ([]Procedure, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	return Extract(resp.Body)
}

// WriteCSV emits the procedures as a two-column CSV with a header row.
func WriteCSV(w io.Writer, procs []Procedure) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"code", "name"}); err != nil {
		return err
	}
	for _, p := range procs {
		if err := cw.Write([]string{p.Code, p.Name}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
