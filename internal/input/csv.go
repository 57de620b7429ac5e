// Package input reads the company target list.
package input

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/JakeFAU/company-signals/internal/crawler"
)

// Required input columns, matched case-insensitively.
const (
	ColumnCompany   = "Company"
	ColumnWebsite   = "Website"
	ColumnPersonRef = "Person LinkedIn Url"
)

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("input: missing required column")

// Result holds the valid targets plus counts of rows that were skipped.
type Result struct {
	Targets []crawler.Target
	// Blank counts rows with an empty required field.
	Blank int
	// InvalidURL counts rows whose website is not an absolute http(s) URL.
	InvalidURL int
}

// ReadTargetsFile opens path and reads targets from it.
func ReadTargetsFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open input: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return ReadTargets(f)
}

// ReadTargets parses CSV rows into targets. Rows missing any required field are
// dropped, as are rows whose website does not parse as an absolute URL.
func ReadTargets(r io.Reader) (Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return Result{}, fmt.Errorf("read header: %w", err)
	}
	idx, err := columnIndexes(header)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("read row: %w", err)
		}
		company := field(rec, idx[ColumnCompany])
		website := field(rec, idx[ColumnWebsite])
		person := field(rec, idx[ColumnPersonRef])
		if company == "" || website == "" || person == "" {
			res.Blank++
			continue
		}
		if !isAbsoluteURL(website) {
			res.InvalidURL++
			continue
		}
		res.Targets = append(res.Targets, crawler.Target{
			Company:   company,
			Website:   website,
			PersonRef: person,
		})
	}
	return res, nil
}

func columnIndexes(header []string) (map[string]int, error) {
	idx := make(map[string]int, 3)
	for i, col := range header {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		for _, want := range []string{ColumnCompany, ColumnWebsite, ColumnPersonRef} {
			if _, seen := idx[want]; !seen && strings.EqualFold(col, want) {
				idx[want] = i
			}
		}
	}
	var missing []string
	for _, want := range []string{ColumnCompany, ColumnWebsite, ColumnPersonRef} {
		if _, ok := idx[want]; !ok {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return idx, nil
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
