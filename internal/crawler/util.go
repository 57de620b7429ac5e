package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// domainOf returns the host (with port, if any) of raw, or "" when unparsable.
func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

// snapshotHeaders renders headers as a stable JSON object for the log table.
func snapshotHeaders(h http.Header) string {
	flat := make(map[string]string, len(h))
	for k, v := range h {
		flat[http.CanonicalHeaderKey(k)] = strings.Join(v, ", ")
	}
	return marshalSnapshot(flat)
}

// snapshotCookies renders cookies as a stable JSON object of name to value.
func snapshotCookies(cookies []*http.Cookie) string {
	flat := make(map[string]string, len(cookies))
	for _, c := range cookies {
		if c == nil {
			continue
		}
		flat[c.Name] = c.Value
	}
	return marshalSnapshot(flat)
}

func marshalSnapshot(m map[string]string) string {
	// Map keys are emitted sorted, so equal snapshots compare equal.
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func intPtr(v int) *int {
	return &v
}

// ErrorRecord builds the terminal Error record for a target whose scrape never
// produced one of its own.
func ErrorRecord(target Target, at time.Time, description string) LogRecord {
	return LogRecord{
		Website:     target.Website,
		Company:     target.Company,
		Domain:      domainOf(target.Website),
		Status:      StatusError,
		Description: description,
		AttemptedAt: at,
	}
}
