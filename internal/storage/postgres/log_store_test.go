package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/company-signals/internal/crawler"
)

func TestStoreLogsInsertsRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewLogStoreWithPool(mock, "")
	require.NoError(t, err)

	at := time.Unix(1700000000, 0).UTC()
	code := 200
	elapsed := 1500 * time.Millisecond
	ok := crawler.LogRecord{
		Website:         "https://acme.test",
		Company:         "Acme",
		Domain:          "acme.test",
		Status:          crawler.StatusSuccess,
		Description:     "Website scraped successfully",
		AttemptedAt:     at,
		StatusCode:      &code,
		ResponseTime:    &elapsed,
		HeadersSent:     `{"User-Agent":"ua"}`,
		HeadersReceived: `{"Content-Type":"text/html"}`,
		PageTitle:       "Acme",
		ContentLength:   120,
		LinkCount:       7,
		PDFCount:        1,
		FirstPDFURL:     "/r.pdf",
		RedirectedURL:   crawler.NotAvailable,
		UserAgent:       "ua",
		CookiesSent:     "{}",
		CookiesReceived: "{}",
	}
	failed := crawler.LogRecord{
		Website:     "https://down.test",
		Company:     "Down",
		Domain:      "down.test",
		Status:      crawler.StatusError,
		Description: "Request timed out",
		Retries:     3,
		AttemptedAt: at,
	}

	ms := int64(1500)
	mock.ExpectExec("INSERT INTO scrape_logs").
		WithArgs(
			"run-1", 0, ok.Website, ok.Company, ok.Domain, "Success", ok.Description, 0, at,
			&code, &ms,
			[]byte(ok.HeadersSent), []byte(ok.HeadersReceived),
			ok.PageTitle, 120, 7, 1, ok.FirstPDFURL, ok.RedirectedURL, ok.UserAgent,
			[]byte("{}"), []byte("{}"),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO scrape_logs").
		WithArgs(
			"run-1", 1, failed.Website, failed.Company, failed.Domain, "Error", failed.Description, 3, at,
			(*int)(nil), (*int64)(nil),
			[]byte("{}"), []byte("{}"),
			"", 0, 0, 0, "", "", "",
			[]byte("{}"), []byte("{}"),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.StoreLogs(context.Background(), "run-1", []crawler.LogRecord{ok, failed}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreLogsStopsOnError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewLogStoreWithPool(mock, "audit_logs")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(errors.New("connection reset"))

	logs := []crawler.LogRecord{{Website: "https://a.test"}, {Website: "https://b.test"}}
	err = store.StoreLogs(context.Background(), "run-2", logs)
	require.ErrorContains(t, err, "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogStoreValidation(t *testing.T) {
	t.Parallel()

	_, err := NewLogStoreWithPool(nil, "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewLogStoreWithPool(mock, "logs; DROP TABLE x")
	require.Error(t, err)

	store, err := NewLogStoreWithPool(mock, "")
	require.NoError(t, err)
	require.Error(t, store.StoreLogs(context.Background(), "", nil))

	_, err = NewLogStore(context.Background(), LogStoreConfig{})
	require.Error(t, err)
}
