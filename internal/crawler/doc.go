// Package crawler holds the scraping core: the shared data model, the
// bounded-retry page fetcher and the per-target scraper that combines page and
// linked-PDF extraction into a company profile plus one log record.
package crawler
