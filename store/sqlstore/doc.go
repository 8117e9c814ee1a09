// Package sqlstore persists user records in sqlite (modernc.org/sqlite, the
// default) or postgres (pgx stdlib driver).
//
// Schema changes are goose migrations embedded per dialect. Queries are
// written with '?' placeholders and rebound for postgres. Timestamps are
// float unix seconds so that databases written by earlier deployments can
// be opened unchanged.
package sqlstore
