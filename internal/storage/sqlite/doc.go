// Package sqlite implements the storage contracts on modernc.org/sqlite
// with embedded schema migrations.
package sqlite
