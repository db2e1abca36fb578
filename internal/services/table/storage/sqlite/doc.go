// Package sqlite implements table storage on SQLite.
package sqlite
