// Package stores persists jobs, job events and a conversion audit log in
// SQLite. Schema changes are embedded migrations applied with
// golang-migrate; file databases run in WAL mode.
package stores
