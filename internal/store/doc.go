// Package store provides persistent storage for scoutbase using SQLite.
//
// # Data Models
//
//   - Param: per-installation identity and counters, seeded once
//   - Event, Team, Match: competition metadata mirrored from the remote feed
//   - EventTeam: a team's participation at an event (conflict-replace)
//   - Observation: locally authored scouting record (conflict-replace)
//   - RosterEntry: row of the derived event/team view
//
// # Conflict semantics
//
// Event, team and match rows have natural unique keys; inserting a
// duplicate is an application error (ErrDuplicate). EventTeam and
// Observation instead declare ON CONFLICT REPLACE at the schema level, so
// duplicate pairs/triples silently overwrite the prior row in full. This
// is what makes repeated syncs and resubmissions idempotent.
//
// # Schema
//
// The schema is declared as data (see schema.go) and DDL is generated
// mechanically. Migration is additive; the only destructive operation is
// the explicit Reset.
//
// # SQLite Configuration
//
// The journal_mode=WAL, foreign_keys=ON and busy_timeout pragmas are
// carried on the DSN, so the driver applies them to every pooled
// connection.
//
// All methods accept context.Context for cancellation support. Use
// NewSQLiteStore(":memory:", ...) for tests.
package store
