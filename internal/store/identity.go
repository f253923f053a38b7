// ABOUTME: Per-installation scouter identity and the observation counter
// ABOUTME: Identity is injected at store construction so tests can substitute it

package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/binary"
	"fmt"
)

// IdentitySource produces the per-installation scouter identifier. It is
// consulted once, when the param table is first seeded.
type IdentitySource interface {
	ScouterID() (int32, error)
}

// RandomIdentity draws the scouter identifier from a cryptographically
// strong source. The 32-bit space is an accepted collision risk across
// many devices, traded for compact storage.
type RandomIdentity struct{}

// ScouterID returns a random 32-bit identifier.
func (RandomIdentity) ScouterID() (int32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("reading random identity: %w", err)
	}
	return int32(binary.BigEndian.Uint32(b[:])), nil
}

// seedParams creates the identity rows exactly once, on a freshly created
// database. An already-seeded param table is left untouched.
func (s *SQLiteStore) seedParams(identity IdentitySource) error {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM param`).Scan(&n); err != nil {
		return fmt.Errorf("counting params: %w", err)
	}
	if n > 0 {
		return nil
	}

	scouter, err := identity.ScouterID()
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(`INSERT INTO param (name, value) VALUES (?, ?)`,
		ParamScouter, int64(scouter)); err != nil {
		return fmt.Errorf("seeding scouter param: %w", err)
	}
	if _, err := s.db.Exec(`INSERT INTO param (name, value) VALUES (?, ?)`,
		ParamObservation, int64(0)); err != nil {
		return fmt.Errorf("seeding observation param: %w", err)
	}

	s.logger.Info("seeded identity params", "scouter", scouter)
	return nil
}

// GetParam returns the value of a named param row.
// Returns ErrNotFound if no such param exists.
func (s *SQLiteStore) GetParam(ctx context.Context, name string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM param WHERE name = ?`, name).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("querying param %s: %w", name, err)
	}
	return value, nil
}

// ScouterID returns the per-installation scouter identifier.
func (s *SQLiteStore) ScouterID(ctx context.Context) (int64, error) {
	return s.GetParam(ctx, ParamScouter)
}

// NextObservation atomically increments the observation counter and
// returns the previous value, for stamping a new scouting record. The
// increment is a single statement, so concurrent callers serialize on
// the engine's own locking and each receives a distinct value.
func (s *SQLiteStore) NextObservation(ctx context.Context) (int64, error) {
	var next int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE param SET value = value + 1 WHERE name = ? RETURNING value`,
		ParamObservation).Scan(&next)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("incrementing observation counter: %w", err)
	}
	return next - 1, nil
}
