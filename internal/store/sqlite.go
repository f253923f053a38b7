// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides event/team/match/observation persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db       *sql.DB
	identity IdentitySource
	logger   *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist, and the
// identity params are seeded from the given source on first creation.
// Parent directories are created if needed.
func NewSQLiteStore(path string, identity IdentitySource) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// Pragmas ride the DSN so the driver applies them to every pooled
	// connection, not just the first one. WAL for concurrent readers,
	// referential checks enforced before any statement runs, and a busy
	// timeout so overlapping writers queue instead of failing.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{
		db:       db,
		identity: identity,
		logger:   logger,
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.seedParams(identity); err != nil {
		db.Close()
		return nil, fmt.Errorf("seeding params: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// Reset drops every table and view in reverse dependency order and
// recreates them from scratch, re-seeding the identity params. All
// event, team, match and scouting data is lost. This is never triggered
// implicitly; callers must ask for it.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	if err := dropAll(s.db); err != nil {
		return err
	}
	if err := initSchema(s.db); err != nil {
		return fmt.Errorf("recreating schema: %w", err)
	}
	if err := s.seedParams(s.identity); err != nil {
		return fmt.Errorf("reseeding params: %w", err)
	}
	s.logger.Warn("store reset, all scouting data discarded")
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// constraintError maps a SQLite constraint failure to the matching
// sentinel error, or returns nil when err is not a constraint failure.
func constraintError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return ErrMissingReference
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return ErrDuplicate
	}
	return nil
}

// nullString returns nil for nil pointers, otherwise the string value
func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func nullInt64(i *int64) any {
	if i == nil {
		return nil
	}
	return *i
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	return &ni.Int64
}

// ---- Events ----

const eventCols = `_id, "key", name, short_name, official, event_code, event_type,
	district, year, week, start_date, end_date, location, venue_address, timezone, website`

// InsertEvent creates a new event row. A duplicate event key is an
// application error: ErrDuplicate is returned and nothing is written.
func (s *SQLiteStore) InsertEvent(ctx context.Context, ev *Event) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO event ("key", name, short_name, official, event_code, event_type,
			district, year, week, start_date, end_date, location, venue_address, timezone, website)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.Key, ev.Name, nullString(ev.ShortName), ev.Official, ev.EventCode, ev.EventType,
		ev.District, ev.Year, nullInt(ev.Week), nullString(ev.StartDate), nullString(ev.EndDate),
		ev.Location, nullString(ev.VenueAddress), nullString(ev.Timezone), nullString(ev.Website))
	if err != nil {
		if cerr := constraintError(err); cerr != nil {
			return cerr
		}
		return fmt.Errorf("inserting event: %w", err)
	}
	ev.ID, _ = res.LastInsertId()
	s.logger.Debug("inserted event", "key", ev.Key)
	return nil
}

// UpsertEvent inserts the event or, if the key already exists, replaces
// every remote-sourced field of the existing row.
func (s *SQLiteStore) UpsertEvent(ctx context.Context, ev *Event) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE event SET name = ?, short_name = ?, official = ?, event_code = ?,
			event_type = ?, district = ?, year = ?, week = ?, start_date = ?, end_date = ?,
			location = ?, venue_address = ?, timezone = ?, website = ?
		WHERE "key" = ?
	`, ev.Name, nullString(ev.ShortName), ev.Official, ev.EventCode, ev.EventType,
		ev.District, ev.Year, nullInt(ev.Week), nullString(ev.StartDate), nullString(ev.EndDate),
		ev.Location, nullString(ev.VenueAddress), nullString(ev.Timezone), nullString(ev.Website),
		ev.Key)
	if err != nil {
		return fmt.Errorf("updating event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n > 0 {
		return s.db.QueryRowContext(ctx, `SELECT _id FROM event WHERE "key" = ?`, ev.Key).Scan(&ev.ID)
	}
	return s.InsertEvent(ctx, ev)
}

func scanEvent(row interface{ Scan(...any) error }) (*Event, error) {
	var ev Event
	var short, startDate, endDate, venue, tz, website sql.NullString
	var week sql.NullInt64
	err := row.Scan(&ev.ID, &ev.Key, &ev.Name, &short, &ev.Official, &ev.EventCode,
		&ev.EventType, &ev.District, &ev.Year, &week, &startDate, &endDate,
		&ev.Location, &venue, &tz, &website)
	if err != nil {
		return nil, err
	}
	ev.ShortName = strPtr(short)
	ev.Week = intPtr(week)
	ev.StartDate = strPtr(startDate)
	ev.EndDate = strPtr(endDate)
	ev.VenueAddress = strPtr(venue)
	ev.Timezone = strPtr(tz)
	ev.Website = strPtr(website)
	return &ev, nil
}

// GetEvent retrieves an event by key.
// Returns ErrNotFound if the event doesn't exist.
func (s *SQLiteStore) GetEvent(ctx context.Context, key string) (*Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventCols+` FROM event WHERE "key" = ?`, key)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying event: %w", err)
	}
	return ev, nil
}

// ListEvents returns events for a year ordered by start date. A year of
// zero returns every stored event.
func (s *SQLiteStore) ListEvents(ctx context.Context, year int) ([]*Event, error) {
	query := `SELECT ` + eventCols + ` FROM event`
	var args []any
	if year != 0 {
		query += ` WHERE year = ?`
		args = append(args, year)
	}
	query += ` ORDER BY start_date, "key"`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event rows: %w", err)
	}
	return events, nil
}

// DeleteEvent removes an event by key.
// Returns ErrNotFound if the event doesn't exist.
func (s *SQLiteStore) DeleteEvent(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM event WHERE "key" = ?`, key)
	if err != nil {
		if cerr := constraintError(err); cerr != nil {
			return cerr
		}
		return fmt.Errorf("deleting event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- Teams ----

const teamCols = `_id, "key", team_number, name, nickname, website, locality,
	region, country, location, rookie_year, motto`

// InsertTeam creates a new team row. A duplicate team key or number is an
// application error: ErrDuplicate is returned and nothing is written.
func (s *SQLiteStore) InsertTeam(ctx context.Context, tm *Team) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO team ("key", team_number, name, nickname, website, locality,
			region, country, location, rookie_year, motto)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tm.Key, tm.TeamNumber, tm.Name, tm.Nickname, nullString(tm.Website), tm.Locality,
		nullString(tm.Region), nullString(tm.Country), tm.Location, tm.RookieYear,
		nullString(tm.Motto))
	if err != nil {
		if cerr := constraintError(err); cerr != nil {
			return cerr
		}
		return fmt.Errorf("inserting team: %w", err)
	}
	tm.ID, _ = res.LastInsertId()
	s.logger.Debug("inserted team", "key", tm.Key, "number", tm.TeamNumber)
	return nil
}

// UpsertTeam inserts the team or, if the key already exists, replaces
// every remote-sourced field of the existing row.
func (s *SQLiteStore) UpsertTeam(ctx context.Context, tm *Team) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE team SET team_number = ?, name = ?, nickname = ?, website = ?,
			locality = ?, region = ?, country = ?, location = ?, rookie_year = ?, motto = ?
		WHERE "key" = ?
	`, tm.TeamNumber, tm.Name, tm.Nickname, nullString(tm.Website), tm.Locality,
		nullString(tm.Region), nullString(tm.Country), tm.Location, tm.RookieYear,
		nullString(tm.Motto), tm.Key)
	if err != nil {
		if cerr := constraintError(err); cerr != nil {
			return cerr
		}
		return fmt.Errorf("updating team: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n > 0 {
		return s.db.QueryRowContext(ctx, `SELECT _id FROM team WHERE "key" = ?`, tm.Key).Scan(&tm.ID)
	}
	return s.InsertTeam(ctx, tm)
}

func scanTeam(row interface{ Scan(...any) error }) (*Team, error) {
	var tm Team
	var website, region, country, motto sql.NullString
	err := row.Scan(&tm.ID, &tm.Key, &tm.TeamNumber, &tm.Name, &tm.Nickname, &website,
		&tm.Locality, &region, &country, &tm.Location, &tm.RookieYear, &motto)
	if err != nil {
		return nil, err
	}
	tm.Website = strPtr(website)
	tm.Region = strPtr(region)
	tm.Country = strPtr(country)
	tm.Motto = strPtr(motto)
	return &tm, nil
}

// GetTeam retrieves a team by key.
// Returns ErrNotFound if the team doesn't exist.
func (s *SQLiteStore) GetTeam(ctx context.Context, key string) (*Team, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+teamCols+` FROM team WHERE "key" = ?`, key)
	tm, err := scanTeam(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying team: %w", err)
	}
	return tm, nil
}

// GetTeamByNumber retrieves a team by team number.
// Returns ErrNotFound if the team doesn't exist.
func (s *SQLiteStore) GetTeamByNumber(ctx context.Context, number int) (*Team, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+teamCols+` FROM team WHERE team_number = ?`, number)
	tm, err := scanTeam(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying team by number: %w", err)
	}
	return tm, nil
}

// ListTeams returns all teams ordered by team number.
func (s *SQLiteStore) ListTeams(ctx context.Context) ([]*Team, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+teamCols+` FROM team ORDER BY team_number`)
	if err != nil {
		return nil, fmt.Errorf("querying teams: %w", err)
	}
	defer rows.Close()

	var teams []*Team
	for rows.Next() {
		tm, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning team row: %w", err)
		}
		teams = append(teams, tm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating team rows: %w", err)
	}
	return teams, nil
}

// DeleteTeam removes a team by key.
// Returns ErrNotFound if the team doesn't exist.
func (s *SQLiteStore) DeleteTeam(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM team WHERE "key" = ?`, key)
	if err != nil {
		if cerr := constraintError(err); cerr != nil {
			return cerr
		}
		return fmt.Errorf("deleting team: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- Event/team pairs ----

// InsertEventTeam records a team's participation at an event. The pair is
// unique with conflict-replace semantics, so re-inserting an existing
// pair silently collapses to one row. Both referenced rows must exist or
// ErrMissingReference is returned.
func (s *SQLiteStore) InsertEventTeam(ctx context.Context, et *EventTeam) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO event_team (event_id, team_id) VALUES (?, ?)`,
		et.EventID, et.TeamID)
	if err != nil {
		if cerr := constraintError(err); cerr != nil {
			return cerr
		}
		return fmt.Errorf("inserting event team: %w", err)
	}
	et.ID, _ = res.LastInsertId()
	s.logger.Debug("inserted event team", "event_id", et.EventID, "team_id", et.TeamID)
	return nil
}

// InsertEventTeams writes a batch of participation rows in one
// transaction. Conflict-replace applies per row; any failed row rolls
// back the whole batch.
func (s *SQLiteStore) InsertEventTeams(ctx context.Context, pairs []*EventTeam) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning event team tx: %w", err)
	}
	defer tx.Rollback()

	for _, et := range pairs {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO event_team (event_id, team_id) VALUES (?, ?)`,
			et.EventID, et.TeamID)
		if err != nil {
			if cerr := constraintError(err); cerr != nil {
				return cerr
			}
			return fmt.Errorf("inserting event team: %w", err)
		}
		et.ID, _ = res.LastInsertId()
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing event team tx: %w", err)
	}
	s.logger.Debug("inserted event teams", "count", len(pairs))
	return nil
}

// ListEventTeams returns the participation rows for an event.
func (s *SQLiteStore) ListEventTeams(ctx context.Context, eventID int64) ([]*EventTeam, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT _id, event_id, team_id FROM event_team WHERE event_id = ? ORDER BY team_id`,
		eventID)
	if err != nil {
		return nil, fmt.Errorf("querying event teams: %w", err)
	}
	defer rows.Close()

	var pairs []*EventTeam
	for rows.Next() {
		var et EventTeam
		if err := rows.Scan(&et.ID, &et.EventID, &et.TeamID); err != nil {
			return nil, fmt.Errorf("scanning event team row: %w", err)
		}
		pairs = append(pairs, &et)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating event team rows: %w", err)
	}
	return pairs, nil
}

// DeleteEventTeam removes one participation row.
// Returns ErrNotFound if the pair doesn't exist.
func (s *SQLiteStore) DeleteEventTeam(ctx context.Context, eventID, teamID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM event_team WHERE event_id = ? AND team_id = ?`, eventID, teamID)
	if err != nil {
		return fmt.Errorf("deleting event team: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRoster returns the event/team view rows for an event, ordered by
// team number.
func (s *SQLiteStore) ListRoster(ctx context.Context, eventID int64) ([]*RosterEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT _id, event_id, "key", team_number, name, nickname, website,
			locality, region, country, location, rookie_year, motto
		FROM event_team_view
		WHERE event_id = ?
		ORDER BY team_number
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("querying roster view: %w", err)
	}
	defer rows.Close()

	var roster []*RosterEntry
	for rows.Next() {
		var r RosterEntry
		var website, region, country, motto sql.NullString
		if err := rows.Scan(&r.TeamID, &r.EventID, &r.Key, &r.TeamNumber, &r.Name,
			&r.Nickname, &website, &r.Locality, &region, &country, &r.Location,
			&r.RookieYear, &motto); err != nil {
			return nil, fmt.Errorf("scanning roster row: %w", err)
		}
		r.Website = strPtr(website)
		r.Region = strPtr(region)
		r.Country = strPtr(country)
		r.Motto = strPtr(motto)
		roster = append(roster, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating roster rows: %w", err)
	}
	return roster, nil
}

// ---- Matches ----

const matchCols = `_id, "key", event_id, event_key, comp_level, set_number, match_number,
	alliances, score_breakdown, videos, "time", red_0, red_1, red_2, blue_0, blue_1, blue_2`

// InsertMatch creates a new match row. A duplicate match key is an
// application error: ErrDuplicate is returned and nothing is written.
// The referenced event must exist or ErrMissingReference is returned.
func (s *SQLiteStore) InsertMatch(ctx context.Context, m *Match) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO "match" ("key", event_id, event_key, comp_level, set_number, match_number,
			alliances, score_breakdown, videos, "time", red_0, red_1, red_2, blue_0, blue_1, blue_2)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.Key, m.EventID, m.EventKey, m.CompLevel, nullInt(m.SetNumber), nullInt(m.MatchNumber),
		nullString(m.Alliances), nullString(m.ScoreBreakdown), nullString(m.Videos),
		nullInt64(m.Time), m.Red[0], m.Red[1], m.Red[2], m.Blue[0], m.Blue[1], m.Blue[2])
	if err != nil {
		if cerr := constraintError(err); cerr != nil {
			return cerr
		}
		return fmt.Errorf("inserting match: %w", err)
	}
	m.ID, _ = res.LastInsertId()
	s.logger.Debug("inserted match", "key", m.Key)
	return nil
}

// UpsertMatch inserts the match or, if the key already exists, replaces
// the mutable fields (alliances, scores, videos, time, teams) of the
// existing row. Matches change as scores are finalized over an event.
func (s *SQLiteStore) UpsertMatch(ctx context.Context, m *Match) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE "match" SET event_id = ?, event_key = ?, comp_level = ?, set_number = ?,
			match_number = ?, alliances = ?, score_breakdown = ?, videos = ?, "time" = ?,
			red_0 = ?, red_1 = ?, red_2 = ?, blue_0 = ?, blue_1 = ?, blue_2 = ?
		WHERE "key" = ?
	`, m.EventID, m.EventKey, m.CompLevel, nullInt(m.SetNumber), nullInt(m.MatchNumber),
		nullString(m.Alliances), nullString(m.ScoreBreakdown), nullString(m.Videos),
		nullInt64(m.Time), m.Red[0], m.Red[1], m.Red[2], m.Blue[0], m.Blue[1], m.Blue[2],
		m.Key)
	if err != nil {
		if cerr := constraintError(err); cerr != nil {
			return cerr
		}
		return fmt.Errorf("updating match: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n > 0 {
		return s.db.QueryRowContext(ctx, `SELECT _id FROM "match" WHERE "key" = ?`, m.Key).Scan(&m.ID)
	}
	return s.InsertMatch(ctx, m)
}

func scanMatch(row interface{ Scan(...any) error }) (*Match, error) {
	var m Match
	var setNum, matchNum, matchTime sql.NullInt64
	var alliances, scores, videos sql.NullString
	err := row.Scan(&m.ID, &m.Key, &m.EventID, &m.EventKey, &m.CompLevel, &setNum, &matchNum,
		&alliances, &scores, &videos, &matchTime,
		&m.Red[0], &m.Red[1], &m.Red[2], &m.Blue[0], &m.Blue[1], &m.Blue[2])
	if err != nil {
		return nil, err
	}
	m.SetNumber = intPtr(setNum)
	m.MatchNumber = intPtr(matchNum)
	m.Alliances = strPtr(alliances)
	m.ScoreBreakdown = strPtr(scores)
	m.Videos = strPtr(videos)
	m.Time = int64Ptr(matchTime)
	return &m, nil
}

// GetMatch retrieves a match by key.
// Returns ErrNotFound if the match doesn't exist.
func (s *SQLiteStore) GetMatch(ctx context.Context, key string) (*Match, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+matchCols+` FROM "match" WHERE "key" = ?`, key)
	m, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying match: %w", err)
	}
	return m, nil
}

// ListMatches returns matches satisfying the filter, in tournament order
// (competition level, then set, then match number).
func (s *SQLiteStore) ListMatches(ctx context.Context, filter MatchFilter) ([]*Match, error) {
	query := `SELECT ` + matchCols + ` FROM "match"`
	var conds []string
	var args []any
	if filter.EventKey != "" {
		conds = append(conds, `event_key = ?`)
		args = append(args, filter.EventKey)
	}
	if filter.TeamKey != "" {
		conds = append(conds, `? IN (red_0, red_1, red_2, blue_0, blue_1, blue_2)`)
		args = append(args, filter.TeamKey)
	}
	if filter.CompLevel != 0 {
		conds = append(conds, `comp_level = ?`)
		args = append(args, filter.CompLevel)
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY comp_level, set_number, match_number`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	var matches []*Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning match row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating match rows: %w", err)
	}
	return matches, nil
}

// DeleteMatch removes a match by key.
// Returns ErrNotFound if the match doesn't exist.
func (s *SQLiteStore) DeleteMatch(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM "match" WHERE "key" = ?`, key)
	if err != nil {
		return fmt.Errorf("deleting match: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- Observations ----

const obsCols = `_id, scouter, observation, "match", team_key,
	auto_high_goal, auto_low_goal, auto_gear, auto_baseline,
	high_goal, low_goal, place_gear, climb_rope, touch_pad,
	ball_human, ball_floor, ball_hopper, pilot_effective, release_rope, lose_gear, notes`

// InsertObservation writes a scouting record with the scouter and
// observation fields already stamped. The (scouter, match, team) triple
// is unique with conflict-replace semantics: resubmission overwrites the
// prior row in full.
func (s *SQLiteStore) InsertObservation(ctx context.Context, ob *Observation) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO scouting_2017 (scouter, observation, "match", team_key,
			auto_high_goal, auto_low_goal, auto_gear, auto_baseline,
			high_goal, low_goal, place_gear, climb_rope, touch_pad,
			ball_human, ball_floor, ball_hopper, pilot_effective, release_rope, lose_gear, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ob.Scouter, ob.Observation, nullString(ob.MatchKey), ob.TeamKey,
		ob.AutoHighGoal, ob.AutoLowGoal, ob.AutoGear, ob.AutoBaseline,
		ob.HighGoal, ob.LowGoal, ob.PlaceGear, ob.ClimbRope, ob.TouchPad,
		ob.BallHuman, ob.BallFloor, ob.BallHopper, ob.PilotEffective,
		ob.ReleaseRope, ob.LoseGear, ob.Notes)
	if err != nil {
		if cerr := constraintError(err); cerr != nil {
			return cerr
		}
		return fmt.Errorf("inserting observation: %w", err)
	}
	ob.ID, _ = res.LastInsertId()
	s.logger.Debug("inserted observation", "scouter", ob.Scouter, "team", ob.TeamKey)
	return nil
}

// SubmitObservation stamps the record with this installation's scouter
// id and the next observation sequence, then inserts it.
func (s *SQLiteStore) SubmitObservation(ctx context.Context, ob *Observation) error {
	scouter, err := s.ScouterID(ctx)
	if err != nil {
		return fmt.Errorf("reading scouter id: %w", err)
	}
	seq, err := s.NextObservation(ctx)
	if err != nil {
		return fmt.Errorf("reserving observation sequence: %w", err)
	}
	ob.Scouter = scouter
	ob.Observation = seq
	return s.InsertObservation(ctx, ob)
}

// ListObservations returns scouting records satisfying the filter,
// ordered by observation sequence.
func (s *SQLiteStore) ListObservations(ctx context.Context, filter ObservationFilter) ([]*Observation, error) {
	query := `SELECT ` + obsCols + ` FROM scouting_2017`
	var conds []string
	var args []any
	if filter.TeamKey != "" {
		conds = append(conds, `team_key = ?`)
		args = append(args, filter.TeamKey)
	}
	if filter.MatchKey != "" {
		conds = append(conds, `"match" = ?`)
		args = append(args, filter.MatchKey)
	}
	if filter.Scouter != 0 {
		conds = append(conds, `scouter = ?`)
		args = append(args, filter.Scouter)
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY scouter, observation`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying observations: %w", err)
	}
	defer rows.Close()

	var obs []*Observation
	for rows.Next() {
		var ob Observation
		var matchKey sql.NullString
		if err := rows.Scan(&ob.ID, &ob.Scouter, &ob.Observation, &matchKey, &ob.TeamKey,
			&ob.AutoHighGoal, &ob.AutoLowGoal, &ob.AutoGear, &ob.AutoBaseline,
			&ob.HighGoal, &ob.LowGoal, &ob.PlaceGear, &ob.ClimbRope, &ob.TouchPad,
			&ob.BallHuman, &ob.BallFloor, &ob.BallHopper, &ob.PilotEffective,
			&ob.ReleaseRope, &ob.LoseGear, &ob.Notes); err != nil {
			return nil, fmt.Errorf("scanning observation row: %w", err)
		}
		ob.MatchKey = strPtr(matchKey)
		obs = append(obs, &ob)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating observation rows: %w", err)
	}
	return obs, nil
}

// DeleteObservation removes a scouting record by row id.
// Returns ErrNotFound if the record doesn't exist.
func (s *SQLiteStore) DeleteObservation(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scouting_2017 WHERE _id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting observation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
