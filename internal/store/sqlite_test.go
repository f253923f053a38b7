// ABOUTME: Tests for the SQLite store implementation
// ABOUTME: Covers conflict semantics, referential integrity, the roster view and identity params

package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

// fixedIdentity is a deterministic IdentitySource for tests.
type fixedIdentity int32

func (f fixedIdentity) ScouterID() (int32, error) {
	return int32(f), nil
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "scouting.db"), fixedIdentity(1234))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testEvent(key string) *Event {
	return &Event{
		Key:       key,
		Name:      "Wisconsin Regional",
		Official:  true,
		EventCode: "mil",
		EventType: 0,
		District:  0,
		Year:      2017,
		Location:  "Milwaukee, WI, USA",
	}
}

func testTeam(key string, number int) *Team {
	return &Team{
		Key:        key,
		TeamNumber: number,
		Name:       "FireBears",
		Nickname:   "FireBears",
		Locality:   "St. Paul",
		Location:   "St. Paul, MN, USA",
		RookieYear: 2009,
	}
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := NewSQLiteStore(dbPath, fixedIdentity(1))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	s, err := NewSQLiteStore(dbPath, fixedIdentity(1))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestPragmas_AppliedToEveryPooledConnection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Holding the first connection open forces the pool to hand out a
	// second physical connection.
	first, err := s.db.Conn(ctx)
	if err != nil {
		t.Fatalf("pinning first connection: %v", err)
	}
	defer first.Close()
	second, err := s.db.Conn(ctx)
	if err != nil {
		t.Fatalf("pinning second connection: %v", err)
	}
	defer second.Close()

	for i, conn := range []*sql.Conn{first, second} {
		var fk int
		if err := conn.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&fk); err != nil {
			t.Fatalf("connection %d: reading foreign_keys pragma: %v", i+1, err)
		}
		if fk != 1 {
			t.Errorf("connection %d: foreign_keys pragma: got %d, want 1", i+1, fk)
		}
		var mode string
		if err := conn.QueryRowContext(ctx, `PRAGMA journal_mode`).Scan(&mode); err != nil {
			t.Fatalf("connection %d: reading journal_mode pragma: %v", i+1, err)
		}
		if mode != "wal" {
			t.Errorf("connection %d: journal_mode pragma: got %q, want %q", i+1, mode, "wal")
		}
	}

	// An orphan insert must be rejected on the second connection too.
	_, err = second.ExecContext(ctx,
		`INSERT INTO event_team (event_id, team_id) VALUES (999, 999)`)
	if constraintError(err) != ErrMissingReference {
		t.Errorf("orphan insert on second connection: expected foreign key failure, got %v", err)
	}
}

func TestFreshSchema_SeedsParams(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	scouter, err := s.GetParam(ctx, ParamScouter)
	if err != nil {
		t.Fatalf("GetParam(scouter) failed: %v", err)
	}
	if scouter != 1234 {
		t.Errorf("scouter param: got %d, want 1234", scouter)
	}

	obs, err := s.GetParam(ctx, ParamObservation)
	if err != nil {
		t.Fatalf("GetParam(observation) failed: %v", err)
	}
	if obs != 0 {
		t.Errorf("observation param: got %d, want 0", obs)
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM param`).Scan(&n); err != nil {
		t.Fatalf("counting params: %v", err)
	}
	if n != 2 {
		t.Errorf("param row count: got %d, want 2", n)
	}
}

func TestSeedParams_OnceOnly(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "scouting.db")

	s, err := NewSQLiteStore(dbPath, fixedIdentity(42))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	s.Close()

	// Reopening with a different identity source must not reseed.
	s, err = NewSQLiteStore(dbPath, fixedIdentity(99))
	if err != nil {
		t.Fatalf("reopening store failed: %v", err)
	}
	defer s.Close()

	scouter, err := s.ScouterID(context.Background())
	if err != nil {
		t.Fatalf("ScouterID failed: %v", err)
	}
	if scouter != 42 {
		t.Errorf("scouter changed on reopen: got %d, want 42", scouter)
	}
}

func TestInsertTeam_DuplicateKeyRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.InsertTeam(ctx, testTeam("frc2846", 2846)); err != nil {
		t.Fatalf("InsertTeam failed: %v", err)
	}
	if err := s.InsertTeam(ctx, testTeam("frc2846", 2846)); err != ErrDuplicate {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	teams, err := s.ListTeams(ctx)
	if err != nil {
		t.Fatalf("ListTeams failed: %v", err)
	}
	if len(teams) != 1 {
		t.Errorf("team count: got %d, want 1", len(teams))
	}
}

func TestInsertEvent_DuplicateKeyRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.InsertEvent(ctx, testEvent("2017mil")); err != nil {
		t.Fatalf("InsertEvent failed: %v", err)
	}
	if err := s.InsertEvent(ctx, testEvent("2017mil")); err != ErrDuplicate {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestInsertEventTeam_ReplaceOnConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ev := testEvent("2017mil")
	if err := s.InsertEvent(ctx, ev); err != nil {
		t.Fatalf("InsertEvent failed: %v", err)
	}
	tm := testTeam("frc2846", 2846)
	if err := s.InsertTeam(ctx, tm); err != nil {
		t.Fatalf("InsertTeam failed: %v", err)
	}

	if err := s.InsertEventTeam(ctx, &EventTeam{EventID: ev.ID, TeamID: tm.ID}); err != nil {
		t.Fatalf("InsertEventTeam failed: %v", err)
	}

	roster, err := s.ListRoster(ctx, ev.ID)
	if err != nil {
		t.Fatalf("ListRoster failed: %v", err)
	}
	if len(roster) != 1 {
		t.Fatalf("roster count: got %d, want 1", len(roster))
	}
	if roster[0].TeamNumber != 2846 {
		t.Errorf("roster team number: got %d, want 2846", roster[0].TeamNumber)
	}

	// Re-issuing the identical insert must collapse to one row.
	if err := s.InsertEventTeam(ctx, &EventTeam{EventID: ev.ID, TeamID: tm.ID}); err != nil {
		t.Fatalf("second InsertEventTeam failed: %v", err)
	}

	roster, err = s.ListRoster(ctx, ev.ID)
	if err != nil {
		t.Fatalf("ListRoster failed: %v", err)
	}
	if len(roster) != 1 {
		t.Errorf("roster count after duplicate insert: got %d, want 1", len(roster))
	}
}

func TestInsertEventTeam_MissingEvent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tm := testTeam("frc2846", 2846)
	if err := s.InsertTeam(ctx, tm); err != nil {
		t.Fatalf("InsertTeam failed: %v", err)
	}

	err := s.InsertEventTeam(ctx, &EventTeam{EventID: 999, TeamID: tm.ID})
	if err != ErrMissingReference {
		t.Errorf("expected ErrMissingReference, got %v", err)
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM event_team`).Scan(&n); err != nil {
		t.Fatalf("counting event teams: %v", err)
	}
	if n != 0 {
		t.Errorf("event_team row count: got %d, want 0", n)
	}
}

func TestInsertEventTeams_BatchRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ev := testEvent("2017mil")
	if err := s.InsertEvent(ctx, ev); err != nil {
		t.Fatalf("InsertEvent failed: %v", err)
	}
	tm := testTeam("frc2846", 2846)
	if err := s.InsertTeam(ctx, tm); err != nil {
		t.Fatalf("InsertTeam failed: %v", err)
	}

	// Second pair references a missing event; the whole batch must fail.
	err := s.InsertEventTeams(ctx, []*EventTeam{
		{EventID: ev.ID, TeamID: tm.ID},
		{EventID: 999, TeamID: tm.ID},
	})
	if err != ErrMissingReference {
		t.Fatalf("expected ErrMissingReference, got %v", err)
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM event_team`).Scan(&n); err != nil {
		t.Fatalf("counting event teams: %v", err)
	}
	if n != 0 {
		t.Errorf("event_team row count after failed batch: got %d, want 0", n)
	}

	// A clean batch lands, and re-issuing it collapses to the same rows.
	for i := 0; i < 2; i++ {
		if err := s.InsertEventTeams(ctx, []*EventTeam{{EventID: ev.ID, TeamID: tm.ID}}); err != nil {
			t.Fatalf("batch pass %d failed: %v", i+1, err)
		}
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM event_team`).Scan(&n); err != nil {
		t.Fatalf("counting event teams: %v", err)
	}
	if n != 1 {
		t.Errorf("event_team row count: got %d, want 1", n)
	}
}

func TestInsertMatch_MissingEvent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := &Match{
		Key:       "2017mil_qm1",
		EventID:   999,
		EventKey:  "2017mil",
		CompLevel: CompLevelQual,
		Red:       [3]string{"frc1", "frc2", "frc3"},
		Blue:      [3]string{"frc4", "frc5", "frc6"},
	}
	if err := s.InsertMatch(ctx, m); err != ErrMissingReference {
		t.Errorf("expected ErrMissingReference, got %v", err)
	}
}

func TestRosterView_TeamAtTwoEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e1 := testEvent("2017mil")
	e2 := testEvent("2017mnmi")
	if err := s.InsertEvent(ctx, e1); err != nil {
		t.Fatalf("InsertEvent failed: %v", err)
	}
	if err := s.InsertEvent(ctx, e2); err != nil {
		t.Fatalf("InsertEvent failed: %v", err)
	}
	tm := testTeam("frc2846", 2846)
	if err := s.InsertTeam(ctx, tm); err != nil {
		t.Fatalf("InsertTeam failed: %v", err)
	}

	if err := s.InsertEventTeam(ctx, &EventTeam{EventID: e1.ID, TeamID: tm.ID}); err != nil {
		t.Fatalf("InsertEventTeam failed: %v", err)
	}
	if err := s.InsertEventTeam(ctx, &EventTeam{EventID: e2.ID, TeamID: tm.ID}); err != nil {
		t.Fatalf("InsertEventTeam failed: %v", err)
	}

	r1, err := s.ListRoster(ctx, e1.ID)
	if err != nil {
		t.Fatalf("ListRoster(e1) failed: %v", err)
	}
	r2, err := s.ListRoster(ctx, e2.ID)
	if err != nil {
		t.Fatalf("ListRoster(e2) failed: %v", err)
	}
	if len(r1) != 1 || len(r2) != 1 {
		t.Fatalf("roster counts: got %d and %d, want 1 and 1", len(r1), len(r2))
	}
	if r1[0].EventID != e1.ID || r2[0].EventID != e2.ID {
		t.Errorf("event refs: got %d and %d, want %d and %d",
			r1[0].EventID, r2[0].EventID, e1.ID, e2.ID)
	}
	// Identical except for the event reference.
	if r1[0].TeamID != r2[0].TeamID || r1[0].Key != r2[0].Key ||
		r1[0].TeamNumber != r2[0].TeamNumber || r1[0].Nickname != r2[0].Nickname {
		t.Errorf("view rows differ in team fields: %+v vs %+v", r1[0], r2[0])
	}
}

func TestObservation_ResubmitLastWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	matchKey := "2017mil_qm1"
	first := &Observation{
		Scouter:      1234,
		Observation:  0,
		MatchKey:     &matchKey,
		TeamKey:      "frc2846",
		AutoHighGoal: 1,
		HighGoal:     5,
		Notes:        "first pass",
	}
	if err := s.InsertObservation(ctx, first); err != nil {
		t.Fatalf("InsertObservation failed: %v", err)
	}

	second := &Observation{
		Scouter:      1234,
		Observation:  1,
		MatchKey:     &matchKey,
		TeamKey:      "frc2846",
		AutoHighGoal: 3,
		HighGoal:     9,
		ClimbRope:    true,
		Notes:        "corrected",
	}
	if err := s.InsertObservation(ctx, second); err != nil {
		t.Fatalf("resubmitting observation failed: %v", err)
	}

	obs, err := s.ListObservations(ctx, ObservationFilter{TeamKey: "frc2846"})
	if err != nil {
		t.Fatalf("ListObservations failed: %v", err)
	}
	if len(obs) != 1 {
		t.Fatalf("observation count: got %d, want 1", len(obs))
	}
	got := obs[0]
	if got.AutoHighGoal != 3 || got.HighGoal != 9 || !got.ClimbRope || got.Notes != "corrected" {
		t.Errorf("observation not fully replaced: %+v", got)
	}
}

func TestObservation_DistinctTriplesKept(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	qm1, qm2 := "2017mil_qm1", "2017mil_qm2"
	for _, mk := range []string{qm1, qm2} {
		mk := mk
		ob := &Observation{Scouter: 1234, Observation: 0, MatchKey: &mk, TeamKey: "frc2846"}
		if err := s.InsertObservation(ctx, ob); err != nil {
			t.Fatalf("InsertObservation(%s) failed: %v", mk, err)
		}
	}

	obs, err := s.ListObservations(ctx, ObservationFilter{TeamKey: "frc2846"})
	if err != nil {
		t.Fatalf("ListObservations failed: %v", err)
	}
	if len(obs) != 2 {
		t.Errorf("observation count: got %d, want 2", len(obs))
	}
}

func TestNextObservation_Increments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for want := int64(0); want < 3; want++ {
		got, err := s.NextObservation(ctx)
		if err != nil {
			t.Fatalf("NextObservation failed: %v", err)
		}
		if got != want {
			t.Errorf("NextObservation: got %d, want %d", got, want)
		}
	}

	value, err := s.GetParam(ctx, ParamObservation)
	if err != nil {
		t.Fatalf("GetParam failed: %v", err)
	}
	if value != 3 {
		t.Errorf("observation counter: got %d, want 3", value)
	}
}

func TestSubmitObservation_StampsIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	matchKey := "2017mil_qm1"
	ob := &Observation{MatchKey: &matchKey, TeamKey: "frc2846", LowGoal: 2}
	if err := s.SubmitObservation(ctx, ob); err != nil {
		t.Fatalf("SubmitObservation failed: %v", err)
	}

	if ob.Scouter != 1234 {
		t.Errorf("scouter stamp: got %d, want 1234", ob.Scouter)
	}
	if ob.Observation != 0 {
		t.Errorf("observation stamp: got %d, want 0", ob.Observation)
	}

	ob2 := &Observation{MatchKey: &matchKey, TeamKey: "frc3130", LowGoal: 1}
	if err := s.SubmitObservation(ctx, ob2); err != nil {
		t.Fatalf("second SubmitObservation failed: %v", err)
	}
	if ob2.Observation != 1 {
		t.Errorf("second observation stamp: got %d, want 1", ob2.Observation)
	}
}

func TestUpsertTeam(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tm := testTeam("frc2846", 2846)
	if err := s.UpsertTeam(ctx, tm); err != nil {
		t.Fatalf("UpsertTeam insert failed: %v", err)
	}
	firstID := tm.ID

	motto := "Fully Charged"
	updated := testTeam("frc2846", 2846)
	updated.Nickname = "The FireBears"
	updated.Motto = &motto
	if err := s.UpsertTeam(ctx, updated); err != nil {
		t.Fatalf("UpsertTeam update failed: %v", err)
	}
	if updated.ID != firstID {
		t.Errorf("upsert changed row id: got %d, want %d", updated.ID, firstID)
	}

	got, err := s.GetTeam(ctx, "frc2846")
	if err != nil {
		t.Fatalf("GetTeam failed: %v", err)
	}
	if got.Nickname != "The FireBears" {
		t.Errorf("nickname not updated: got %q", got.Nickname)
	}
	if got.Motto == nil || *got.Motto != "Fully Charged" {
		t.Errorf("motto not updated: got %v", got.Motto)
	}

	teams, err := s.ListTeams(ctx)
	if err != nil {
		t.Fatalf("ListTeams failed: %v", err)
	}
	if len(teams) != 1 {
		t.Errorf("team count after upsert: got %d, want 1", len(teams))
	}
}

func TestUpsertMatch_ReplacesScores(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ev := testEvent("2017mil")
	if err := s.InsertEvent(ctx, ev); err != nil {
		t.Fatalf("InsertEvent failed: %v", err)
	}

	num := 1
	m := &Match{
		Key:         "2017mil_qm1",
		EventID:     ev.ID,
		EventKey:    "2017mil",
		CompLevel:   CompLevelQual,
		MatchNumber: &num,
		Red:         [3]string{"frc1", "frc2", "frc3"},
		Blue:        [3]string{"frc4", "frc5", "frc6"},
	}
	if err := s.UpsertMatch(ctx, m); err != nil {
		t.Fatalf("UpsertMatch insert failed: %v", err)
	}

	scores := `{"red":255,"blue":200}`
	m.ScoreBreakdown = &scores
	if err := s.UpsertMatch(ctx, m); err != nil {
		t.Fatalf("UpsertMatch update failed: %v", err)
	}

	got, err := s.GetMatch(ctx, "2017mil_qm1")
	if err != nil {
		t.Fatalf("GetMatch failed: %v", err)
	}
	if got.ScoreBreakdown == nil || *got.ScoreBreakdown != scores {
		t.Errorf("score breakdown not replaced: got %v", got.ScoreBreakdown)
	}

	matches, err := s.ListMatches(ctx, MatchFilter{EventKey: "2017mil"})
	if err != nil {
		t.Fatalf("ListMatches failed: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("match count after upsert: got %d, want 1", len(matches))
	}
}

func TestListMatches_FilterByTeam(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ev := testEvent("2017mil")
	if err := s.InsertEvent(ctx, ev); err != nil {
		t.Fatalf("InsertEvent failed: %v", err)
	}

	n1, n2 := 1, 2
	matches := []*Match{
		{Key: "2017mil_qm1", EventID: ev.ID, EventKey: "2017mil", CompLevel: CompLevelQual,
			MatchNumber: &n1, Red: [3]string{"frc2846", "frc2", "frc3"},
			Blue: [3]string{"frc4", "frc5", "frc6"}},
		{Key: "2017mil_qm2", EventID: ev.ID, EventKey: "2017mil", CompLevel: CompLevelQual,
			MatchNumber: &n2, Red: [3]string{"frc7", "frc8", "frc9"},
			Blue: [3]string{"frc10", "frc11", "frc2846"}},
		{Key: "2017mil_f1m1", EventID: ev.ID, EventKey: "2017mil", CompLevel: CompLevelFinal,
			MatchNumber: &n1, Red: [3]string{"frc7", "frc8", "frc9"},
			Blue: [3]string{"frc10", "frc11", "frc12"}},
	}
	for _, m := range matches {
		if err := s.InsertMatch(ctx, m); err != nil {
			t.Fatalf("InsertMatch(%s) failed: %v", m.Key, err)
		}
	}

	got, err := s.ListMatches(ctx, MatchFilter{TeamKey: "frc2846"})
	if err != nil {
		t.Fatalf("ListMatches failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("filtered match count: got %d, want 2", len(got))
	}
	if got[0].Key != "2017mil_qm1" || got[1].Key != "2017mil_qm2" {
		t.Errorf("match order: got %s, %s", got[0].Key, got[1].Key)
	}
}

func TestGetEvent_NotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetEvent(context.Background(), "nonexistent"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteTeam_NotFound(t *testing.T) {
	s := newTestStore(t)

	if err := s.DeleteTeam(context.Background(), "frc0"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ev := testEvent("2017mil")
	if err := s.InsertEvent(ctx, ev); err != nil {
		t.Fatalf("InsertEvent failed: %v", err)
	}
	if _, err := s.NextObservation(ctx); err != nil {
		t.Fatalf("NextObservation failed: %v", err)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	if _, err := s.GetEvent(ctx, "2017mil"); err != ErrNotFound {
		t.Errorf("event survived reset: %v", err)
	}

	obs, err := s.GetParam(ctx, ParamObservation)
	if err != nil {
		t.Fatalf("GetParam failed: %v", err)
	}
	if obs != 0 {
		t.Errorf("observation counter after reset: got %d, want 0", obs)
	}
}
