// ABOUTME: Sync engine reconciling the remote feed with the local store
// ABOUTME: Fetch-then-apply upserts keep repeated syncs idempotent and failures harmless

// Package sync mirrors remote event, roster and match data into the
// local store. A sync fetches everything first and writes only after
// every fetch and parse has succeeded, so transport failures never
// disturb previously stored rows. All writes are upserts: running the
// same sync any number of times, in any order, converges to the same
// local state.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/firebears/scoutbase/internal/store"
	"github.com/firebears/scoutbase/internal/tba"
)

// Feed is the remote data source. *tba.Client satisfies it; tests
// substitute a stub.
type Feed interface {
	Event(ctx context.Context, eventKey string) (*tba.Event, error)
	Events(ctx context.Context, year int) ([]tba.Event, error)
	EventTeams(ctx context.Context, eventKey string) ([]tba.Team, error)
	EventMatches(ctx context.Context, eventKey string) ([]tba.Match, error)
}

// Result summarizes one sync invocation.
type Result struct {
	RunID      string
	Generation uint64
	EventKey   string
	Teams      int
	Pairs      int
	Matches    int
	Duration   time.Duration
	Err        error
}

// Engine coordinates feed fetches and store upserts. Each invocation is
// stamped with a monotonically increasing generation; callers that
// overlap syncs can discard results from superseded generations.
type Engine struct {
	store  store.Store
	feed   Feed
	gen    atomic.Uint64
	logger *slog.Logger
}

// New creates a sync engine over the given store and feed.
func New(st store.Store, feed Feed) *Engine {
	return &Engine{
		store:  st,
		feed:   feed,
		logger: slog.Default().With("component", "sync"),
	}
}

// Generation returns the generation of the most recently issued sync.
func (e *Engine) Generation() uint64 {
	return e.gen.Load()
}

// Superseded reports whether a newer sync has been issued since the
// given generation. Callers should discard superseded results.
func (e *Engine) Superseded(gen uint64) bool {
	return gen != e.gen.Load()
}

// SyncEvent fetches the event record, team roster and match list for an
// event and upserts them through the store. Any transport or parse
// failure aborts before the first write; the returned Result always
// carries the run id and generation, with Err set on failure.
func (e *Engine) SyncEvent(ctx context.Context, eventKey string) (*Result, error) {
	res := &Result{
		RunID:      uuid.NewString(),
		Generation: e.gen.Add(1),
		EventKey:   eventKey,
	}
	logger := e.logger.With("run_id", res.RunID, "event", eventKey)
	start := time.Now()

	// Fetch phase. Roster and match list are retrieved concurrently;
	// nothing is written until both succeed.
	evRec, err := e.feed.Event(ctx, eventKey)
	if err != nil {
		res.Err = fmt.Errorf("fetching event %s: %w", eventKey, err)
		return res, res.Err
	}

	var teamRecs []tba.Team
	var matchRecs []tba.Match
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		teamRecs, err = e.feed.EventTeams(gctx, eventKey)
		return err
	})
	g.Go(func() error {
		var err error
		matchRecs, err = e.feed.EventMatches(gctx, eventKey)
		return err
	})
	if err := g.Wait(); err != nil {
		res.Err = fmt.Errorf("fetching event %s data: %w", eventKey, err)
		return res, res.Err
	}

	// Convert phase. Malformed records abort the whole sync here, still
	// before any write.
	ev := convertEvent(evRec)
	teams := make([]*store.Team, len(teamRecs))
	for i := range teamRecs {
		teams[i] = convertTeam(&teamRecs[i])
	}
	matches := make([]*store.Match, len(matchRecs))
	for i := range matchRecs {
		m, err := convertMatch(&matchRecs[i])
		if err != nil {
			res.Err = fmt.Errorf("event %s: %w", eventKey, err)
			return res, res.Err
		}
		matches[i] = m
	}

	// Apply phase. Everything below is an upsert or conflict-replace
	// insert, so repetition and reordering converge.
	if err := e.store.UpsertEvent(ctx, ev); err != nil {
		res.Err = fmt.Errorf("storing event %s: %w", eventKey, err)
		return res, res.Err
	}

	pairs := make([]*store.EventTeam, 0, len(teams))
	for _, tm := range teams {
		if err := e.store.UpsertTeam(ctx, tm); err != nil {
			res.Err = fmt.Errorf("storing team %s: %w", tm.Key, err)
			return res, res.Err
		}
		pairs = append(pairs, &store.EventTeam{EventID: ev.ID, TeamID: tm.ID})
		res.Teams++
	}
	if err := e.store.InsertEventTeams(ctx, pairs); err != nil {
		res.Err = fmt.Errorf("storing roster pairs for %s: %w", eventKey, err)
		return res, res.Err
	}
	res.Pairs = len(pairs)

	for _, m := range matches {
		m.EventID = ev.ID
		if err := e.store.UpsertMatch(ctx, m); err != nil {
			res.Err = fmt.Errorf("storing match %s: %w", m.Key, err)
			return res, res.Err
		}
		res.Matches++
	}

	res.Duration = time.Since(start)
	logger.Info("event sync complete",
		"teams", res.Teams, "matches", res.Matches, "duration", res.Duration)
	return res, nil
}

// SyncEvents upserts the season event list so event rows exist before
// roster syncs reference them. Returns the number of events stored.
func (e *Engine) SyncEvents(ctx context.Context, year int) (int, error) {
	recs, err := e.feed.Events(ctx, year)
	if err != nil {
		return 0, fmt.Errorf("fetching %d events: %w", year, err)
	}
	for i := range recs {
		if err := e.store.UpsertEvent(ctx, convertEvent(&recs[i])); err != nil {
			return 0, fmt.Errorf("storing event %s: %w", recs[i].Key, err)
		}
	}
	e.logger.Info("season events synced", "year", year, "count", len(recs))
	return len(recs), nil
}

// Go runs SyncEvent off the calling goroutine and delivers the Result on
// the returned channel. An abandoned sync still completes and applies
// its upserts; receivers should check Superseded before acting on the
// Result.
func (e *Engine) Go(ctx context.Context, eventKey string) <-chan *Result {
	ch := make(chan *Result, 1)
	go func() {
		res, _ := e.SyncEvent(ctx, eventKey)
		ch <- res
	}()
	return ch
}

// compLevels maps the feed's competition level strings to stored values.
var compLevels = map[string]int{
	"qm": store.CompLevelQual,
	"ef": store.CompLevelEighth,
	"qf": store.CompLevelQuarter,
	"sf": store.CompLevelSemi,
	"f":  store.CompLevelFinal,
}

func convertEvent(rec *tba.Event) *store.Event {
	return &store.Event{
		Key:          rec.Key,
		Name:         rec.Name,
		ShortName:    rec.ShortName,
		Official:     rec.Official,
		EventCode:    rec.EventCode,
		EventType:    rec.EventType,
		District:     rec.EventDistrict,
		Year:         rec.Year,
		Week:         rec.Week,
		StartDate:    rec.StartDate,
		EndDate:      rec.EndDate,
		Location:     rec.Location,
		VenueAddress: rec.VenueAddress,
		Timezone:     rec.Timezone,
		Website:      rec.Website,
	}
}

func convertTeam(rec *tba.Team) *store.Team {
	return &store.Team{
		Key:        rec.Key,
		TeamNumber: rec.TeamNumber,
		Name:       rec.Name,
		Nickname:   rec.Nickname,
		Website:    rec.Website,
		Locality:   rec.Locality,
		Region:     rec.Region,
		Country:    rec.Country,
		Location:   rec.Location,
		RookieYear: rec.RookieYear,
		Motto:      rec.Motto,
	}
}

func convertMatch(rec *tba.Match) (*store.Match, error) {
	level, ok := compLevels[rec.CompLevel]
	if !ok {
		return nil, fmt.Errorf("match %s: unknown comp level %q", rec.Key, rec.CompLevel)
	}
	if rec.Alliances == nil {
		return nil, fmt.Errorf("match %s: missing alliances", rec.Key)
	}
	if len(rec.Alliances.Red.Teams) != 3 || len(rec.Alliances.Blue.Teams) != 3 {
		return nil, fmt.Errorf("match %s: alliances must list 3 teams per side", rec.Key)
	}

	m := &store.Match{
		Key:         rec.Key,
		EventKey:    rec.EventKey,
		CompLevel:   level,
		SetNumber:   rec.SetNumber,
		MatchNumber: rec.MatchNumber,
		Time:        rec.Time,
	}
	copy(m.Red[:], rec.Alliances.Red.Teams)
	copy(m.Blue[:], rec.Alliances.Blue.Teams)

	alliances, err := json.Marshal(rec.Alliances)
	if err != nil {
		return nil, fmt.Errorf("match %s: encoding alliances: %w", rec.Key, err)
	}
	s := string(alliances)
	m.Alliances = &s

	if len(rec.ScoreBreakdown) > 0 {
		sb := string(rec.ScoreBreakdown)
		m.ScoreBreakdown = &sb
	}
	if len(rec.Videos) > 0 {
		videos, err := json.Marshal(rec.Videos)
		if err != nil {
			return nil, fmt.Errorf("match %s: encoding videos: %w", rec.Key, err)
		}
		v := string(videos)
		m.Videos = &v
	}
	return m, nil
}
