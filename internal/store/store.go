// ABOUTME: Store interface and data types for scoutbase persistence
// ABOUTME: Defines Event, Team, Match, EventTeam, Observation structs and CRUD operations

package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when inserting a row whose unique key already
// exists and the table does not define conflict-replace semantics
// (event, team and match tables).
var ErrDuplicate = errors.New("duplicate key")

// ErrMissingReference is returned when a write references a row that does
// not exist (foreign key violation). The write is not applied.
var ErrMissingReference = errors.New("missing referenced row")

// Well-known param row names.
const (
	ParamScouter     = "scouter"     // per-installation random identity
	ParamObservation = "observation" // monotonic observation counter
)

// Competition levels, in tournament order. Stored as integers so matches
// sort correctly; the remote feed reports them as short strings.
const (
	CompLevelQual    = 1 // "qm"
	CompLevelEighth  = 2 // "ef"
	CompLevelQuarter = 3 // "qf"
	CompLevelSemi    = 4 // "sf"
	CompLevelFinal   = 5 // "f"
)

// Param is a named integer stored in the param table. Rows are seeded
// exactly once, at first schema initialization.
type Param struct {
	Name  string
	Value int64
}

// Event is a competition event mirrored from the remote feed.
type Event struct {
	ID           int64
	Key          string // e.g. "2017mil"
	Name         string
	ShortName    *string
	Official     bool
	EventCode    string
	EventType    int
	District     int
	Year         int
	Week         *int
	StartDate    *string // "2017-03-30"
	EndDate      *string
	Location     string
	VenueAddress *string
	Timezone     *string
	Website      *string
}

// Team is an FRC team mirrored from the remote feed.
type Team struct {
	ID         int64
	Key        string // e.g. "frc2846"
	TeamNumber int
	Name       string
	Nickname   string
	Website    *string
	Locality   string
	Region     *string
	Country    *string
	Location   string
	RookieYear int
	Motto      *string
}

// EventTeam records a team's participation at an event. The (event, team)
// pair is unique with conflict-replace semantics: re-inserting the same
// pair collapses to one row.
type EventTeam struct {
	ID      int64
	EventID int64
	TeamID  int64
}

// Match is one match at an event, mirrored from the remote feed. Alliance
// and score fields are replaced on re-sync as scores are finalized.
type Match struct {
	ID             int64
	Key            string // e.g. "2017mil_qm1"
	EventID        int64
	EventKey       string
	CompLevel      int
	SetNumber      *int
	MatchNumber    *int
	Alliances      *string // structured text from the feed
	ScoreBreakdown *string
	Videos         *string
	Time           *int64 // unix seconds
	Red            [3]string
	Blue           [3]string
}

// Observation is a locally authored scouting record for one team in one
// match. The (scouter, match, team) triple is unique with conflict-replace
// semantics: resubmission overwrites the prior row in full.
type Observation struct {
	ID          int64
	Scouter     int64
	Observation int64
	MatchKey    *string // nil for pit scouting
	TeamKey     string

	// 2017 game metrics
	AutoHighGoal   int
	AutoLowGoal    int
	AutoGear       bool
	AutoBaseline   bool
	HighGoal       int
	LowGoal        int
	PlaceGear      int
	ClimbRope      bool
	TouchPad       bool
	BallHuman      bool
	BallFloor      bool
	BallHopper     bool
	PilotEffective bool
	ReleaseRope    bool
	LoseGear       bool

	Notes string
}

// RosterEntry is one row of the event/team view: team fields projected
// with the owning event reference. A team registered at two events
// appears as two entries differing only in EventID.
type RosterEntry struct {
	TeamID     int64
	EventID    int64
	Key        string
	TeamNumber int
	Name       string
	Nickname   string
	Website    *string
	Locality   string
	Region     *string
	Country    *string
	Location   string
	RookieYear int
	Motto      *string
}

// MatchFilter narrows ListMatches. Zero values mean "no filter".
type MatchFilter struct {
	EventKey  string
	TeamKey   string // matches where the team plays on either alliance
	CompLevel int
}

// ObservationFilter narrows ListObservations. Zero values mean "no filter".
type ObservationFilter struct {
	TeamKey  string
	MatchKey string
	Scouter  int64
}

// Store defines typed CRUD access to each table and view. Every call is
// atomic; no multi-statement transaction spans callers.
type Store interface {
	// Params
	GetParam(ctx context.Context, name string) (int64, error)
	ScouterID(ctx context.Context) (int64, error)
	NextObservation(ctx context.Context) (int64, error)

	// Events
	InsertEvent(ctx context.Context, ev *Event) error
	UpsertEvent(ctx context.Context, ev *Event) error
	GetEvent(ctx context.Context, key string) (*Event, error)
	ListEvents(ctx context.Context, year int) ([]*Event, error)
	DeleteEvent(ctx context.Context, key string) error

	// Teams
	InsertTeam(ctx context.Context, tm *Team) error
	UpsertTeam(ctx context.Context, tm *Team) error
	GetTeam(ctx context.Context, key string) (*Team, error)
	GetTeamByNumber(ctx context.Context, number int) (*Team, error)
	ListTeams(ctx context.Context) ([]*Team, error)
	DeleteTeam(ctx context.Context, key string) error

	// Event/team pairs (conflict-replace on duplicate pair)
	InsertEventTeam(ctx context.Context, et *EventTeam) error
	InsertEventTeams(ctx context.Context, pairs []*EventTeam) error
	ListEventTeams(ctx context.Context, eventID int64) ([]*EventTeam, error)
	DeleteEventTeam(ctx context.Context, eventID, teamID int64) error

	// Roster view
	ListRoster(ctx context.Context, eventID int64) ([]*RosterEntry, error)

	// Matches
	InsertMatch(ctx context.Context, m *Match) error
	UpsertMatch(ctx context.Context, m *Match) error
	GetMatch(ctx context.Context, key string) (*Match, error)
	ListMatches(ctx context.Context, filter MatchFilter) ([]*Match, error)
	DeleteMatch(ctx context.Context, key string) error

	// Observations (conflict-replace on duplicate triple)
	InsertObservation(ctx context.Context, ob *Observation) error
	SubmitObservation(ctx context.Context, ob *Observation) error
	ListObservations(ctx context.Context, filter ObservationFilter) ([]*Observation, error)
	DeleteObservation(ctx context.Context, id int64) error

	// Close releases the underlying database connection
	Close() error
}
