// ABOUTME: Declarative schema definitions for the scouting database
// ABOUTME: Tables, views and constraints are data; DDL is generated mechanically

package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// schemaVersion gates additive migrations. Bump when appending to the
// migrations list below.
const schemaVersion = 1

// columnDef describes one column of a table.
type columnDef struct {
	Name    string
	Type    string // "INTEGER" or "TEXT"
	PK      bool   // INTEGER PRIMARY KEY autoincrement
	NotNull bool
	Unique  bool
}

// uniqueDef is a table-level uniqueness constraint. When Replace is set
// the constraint carries ON CONFLICT REPLACE: a conflicting insert
// silently overwrites the existing row instead of failing.
type uniqueDef struct {
	Columns []string
	Replace bool
}

// foreignKeyDef references another table's rowid.
type foreignKeyDef struct {
	Column string
	Table  string
}

// tableDef is a complete table description.
type tableDef struct {
	Name        string
	Columns     []columnDef
	Uniques     []uniqueDef
	ForeignKeys []foreignKeyDef
}

// viewDef is a derived projection.
type viewDef struct {
	Name   string
	Select string
}

func idCol() columnDef {
	return columnDef{Name: "_id", Type: "INTEGER", PK: true}
}

// tables lists every table in dependency order: each table references
// only tables earlier in the list. Drops run in reverse.
var tables = []tableDef{
	{
		Name: "param",
		Columns: []columnDef{
			idCol(),
			{Name: "name", Type: "TEXT", NotNull: true, Unique: true},
			{Name: "value", Type: "INTEGER", NotNull: true, Unique: true},
		},
	},
	{
		Name: "event",
		Columns: []columnDef{
			idCol(),
			{Name: "key", Type: "TEXT", NotNull: true, Unique: true},
			{Name: "name", Type: "TEXT", NotNull: true},
			{Name: "short_name", Type: "TEXT"},
			{Name: "official", Type: "INTEGER", NotNull: true},
			{Name: "event_code", Type: "TEXT", NotNull: true},
			{Name: "event_type", Type: "INTEGER", NotNull: true},
			{Name: "district", Type: "INTEGER", NotNull: true},
			{Name: "year", Type: "INTEGER", NotNull: true},
			{Name: "week", Type: "INTEGER"},
			{Name: "start_date", Type: "TEXT"},
			{Name: "end_date", Type: "TEXT"},
			{Name: "location", Type: "TEXT", NotNull: true},
			{Name: "venue_address", Type: "TEXT"},
			{Name: "timezone", Type: "TEXT"},
			{Name: "website", Type: "TEXT"},
		},
	},
	{
		Name: "team",
		Columns: []columnDef{
			idCol(),
			{Name: "key", Type: "TEXT", NotNull: true, Unique: true},
			{Name: "team_number", Type: "INTEGER", NotNull: true, Unique: true},
			{Name: "name", Type: "TEXT", NotNull: true},
			{Name: "nickname", Type: "TEXT", NotNull: true},
			{Name: "website", Type: "TEXT"},
			{Name: "locality", Type: "TEXT", NotNull: true},
			{Name: "region", Type: "TEXT"},
			{Name: "country", Type: "TEXT"},
			{Name: "location", Type: "TEXT", NotNull: true},
			{Name: "rookie_year", Type: "INTEGER", NotNull: true},
			{Name: "motto", Type: "TEXT"},
		},
	},
	{
		Name: "event_team",
		Columns: []columnDef{
			idCol(),
			{Name: "event_id", Type: "INTEGER", NotNull: true},
			{Name: "team_id", Type: "INTEGER", NotNull: true},
		},
		Uniques: []uniqueDef{
			{Columns: []string{"event_id", "team_id"}, Replace: true},
		},
		ForeignKeys: []foreignKeyDef{
			{Column: "event_id", Table: "event"},
			{Column: "team_id", Table: "team"},
		},
	},
	{
		Name: "match",
		Columns: []columnDef{
			idCol(),
			{Name: "key", Type: "TEXT", NotNull: true, Unique: true},
			{Name: "event_id", Type: "INTEGER", NotNull: true},
			{Name: "event_key", Type: "TEXT", NotNull: true},
			{Name: "comp_level", Type: "INTEGER", NotNull: true},
			{Name: "set_number", Type: "INTEGER"},
			{Name: "match_number", Type: "INTEGER"},
			{Name: "alliances", Type: "TEXT"},
			{Name: "score_breakdown", Type: "TEXT"},
			{Name: "videos", Type: "TEXT"},
			{Name: "time", Type: "INTEGER"},
			{Name: "red_0", Type: "TEXT", NotNull: true},
			{Name: "red_1", Type: "TEXT", NotNull: true},
			{Name: "red_2", Type: "TEXT", NotNull: true},
			{Name: "blue_0", Type: "TEXT", NotNull: true},
			{Name: "blue_1", Type: "TEXT", NotNull: true},
			{Name: "blue_2", Type: "TEXT", NotNull: true},
		},
		ForeignKeys: []foreignKeyDef{
			{Column: "event_id", Table: "event"},
		},
	},
	{
		Name: "scouting_2017",
		Columns: []columnDef{
			idCol(),
			{Name: "scouter", Type: "INTEGER", NotNull: true},
			{Name: "observation", Type: "INTEGER", NotNull: true},
			{Name: "match", Type: "TEXT"},
			{Name: "team_key", Type: "TEXT", NotNull: true},
			{Name: "auto_high_goal", Type: "INTEGER", NotNull: true},
			{Name: "auto_low_goal", Type: "INTEGER", NotNull: true},
			{Name: "auto_gear", Type: "INTEGER", NotNull: true},
			{Name: "auto_baseline", Type: "INTEGER", NotNull: true},
			{Name: "high_goal", Type: "INTEGER", NotNull: true},
			{Name: "low_goal", Type: "INTEGER", NotNull: true},
			{Name: "place_gear", Type: "INTEGER", NotNull: true},
			{Name: "climb_rope", Type: "INTEGER", NotNull: true},
			{Name: "touch_pad", Type: "INTEGER", NotNull: true},
			{Name: "ball_human", Type: "INTEGER", NotNull: true},
			{Name: "ball_floor", Type: "INTEGER", NotNull: true},
			{Name: "ball_hopper", Type: "INTEGER", NotNull: true},
			{Name: "pilot_effective", Type: "INTEGER", NotNull: true},
			{Name: "release_rope", Type: "INTEGER", NotNull: true},
			{Name: "lose_gear", Type: "INTEGER", NotNull: true},
			{Name: "notes", Type: "TEXT", NotNull: true},
		},
		Uniques: []uniqueDef{
			{Columns: []string{"scouter", "match", "team_key"}, Replace: true},
		},
	},
}

// views lists every derived view. Views may reference any table.
var views = []viewDef{
	{
		Name: "event_team_view",
		Select: `SELECT team._id, event_team.event_id, team.key, team.team_number,
			team.name, team.nickname, team.website, team.locality, team.region,
			team.country, team.location, team.rookie_year, team.motto
			FROM team JOIN event_team ON team._id = event_team.team_id`,
	},
}

// createSQL renders the CREATE TABLE statement for a table definition.
func (t tableDef) createSQL() string {
	var parts []string
	for _, c := range t.Columns {
		p := quoteIdent(c.Name) + " " + c.Type
		if c.PK {
			p += " PRIMARY KEY autoincrement"
		}
		if c.NotNull {
			p += " NOT NULL"
		}
		if c.Unique {
			p += " UNIQUE"
		}
		parts = append(parts, p)
	}
	for _, u := range t.Uniques {
		cols := make([]string, len(u.Columns))
		for i, c := range u.Columns {
			cols[i] = quoteIdent(c)
		}
		p := "UNIQUE (" + strings.Join(cols, ", ") + ")"
		if u.Replace {
			p += " ON CONFLICT REPLACE"
		}
		parts = append(parts, p)
	}
	for _, fk := range t.ForeignKeys {
		parts = append(parts, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s",
			quoteIdent(fk.Column), quoteIdent(fk.Table)))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		quoteIdent(t.Name), strings.Join(parts, ", "))
}

// dropSQL renders the DROP TABLE statement for a table definition.
func (t tableDef) dropSQL() string {
	return "DROP TABLE IF EXISTS " + quoteIdent(t.Name)
}

func (v viewDef) createSQL() string {
	return fmt.Sprintf("CREATE VIEW IF NOT EXISTS %s AS %s", quoteIdent(v.Name), v.Select)
}

func (v viewDef) dropSQL() string {
	return "DROP VIEW IF EXISTS " + quoteIdent(v.Name)
}

// quoteIdent quotes an identifier so reserved words ("match") are legal
// table and column names.
func quoteIdent(name string) string {
	return `"` + name + `"`
}

// validateSchema checks the descriptors once at startup: unique object
// names, every foreign key targets an earlier table, every constraint
// column exists.
func validateSchema() error {
	seen := make(map[string]bool)
	for _, t := range tables {
		if seen[t.Name] {
			return fmt.Errorf("schema: duplicate table %q", t.Name)
		}
		cols := make(map[string]bool)
		for _, c := range t.Columns {
			if cols[c.Name] {
				return fmt.Errorf("schema: table %q: duplicate column %q", t.Name, c.Name)
			}
			if c.Type != "INTEGER" && c.Type != "TEXT" {
				return fmt.Errorf("schema: table %q column %q: unknown type %q", t.Name, c.Name, c.Type)
			}
			cols[c.Name] = true
		}
		for _, u := range t.Uniques {
			for _, c := range u.Columns {
				if !cols[c] {
					return fmt.Errorf("schema: table %q: unique constraint on unknown column %q", t.Name, c)
				}
			}
		}
		for _, fk := range t.ForeignKeys {
			if !cols[fk.Column] {
				return fmt.Errorf("schema: table %q: foreign key on unknown column %q", t.Name, fk.Column)
			}
			if !seen[fk.Table] {
				return fmt.Errorf("schema: table %q: foreign key targets %q, which is not defined earlier", t.Name, fk.Table)
			}
		}
		seen[t.Name] = true
	}
	for _, v := range views {
		if seen[v.Name] {
			return fmt.Errorf("schema: duplicate object %q", v.Name)
		}
		seen[v.Name] = true
	}
	return nil
}

// migration is one additive schema change. The check query returns a row
// when the change is already present, so migrations are idempotent and
// never drop user data.
type migration struct {
	check string
	apply string
	note  string
}

// migrations lists additive changes applied after table creation, oldest
// first. Destructive drop-and-recreate is deliberately not a migration
// path; see Reset.
var migrations = []migration{}

// initSchema creates all tables and views in dependency order and brings
// an existing database up to date. Foreign key enforcement must already
// be enabled on the connection.
func initSchema(db *sql.DB) error {
	if err := validateSchema(); err != nil {
		return err
	}
	for _, t := range tables {
		if _, err := db.Exec(t.createSQL()); err != nil {
			return fmt.Errorf("creating table %s: %w", t.Name, err)
		}
	}
	for _, v := range views {
		if _, err := db.Exec(v.createSQL()); err != nil {
			return fmt.Errorf("creating view %s: %w", v.Name, err)
		}
	}
	if err := applyMigrations(db, migrations); err != nil {
		return err
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("setting schema version: %w", err)
	}
	return nil
}

// applyMigrations runs each pending migration. Safe to run repeatedly.
func applyMigrations(db *sql.DB, migs []migration) error {
	for _, m := range migs {
		var exists int
		err := db.QueryRow(m.check).Scan(&exists)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("checking migration %q: %w", m.note, err)
		}
		if _, err := db.Exec(m.apply); err != nil {
			return fmt.Errorf("applying migration %q: %w", m.note, err)
		}
	}
	return nil
}

// dropAll removes every view and table in reverse dependency order. Used
// only by Reset.
func dropAll(db *sql.DB) error {
	for i := len(views) - 1; i >= 0; i-- {
		if _, err := db.Exec(views[i].dropSQL()); err != nil {
			return fmt.Errorf("dropping view %s: %w", views[i].Name, err)
		}
	}
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := db.Exec(tables[i].dropSQL()); err != nil {
			return fmt.Errorf("dropping table %s: %w", tables[i].Name, err)
		}
	}
	return nil
}
