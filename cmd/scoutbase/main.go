// ABOUTME: Entry point for the scoutbase scouting data store CLI
// ABOUTME: Syncs remote event data and records match observations locally

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/firebears/scoutbase/internal/config"
	"github.com/firebears/scoutbase/internal/store"
	syncengine "github.com/firebears/scoutbase/internal/sync"
	"github.com/firebears/scoutbase/internal/tba"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                     _   _
 ___  ___ ___  _   _| |_| |__   __ _ ___  ___
/ __|/ __/ _ \| | | | __| '_ \ / _' / __|/ _ \
\__ \ (_| (_) | |_| | |_| |_) | (_| \__ \  __/
|___/\___\___/ \__,_|\__|_.__/ \__,_|___/\___|
`

// getConfigPath returns the path to the scoutbase config file.
// Priority: SCOUTBASE_CONFIG env var > XDG_CONFIG_HOME/scoutbase/config.yaml > ~/.config/scoutbase/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("SCOUTBASE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "scoutbase", "config.yaml")
}

// getDataPath returns the path to the scoutbase data directory.
// Priority: XDG_DATA_HOME/scoutbase > ~/.local/share/scoutbase
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "scoutbase")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: scoutbase <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  init                    Create a new config file interactively")
		fmt.Println("  sync --event KEY        Sync one event's roster and matches")
		fmt.Println("  sync --year YEAR        Sync the season event list")
		fmt.Println("  events [--year YEAR]    List stored events")
		fmt.Println("  roster EVENT_KEY        List teams registered at an event")
		fmt.Println("  matches EVENT_KEY       List matches at an event")
		fmt.Println("  observe                 Record a scouting observation")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "init":
		err = runInit()
	case "sync":
		err = runSync(ctx)
	case "events":
		err = runEvents(ctx)
	case "roster":
		err = runRoster(ctx)
	case "matches":
		err = runMatches(ctx)
	case "observe":
		err = runObserve(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadAndSetup loads config and installs the logger as the process default.
func loadAndSetup() (*config.Config, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	slog.SetDefault(setupLogger(cfg.Logging))
	return cfg, nil
}

func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path, store.RandomIdentity{})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return s, nil
}

func runSync(ctx context.Context) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	eventKey := fs.String("event", "", "event key to sync (e.g. 2017mil)")
	year := fs.Int("year", 0, "season year to sync the event list for")
	if err := fs.Parse(os.Args[2:]); err != nil {
		return err
	}
	if *eventKey == "" && *year == 0 {
		return fmt.Errorf("either --event or --year is required")
	}

	cfg, err := loadAndSetup()
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	client := tba.NewClient(cfg.TBA.BaseURL, cfg.TBA.AuthKey, cfg.TBA.Timeout)
	engine := syncengine.New(s, client)

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	if *year != 0 {
		n, err := engine.SyncEvents(ctx, *year)
		if err != nil {
			return fmt.Errorf("syncing %d events: %w", *year, err)
		}
		green.Print("  ✓ ")
		fmt.Printf("Synced %d events for ", n)
		cyan.Printf("%d\n", *year)
	}

	if *eventKey != "" {
		res, err := engine.SyncEvent(ctx, *eventKey)
		if err != nil {
			return fmt.Errorf("syncing event %s: %w", *eventKey, err)
		}
		green.Print("  ✓ ")
		fmt.Print("Synced ")
		cyan.Print(res.EventKey)
		fmt.Printf(": %d teams, %d matches in %s\n", res.Teams, res.Matches, res.Duration.Round(time.Millisecond))
	}

	return nil
}

func runEvents(ctx context.Context) error {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	year := fs.Int("year", 0, "filter by season year")
	if err := fs.Parse(os.Args[2:]); err != nil {
		return err
	}

	cfg, err := loadAndSetup()
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	events, err := s.ListEvents(ctx, *year)
	if err != nil {
		return fmt.Errorf("listing events: %w", err)
	}
	if len(events) == 0 {
		fmt.Println("No events stored. Run: scoutbase sync --year YEAR")
		return nil
	}

	cyan := color.New(color.FgCyan)
	for _, ev := range events {
		cyan.Printf("  %-12s", ev.Key)
		fmt.Printf(" %s", ev.Name)
		if ev.StartDate != nil {
			color.New(color.FgHiBlack).Printf("  (%s)", *ev.StartDate)
		}
		fmt.Println()
	}
	return nil
}

func runRoster(ctx context.Context) error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: scoutbase roster EVENT_KEY")
	}
	eventKey := os.Args[2]

	cfg, err := loadAndSetup()
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ev, err := s.GetEvent(ctx, eventKey)
	if err != nil {
		return fmt.Errorf("event %s: %w", eventKey, err)
	}

	roster, err := s.ListRoster(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("listing roster: %w", err)
	}
	if len(roster) == 0 {
		fmt.Printf("No teams stored for %s. Run: scoutbase sync --event %s\n", eventKey, eventKey)
		return nil
	}

	cyan := color.New(color.FgCyan)
	for _, entry := range roster {
		cyan.Printf("  %5d", entry.TeamNumber)
		fmt.Printf("  %s", entry.Nickname)
		color.New(color.FgHiBlack).Printf("  %s\n", entry.Locality)
	}
	return nil
}

func runMatches(ctx context.Context) error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: scoutbase matches EVENT_KEY [--team KEY]")
	}
	eventKey := os.Args[2]

	fs := flag.NewFlagSet("matches", flag.ExitOnError)
	teamKey := fs.String("team", "", "only matches where this team plays (e.g. frc2846)")
	if err := fs.Parse(os.Args[3:]); err != nil {
		return err
	}

	cfg, err := loadAndSetup()
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	matches, err := s.ListMatches(ctx, store.MatchFilter{
		EventKey: eventKey,
		TeamKey:  *teamKey,
	})
	if err != nil {
		return fmt.Errorf("listing matches: %w", err)
	}
	if len(matches) == 0 {
		fmt.Printf("No matches stored for %s. Run: scoutbase sync --event %s\n", eventKey, eventKey)
		return nil
	}

	red := color.New(color.FgRed)
	blue := color.New(color.FgBlue)
	for _, m := range matches {
		fmt.Printf("  %-16s ", m.Key)
		red.Print(strings.Join(m.Red[:], " "))
		fmt.Print("  vs  ")
		blue.Println(strings.Join(m.Blue[:], " "))
	}
	return nil
}

func runObserve(ctx context.Context) error {
	fs := flag.NewFlagSet("observe", flag.ExitOnError)
	teamKey := fs.String("team", "", "team key (required, e.g. frc2846)")
	matchKey := fs.String("match", "", "match key; omit for pit scouting")

	autoHigh := fs.Int("auto-high", 0, "autonomous high goals")
	autoLow := fs.Int("auto-low", 0, "autonomous low goals")
	autoGear := fs.Bool("auto-gear", false, "placed gear in autonomous")
	autoBaseline := fs.Bool("auto-baseline", false, "crossed baseline in autonomous")
	highGoal := fs.Int("high", 0, "teleop high goals")
	lowGoal := fs.Int("low", 0, "teleop low goals")
	placeGear := fs.Int("gear", 0, "gears placed in teleop")
	climbRope := fs.Bool("climb", false, "climbed the rope")
	touchPad := fs.Bool("touchpad", false, "activated the touchpad")
	ballHuman := fs.Bool("ball-human", false, "took balls from human player")
	ballFloor := fs.Bool("ball-floor", false, "picked balls off the floor")
	ballHopper := fs.Bool("ball-hopper", false, "took balls from a hopper")
	pilot := fs.Bool("pilot", false, "pilot was effective")
	releaseRope := fs.Bool("release-rope", false, "released their own rope")
	loseGear := fs.Bool("lose-gear", false, "dropped a gear")
	notes := fs.String("notes", "", "free-form notes")

	if err := fs.Parse(os.Args[2:]); err != nil {
		return err
	}
	if *teamKey == "" {
		return fmt.Errorf("--team is required")
	}

	cfg, err := loadAndSetup()
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ob := &store.Observation{
		TeamKey:        *teamKey,
		AutoHighGoal:   *autoHigh,
		AutoLowGoal:    *autoLow,
		AutoGear:       *autoGear,
		AutoBaseline:   *autoBaseline,
		HighGoal:       *highGoal,
		LowGoal:        *lowGoal,
		PlaceGear:      *placeGear,
		ClimbRope:      *climbRope,
		TouchPad:       *touchPad,
		BallHuman:      *ballHuman,
		BallFloor:      *ballFloor,
		BallHopper:     *ballHopper,
		PilotEffective: *pilot,
		ReleaseRope:    *releaseRope,
		LoseGear:       *loseGear,
		Notes:          *notes,
	}
	if *matchKey != "" {
		ob.MatchKey = matchKey
	}

	if err := s.SubmitObservation(ctx, ob); err != nil {
		return fmt.Errorf("submitting observation: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Print("  ✓ ")
	fmt.Printf("Recorded observation #%d for %s", ob.Observation, ob.TeamKey)
	if ob.MatchKey != nil {
		fmt.Printf(" in %s", *ob.MatchKey)
	} else {
		fmt.Print(" (pit)")
	}
	fmt.Println()
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("scoutbase configuration setup")
	fmt.Println("=============================")
	fmt.Println()

	// Default paths
	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultDbPath := filepath.Join(defaultDataPath, "scouting.db")

	// Output filename
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	// Check if file exists
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Database
	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	// Remote feed
	fmt.Println("\n--- Remote Feed Configuration ---")
	authKey := prompt(reader, "TBA auth key (leave empty to read ${TBA_AUTH_KEY})", "")
	timeout := prompt(reader, "Feed request timeout", "10s")

	// Logging
	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	// Generate config
	var cfg strings.Builder
	cfg.WriteString("# scoutbase configuration\n")
	cfg.WriteString("# Generated by scoutbase init\n\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("tba:\n")
	if authKey != "" {
		cfg.WriteString(fmt.Sprintf("  auth_key: \"%s\"\n", authKey))
	} else {
		cfg.WriteString("  auth_key: \"${TBA_AUTH_KEY}\"\n")
	}
	cfg.WriteString(fmt.Sprintf("  timeout: \"%s\"\n", timeout))
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	// Ensure config directory exists
	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write config file
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	// Ensure data directory exists
	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	color.New(color.FgHiBlack).Printf("    version: %s\n\n", version)

	fmt.Printf("Config written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo pull event data:")
	fmt.Printf("  scoutbase sync --event 2017mil\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
