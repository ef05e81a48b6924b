// Command levelforge builds and regenerates streamed room layouts from data
// tables. The session is stored between runs so a layout can be built in
// one invocation and regenerated in the next.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/lawnchairsociety/levelforge/internal/catalog"
	"github.com/lawnchairsociety/levelforge/internal/config"
	"github.com/lawnchairsociety/levelforge/internal/database"
	"github.com/lawnchairsociety/levelforge/internal/forge"
	"github.com/lawnchairsociety/levelforge/internal/logger"
	"github.com/lawnchairsociety/levelforge/internal/report"
	"github.com/lawnchairsociety/levelforge/internal/world"
)

const usage = `usage: levelforge <command> [flags]

commands:
  build        compose -count rooms chained by their gateways
  regenerate   replace rooms listed in the data table
  filter       hide a seeded sample of tagged actors
  generate     swap actors for weighted replacement classes
  spawn        compose -path at -x -y -z -yaw
  gateways     list the gateways of -level
  attach       align -root so gateway -in meets gateway -out
  merge        flatten visible actors into the persistent level
  reconcile    drop bookkeeping for rooms that no longer exist
  clear        remove every streamed level
  load-all     finish pending streaming loads
  status       show what the session holds
  history      list recorded runs and their seeds
  watch        revalidate -table whenever it changes
  serve        run the websocket command bridge
  hash-token   print the bcrypt hash of a bridge token

flags:
`

// options holds the parsed command line.
type options struct {
	configFile  string
	loggingFile string
	catalogFile string
	tableFile   string
	seed        int64
	count       int

	path          string
	x, y, z, yaw  float64
	level         uint64
	out, in, root uint64
	keepGateways  bool

	exportFile string
	mergedPath string
	limit      int
	json       bool
}

// parseFlags accepts flags on both sides of the command name:
// "levelforge -seed 3 build" and "levelforge build -seed 3" are the same.
func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	fset := flag.NewFlagSet("levelforge", flag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.Usage = func() {
		fmt.Fprint(stderr, usage)
		fset.PrintDefaults()
	}

	o := &options{}
	fset.StringVar(&o.configFile, "config", "data/levelforge.yaml", "Path to levelforge config YAML file")
	fset.StringVar(&o.loggingFile, "logging", "data/logging.yaml", "Path to logging config YAML file")
	fset.StringVar(&o.catalogFile, "catalog", "", "Path to room catalog YAML file (default from config)")
	fset.StringVar(&o.tableFile, "table", "", "Path to data table YAML file")
	fset.Int64Var(&o.seed, "seed", 0, "Random seed (default: fresh seed per operation)")
	fset.IntVar(&o.count, "count", 5, "Number of rooms to build")
	fset.StringVar(&o.path, "path", "", "Room asset path for spawn")
	fset.Float64Var(&o.x, "x", 0, "Spawn location X")
	fset.Float64Var(&o.y, "y", 0, "Spawn location Y")
	fset.Float64Var(&o.z, "z", 0, "Spawn location Z")
	fset.Float64Var(&o.yaw, "yaw", 0, "Spawn yaw in degrees")
	fset.Uint64Var(&o.level, "level", 0, "Level ID for gateways")
	fset.Uint64Var(&o.out, "out", 0, "Gateway actor ID on the placed room for attach")
	fset.Uint64Var(&o.root, "root", 0, "Root level ID of the room to move for attach")
	fset.Uint64Var(&o.in, "in", 0, "Gateway actor ID on the moved room for attach")
	fset.BoolVar(&o.keepGateways, "keep-gateways", false, "Keep gateways after attach")
	fset.StringVar(&o.exportFile, "export", "", "Write the merged level as YAML to this file")
	fset.StringVar(&o.mergedPath, "merged-path", "/Game/Maps/Merged", "Level path used in the exported YAML")
	fset.IntVar(&o.limit, "limit", 20, "Number of runs shown by history")
	fset.BoolVar(&o.json, "json", false, "Print operation results as JSON")

	if err := fset.Parse(args); err != nil {
		return nil, nil, err
	}
	rest := fset.Args()
	if len(rest) == 0 {
		return o, nil, nil
	}
	if err := fset.Parse(rest[1:]); err != nil {
		return nil, nil, err
	}
	return o, append([]string{rest[0]}, fset.Args()...), nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stderr, "Error: failed to load .env: %v\n", err)
		return 1
	}

	opts, rest, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}
	if len(rest) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	command := rest[0]

	if command == "hash-token" {
		return hashToken(rest[1:], stdout, stderr)
	}

	logConfig, err := logger.LoadConfig(opts.loggingFile)
	if err != nil {
		fmt.Fprintf(stderr, "Warning: %v, using default logging\n", err)
	}
	if err := logger.Initialize(logConfig); err != nil {
		fmt.Fprintf(stderr, "Error: failed to initialize logging: %v\n", err)
		return 1
	}
	defer logger.Close()

	a, err := newApp(opts, stdout)
	if err != nil {
		logger.Error("Startup failed", "error", err)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.close()

	if err := a.dispatch(command); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// app is one invocation: the loaded configuration, the restored session
// and the store it is saved to.
type app struct {
	opts     *options
	cfg      *config.ForgeConfig
	catalog  *catalog.Catalog
	engine   *world.Memory
	session  *forge.Session
	recorder *report.Recorder
	db       *database.Database
	stdout   io.Writer
}

func newApp(opts *options, stdout io.Writer) (*app, error) {
	cfg, err := config.LoadConfig(opts.configFile)
	if err != nil {
		return nil, err
	}

	catalogFile := opts.catalogFile
	if catalogFile == "" {
		catalogFile = cfg.Generation.Catalog
	}
	cat, err := catalog.LoadFile(catalogFile)
	if err != nil {
		return nil, err
	}
	logger.Info("Room catalog loaded", "path", catalogFile, "levels", cat.Len())

	db, err := database.OpenWithConfig(cfg.Database)
	if err != nil {
		return nil, err
	}

	engine := world.NewMemory(cat)
	rec := &report.Recorder{}
	a := &app{
		opts:     opts,
		cfg:      cfg,
		catalog:  cat,
		engine:   engine,
		session:  forge.NewSession(engine, cat, report.Multi{report.LogSink{}, rec}, cfg.Generation.Options()),
		recorder: rec,
		db:       db,
		stdout:   stdout,
	}
	if err := a.restore(); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		logger.Warning("Failed to close session store", "error", err)
	}
}

// printMessages writes the session's user messages to stdout.
func (a *app) printMessages() {
	for _, m := range a.recorder.Drain() {
		fmt.Fprintf(a.stdout, "[%s] %s\n", m.Level, m.Text)
	}
}
