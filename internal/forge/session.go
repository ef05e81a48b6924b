// Package forge is the procedural API over the composition engine: build a
// layout from a data table, regenerate rooms and actors with a seed, attach
// rooms by their gateways and merge the result into the persistent level.
//
// A Session is not safe for concurrent use.
package forge

import (
	"errors"
	"fmt"
	"path"

	"github.com/lawnchairsociety/levelforge/internal/catalog"
	"github.com/lawnchairsociety/levelforge/internal/composer"
	"github.com/lawnchairsociety/levelforge/internal/datatable"
	"github.com/lawnchairsociety/levelforge/internal/fault"
	"github.com/lawnchairsociety/levelforge/internal/geom"
	"github.com/lawnchairsociety/levelforge/internal/logger"
	"github.com/lawnchairsociety/levelforge/internal/randsel"
	"github.com/lawnchairsociety/levelforge/internal/registry"
	"github.com/lawnchairsociety/levelforge/internal/report"
	"github.com/lawnchairsociety/levelforge/internal/world"
)

// ErrNoTable is returned when an operation is started without a data table.
var ErrNoTable = fmt.Errorf("%w: no data table selected", fault.ErrConfiguration)

// ErrUnknownRoom is returned when a data table row names a room that is not
// in the catalog.
var ErrUnknownRoom = fmt.Errorf("%w: unknown room", fault.ErrConfiguration)

// Rooms resolves room paths to their definitions.
type Rooms interface {
	Room(path string) (catalog.RoomDefinition, error)
}

// Options tune a session.
type Options struct {
	FolderRoot     string         // level browser folder for generated rooms
	DeleteGateways bool           // destroy gateways once two rooms are attached
	Origin         geom.Transform // placement of the first built room
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		FolderRoot:     "Generated",
		DeleteGateways: true,
		Origin:         geom.Identity,
	}
}

// Session owns the registry and composer for one world.
type Session struct {
	engine   world.Engine
	rooms    Rooms
	registry *registry.Registry
	composer *composer.Composer
	sink     report.Sink
	opts     Options
}

// NewSession creates a session over engine. Messages for the user go to
// sink; a nil sink discards them.
func NewSession(engine world.Engine, rooms Rooms, sink report.Sink, opts Options) *Session {
	reg := registry.New(engine)
	return &Session{
		engine:   engine,
		rooms:    rooms,
		registry: reg,
		composer: composer.New(engine, reg),
		sink:     sink,
		opts:     opts,
	}
}

// Registry returns the session's bookkeeping.
func (s *Session) Registry() *registry.Registry {
	return s.registry
}

// Engine returns the world the session drives.
func (s *Session) Engine() world.Engine {
	return s.engine
}

// Options returns the session options.
func (s *Session) Options() Options {
	return s.opts
}

// fail reports err to the user and returns it.
func (s *Session) fail(op string, err error) error {
	report.Errorf(s.sink, "%s: %v", op, err)
	logger.Error("Operation failed", "operation", op, "class", fault.Class(err), "error", err)
	return err
}

// checkTable rejects a missing or malformed table before anything mutates.
func checkTable(t *datatable.Table, rows int) error {
	if t == nil {
		return ErrNoTable
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", datatable.ErrEmptyTable, t.Name)
	}
	return nil
}

// resolveRooms checks that every room a row can pick is in the catalog.
// Zero-weight items are never picked and are not checked.
func (s *Session) resolveRooms(label string, set randsel.WeightedSet[string]) error {
	for _, c := range set.Choices() {
		if c.Weight == 0 {
			continue
		}
		if err := s.knownRoom(label, c.Item); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) knownRoom(label, roomPath string) error {
	if _, err := s.rooms.Room(roomPath); err != nil {
		return fmt.Errorf("%w: row %s names %s", ErrUnknownRoom, label, roomPath)
	}
	return nil
}

// startStream resolves the seed for op and logs it so the run can be
// replayed.
func startStream(op string, seed randsel.Seed) *randsel.Stream {
	stream := seed.Stream()
	logger.Always("Generation seed", "operation", op, "seed", stream.Seed(), "fixed", seed.IsFixed())
	return stream
}

func (s *Session) folder(sub string) string {
	if s.opts.FolderRoot == "" {
		return sub
	}
	return path.Join(s.opts.FolderRoot, sub)
}

// SpawnLevel composes one room at position and yaw with an empty folder
// and a random color.
func (s *Session) SpawnLevel(roomPath string, position geom.Vector, yaw float64) (*registry.RootGroup, error) {
	room, err := s.rooms.Room(roomPath)
	if err != nil {
		return nil, s.fail("spawn", err)
	}
	color := geom.RandomColor(randsel.FreshSeed.Stream())
	g, err := s.composer.Compose(room, geom.At(position, yaw), "", color)
	if err != nil {
		return nil, s.fail("spawn", err)
	}
	report.Infof(s.sink, "Spawned %s with %d sub-levels", room.Path, len(g.Subs))
	return g, nil
}

// ClearAll unloads every streamed level and forgets all bookkeeping.
func (s *Session) ClearAll() (int, error) {
	levels := s.engine.Levels()
	var errs []error
	if err := s.registry.Clear(); err != nil {
		errs = append(errs, err)
	}
	s.registry.Forget()
	for _, lvl := range levels {
		if err := s.engine.RemoveLevel(lvl.ID); err != nil {
			errs = append(errs, err)
		}
	}
	s.engine.CollectGarbage()

	if err := errors.Join(errs...); err != nil {
		return len(levels), s.fail("clear", err)
	}
	report.Infof(s.sink, "Removed %d streamed levels", len(levels))
	return len(levels), nil
}

// Reconcile brings the registry back in line with the engine.
func (s *Session) Reconcile() registry.ReconcileReport {
	rr := s.registry.Reconcile()
	if rr.Changed() {
		s.engine.CollectGarbage()
	}
	return rr
}

// LoadAllLevels finishes every pending streaming load and returns the
// number of streamed levels.
func (s *Session) LoadAllLevels() int {
	s.engine.UpdateStreaming()
	n := len(s.engine.Levels())
	report.Infof(s.sink, "Loaded %d streamed levels", n)
	return n
}
