package forge

import (
	"fmt"

	"github.com/lawnchairsociety/levelforge/internal/datatable"
	"github.com/lawnchairsociety/levelforge/internal/fault"
	"github.com/lawnchairsociety/levelforge/internal/gateway"
	"github.com/lawnchairsociety/levelforge/internal/geom"
	"github.com/lawnchairsociety/levelforge/internal/logger"
	"github.com/lawnchairsociety/levelforge/internal/randsel"
	"github.com/lawnchairsociety/levelforge/internal/registry"
	"github.com/lawnchairsociety/levelforge/internal/report"
	"github.com/lawnchairsociety/levelforge/internal/world"
	"github.com/zyedidia/generic/mapset"
)

// ErrInvalidCount is returned when Build is asked for no rooms.
var ErrInvalidCount = fmt.Errorf("%w: room count must be positive", fault.ErrValidation)

// Build picks count rooms from the table's level rows, weighted by build
// weight, and chains them gateway to gateway starting at the origin. A
// room that cannot be attached is removed and the build stops there.
func (s *Session) Build(table *datatable.Table, count int, seed randsel.Seed) (*Result, error) {
	const op = "build"
	res := newResult(op)

	var rows int
	if table != nil {
		rows = len(table.Levels)
	}
	if err := checkTable(table, rows); err != nil {
		return res, s.fail(op, err)
	}
	if count <= 0 {
		return res, s.fail(op, fmt.Errorf("%w: %d", ErrInvalidCount, count))
	}
	choices := table.BuildChoices()
	if choices.Total() == 0 {
		return res, s.fail(op, fmt.Errorf("%w: every level row has build weight 0", randsel.ErrInvalidArgument))
	}
	for _, row := range table.Levels {
		if row.Weight() == 0 {
			continue
		}
		if err := s.knownRoom(row.Label(), row.Source); err != nil {
			return res, s.fail(op, err)
		}
	}

	stream := startStream(op, seed)
	res.Seed, res.FixedSeed = stream.Seed(), seed.IsFixed()
	folder := s.folder(fmt.Sprintf("Build_%d", stream.Seed()))

	used := mapset.New[world.ActorID]()
	var prev *registry.RootGroup

	for i := 0; i < count; i++ {
		roomPath, err := randsel.Pick(choices, stream)
		if err != nil {
			return res, s.fail(op, err)
		}
		room, err := s.rooms.Room(roomPath)
		if err != nil {
			return res, s.fail(op, err)
		}

		placement := s.opts.Origin
		if prev != nil {
			placement = geom.Identity
		}
		g, err := s.composer.Compose(room, placement, folder, geom.RandomColor(stream))
		if err != nil {
			return res, s.fail(op, err)
		}
		res.States[g.Root] = Stable

		if prev != nil {
			if err := s.chain(prev, g, used); err != nil {
				report.Warnf(s.sink, "Build stopped after %d rooms: %v", len(res.Created), err)
				res.Skipped = append(res.Skipped, g.Source)
				delete(res.States, g.Root)
				if rerr := s.registry.Retire(g.Root); rerr != nil {
					logger.Warning("Failed to retire unattached room", "root", g.Root, "error", rerr)
				}
				s.engine.CollectGarbage()
				break
			}
		}

		res.Created = append(res.Created, g.Root)
		prev = g
	}

	report.Infof(s.sink, "%s", res.Summary())
	return res, nil
}

// chain attaches next to the first free exit of prev using next's entry
// gateway, or its first gateway when it has no entry.
func (s *Session) chain(prev, next *registry.RootGroup, used mapset.Set[world.ActorID]) error {
	s.engine.UpdateStreaming()

	out := gateway.Pick(gateway.Discover(s.engine, prev.Root), false, used, false)
	if out == nil {
		return fmt.Errorf("%w: %s has no free exit gateway", gateway.ErrMissingConnector, prev.Source)
	}
	in := gateway.Pick(gateway.Discover(s.engine, next.Root), true, used, true)
	if in == nil {
		return fmt.Errorf("%w: %s has no gateway", gateway.ErrMissingConnector, next.Source)
	}

	if _, err := gateway.Attach(s.engine, s.composer, out, next.Root, in, s.opts.DeleteGateways); err != nil {
		return err
	}
	used.Put(out.Actor)
	used.Put(in.Actor)
	return nil
}

// GatewaysOf returns the gateways of a level once streaming has caught up.
func (s *Session) GatewaysOf(level world.LevelID) ([]gateway.Gateway, error) {
	s.engine.UpdateStreaming()
	if !s.registry.IsLive(level) {
		return nil, s.fail("gateways", fmt.Errorf("%w: %d", world.ErrLevelNotFound, level))
	}
	return gateway.Discover(s.engine, level), nil
}

// AttachToGateway moves the room rooted at root so that its gateway in
// meets the gateway out of another room.
func (s *Session) AttachToGateway(out world.ActorID, root world.LevelID, in world.ActorID, deleteGateways bool) (geom.Transform, error) {
	const op = "attach"
	if _, tracked := s.registry.Group(root); !tracked {
		return geom.Transform{}, s.fail(op, fmt.Errorf("%w: %d", registry.ErrNotFound, root))
	}
	outGw, err := gateway.Lookup(s.engine, out)
	if err != nil {
		return geom.Transform{}, s.fail(op, err)
	}
	inGw, err := gateway.Lookup(s.engine, in)
	if err != nil {
		return geom.Transform{}, s.fail(op, err)
	}
	placement, err := gateway.Attach(s.engine, s.composer, outGw, root, inGw, deleteGateways)
	if err != nil {
		return geom.Transform{}, s.fail(op, err)
	}
	report.Infof(s.sink, "Attached level %d at %s", root, placement)
	return placement, nil
}
