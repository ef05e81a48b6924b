// Package composer materializes rooms as groups of streamed level
// instances: one root plus every sub-level, placed together and tracked as
// a unit.
package composer

import (
	"errors"
	"fmt"

	"github.com/lawnchairsociety/levelforge/internal/catalog"
	"github.com/lawnchairsociety/levelforge/internal/fault"
	"github.com/lawnchairsociety/levelforge/internal/geom"
	"github.com/lawnchairsociety/levelforge/internal/levelpath"
	"github.com/lawnchairsociety/levelforge/internal/logger"
	"github.com/lawnchairsociety/levelforge/internal/registry"
	"github.com/lawnchairsociety/levelforge/internal/world"
)

// ErrCompose wraps every failure to materialize a room.
var ErrCompose = fmt.Errorf("%w: failed to compose room", fault.ErrInstantiation)

// Composer instantiates rooms into an engine and tracks them in a registry.
type Composer struct {
	engine   world.Engine
	registry *registry.Registry
}

// New creates a composer.
func New(engine world.Engine, reg *registry.Registry) *Composer {
	return &Composer{engine: engine, registry: reg}
}

// InstanceName returns the display name of a new instance of path.
func InstanceName(path string) string {
	return fmt.Sprintf("%s_%d", levelpath.ShortName(path), NextSequence())
}

// Compose streams room at placement, applies folder and color to every
// instance and tracks the group. If any step fails, every instance created
// so far is removed and nothing is tracked.
func (c *Composer) Compose(room catalog.RoomDefinition, placement geom.Transform, folder string, color geom.Color) (*registry.RootGroup, error) {
	var created []world.LevelID
	rollback := func(cause error) error {
		for i := len(created) - 1; i >= 0; i-- {
			if err := c.engine.RemoveLevel(created[i]); err != nil {
				logger.Warning("Failed to roll back level instance", "level", created[i], "error", err)
			}
		}
		return fmt.Errorf("%w %s: %w", ErrCompose, room.Path, cause)
	}

	root, err := c.engine.InstantiateLevel(room.Path, InstanceName(room.Path), placement)
	if err != nil {
		return nil, rollback(err)
	}
	created = append(created, root)

	g := &registry.RootGroup{
		Root:      root,
		Source:    levelpath.Normalize(room.Path),
		Placement: placement,
		Folder:    folder,
		Color:     color,
	}
	if lvl, ok := c.engine.Level(root); ok {
		g.Source = levelpath.Normalize(lvl.Package)
	}

	for _, sub := range room.SubLevels {
		id, err := c.engine.InstantiateLevel(sub.Asset, InstanceName(sub.Asset), sub.Relative.Compose(placement))
		if err != nil {
			return nil, rollback(err)
		}
		created = append(created, id)
		g.Subs = append(g.Subs, registry.Member{Level: id, Asset: sub.Asset, Relative: sub.Relative})
	}

	for _, id := range created {
		if err := c.engine.SetFolder(id, folder); err != nil {
			return nil, rollback(err)
		}
		if err := c.engine.SetColor(id, color); err != nil {
			return nil, rollback(err)
		}
	}

	if err := c.registry.Track(g); err != nil {
		return nil, rollback(err)
	}

	logger.Debug("Composed room", "room", g.Source, "root", root, "subs", len(g.Subs), "placement", placement.String())
	return g, nil
}

// Place moves a tracked group to placement. Every sub keeps its authoring
// offset from the root.
func (c *Composer) Place(root world.LevelID, placement geom.Transform) error {
	g, ok := c.registry.Group(root)
	if !ok {
		return fmt.Errorf("%w: %d", registry.ErrNotFound, root)
	}
	if err := c.engine.SetLevelTransform(g.Root, placement); err != nil {
		return err
	}
	g.Placement = placement
	for _, m := range g.Subs {
		if !c.registry.IsLive(m.Level) {
			continue
		}
		if err := c.engine.SetLevelTransform(m.Level, g.SubTransform(m)); err != nil {
			return err
		}
	}
	return c.registry.SetPlacement(root, placement)
}

// IsComposeError reports whether err came from a failed Compose.
func IsComposeError(err error) bool {
	return errors.Is(err, ErrCompose)
}
