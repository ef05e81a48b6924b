// Package catalog loads room level assets: which sub-levels a room streams
// and which actors each level contains.
package catalog

import (
	"fmt"
	"os"
	"sort"

	"github.com/lawnchairsociety/levelforge/internal/fault"
	"github.com/lawnchairsociety/levelforge/internal/geom"
	"github.com/lawnchairsociety/levelforge/internal/levelpath"
	"github.com/lawnchairsociety/levelforge/internal/world"
	"gopkg.in/yaml.v3"
)

// ErrRoomNotFound is returned for a path with no level asset.
var ErrRoomNotFound = fmt.Errorf("%w: room not found", fault.ErrInstantiation)

// CatalogYAML is the on-disk layout of a catalog file.
type CatalogYAML struct {
	Levels []LevelYAML `yaml:"levels"`
}

// LevelYAML describes one level asset.
type LevelYAML struct {
	Path      string         `yaml:"path"`
	SubLevels []SubLevelYAML `yaml:"sublevels"`
	Actors    []ActorYAML    `yaml:"actors"`
}

// SubLevelYAML places a sub-level relative to the room's origin.
type SubLevelYAML struct {
	Asset    string      `yaml:"asset"`
	Location geom.Vector `yaml:"location"`
	Yaw      float64     `yaml:"yaw"`
}

// ActorYAML is an actor authored in a level.
type ActorYAML struct {
	Name     string      `yaml:"name"`
	Class    string      `yaml:"class"`
	Tags     []string    `yaml:"tags"`
	Location geom.Vector `yaml:"location"`
	Yaw      float64     `yaml:"yaw"`
	Entry    bool        `yaml:"entry"`
}

// SubLevel is one constituent of a room with its authoring transform.
type SubLevel struct {
	Asset    string
	Relative geom.Transform
}

// RoomDefinition is a root level asset and its sub-levels. It is immutable
// once loaded.
type RoomDefinition struct {
	Path      string
	SubLevels []SubLevel
}

// asset is a loaded level.
type asset struct {
	path      string
	subLevels []SubLevel
	actors    []world.ActorSpec
}

// Catalog indexes level assets by canonical path.
type Catalog struct {
	assets map[string]*asset
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{assets: make(map[string]*asset)}
}

// LoadFile loads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read catalog file: %v", fault.ErrConfiguration, err)
	}
	c := New()
	if err := c.AddYAML(data); err != nil {
		return nil, err
	}
	return c, nil
}

// AddYAML merges the levels described by data into the catalog.
func (c *Catalog) AddYAML(data []byte) error {
	var cy CatalogYAML
	if err := yaml.Unmarshal(data, &cy); err != nil {
		return fmt.Errorf("%w: failed to parse catalog YAML: %v", fault.ErrConfiguration, err)
	}
	for _, ly := range cy.Levels {
		if err := c.Add(ly); err != nil {
			return err
		}
	}
	return nil
}

// Add registers one level asset. A later definition of the same canonical
// path replaces the earlier one.
func (c *Catalog) Add(ly LevelYAML) error {
	key := levelpath.Normalize(ly.Path)
	if key == "" {
		return fmt.Errorf("%w: level without a path", fault.ErrConfiguration)
	}

	a := &asset{path: key}
	for _, sy := range ly.SubLevels {
		if sy.Asset == "" {
			return fmt.Errorf("%w: level %s has a sub-level without an asset", fault.ErrConfiguration, key)
		}
		a.subLevels = append(a.subLevels, SubLevel{
			Asset:    levelpath.Normalize(sy.Asset),
			Relative: geom.At(sy.Location, sy.Yaw),
		})
	}
	for _, ay := range ly.Actors {
		if ay.Class == "" {
			return fmt.Errorf("%w: level %s has an actor without a class", fault.ErrConfiguration, key)
		}
		a.actors = append(a.actors, world.ActorSpec{
			Name:      ay.Name,
			Class:     ay.Class,
			Tags:      append([]string(nil), ay.Tags...),
			Transform: geom.At(ay.Location, ay.Yaw),
			Entry:     ay.Entry,
		})
	}

	c.assets[key] = a
	return nil
}

// Room returns the definition of the room rooted at path.
func (c *Catalog) Room(path string) (RoomDefinition, error) {
	a, ok := c.assets[levelpath.Normalize(path)]
	if !ok {
		return RoomDefinition{}, fmt.Errorf("%w: %s", ErrRoomNotFound, path)
	}
	return RoomDefinition{
		Path:      a.path,
		SubLevels: append([]SubLevel(nil), a.subLevels...),
	}, nil
}

// LevelContent returns the actors authored in a level asset.
func (c *Catalog) LevelContent(path string) ([]world.ActorSpec, error) {
	a, ok := c.assets[levelpath.Normalize(path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, path)
	}
	out := make([]world.ActorSpec, len(a.actors))
	for i, spec := range a.actors {
		spec.Tags = append([]string(nil), spec.Tags...)
		out[i] = spec
	}
	return out, nil
}

// Paths lists every canonical level path, sorted.
func (c *Catalog) Paths() []string {
	out := make([]string, 0, len(c.assets))
	for p := range c.assets {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of level assets.
func (c *Catalog) Len() int {
	return len(c.assets)
}
