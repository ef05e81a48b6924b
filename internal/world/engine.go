// Package world is the boundary between levelforge and the host engine's
// world and streaming subsystem.
//
// Levels and actors are referred to by ID only. The engine owns them and may
// remove them at any time (a user deleting a level in the editor), so callers
// re-query State or Actor before relying on a handle.
package world

import (
	"errors"
	"fmt"

	"github.com/lawnchairsociety/levelforge/internal/fault"
	"github.com/lawnchairsociety/levelforge/internal/geom"
)

// LevelID identifies a streamed level instance.
type LevelID uint64

// ActorID identifies an actor inside a level.
type ActorID uint64

// PersistentLevel is the level every world starts with. Streamed levels are
// merged into it.
const PersistentLevel LevelID = 0

// GatewayClass is the actor class of gateway connector markers.
const GatewayClass = "Gateway"

// State is the liveness of a level instance.
type State int

const (
	StateLoading State = iota
	StateLoaded
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	default:
		return "removed"
	}
}

var (
	ErrLevelNotFound   = errors.New("level not found")
	ErrActorNotFound   = errors.New("actor not found")
	ErrPersistentLevel = errors.New("operation not allowed on the persistent level")

	// ErrAssetNotFound is returned when a level or actor cannot be created
	// because its asset is unknown to the engine.
	ErrAssetNotFound = fmt.Errorf("%w: asset not found", fault.ErrInstantiation)
)

// Level is a read-only view of a level instance.
type Level struct {
	ID        LevelID
	Asset     string // source asset the instance was created from
	Package   string // engine-decorated instance package name
	Name      string
	Transform geom.Transform
	Folder    string
	Color     geom.Color
	Visible   bool
	State     State
}

// ActorSpec describes an actor to spawn, or an actor authored in a level.
type ActorSpec struct {
	Name      string         `yaml:"name"`
	Class     string         `yaml:"class"`
	Tags      []string       `yaml:"tags,omitempty"`
	Transform geom.Transform `yaml:"transform"`
	Entry     bool           `yaml:"entry,omitempty"`
}

// Actor is a read-only view of a live actor. Transform is local to Level.
type Actor struct {
	ID     ActorID
	Level  LevelID
	Hidden bool
	ActorSpec
}

// IsGateway reports whether the actor is a gateway connector.
func (a Actor) IsGateway() bool {
	return a.Class == GatewayClass
}

// HasTag reports whether the actor carries tag.
func (a Actor) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Engine is the world and streaming surface levelforge drives.
type Engine interface {
	// InstantiateLevel streams a new instance of asset at the transform.
	InstantiateLevel(asset, name string, at geom.Transform) (LevelID, error)
	// RemoveLevel unloads a level. Removing an already removed level is a no-op.
	RemoveLevel(id LevelID) error
	// State is authoritative; unknown IDs report StateRemoved.
	State(id LevelID) State
	Level(id LevelID) (Level, bool)
	// Levels lists streamed levels that are not removed, in creation order.
	Levels() []Level
	SetLevelTransform(id LevelID, t geom.Transform) error
	SetFolder(id LevelID, folder string) error
	SetColor(id LevelID, c geom.Color) error
	SetVisible(id LevelID, visible bool) error
	// UpdateStreaming finishes any pending loads.
	UpdateStreaming()

	// Actors lists the actors of a loaded level in ID order. A level that is
	// still loading has no actors yet.
	Actors(level LevelID) []Actor
	Actor(id ActorID) (Actor, bool)
	SpawnActor(level LevelID, spec ActorSpec) (ActorID, error)
	DestroyActor(id ActorID) error
	SetActorHidden(id ActorID, hidden bool) error

	// CollectGarbage reclaims removed levels and destroyed actors.
	CollectGarbage()
}

// WorldTransform returns the actor's transform in world space.
func WorldTransform(e Engine, a Actor) geom.Transform {
	if a.Level == PersistentLevel {
		return a.Transform
	}
	lvl, ok := e.Level(a.Level)
	if !ok {
		return a.Transform
	}
	return a.Transform.Compose(lvl.Transform)
}
