// Package gateway finds the connector actors inside rooms and computes the
// placement that snaps one room's connector onto another's.
package gateway

import (
	"errors"
	"fmt"

	"github.com/lawnchairsociety/levelforge/internal/fault"
	"github.com/lawnchairsociety/levelforge/internal/geom"
	"github.com/lawnchairsociety/levelforge/internal/logger"
	"github.com/lawnchairsociety/levelforge/internal/world"
	"github.com/zyedidia/generic/mapset"
)

var (
	// ErrMissingConnector is returned when a gateway is absent.
	ErrMissingConnector = fmt.Errorf("%w: missing connector", fault.ErrValidation)

	// ErrWrongLevel is returned when the in gateway does not belong to the
	// level being attached.
	ErrWrongLevel = fmt.Errorf("%w: gateway belongs to another level", fault.ErrValidation)
)

// Gateway is a connector actor with its transform relative to its level
// and in world space.
type Gateway struct {
	Actor world.ActorID
	Level world.LevelID
	Name  string
	Entry bool
	Local geom.Transform
	World geom.Transform
}

func fromActor(e world.Engine, a world.Actor) Gateway {
	return Gateway{
		Actor: a.ID,
		Level: a.Level,
		Name:  a.Name,
		Entry: a.Entry,
		Local: a.Transform,
		World: world.WorldTransform(e, a),
	}
}

// Discover lists the gateways of a level in actor ID order. A level that
// has not finished loading has none.
func Discover(e world.Engine, level world.LevelID) []Gateway {
	var out []Gateway
	for _, a := range e.Actors(level) {
		if a.IsGateway() {
			out = append(out, fromActor(e, a))
		}
	}
	return out
}

// Lookup returns the gateway for an actor.
func Lookup(e world.Engine, id world.ActorID) (*Gateway, error) {
	a, ok := e.Actor(id)
	if !ok || !a.IsGateway() {
		return nil, fmt.Errorf("%w: actor %d", ErrMissingConnector, id)
	}
	g := fromActor(e, a)
	return &g, nil
}

// AlignTransform returns the placement for the level owning in so that in
// sits on out, facing the opposite way.
func AlignTransform(out, in *Gateway) (geom.Transform, error) {
	if out == nil {
		return geom.Transform{}, fmt.Errorf("%w: out gateway", ErrMissingConnector)
	}
	if in == nil {
		return geom.Transform{}, fmt.Errorf("%w: in gateway", ErrMissingConnector)
	}

	yaw := geom.NormalizeYaw(180 + out.World.Yaw - in.Local.Yaw)
	location := out.World.Location.Sub(in.Local.Location.RotateYaw(yaw))
	return geom.At(location, yaw), nil
}

// Placer moves a tracked room.
type Placer interface {
	Place(root world.LevelID, placement geom.Transform) error
}

// Attach places the room rooted at root so that in meets out. When
// deleteGateways is set both connectors are destroyed once the room has
// been moved, followed by one reclaim pass.
func Attach(e world.Engine, p Placer, out *Gateway, root world.LevelID, in *Gateway, deleteGateways bool) (geom.Transform, error) {
	placement, err := AlignTransform(out, in)
	if err != nil {
		return geom.Transform{}, err
	}
	if in.Level != root {
		return geom.Transform{}, fmt.Errorf("%w: gateway %d is in level %d, not %d", ErrWrongLevel, in.Actor, in.Level, root)
	}
	if out.Level == root {
		return geom.Transform{}, fmt.Errorf("%w: cannot attach level %d to itself", ErrWrongLevel, root)
	}

	if err := p.Place(root, placement); err != nil {
		return geom.Transform{}, err
	}

	if deleteGateways {
		var errs []error
		for _, id := range []world.ActorID{out.Actor, in.Actor} {
			if err := e.DestroyActor(id); err != nil && !errors.Is(err, world.ErrActorNotFound) {
				errs = append(errs, err)
			}
		}
		e.CollectGarbage()
		if len(errs) > 0 {
			return placement, errors.Join(errs...)
		}
	}

	logger.Debug("Attached level", "root", root, "out", out.Actor, "in", in.Actor, "placement", placement.String())
	return placement, nil
}

// Pick returns the first gateway matching entry that is not in used, or
// nil. With fallback set, any unused gateway is returned when none
// matches.
func Pick(gateways []Gateway, entry bool, used mapset.Set[world.ActorID], fallback bool) *Gateway {
	for i := range gateways {
		if gateways[i].Entry == entry && !used.Has(gateways[i].Actor) {
			return &gateways[i]
		}
	}
	if !fallback {
		return nil
	}
	for i := range gateways {
		if !used.Has(gateways[i].Actor) {
			return &gateways[i]
		}
	}
	return nil
}
