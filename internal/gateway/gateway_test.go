package gateway

import (
	"errors"
	"testing"

	"github.com/lawnchairsociety/levelforge/internal/catalog"
	"github.com/lawnchairsociety/levelforge/internal/composer"
	"github.com/lawnchairsociety/levelforge/internal/fault"
	"github.com/lawnchairsociety/levelforge/internal/geom"
	"github.com/lawnchairsociety/levelforge/internal/registry"
	"github.com/lawnchairsociety/levelforge/internal/world"
	"github.com/zyedidia/generic/mapset"
)

func TestAlignTransform(t *testing.T) {
	tests := []struct {
		name string
		out  Gateway
		in   Gateway
		want geom.Transform
	}{
		{
			name: "facing pair on the x axis",
			out:  Gateway{World: geom.At(geom.Vec(0, 0, 0), 0)},
			in:   Gateway{Local: geom.At(geom.Vec(100, 0, 0), 180)},
			want: geom.At(geom.Vec(-100, 0, 0), 0),
		},
		{
			name: "same facing turns the room around",
			out:  Gateway{World: geom.At(geom.Vec(500, 0, 0), 0)},
			in:   Gateway{Local: geom.At(geom.Vec(-200, 0, 0), 0)},
			want: geom.At(geom.Vec(300, 0, 0), 180),
		},
		{
			name: "quarter turn",
			out:  Gateway{World: geom.At(geom.Vec(0, 400, 0), 90)},
			in:   Gateway{Local: geom.At(geom.Vec(0, -50, 0), -90)},
			want: geom.At(geom.Vec(0, 450, 0), 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AlignTransform(&tt.out, &tt.in)
			if err != nil {
				t.Fatalf("AlignTransform failed: %v", err)
			}
			if !got.NearlyEqual(tt.want) {
				t.Errorf("AlignTransform = %v, want %v", got, tt.want)
			}

			// The in gateway must land on the out gateway, facing it.
			landed := tt.in.Local.Compose(got)
			if !landed.Location.NearlyEqual(tt.out.World.Location) {
				t.Errorf("in gateway lands at %v, want %v", landed.Location, tt.out.World.Location)
			}
			if d := geom.NormalizeYaw(landed.Yaw - tt.out.World.Yaw); d < 180-geom.Tolerance && d > -180+geom.Tolerance {
				t.Errorf("in gateway yaw %g is not opposite out yaw %g", landed.Yaw, tt.out.World.Yaw)
			}
		})
	}
}

func TestAlignTransformMissingConnector(t *testing.T) {
	g := &Gateway{}
	if _, err := AlignTransform(nil, g); !errors.Is(err, ErrMissingConnector) {
		t.Errorf("nil out error = %v, want ErrMissingConnector", err)
	}
	_, err := AlignTransform(g, nil)
	if !errors.Is(err, ErrMissingConnector) {
		t.Errorf("nil in error = %v, want ErrMissingConnector", err)
	}
	if !errors.Is(err, fault.ErrValidation) {
		t.Errorf("missing connector should be a validation error, got %v", err)
	}
}

type content map[string][]world.ActorSpec

func (c content) LevelContent(asset string) ([]world.ActorSpec, error) {
	return c[asset], nil
}

func newWorld(t *testing.T) (*world.Memory, *registry.Registry, *composer.Composer) {
	t.Helper()
	e := world.NewMemory(content{
		"/Game/Rooms/Corridor": {
			{Name: "In", Class: world.GatewayClass, Entry: true, Transform: geom.At(geom.Vec(-100, 0, 0), 180)},
			{Name: "Out", Class: world.GatewayClass, Transform: geom.At(geom.Vec(100, 0, 0), 0)},
			{Name: "Torch", Class: "Torch"},
		},
	})
	reg := registry.New(e)
	return e, reg, composer.New(e, reg)
}

func corridor() catalog.RoomDefinition {
	return catalog.RoomDefinition{Path: "/Game/Rooms/Corridor"}
}

func TestDiscover(t *testing.T) {
	e, _, c := newWorld(t)
	g, err := c.Compose(corridor(), geom.At(geom.Vec(1000, 0, 0), 90), "", geom.White)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	gws := Discover(e, g.Root)
	if len(gws) != 2 {
		t.Fatalf("got %d gateways, want 2", len(gws))
	}
	if gws[0].Name != "In" || !gws[0].Entry {
		t.Errorf("first gateway = %+v, want entry In", gws[0])
	}
	if !gws[1].World.NearlyEqual(geom.At(geom.Vec(1000, 100, 0), 90)) {
		t.Errorf("Out world transform = %v", gws[1].World)
	}

	if _, err := Lookup(e, gws[0].Actor+2); !errors.Is(err, ErrMissingConnector) {
		t.Errorf("Lookup(torch) error = %v, want ErrMissingConnector", err)
	}
}

func TestDiscoverWhileLoading(t *testing.T) {
	e, _, c := newWorld(t)
	e.SetDeferredLoading(true)
	g, err := c.Compose(corridor(), geom.Identity, "", geom.White)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if n := len(Discover(e, g.Root)); n != 0 {
		t.Errorf("loading level reported %d gateways, want 0", n)
	}
	e.UpdateStreaming()
	if n := len(Discover(e, g.Root)); n != 2 {
		t.Errorf("loaded level reported %d gateways, want 2", n)
	}
}

func TestAttach(t *testing.T) {
	for _, deleteGateways := range []bool{false, true} {
		e, reg, c := newWorld(t)
		first, err := c.Compose(corridor(), geom.Identity, "", geom.White)
		if err != nil {
			t.Fatalf("Compose failed: %v", err)
		}
		second, err := c.Compose(corridor(), geom.Identity, "", geom.White)
		if err != nil {
			t.Fatalf("Compose failed: %v", err)
		}

		used := mapset.New[world.ActorID]()
		out := Pick(Discover(e, first.Root), false, used, true)
		in := Pick(Discover(e, second.Root), true, used, true)
		collections := e.Collections()

		placement, err := Attach(e, c, out, second.Root, in, deleteGateways)
		if err != nil {
			t.Fatalf("Attach failed: %v", err)
		}
		if !placement.NearlyEqual(geom.At(geom.Vec(200, 0, 0), 0)) {
			t.Errorf("placement = %v, want (200,0,0) yaw 0", placement)
		}
		moved, _ := reg.Group(second.Root)
		if !moved.Placement.NearlyEqual(placement) {
			t.Errorf("registry placement = %v, want %v", moved.Placement, placement)
		}

		_, outAlive := e.Actor(out.Actor)
		_, inAlive := e.Actor(in.Actor)
		if outAlive == deleteGateways || inAlive == deleteGateways {
			t.Errorf("deleteGateways=%v: out alive %v, in alive %v", deleteGateways, outAlive, inAlive)
		}
		if deleteGateways && e.Collections() != collections+1 {
			t.Errorf("Collections = %d, want %d", e.Collections(), collections+1)
		}
	}
}

func TestAttachRejectsForeignGateway(t *testing.T) {
	e, _, c := newWorld(t)
	first, _ := c.Compose(corridor(), geom.Identity, "", geom.White)
	second, _ := c.Compose(corridor(), geom.Identity, "", geom.White)

	out := Discover(e, first.Root)[1]
	in := Discover(e, first.Root)[0]
	if _, err := Attach(e, c, &out, second.Root, &in, true); !errors.Is(err, ErrWrongLevel) {
		t.Errorf("Attach error = %v, want ErrWrongLevel", err)
	}
	if _, ok := e.Actor(out.Actor); !ok {
		t.Error("gateways must survive a rejected attach")
	}
}

func TestPick(t *testing.T) {
	gws := []Gateway{{Actor: 1}, {Actor: 2, Entry: true}, {Actor: 3}}
	used := mapset.New[world.ActorID]()
	used.Put(1)

	if g := Pick(gws, false, used, false); g == nil || g.Actor != 3 {
		t.Errorf("Pick(non-entry) = %+v, want actor 3", g)
	}
	if g := Pick(gws, true, used, false); g == nil || g.Actor != 2 {
		t.Errorf("Pick(entry) = %+v, want actor 2", g)
	}
	used.Put(2)
	used.Put(3)
	if g := Pick(gws, true, used, true); g != nil {
		t.Errorf("Pick with everything used = %+v, want nil", g)
	}
}
