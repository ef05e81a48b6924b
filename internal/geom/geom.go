// Package geom holds the small amount of spatial math levelforge needs:
// vectors, yaw-only rigid transforms and level display colors.
package geom

import (
	"fmt"
	"math"
)

// Tolerance used by the NearlyEqual helpers.
const Tolerance = 1e-6

// Vector is a point or offset in world units.
type Vector struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	Z float64 `yaml:"z" json:"z"`
}

// Vec is shorthand for building a Vector.
func Vec(x, y, z float64) Vector {
	return Vector{X: x, Y: y, Z: z}
}

// Add returns v + o.
func (v Vector) Add(o Vector) Vector {
	return Vector{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns v - o.
func (v Vector) Sub(o Vector) Vector {
	return Vector{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// RotateYaw rotates v around the Z axis by yaw degrees.
func (v Vector) RotateYaw(yaw float64) Vector {
	rad := yaw * math.Pi / 180
	sin, cos := math.Sincos(rad)
	return Vector{
		X: v.X*cos - v.Y*sin,
		Y: v.X*sin + v.Y*cos,
		Z: v.Z,
	}
}

// NearlyEqual reports whether every component is within Tolerance.
func (v Vector) NearlyEqual(o Vector) bool {
	return math.Abs(v.X-o.X) <= Tolerance &&
		math.Abs(v.Y-o.Y) <= Tolerance &&
		math.Abs(v.Z-o.Z) <= Tolerance
}

func (v Vector) String() string {
	return fmt.Sprintf("(%g,%g,%g)", v.X, v.Y, v.Z)
}

// Transform is a rigid placement: a location and a rotation around Z.
// Rooms are only ever turned around the vertical axis, so pitch and roll
// are not modelled.
type Transform struct {
	Location Vector  `yaml:"location" json:"location"`
	Yaw      float64 `yaml:"yaw" json:"yaw"`
}

// Identity is the transform that leaves points unchanged.
var Identity = Transform{}

// At builds a transform from a location and a yaw in degrees.
func At(location Vector, yaw float64) Transform {
	return Transform{Location: location, Yaw: NormalizeYaw(yaw)}
}

// Apply maps a point from this transform's local space to its parent space.
func (t Transform) Apply(p Vector) Vector {
	return t.Location.Add(p.RotateYaw(t.Yaw))
}

// Compose returns t expressed in the parent frame of placement, i.e. the
// world transform of something authored at t inside a level placed at
// placement.
func (t Transform) Compose(placement Transform) Transform {
	return Transform{
		Location: placement.Apply(t.Location),
		Yaw:      NormalizeYaw(placement.Yaw + t.Yaw),
	}
}

// NearlyEqual compares locations and yaws within Tolerance.
func (t Transform) NearlyEqual(o Transform) bool {
	return t.Location.NearlyEqual(o.Location) &&
		math.Abs(NormalizeYaw(t.Yaw-o.Yaw)) <= Tolerance
}

func (t Transform) String() string {
	return fmt.Sprintf("%s yaw=%g", t.Location, t.Yaw)
}

// NormalizeYaw folds an angle in degrees into (-180, 180].
func NormalizeYaw(yaw float64) float64 {
	yaw = math.Mod(yaw, 360)
	if yaw <= -180 {
		yaw += 360
	} else if yaw > 180 {
		yaw -= 360
	}
	return yaw
}
