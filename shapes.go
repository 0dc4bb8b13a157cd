package physics

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type ColliderShape int

const (
	ShapeSphere ColliderShape = iota
	ShapePlane
	ShapeCuboid
)

func (s ColliderShape) String() string {
	switch s {
	case ShapeSphere:
		return "sphere"
	case ShapePlane:
		return "plane"
	case ShapeCuboid:
		return "cuboid"
	}
	return fmt.Sprintf("shape(%d)", int(s))
}

var (
	ErrInvalidCollider  = errors.New("invalid collider")
	ErrUnsupportedShape = errors.New("unsupported shape pair")
)

// planeAabbExtent bounds the otherwise infinite half-space AABB. Large enough
// to cover any practical world, finite so the QBVH math stays well-defined.
const planeAabbExtent = 1e12

// Collider is a convex primitive row. A single row may be shared by many
// bodies and by triggers; it is resolved by id into a tick-local map.
//
// The row is flat rather than a sum type so it can live in a tabular store:
// the Shape tag selects which fields are meaningful.
type Collider struct {
	Id      uint64
	WorldId uint64
	Shape   ColliderShape

	Radius      float64 // sphere
	Normal      Vec3    // plane, unit length
	HalfExtents Vec3    // cuboid, component-wise > 0
}

// SphereCollider builds a sphere collider. The radius must be positive.
func SphereCollider(worldId uint64, radius float64) (Collider, error) {
	if radius <= 0 || math.IsNaN(radius) {
		return Collider{}, fmt.Errorf("%w: sphere radius %v must be > 0", ErrInvalidCollider, radius)
	}
	return Collider{WorldId: worldId, Shape: ShapeSphere, Radius: radius}, nil
}

// PlaneCollider builds a half-space collider. The normal is normalized; a
// zero normal is rejected.
func PlaneCollider(worldId uint64, normal Vec3) (Collider, error) {
	l := normal.Len()
	if l < 1e-9 || math.IsNaN(l) {
		return Collider{}, fmt.Errorf("%w: plane normal %v must be non-zero", ErrInvalidCollider, normal)
	}
	return Collider{WorldId: worldId, Shape: ShapePlane, Normal: normal.Mul(1 / l)}, nil
}

// CuboidCollider builds a box collider from half-extents, all of which must
// be positive.
func CuboidCollider(worldId uint64, halfExtents Vec3) (Collider, error) {
	if halfExtents.X() <= 0 || halfExtents.Y() <= 0 || halfExtents.Z() <= 0 {
		return Collider{}, fmt.Errorf("%w: cuboid half extents %v must be > 0", ErrInvalidCollider, halfExtents)
	}
	return Collider{WorldId: worldId, Shape: ShapeCuboid, HalfExtents: halfExtents}, nil
}

// InertiaTensor returns the body-frame inertia tensor for this shape at the
// given mass. Planes are static-only and carry a zero tensor.
func (c Collider) InertiaTensor(mass float64) Mat3 {
	switch c.Shape {
	case ShapeSphere:
		f := (2.0 / 5.0) * mass * c.Radius * c.Radius
		return mgl64.Diag3(Splat(f))
	case ShapeCuboid:
		x2 := c.HalfExtents.X() * c.HalfExtents.X()
		y2 := c.HalfExtents.Y() * c.HalfExtents.Y()
		z2 := c.HalfExtents.Z() * c.HalfExtents.Z()
		f := mass / 3.0
		return mgl64.Diag3(Vec3{f * (y2 + z2), f * (x2 + z2), f * (x2 + y2)})
	default:
		return Mat3{}
	}
}

// Aabb returns the world-space bounding box of the shape at iso.
func (c Collider) Aabb(iso Isometry) Aabb {
	switch c.Shape {
	case ShapeSphere:
		r := Splat(c.Radius)
		return Aabb{Min: iso.Position.Sub(r), Max: iso.Position.Add(r)}
	case ShapePlane:
		// A half-space has no finite bounds in general; clamp to a huge
		// box so the broad phase always pairs it.
		e := Splat(planeAabbExtent)
		return Aabb{Min: iso.Position.Sub(e), Max: iso.Position.Add(e)}
	case ShapeCuboid:
		// Rotate the three half-axes and take component-wise absolute sums.
		m := QuatToMat3(iso.Rotation)
		he := c.HalfExtents
		ext := Vec3{
			math.Abs(m.At(0, 0))*he.X() + math.Abs(m.At(0, 1))*he.Y() + math.Abs(m.At(0, 2))*he.Z(),
			math.Abs(m.At(1, 0))*he.X() + math.Abs(m.At(1, 1))*he.Y() + math.Abs(m.At(1, 2))*he.Z(),
			math.Abs(m.At(2, 0))*he.X() + math.Abs(m.At(2, 1))*he.Y() + math.Abs(m.At(2, 2))*he.Z(),
		}
		return Aabb{Min: iso.Position.Sub(ext), Max: iso.Position.Add(ext)}
	}
	return Aabb{Min: iso.Position, Max: iso.Position}
}

// supportVertexLocal returns the cuboid corner furthest along the local
// direction dir. Zero components resolve to the positive face.
func (c Collider) supportVertexLocal(dir Vec3) Vec3 {
	v := c.HalfExtents
	if dir.X() < 0 {
		v[0] = -v[0]
	}
	if dir.Y() < 0 {
		v[1] = -v[1]
	}
	if dir.Z() < 0 {
		v[2] = -v[2]
	}
	return v
}
