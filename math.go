package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// The math kernel builds on mathgl's double-precision types. Everything the
// solver needs beyond what mathgl ships (safe normalization, axis-angle
// extraction, singularity-checked inversion, AABBs) lives here.

type Vec3 = mgl64.Vec3

type Quat = mgl64.Quat

type Mat3 = mgl64.Mat3

const (
	// invertEpsilon is the determinant magnitude below which a Mat3 is
	// treated as singular.
	invertEpsilon = 1e-12

	// normalizeEpsilon is the squared length below which a vector cannot
	// be normalized reliably.
	normalizeEpsilon = 1e-24
)

// QuatIdent mirrors mgl64.QuatIdent for callers that only import this package.
func QuatIdent() Quat {
	return mgl64.QuatIdent()
}

// QuatFromXYZ builds the quaternion (v.x, v.y, v.z, w). Used for the XPBD
// angular update where the angular velocity is packed as a pure quaternion.
func QuatFromXYZ(v Vec3, w float64) Quat {
	return Quat{W: w, V: v}
}

// QuatToMat3 extracts the rotation matrix of a unit quaternion.
func QuatToMat3(q Quat) Mat3 {
	m4 := q.Mat4()
	return Mat3{
		m4[0], m4[1], m4[2],
		m4[4], m4[5], m4[6],
		m4[8], m4[9], m4[10],
	}
}

// QuatAxisAngle decomposes a unit quaternion into a rotation axis and angle.
// Near-identity rotations (w ≈ ±1) return the canonical Z axis with angle 0
// so that downstream divisions stay finite.
func QuatAxisAngle(q Quat) (Vec3, float64) {
	w := mgl64.Clamp(q.W, -1, 1)
	s2 := 1 - w*w
	if s2 < normalizeEpsilon {
		return Vec3{0, 0, 1}, 0
	}
	s := math.Sqrt(s2)
	return q.V.Mul(1 / s), 2 * math.Acos(w)
}

// QuatAsRadians returns axis*angle of the shortest arc represented by q.
func QuatAsRadians(q Quat) Vec3 {
	if q.W < 0 {
		q = q.Scale(-1)
	}
	axis, angle := QuatAxisAngle(q)
	return axis.Mul(angle)
}

// Splat returns the vector (s, s, s).
func Splat(s float64) Vec3 {
	return Vec3{s, s, s}
}

// SafeNormalize returns v normalized, or fallback when v is too short to
// carry a direction.
func SafeNormalize(v, fallback Vec3) Vec3 {
	l2 := v.Dot(v)
	if l2 < normalizeEpsilon {
		return fallback
	}
	return v.Mul(1 / math.Sqrt(l2))
}

// ProjectOntoPlane removes the component of v along the unit normal n.
func ProjectOntoPlane(v, n Vec3) Vec3 {
	return v.Sub(n.Mul(v.Dot(n)))
}

// InvertMat3 inverts m, reporting false when the determinant is below the
// singularity threshold. mathgl's Inv silently returns the zero matrix; the
// solver needs to distinguish "no inverse" explicitly.
func InvertMat3(m Mat3) (Mat3, bool) {
	if math.Abs(m.Det()) < invertEpsilon {
		return Mat3{}, false
	}
	return m.Inv(), true
}

// Isometry is a rigid transform: rotate then translate.
type Isometry struct {
	Position Vec3
	Rotation Quat
}

// Apply transforms a point from local into world space.
func (iso Isometry) Apply(p Vec3) Vec3 {
	return iso.Rotation.Rotate(p).Add(iso.Position)
}

// ApplyInverse transforms a point from world into local space.
func (iso Isometry) ApplyInverse(p Vec3) Vec3 {
	return iso.Rotation.Inverse().Rotate(p.Sub(iso.Position))
}

// Aabb is a world-space axis-aligned bounding box.
type Aabb struct {
	Min Vec3
	Max Vec3
}

// Loosened expands the box by margin on every face.
func (a Aabb) Loosened(margin float64) Aabb {
	m := Splat(margin)
	return Aabb{Min: a.Min.Sub(m), Max: a.Max.Add(m)}
}

// Intersects reports whether the two boxes overlap or touch.
func (a Aabb) Intersects(b Aabb) bool {
	return a.Min.X() <= b.Max.X() && a.Max.X() >= b.Min.X() &&
		a.Min.Y() <= b.Max.Y() && a.Max.Y() >= b.Min.Y() &&
		a.Min.Z() <= b.Max.Z() && a.Max.Z() >= b.Min.Z()
}

// Merged returns the smallest box containing both a and b.
func (a Aabb) Merged(b Aabb) Aabb {
	return Aabb{
		Min: Vec3{
			math.Min(a.Min.X(), b.Min.X()),
			math.Min(a.Min.Y(), b.Min.Y()),
			math.Min(a.Min.Z(), b.Min.Z()),
		},
		Max: Vec3{
			math.Max(a.Max.X(), b.Max.X()),
			math.Max(a.Max.Y(), b.Max.Y()),
			math.Max(a.Max.Z(), b.Max.Z()),
		},
	}
}

// Center returns the box midpoint.
func (a Aabb) Center() Vec3 {
	return a.Min.Add(a.Max).Mul(0.5)
}

// intersectsRay reports whether the ray origin+t*dir crosses the box for
// some t in [0, maxT], using the slab method.
func (a Aabb) intersectsRay(origin, dir Vec3, maxT float64) bool {
	tMin, tMax := 0.0, maxT
	for i := 0; i < 3; i++ {
		o, d := origin[i], dir[i]
		if math.Abs(d) < 1e-15 {
			if o < a.Min[i] || o > a.Max[i] {
				return false
			}
			continue
		}
		inv := 1 / d
		t0 := (a.Min[i] - o) * inv
		t1 := (a.Max[i] - o) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tMin {
			tMin = t0
		}
		if t1 < tMax {
			tMax = t1
		}
		if tMin > tMax {
			return false
		}
	}
	return true
}

func clampVec3(v, halfExtents Vec3) Vec3 {
	return Vec3{
		mgl64.Clamp(v.X(), -halfExtents.X(), halfExtents.X()),
		mgl64.Clamp(v.Y(), -halfExtents.Y(), halfExtents.Y()),
		mgl64.Clamp(v.Z(), -halfExtents.Z(), halfExtents.Z()),
	}
}
