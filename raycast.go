package physics

import (
	"fmt"
	"math"
	"sort"
)

// Ray is a world-space half-line. Dir does not need to be unit length; hit
// parameters t are expressed in multiples of Dir.
type Ray struct {
	Origin Vec3
	Dir    Vec3
}

// At returns the point at parameter t.
func (r Ray) At(t float64) Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}

// RayHit is a single ray-cast result.
type RayHit struct {
	BodyId uint64
	T      float64
	Point  Vec3
	Normal Vec3
}

// shapeRayHit intersects a ray with a collider at iso. When solid is true a
// ray starting inside the shape reports t=0 with a normal opposing the ray;
// otherwise the boundary crossing is returned. ok=false when there is no hit
// with t in [0, maxT].
func shapeRayHit(c Collider, iso Isometry, ray Ray, maxT float64, solid bool) (t float64, normal Vec3, ok bool, err error) {
	if ray.Dir.Dot(ray.Dir) < normalizeEpsilon {
		return 0, Vec3{}, false, nil
	}
	switch c.Shape {
	case ShapeSphere:
		t, normal, ok = raySphere(c, iso, ray, maxT, solid)
		return t, normal, ok, nil
	case ShapePlane:
		t, normal, ok = rayHalfSpace(c, iso, ray, maxT, solid)
		return t, normal, ok, nil
	case ShapeCuboid:
		t, normal, ok = rayCuboid(c, iso, ray, maxT, solid)
		return t, normal, ok, nil
	}
	return 0, Vec3{}, false, fmt.Errorf("%w: ray vs %v", ErrUnsupportedShape, c.Shape)
}

func raySphere(c Collider, iso Isometry, ray Ray, maxT float64, solid bool) (float64, Vec3, bool) {
	oc := ray.Origin.Sub(iso.Position)
	a := ray.Dir.Dot(ray.Dir)
	halfB := oc.Dot(ray.Dir)
	c0 := oc.Dot(oc) - c.Radius*c.Radius

	if c0 <= 0 {
		// Origin inside the sphere.
		if solid {
			return 0, SafeNormalize(ray.Dir.Mul(-1), Vec3{0, 0, 1}), true
		}
		// Exit through the far surface.
		disc := halfB*halfB - a*c0
		t := (-halfB + math.Sqrt(disc)) / a
		if t > maxT {
			return 0, Vec3{}, false
		}
		return t, SafeNormalize(ray.At(t).Sub(iso.Position), Vec3{0, 0, 1}), true
	}

	disc := halfB*halfB - a*c0
	if disc < 0 {
		return 0, Vec3{}, false
	}
	t := (-halfB - math.Sqrt(disc)) / a
	if t < 0 || t > maxT {
		return 0, Vec3{}, false
	}
	return t, SafeNormalize(ray.At(t).Sub(iso.Position), Vec3{0, 0, 1}), true
}

func rayHalfSpace(c Collider, iso Isometry, ray Ray, maxT float64, solid bool) (float64, Vec3, bool) {
	n := iso.Rotation.Rotate(c.Normal)
	s := ray.Origin.Sub(iso.Position).Dot(n)
	if solid && s <= 0 {
		return 0, SafeNormalize(ray.Dir.Mul(-1), n), true
	}
	denom := ray.Dir.Dot(n)
	if math.Abs(denom) < 1e-15 {
		return 0, Vec3{}, false
	}
	t := -s / denom
	if t < 0 || t > maxT {
		return 0, Vec3{}, false
	}
	if s < 0 {
		n = n.Mul(-1)
	}
	return t, n, true
}

func rayCuboid(c Collider, iso Isometry, ray Ray, maxT float64, solid bool) (float64, Vec3, bool) {
	inv := iso.Rotation.Inverse()
	lo := inv.Rotate(ray.Origin.Sub(iso.Position))
	ld := inv.Rotate(ray.Dir)
	he := c.HalfExtents

	tMin, tMax := math.Inf(-1), math.Inf(1)
	entryAxis, entrySign := -1, 1.0
	exitAxis, exitSign := -1, 1.0
	for i := 0; i < 3; i++ {
		if math.Abs(ld[i]) < 1e-15 {
			if lo[i] < -he[i] || lo[i] > he[i] {
				return 0, Vec3{}, false
			}
			continue
		}
		invD := 1 / ld[i]
		t0 := (-he[i] - lo[i]) * invD
		t1 := (he[i] - lo[i]) * invD
		sign := -1.0
		if invD < 0 {
			t0, t1 = t1, t0
			sign = 1.0
		}
		if t0 > tMin {
			tMin = t0
			entryAxis = i
			entrySign = sign
		}
		if t1 < tMax {
			tMax = t1
			exitAxis = i
			exitSign = -sign
		}
		if tMin > tMax {
			return 0, Vec3{}, false
		}
	}
	if tMax < 0 || tMin > maxT {
		return 0, Vec3{}, false
	}

	if tMin < 0 {
		// Origin inside the box.
		if solid {
			return 0, SafeNormalize(ray.Dir.Mul(-1), Vec3{0, 0, 1}), true
		}
		if tMax > maxT || exitAxis < 0 {
			return 0, Vec3{}, false
		}
		var nLocal Vec3
		nLocal[exitAxis] = exitSign
		return tMax, iso.Rotation.Rotate(nLocal), true
	}

	var nLocal Vec3
	nLocal[entryAxis] = entrySign
	return tMin, iso.Rotation.Rotate(nLocal), true
}

// sortHits orders ray hits by ascending t, ties broken by body id so the
// result is deterministic.
func sortHits(hits []RayHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].T != hits[j].T {
			return hits[i].T < hits[j].T
		}
		return hits[i].BodyId < hits[j].BodyId
	})
}
