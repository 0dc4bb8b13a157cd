package physics

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Contact is the closest-point result of a pairwise shape query.
// Normal points out of shape A, toward B. Dist is the signed distance
// between PointA and PointB along Normal: negative when penetrating.
type Contact struct {
	PointA Vec3
	PointB Vec3
	Normal Vec3
	Dist   float64
}

// flipped swaps the roles of shape A and B.
func (c Contact) flipped() Contact {
	return Contact{PointA: c.PointB, PointB: c.PointA, Normal: c.Normal.Mul(-1), Dist: c.Dist}
}

// ShapeContact computes the contact between two colliders. It returns
// ok=false when the closest distance exceeds prediction, or when the pair has
// no meaningful contact (two half-spaces). Unknown shape tags yield an error
// so the caller can apply the unsupported-pair policy.
func ShapeContact(a Collider, isoA Isometry, b Collider, isoB Isometry, prediction float64) (Contact, bool, error) {
	switch {
	case a.Shape == ShapeSphere && b.Shape == ShapeSphere:
		c, ok := sphereSphereContact(a, isoA, b, isoB, prediction)
		return c, ok, nil
	case a.Shape == ShapeSphere && b.Shape == ShapePlane:
		c, ok := planeSphereContact(b, isoB, a, isoA, prediction)
		return c.flipped(), ok, nil
	case a.Shape == ShapePlane && b.Shape == ShapeSphere:
		c, ok := planeSphereContact(a, isoA, b, isoB, prediction)
		return c, ok, nil
	case a.Shape == ShapeSphere && b.Shape == ShapeCuboid:
		c, ok := cuboidSphereContact(b, isoB, a, isoA, prediction)
		return c.flipped(), ok, nil
	case a.Shape == ShapeCuboid && b.Shape == ShapeSphere:
		c, ok := cuboidSphereContact(a, isoA, b, isoB, prediction)
		return c, ok, nil
	case a.Shape == ShapePlane && b.Shape == ShapePlane:
		// Two half-spaces have no closest-point pair.
		return Contact{}, false, nil
	case a.Shape == ShapePlane && b.Shape == ShapeCuboid:
		c, ok := planeCuboidContact(a, isoA, b, isoB, prediction)
		return c, ok, nil
	case a.Shape == ShapeCuboid && b.Shape == ShapePlane:
		c, ok := planeCuboidContact(b, isoB, a, isoA, prediction)
		return c.flipped(), ok, nil
	case a.Shape == ShapeCuboid && b.Shape == ShapeCuboid:
		return cuboidCuboidContact(a, isoA, b, isoB, prediction)
	}
	return Contact{}, false, fmt.Errorf("%w: %v vs %v", ErrUnsupportedShape, a.Shape, b.Shape)
}

func sphereSphereContact(a Collider, isoA Isometry, b Collider, isoB Isometry, prediction float64) (Contact, bool) {
	delta := isoB.Position.Sub(isoA.Position)
	dist := delta.Len() - a.Radius - b.Radius
	if dist > prediction {
		return Contact{}, false
	}
	n := SafeNormalize(delta, Vec3{0, 0, 1})
	return Contact{
		PointA: isoA.Position.Add(n.Mul(a.Radius)),
		PointB: isoB.Position.Sub(n.Mul(b.Radius)),
		Normal: n,
		Dist:   dist,
	}, true
}

// planeSphereContact treats the plane as shape A.
func planeSphereContact(plane Collider, isoP Isometry, sphere Collider, isoS Isometry, prediction float64) (Contact, bool) {
	n := isoP.Rotation.Rotate(plane.Normal)
	s := isoS.Position.Sub(isoP.Position).Dot(n)
	dist := s - sphere.Radius
	if dist > prediction {
		return Contact{}, false
	}
	return Contact{
		PointA: isoS.Position.Sub(n.Mul(s)),
		PointB: isoS.Position.Sub(n.Mul(sphere.Radius)),
		Normal: n,
		Dist:   dist,
	}, true
}

// cuboidSphereContact treats the cuboid as shape A.
func cuboidSphereContact(box Collider, isoB Isometry, sphere Collider, isoS Isometry, prediction float64) (Contact, bool) {
	lc := isoB.ApplyInverse(isoS.Position)
	he := box.HalfExtents
	clamped := clampVec3(lc, he)
	delta := lc.Sub(clamped)
	d2 := delta.Dot(delta)

	if d2 > normalizeEpsilon {
		// Sphere center outside the box.
		d := math.Sqrt(d2)
		dist := d - sphere.Radius
		if dist > prediction {
			return Contact{}, false
		}
		nLocal := delta.Mul(1 / d)
		n := isoB.Rotation.Rotate(nLocal)
		return Contact{
			PointA: isoB.Apply(clamped),
			PointB: isoS.Position.Sub(n.Mul(sphere.Radius)),
			Normal: n,
			Dist:   dist,
		}, true
	}

	// Center inside the box: push out through the nearest face.
	axis, sign := 0, 1.0
	depth := math.Inf(1)
	for i := 0; i < 3; i++ {
		d := he[i] - math.Abs(lc[i])
		if d < depth {
			depth = d
			axis = i
			if lc[i] < 0 {
				sign = -1
			} else {
				sign = 1
			}
		}
	}
	var nLocal Vec3
	nLocal[axis] = sign
	surface := lc
	surface[axis] = sign * he[axis]
	n := isoB.Rotation.Rotate(nLocal)
	return Contact{
		PointA: isoB.Apply(surface),
		PointB: isoS.Position.Sub(n.Mul(sphere.Radius)),
		Normal: n,
		Dist:   -depth - sphere.Radius,
	}, true
}

// planeCuboidContact treats the plane as shape A. The contact point is the
// deepest cuboid vertex relative to the half-space.
func planeCuboidContact(plane Collider, isoP Isometry, box Collider, isoB Isometry, prediction float64) (Contact, bool) {
	n := isoP.Rotation.Rotate(plane.Normal)
	localDir := isoB.Rotation.Inverse().Rotate(n.Mul(-1))
	v := isoB.Apply(box.supportVertexLocal(localDir))
	dist := v.Sub(isoP.Position).Dot(n)
	if dist > prediction {
		return Contact{}, false
	}
	return Contact{
		PointA: v.Sub(n.Mul(dist)),
		PointB: v,
		Normal: n,
		Dist:   dist,
	}, true
}

// satAxis is one candidate separating axis between two cuboids.
type satAxis struct {
	dir        Vec3 // unit, oriented from A toward B
	separation float64
	edgeA      int // contributing local axis on A for cross axes, -1 otherwise
	edgeB      int
}

func cuboidCuboidContact(a Collider, isoA Isometry, b Collider, isoB Isometry, prediction float64) (Contact, bool, error) {
	ma := QuatToMat3(isoA.Rotation)
	mb := QuatToMat3(isoB.Rotation)
	axesA := [3]Vec3{ma.Col(0), ma.Col(1), ma.Col(2)}
	axesB := [3]Vec3{mb.Col(0), mb.Col(1), mb.Col(2)}
	centerDelta := isoB.Position.Sub(isoA.Position)

	best := satAxis{separation: math.Inf(-1), edgeA: -1, edgeB: -1}

	eval := func(dir Vec3, ea, eb int) {
		l2 := dir.Dot(dir)
		if l2 < 1e-12 {
			return // degenerate cross product, axes nearly parallel
		}
		dir = dir.Mul(1 / math.Sqrt(l2))
		d := centerDelta.Dot(dir)
		if d < 0 {
			dir = dir.Mul(-1)
			d = -d
		}
		ra := projectedRadius(a.HalfExtents, axesA, dir)
		rb := projectedRadius(b.HalfExtents, axesB, dir)
		sep := d - ra - rb
		if sep > best.separation {
			best = satAxis{dir: dir, separation: sep, edgeA: ea, edgeB: eb}
		}
	}

	for i := 0; i < 3; i++ {
		eval(axesA[i], -1, -1)
		eval(axesB[i], -1, -1)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			eval(axesA[i].Cross(axesB[j]), i, j)
		}
	}

	if best.separation > prediction {
		return Contact{}, false, nil
	}

	n := best.dir
	if best.separation <= 0 && best.edgeA >= 0 {
		// Edge-edge penetration: closest points between the two support
		// edges along the separating axis.
		pa, pb := closestEdgePoints(a, isoA, best.edgeA, n,
			b, isoB, best.edgeB, n.Mul(-1))
		return Contact{PointA: pa, PointB: pb, Normal: n, Dist: best.separation}, true, nil
	}

	// Face contact (or a shallow predicted contact): anchor on the deepest
	// vertex of B along -n and project back onto A's surface.
	localDir := isoB.Rotation.Inverse().Rotate(n.Mul(-1))
	pb := isoB.Apply(b.supportVertexLocal(localDir))
	pa := pb.Sub(n.Mul(best.separation))
	return Contact{PointA: pa, PointB: pb, Normal: n, Dist: best.separation}, true, nil
}

// projectedRadius is the half-length of a cuboid's projection onto dir.
func projectedRadius(he Vec3, axes [3]Vec3, dir Vec3) float64 {
	return he.X()*math.Abs(axes[0].Dot(dir)) +
		he.Y()*math.Abs(axes[1].Dot(dir)) +
		he.Z()*math.Abs(axes[2].Dot(dir))
}

// closestEdgePoints finds the closest points between the support edge of A
// along dirA and the support edge of B along dirB.
func closestEdgePoints(a Collider, isoA Isometry, edgeA int, dirA Vec3,
	b Collider, isoB Isometry, edgeB int, dirB Vec3) (Vec3, Vec3) {
	p1, q1 := supportEdge(a, isoA, edgeA, dirA)
	p2, q2 := supportEdge(b, isoB, edgeB, dirB)
	return closestPointsSegments(p1, q1, p2, q2)
}

// supportEdge returns the endpoints of the cuboid edge running along local
// axis `axis` whose midpoint is furthest along the world direction dir.
func supportEdge(c Collider, iso Isometry, axis int, dir Vec3) (Vec3, Vec3) {
	localDir := iso.Rotation.Inverse().Rotate(dir)
	v := c.supportVertexLocal(localDir)
	p, q := v, v
	p[axis] = -c.HalfExtents[axis]
	q[axis] = c.HalfExtents[axis]
	return iso.Apply(p), iso.Apply(q)
}

// closestPointsSegments computes the closest points between segments
// [p1,q1] and [p2,q2].
func closestPointsSegments(p1, q1, p2, q2 Vec3) (Vec3, Vec3) {
	d1 := q1.Sub(p1)
	d2 := q2.Sub(p2)
	r := p1.Sub(p2)
	a := d1.Dot(d1)
	e := d2.Dot(d2)
	f := d2.Dot(r)

	var s, t float64
	if a < 1e-12 && e < 1e-12 {
		return p1, p2
	}
	if a < 1e-12 {
		s = 0
		t = mgl64.Clamp(f/e, 0, 1)
	} else {
		c := d1.Dot(r)
		if e < 1e-12 {
			t = 0
			s = mgl64.Clamp(-c/a, 0, 1)
		} else {
			bb := d1.Dot(d2)
			denom := a*e - bb*bb
			if denom > 1e-12 {
				s = mgl64.Clamp((bb*f-c*e)/denom, 0, 1)
			} else {
				s = 0
			}
			t = (bb*s + f) / e
			if t < 0 {
				t = 0
				s = mgl64.Clamp(-c/a, 0, 1)
			} else if t > 1 {
				t = 1
				s = mgl64.Clamp((bb-c)/a, 0, 1)
			}
		}
	}
	return p1.Add(d1.Mul(s)), p2.Add(d2.Mul(t))
}

// ShapesIntersect reports whether two colliders overlap. Unknown shape tags
// yield an error, matching the contact query policy.
func ShapesIntersect(a Collider, isoA Isometry, b Collider, isoB Isometry) (bool, error) {
	switch {
	case a.Shape == ShapeSphere && b.Shape == ShapeSphere:
		delta := isoB.Position.Sub(isoA.Position)
		sum := a.Radius + b.Radius
		return delta.Dot(delta) <= sum*sum, nil
	case a.Shape == ShapeSphere && b.Shape == ShapePlane:
		return planeSphereIntersect(b, isoB, a, isoA), nil
	case a.Shape == ShapePlane && b.Shape == ShapeSphere:
		return planeSphereIntersect(a, isoA, b, isoB), nil
	case a.Shape == ShapeSphere && b.Shape == ShapeCuboid:
		return cuboidSphereIntersect(b, isoB, a, isoA), nil
	case a.Shape == ShapeCuboid && b.Shape == ShapeSphere:
		return cuboidSphereIntersect(a, isoA, b, isoB), nil
	case a.Shape == ShapePlane && b.Shape == ShapePlane:
		return planePlaneIntersect(a, isoA, b, isoB), nil
	case a.Shape == ShapePlane && b.Shape == ShapeCuboid:
		return planeCuboidIntersect(a, isoA, b, isoB), nil
	case a.Shape == ShapeCuboid && b.Shape == ShapePlane:
		return planeCuboidIntersect(b, isoB, a, isoA), nil
	case a.Shape == ShapeCuboid && b.Shape == ShapeCuboid:
		c, ok, err := cuboidCuboidContact(a, isoA, b, isoB, 0)
		if err != nil {
			return false, err
		}
		return ok && c.Dist <= 0, nil
	}
	return false, fmt.Errorf("%w: %v vs %v", ErrUnsupportedShape, a.Shape, b.Shape)
}

func planeSphereIntersect(plane Collider, isoP Isometry, sphere Collider, isoS Isometry) bool {
	n := isoP.Rotation.Rotate(plane.Normal)
	return isoS.Position.Sub(isoP.Position).Dot(n) <= sphere.Radius
}

func cuboidSphereIntersect(box Collider, isoB Isometry, sphere Collider, isoS Isometry) bool {
	lc := isoB.ApplyInverse(isoS.Position)
	delta := lc.Sub(clampVec3(lc, box.HalfExtents))
	return delta.Dot(delta) <= sphere.Radius*sphere.Radius
}

func planeCuboidIntersect(plane Collider, isoP Isometry, box Collider, isoB Isometry) bool {
	n := isoP.Rotation.Rotate(plane.Normal)
	localDir := isoB.Rotation.Inverse().Rotate(n.Mul(-1))
	v := isoB.Apply(box.supportVertexLocal(localDir))
	return v.Sub(isoP.Position).Dot(n) <= 0
}

// planePlaneIntersect: two half-spaces overlap unless they are strictly
// parallel, facing away from each other, with a gap in between.
func planePlaneIntersect(a Collider, isoA Isometry, b Collider, isoB Isometry) bool {
	na := isoA.Rotation.Rotate(a.Normal)
	nb := isoB.Rotation.Rotate(b.Normal)
	if na.Dot(nb) > -1+1e-9 {
		return true
	}
	return isoB.Position.Sub(isoA.Position).Dot(na) <= 0
}
