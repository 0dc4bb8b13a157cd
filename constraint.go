package physics

import "math"

// PenetrationConstraint couples two overlapping bodies at a single contact
// point. Bodies are referenced by index into the sorted view slice, never by
// pointer, so the solver can mutate both sides freely.
//
// Normal points out of body A toward body B; the solver works with the
// positive penetration depth (the negation of the contact's signed distance),
// so NormalLagrange accumulates negative.
type PenetrationConstraint struct {
	A int
	B int

	Normal Vec3

	// LocalA/LocalB are the contact points in each body's frame, captured at
	// the poses current when the contact was generated. The world-space
	// points and the depth are re-derived from them every solver iteration.
	LocalA Vec3
	LocalB Vec3

	Compliance      float64
	NormalLagrange  float64
	TangentLagrange float64
}

// newPenetrationConstraint captures a penetrating contact between views a
// and b. The caller guarantees contact.Dist < 0.
func newPenetrationConstraint(a, b *BodyView, ai, bi int, contact Contact, compliance float64) PenetrationConstraint {
	return PenetrationConstraint{
		A:          ai,
		B:          bi,
		Normal:     contact.Normal,
		LocalA:     a.Rotation.Inverse().Rotate(contact.PointA.Sub(a.Position)),
		LocalB:     b.Rotation.Inverse().Rotate(contact.PointB.Sub(b.Position)),
		Compliance: compliance,
	}
}

// anchors returns the current world-space contact points and lever arms.
func (c *PenetrationConstraint) anchors(a, b *BodyView) (pa, pb, ra, rb Vec3) {
	ra = a.Rotation.Rotate(c.LocalA)
	rb = b.Rotation.Rotate(c.LocalB)
	return a.Position.Add(ra), b.Position.Add(rb), ra, rb
}

// solvePosition runs one XPBD iteration of the contact: the normal push
// followed by position-level static friction.
func (c *PenetrationConstraint) solvePosition(world *PhysicsWorld, views []BodyView, h float64) {
	a, b := &views[c.A], &views[c.B]

	pa, pb, ra, rb := c.anchors(a, b)
	penetration := pa.Sub(pb).Dot(c.Normal)
	if penetration <= 0 {
		return
	}

	wa := a.generalizedInverseMass(ra, c.Normal)
	wb := b.generalizedInverseMass(rb, c.Normal)
	wSum := wa + wb
	if wSum == 0 {
		return
	}

	alphaTilde := c.Compliance / (h * h)
	deltaLagrange := -(penetration + alphaTilde*c.NormalLagrange) / (wSum + alphaTilde)
	c.NormalLagrange += deltaLagrange

	p := c.Normal.Mul(deltaLagrange)
	a.applyPositionCorrection(p, ra)
	b.applyPositionCorrection(p.Mul(-1), rb)

	c.solveStaticFriction(world, views, penetration, h)
}

// solveStaticFriction cancels tangential drift at the contact while the
// sliding stays inside the static friction cone; past the cone it leaves the
// drift for dynamic friction at velocity level.
func (c *PenetrationConstraint) solveStaticFriction(world *PhysicsWorld, views []BodyView, penetration, h float64) {
	a, b := &views[c.A], &views[c.B]

	pa := a.Position.Add(a.Rotation.Rotate(c.LocalA))
	pb := b.Position.Add(b.Rotation.Rotate(c.LocalB))
	prevPa := a.PreviousPosition.Add(a.PreviousRotation.Rotate(c.LocalA))
	prevPb := b.PreviousPosition.Add(b.PreviousRotation.Rotate(c.LocalB))

	deltaP := pa.Sub(prevPa).Sub(pb.Sub(prevPb))
	deltaPTangent := ProjectOntoPlane(deltaP, c.Normal)
	sliding := deltaPTangent.Len()
	if sliding < 1e-9 {
		return
	}

	staticCoef := world.combineFriction(a.Friction, b.Friction).StaticCoef
	if sliding >= staticCoef*penetration {
		return
	}

	tangent := deltaPTangent.Mul(1 / sliding)
	ra := a.Rotation.Rotate(c.LocalA)
	rb := b.Rotation.Rotate(c.LocalB)
	wa := a.generalizedInverseMass(ra, tangent)
	wb := b.generalizedInverseMass(rb, tangent)
	wSum := wa + wb
	if wSum == 0 {
		return
	}

	alphaTilde := c.Compliance / (h * h)
	deltaLagrange := -(sliding + alphaTilde*c.TangentLagrange) / (wSum + alphaTilde)
	c.TangentLagrange += deltaLagrange

	p := tangent.Mul(deltaLagrange)
	a.applyPositionCorrection(p, ra)
	b.applyPositionCorrection(p.Mul(-1), rb)
}

// applyPositionCorrection shifts and tilts the body by the impulse-like
// position correction p acting at lever arm r.
func (v *BodyView) applyPositionCorrection(p, r Vec3) {
	if !v.dynamic() {
		return
	}
	v.Position = v.Position.Add(p.Mul(v.InvMass))

	angle := v.effectiveInvInertiaWorld().Mul3x1(r.Cross(p)).Mul(0.5)
	dq := QuatFromXYZ(angle, 0).Mul(v.Rotation)
	v.Rotation = v.Rotation.Add(dq).Normalize()
}

// normalForce converts the accumulated normal Lagrange multiplier into the
// equivalent contact force magnitude for the substep.
func (c *PenetrationConstraint) normalForce(h float64) float64 {
	return math.Abs(c.NormalLagrange) / (h * h)
}
