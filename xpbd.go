package physics

import "math"

// The XPBD substep pipeline: integrate under external forces, solve the
// positional contact constraints, rebuild velocities from the pose change,
// then apply velocity-level friction and restitution.

// angularRateWarnThreshold flags substeps where h·|ω| grows past the range
// where first-order quaternion integration stays accurate.
const angularRateWarnThreshold = 0.3

// integrateBodies advances every dynamic body by h under gravity and the
// accumulated external forces, then clears the accumulators. Static and
// kinematic bodies are untouched.
func integrateBodies(world *PhysicsWorld, views []BodyView, h float64, log Logger) {
	warned := false
	for i := range views {
		body := &views[i]
		if !body.dynamic() {
			continue
		}

		body.PreviousPosition = body.Position
		weight := world.Gravity.Mul(body.Mass)
		totalForce := body.Force.Add(weight)

		// v ← v + h·f/m
		body.LinearVelocity = body.LinearVelocity.Add(totalForce.Mul(body.InvMass * h))
		// x ← x + h·v
		body.Position = body.Position.Add(body.LinearVelocity.Mul(h))

		body.PreviousRotation = body.Rotation

		if body.HasInvInertia {
			omega := body.AngularVelocity
			// α = I⁻¹(τ − ω × Iω)
			gyro := omega.Cross(body.InertiaTensor.Mul3x1(omega))
			angularAccel := body.InvInertiaTensor.Mul3x1(body.Torque.Sub(gyro))
			body.AngularVelocity = body.AngularVelocity.Add(angularAccel.Mul(h))
		}

		if !warned && body.AngularVelocity.Len()*h > angularRateWarnThreshold {
			log.Warnf("body %d spins faster than the integrator tracks accurately (h*|w| = %.3f)",
				body.Id, body.AngularVelocity.Len()*h)
			warned = true
		}

		// q ← normalize(q + 0.5·h·(ω,0)·q)
		dq := QuatFromXYZ(body.AngularVelocity, 0).Mul(body.Rotation).Scale(0.5 * h)
		body.Rotation = body.Rotation.Add(dq).Normalize()

		body.Force = Vec3{}
		body.Torque = Vec3{}
	}
}

// solvePositions runs the iterated positional solve over all constraints.
func solvePositions(world *PhysicsWorld, constraints []PenetrationConstraint, views []BodyView, h float64) {
	for iter := 0; iter < world.PositionIterations; iter++ {
		for i := range constraints {
			constraints[i].solvePosition(world, views, h)
		}
	}
}

// recomputeVelocities derives the post-solve velocities from the actual pose
// change over the substep. Non-dynamic bodies get zero velocities.
func recomputeVelocities(views []BodyView, h float64) {
	for i := range views {
		body := &views[i]
		if !body.dynamic() {
			body.LinearVelocity = Vec3{}
			body.AngularVelocity = Vec3{}
			body.PreSolveLinearVelocity = Vec3{}
			body.PreSolveAngularVelocity = Vec3{}
			continue
		}

		body.PreSolveLinearVelocity = body.LinearVelocity
		body.LinearVelocity = body.Position.Sub(body.PreviousPosition).Mul(1 / h)

		body.PreSolveAngularVelocity = body.AngularVelocity
		delta := body.Rotation.Mul(body.PreviousRotation.Inverse()).Normalize()
		body.AngularVelocity = QuatAsRadians(delta).Mul(1 / h)
	}
}

// solveVelocities applies dynamic friction and restitution impulses at every
// contact solved this substep.
func solveVelocities(world *PhysicsWorld, constraints []PenetrationConstraint, views []BodyView, h float64) {
	gravityLen := world.Gravity.Len()
	for ci := range constraints {
		c := &constraints[ci]
		a, b := &views[c.A], &views[c.B]
		n := c.Normal

		_, _, ra, rb := c.anchors(a, b)

		preVelA := contactVelocity(a.PreSolveLinearVelocity, a.PreSolveAngularVelocity, ra)
		preVelB := contactVelocity(b.PreSolveLinearVelocity, b.PreSolveAngularVelocity, rb)
		preSolveNormalVel := n.Dot(preVelA.Sub(preVelB))

		velA := contactVelocity(a.LinearVelocity, a.AngularVelocity, ra)
		velB := contactVelocity(b.LinearVelocity, b.AngularVelocity, rb)
		relVel := velA.Sub(velB)
		normalVel := n.Dot(relVel)
		tangentVel := relVel.Sub(n.Mul(normalVel))

		friction := world.combineFriction(a.Friction, b.Friction).DynamicCoef
		restitution := world.combineRestitution(a.Restitution, b.Restitution).Coef

		frictionImpulse := dynamicFriction(tangentVel, friction, c.normalForce(h), h)
		restitutionImpulse := restitutionCorrection(n, normalVel, preSolveNormalVel, restitution, gravityLen, h)

		deltaV := frictionImpulse.Add(restitutionImpulse)
		deltaVLen := deltaV.Len()
		if deltaVLen <= 1e-12 {
			continue
		}
		dir := deltaV.Mul(1 / deltaVLen)

		wa := a.generalizedInverseMass(ra, dir)
		wb := b.generalizedInverseMass(rb, dir)
		wSum := wa + wb
		if wSum == 0 {
			continue
		}

		p := deltaV.Mul(1 / wSum)
		if a.dynamic() {
			a.LinearVelocity = a.LinearVelocity.Add(p.Mul(a.effectiveInvMass()))
			a.AngularVelocity = a.AngularVelocity.Add(a.effectiveInvInertiaWorld().Mul3x1(ra.Cross(p)))
		}
		if b.dynamic() {
			b.LinearVelocity = b.LinearVelocity.Sub(p.Mul(b.effectiveInvMass()))
			b.AngularVelocity = b.AngularVelocity.Sub(b.effectiveInvInertiaWorld().Mul3x1(rb.Cross(p)))
		}
	}
}

func contactVelocity(linVel, angVel, r Vec3) Vec3 {
	return linVel.Add(angVel.Cross(r))
}

// dynamicFriction computes the friction velocity correction, clamped so it
// never reverses the tangential motion.
func dynamicFriction(tangentVel Vec3, coefficient, normalForce, h float64) Vec3 {
	speed := tangentVel.Len()
	if speed <= 1e-12 {
		return Vec3{}
	}
	dir := tangentVel.Mul(1 / speed)
	return dir.Mul(-math.Min(h*coefficient*normalForce, speed))
}

// restitutionCorrection cancels the residual normal velocity and restores
// the pre-solve approach velocity scaled by the restitution coefficient.
// Slow contacts get zero restitution to avoid jitter.
func restitutionCorrection(n Vec3, normalVel, preSolveNormalVel, coefficient, gravityLen, h float64) Vec3 {
	if math.Abs(normalVel) <= 2*gravityLen*h {
		coefficient = 0
	}
	return n.Mul(-normalVel + math.Min(-coefficient*preSolveNormalVel, 0))
}
