package physics

import (
	"errors"
	"fmt"
	"math"
)

type BodyType int

const (
	BodyStatic BodyType = iota
	BodyDynamic
	BodyKinematic
)

func (t BodyType) String() string {
	switch t {
	case BodyStatic:
		return "static"
	case BodyDynamic:
		return "dynamic"
	case BodyKinematic:
		return "kinematic"
	}
	return fmt.Sprintf("bodytype(%d)", int(t))
}

var ErrInvalidBody = errors.New("invalid rigid body")

// Friction holds the static and dynamic Coulomb coefficients of a body's
// material.
type Friction struct {
	StaticCoef  float64
	DynamicCoef float64
}

// Restitution holds the bounciness coefficient of a body's material,
// in [0, 1].
type Restitution struct {
	Coef float64
}

// FrictionCombiner merges the materials of two touching bodies. The default
// is the arithmetic mean per coefficient.
type FrictionCombiner func(a, b Friction) Friction

// RestitutionCombiner merges two restitution coefficients. The default is
// the arithmetic mean.
type RestitutionCombiner func(a, b Restitution) Restitution

func MeanFriction(a, b Friction) Friction {
	return Friction{
		StaticCoef:  (a.StaticCoef + b.StaticCoef) / 2,
		DynamicCoef: (a.DynamicCoef + b.DynamicCoef) / 2,
	}
}

func MeanRestitution(a, b Restitution) Restitution {
	return Restitution{Coef: (a.Coef + b.Coef) / 2}
}

// RigidBody is the persistent body row. Pose, motion and accumulators are
// simulation state; the Previous* and PreSolve* fields are tick scratch that
// rides along in the row so a tick can be replayed from storage.
type RigidBody struct {
	Id      uint64
	WorldId uint64

	Position Vec3
	Rotation Quat

	LinearVelocity  Vec3
	AngularVelocity Vec3

	Force  Vec3
	Torque Vec3

	Mass    float64
	InvMass float64

	Friction    Friction
	Restitution Restitution

	BodyType   BodyType
	ColliderId uint64

	PreviousPosition        Vec3
	PreviousRotation        Quat
	PreSolveLinearVelocity  Vec3
	PreSolveAngularVelocity Vec3
}

func (rb *RigidBody) IsStatic() bool    { return rb.BodyType == BodyStatic }
func (rb *RigidBody) IsDynamic() bool   { return rb.BodyType == BodyDynamic }
func (rb *RigidBody) IsKinematic() bool { return rb.BodyType == BodyKinematic }

// ApplyForce accumulates a force through the center of mass for the next
// substep. No-op on non-dynamic bodies.
func (rb *RigidBody) ApplyForce(force Vec3) {
	if !rb.IsDynamic() {
		return
	}
	rb.Force = rb.Force.Add(force)
}

// ApplyTorque accumulates a torque for the next substep.
func (rb *RigidBody) ApplyTorque(torque Vec3) {
	if !rb.IsDynamic() {
		return
	}
	rb.Torque = rb.Torque.Add(torque)
}

// ApplyForceAtPoint accumulates a force applied at a world-space point,
// splitting it into its linear and torque parts.
func (rb *RigidBody) ApplyForceAtPoint(force, point Vec3) {
	if !rb.IsDynamic() {
		return
	}
	rb.Force = rb.Force.Add(force)
	rb.Torque = rb.Torque.Add(point.Sub(rb.Position).Cross(force))
}

// ApplyLinearImpulse changes the linear velocity immediately: Δv = J/m.
func (rb *RigidBody) ApplyLinearImpulse(impulse Vec3) {
	if !rb.IsDynamic() {
		return
	}
	rb.LinearVelocity = rb.LinearVelocity.Add(impulse.Mul(rb.InvMass))
}

// ApplyImpulseAtPoint changes linear and angular velocity immediately for an
// impulse applied at a world-space point. The collider is needed to resolve
// the body's inertia tensor.
func (rb *RigidBody) ApplyImpulseAtPoint(impulse, point Vec3, collider Collider) {
	if !rb.IsDynamic() {
		return
	}
	rb.ApplyLinearImpulse(impulse)
	invInertia, ok := InvertMat3(collider.InertiaTensor(rb.Mass))
	if !ok {
		return
	}
	r := QuatToMat3(rb.Rotation)
	worldInv := r.Mul3(invInertia).Mul3(r.Transpose())
	rb.AngularVelocity = rb.AngularVelocity.Add(worldInv.Mul3x1(point.Sub(rb.Position).Cross(impulse)))
}

// RigidBodyBuilder assembles a valid RigidBody row.
type RigidBodyBuilder struct {
	body RigidBody
	err  error
}

// NewRigidBody starts a builder for a body in the given world. Defaults:
// dynamic, mass 1, identity rotation, friction 0.5/0.5, restitution 0.
func NewRigidBody(worldId uint64) *RigidBodyBuilder {
	return &RigidBodyBuilder{body: RigidBody{
		WorldId:          worldId,
		Rotation:         QuatIdent(),
		PreviousRotation: QuatIdent(),
		Mass:             1,
		InvMass:          1,
		Friction:         Friction{StaticCoef: 0.5, DynamicCoef: 0.5},
		BodyType:         BodyDynamic,
	}}
}

func (b *RigidBodyBuilder) Position(p Vec3) *RigidBodyBuilder {
	b.body.Position = p
	return b
}

func (b *RigidBodyBuilder) Rotation(q Quat) *RigidBodyBuilder {
	l := q.Len()
	if math.Abs(l-1) > 1e-6 {
		if l < 1e-9 {
			b.fail(fmt.Errorf("%w: zero rotation quaternion", ErrInvalidBody))
			return b
		}
		q = q.Normalize()
	}
	b.body.Rotation = q
	return b
}

func (b *RigidBodyBuilder) LinearVelocity(v Vec3) *RigidBodyBuilder {
	b.body.LinearVelocity = v
	return b
}

func (b *RigidBodyBuilder) AngularVelocity(w Vec3) *RigidBodyBuilder {
	b.body.AngularVelocity = w
	return b
}

func (b *RigidBodyBuilder) Mass(m float64) *RigidBodyBuilder {
	if m < 0 || math.IsNaN(m) {
		b.fail(fmt.Errorf("%w: mass %v must be >= 0", ErrInvalidBody, m))
		return b
	}
	b.body.Mass = m
	return b
}

func (b *RigidBodyBuilder) Friction(f Friction) *RigidBodyBuilder {
	if f.StaticCoef < 0 || f.DynamicCoef < 0 {
		b.fail(fmt.Errorf("%w: friction coefficients %v must be >= 0", ErrInvalidBody, f))
		return b
	}
	b.body.Friction = f
	return b
}

func (b *RigidBodyBuilder) Restitution(r Restitution) *RigidBodyBuilder {
	if r.Coef < 0 || r.Coef > 1 {
		b.fail(fmt.Errorf("%w: restitution %v must be in [0, 1]", ErrInvalidBody, r.Coef))
		return b
	}
	b.body.Restitution = r
	return b
}

func (b *RigidBodyBuilder) BodyType(t BodyType) *RigidBodyBuilder {
	b.body.BodyType = t
	return b
}

func (b *RigidBodyBuilder) Collider(colliderId uint64) *RigidBodyBuilder {
	b.body.ColliderId = colliderId
	return b
}

func (b *RigidBodyBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build validates the row and derives InvMass. Static bodies always get
// InvMass 0 regardless of mass.
func (b *RigidBodyBuilder) Build() (RigidBody, error) {
	if b.err != nil {
		return RigidBody{}, b.err
	}
	body := b.body
	if body.ColliderId == 0 {
		return RigidBody{}, fmt.Errorf("%w: collider reference is required", ErrInvalidBody)
	}
	if body.IsStatic() || body.Mass == 0 {
		body.InvMass = 0
	} else {
		body.InvMass = 1 / body.Mass
	}
	body.PreviousPosition = body.Position
	body.PreviousRotation = body.Rotation
	return body, nil
}
