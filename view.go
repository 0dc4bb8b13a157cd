package physics

import "sort"

// KinematicState is one entry of the external kinematic feed.
type KinematicState struct {
	BodyId   uint64
	Position Vec3
	Rotation Quat
}

// BodyView is the tick-local runtime view of a body row: the row itself plus
// the resolved collider and the derived inertia. Views are rebuilt every tick
// and never persisted.
type BodyView struct {
	RigidBody

	Collider         Collider
	InertiaTensor    Mat3
	InvInertiaTensor Mat3
	HasInvInertia    bool

	// effectiveType differs from the row's BodyType when a zero-mass
	// dynamic body is demoted to static for the tick.
	effectiveType BodyType

	loadedPosition Vec3
	loadedRotation Quat
}

func newBodyView(body RigidBody, collider Collider) BodyView {
	inertia := collider.InertiaTensor(body.Mass)
	inv, ok := InvertMat3(inertia)

	effective := body.BodyType
	if body.BodyType == BodyDynamic && body.Mass == 0 {
		effective = BodyStatic
	}

	return BodyView{
		RigidBody:        body,
		Collider:         collider,
		InertiaTensor:    inertia,
		InvInertiaTensor: inv,
		HasInvInertia:    ok,
		effectiveType:    effective,
		loadedPosition:   body.Position,
		loadedRotation:   body.Rotation,
	}
}

func (v *BodyView) isometry() Isometry {
	return Isometry{Position: v.Position, Rotation: v.Rotation}
}

// dynamic reports whether the solver may move this body this tick.
func (v *BodyView) dynamic() bool {
	return v.effectiveType == BodyDynamic
}

// dirty reports whether the pose changed versus the loaded row.
func (v *BodyView) dirty() bool {
	return v.Position != v.loadedPosition || v.Rotation != v.loadedRotation
}

// effectiveInvMass is zero for anything the solver must not move.
func (v *BodyView) effectiveInvMass() float64 {
	if !v.dynamic() {
		return 0
	}
	return v.InvMass
}

// effectiveInvInertiaWorld returns R·I⁻¹·Rᵀ, or the zero matrix for bodies
// with singular inertia or that the solver must not rotate.
func (v *BodyView) effectiveInvInertiaWorld() Mat3 {
	if !v.dynamic() || !v.HasInvInertia {
		return Mat3{}
	}
	r := QuatToMat3(v.Rotation)
	return r.Mul3(v.InvInertiaTensor).Mul3(r.Transpose())
}

// generalizedInverseMass implements w = 1/m + (r×n)·I⁻¹·(r×n) with the
// singular-inertia case contributing zero, not skipping the constraint.
func (v *BodyView) generalizedInverseMass(r, n Vec3) float64 {
	if !v.dynamic() {
		return 0
	}
	rxn := r.Cross(n)
	return v.InvMass + rxn.Dot(v.effectiveInvInertiaWorld().Mul3x1(rxn))
}

// buildBodyViews hydrates views for every body whose collider resolves,
// sorted by body id. Bodies with an unresolvable collider are dropped for
// the tick and reported through onMissingCollider.
func buildBodyViews(bodies []RigidBody, colliders map[uint64]Collider, onMissingCollider func(bodyId, colliderId uint64)) []BodyView {
	views := make([]BodyView, 0, len(bodies))
	for _, body := range bodies {
		collider, ok := colliders[body.ColliderId]
		if !ok {
			onMissingCollider(body.Id, body.ColliderId)
			continue
		}
		views = append(views, newBodyView(body, collider))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Id < views[j].Id })
	return views
}

// syncKinematicBodies overwrites the pose of kinematic bodies from the feed.
// Duplicate feed entries are last-write-wins; unknown ids are ignored.
func syncKinematicBodies(views []BodyView, feed []KinematicState) {
	if len(feed) == 0 {
		return
	}
	poses := make(map[uint64]KinematicState, len(feed))
	for _, k := range feed {
		poses[k.BodyId] = k
	}
	for i := range views {
		v := &views[i]
		if !v.IsKinematic() {
			continue
		}
		k, ok := poses[v.Id]
		if !ok {
			continue
		}
		v.Position = k.Position
		v.Rotation = k.Rotation
	}
}
