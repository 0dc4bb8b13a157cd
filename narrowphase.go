package physics

// narrowPhase turns the broad-phase candidate set into penetration
// constraints. Pairs involving a trigger are skipped here; trigger overlap
// is evaluated separately at the end of the tick.
//
// onUnsupported is invoked for shape combinations the catalog cannot answer;
// the pair is then treated as having no contact.
func narrowPhase(world *PhysicsWorld, pairs []CandidatePair, views []BodyView, onUnsupported func(a, b ColliderShape, err error)) []PenetrationConstraint {
	constraints := make([]PenetrationConstraint, 0, len(pairs))
	for _, pair := range pairs {
		if pair.A.IsTrigger || pair.B.IsTrigger {
			continue
		}
		a, b := &views[pair.A.Index], &views[pair.B.Index]
		if !a.dynamic() && !b.dynamic() {
			continue // nothing the solver could move
		}

		contact, ok, err := ShapeContact(a.Collider, a.isometry(), b.Collider, b.isometry(), world.Precision)
		if err != nil {
			onUnsupported(a.Collider.Shape, b.Collider.Shape, err)
			continue
		}
		if !ok || contact.Dist >= 0 {
			continue // separated, or only predicted: no constraint
		}
		constraints = append(constraints, newPenetrationConstraint(a, b, pair.A.Index, pair.B.Index, contact, 0))
	}
	return constraints
}

// updateTriggerOverlaps fills each trigger's tentative membership set from
// the broad-phase candidates, using the bodies' current poses. Pairs of two
// triggers are ignored.
func updateTriggerOverlaps(pairs []CandidatePair, views []BodyView, triggers []triggerState, onUnsupported func(a, b ColliderShape, err error)) {
	for i := range triggers {
		triggers[i].tentative = make(map[uint64]struct{})
	}
	for _, pair := range pairs {
		if pair.A.IsTrigger == pair.B.IsTrigger {
			continue
		}
		trigPair, bodyPair := pair.A, pair.B
		if bodyPair.IsTrigger {
			trigPair, bodyPair = bodyPair, trigPair
		}
		tr := &triggers[trigPair.Index-len(views)]
		body := &views[bodyPair.Index]

		overlap, err := ShapesIntersect(tr.collider, tr.trigger.isometry(), body.Collider, body.isometry())
		if err != nil {
			onUnsupported(tr.collider.Shape, body.Collider.Shape, err)
			continue
		}
		if overlap {
			tr.tentative[body.Id] = struct{}{}
		}
	}
}
