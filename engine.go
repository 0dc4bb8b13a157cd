package physics

import (
	"errors"
	"fmt"
	"sync"
)

var ErrNilWorld = errors.New("nil world")

// Engine drives simulation ticks against a RowStore. One Engine can step
// many worlds, including concurrently: all per-tick state lives in local
// buffers and the store serializes writes per world.
type Engine struct {
	store RowStore
	log   Logger

	mu                sync.Mutex
	missingColliders  map[uint64]struct{}
	unsupportedShapes map[[2]ColliderShape]struct{}
}

type EngineOption func(*Engine)

// WithLogger replaces the default no-op logger. A nil logger keeps the
// default.
func WithLogger(log Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

func NewEngine(store RowStore, opts ...EngineOption) *Engine {
	e := &Engine{
		store:             store,
		log:               NewNopLogger(),
		missingColliders:  make(map[uint64]struct{}),
		unsupportedShapes: make(map[[2]ColliderShape]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Logger returns the engine's logger, never nil.
func (e *Engine) Logger() Logger {
	return e.log
}

// warnMissingCollider logs an unresolvable collider reference once per body.
func (e *Engine) warnMissingCollider(bodyId, colliderId uint64) {
	e.mu.Lock()
	_, seen := e.missingColliders[bodyId]
	e.missingColliders[bodyId] = struct{}{}
	e.mu.Unlock()
	if !seen {
		e.log.Warnf("entity %d references missing collider %d, dropped for this tick", bodyId, colliderId)
	}
}

// warnUnsupportedPair logs an unanswerable shape combination once per kind.
func (e *Engine) warnUnsupportedPair(a, b ColliderShape, err error) {
	key := [2]ColliderShape{a, b}
	e.mu.Lock()
	_, seen := e.unsupportedShapes[key]
	e.unsupportedShapes[key] = struct{}{}
	e.mu.Unlock()
	if !seen {
		e.log.Warnf("contact query %v vs %v unsupported, treated as no contact: %v", a, b, err)
	}
}

// loadColliders builds the tick-local collider map of one world.
func (e *Engine) loadColliders(worldId uint64) map[uint64]Collider {
	colliders := make(map[uint64]Collider)
	e.store.EachCollider(worldId, func(c Collider) bool {
		colliders[c.Id] = c
		return true
	})
	return colliders
}

// loadBodies snapshots the body rows of one world in id order.
func (e *Engine) loadBodies(worldId uint64) []RigidBody {
	var bodies []RigidBody
	e.store.EachBody(worldId, func(b RigidBody) bool {
		bodies = append(bodies, b)
		return true
	})
	return bodies
}

// loadTriggers snapshots trigger rows and their current memberships.
// Triggers referencing a missing collider are dropped like bodies are.
func (e *Engine) loadTriggers(worldId uint64, colliders map[uint64]Collider) []triggerState {
	var triggers []triggerState
	e.store.EachTrigger(worldId, func(t Trigger) bool {
		collider, ok := colliders[t.ColliderId]
		if !ok {
			e.warnMissingCollider(t.Id, t.ColliderId)
			return true
		}
		triggers = append(triggers, triggerState{
			trigger:  t,
			collider: collider,
			current:  make(map[uint64]struct{}),
		})
		return true
	})

	byId := make(map[uint64]*triggerState, len(triggers))
	for i := range triggers {
		byId[triggers[i].trigger.Id] = &triggers[i]
	}
	e.store.EachTriggerMembership(worldId, func(m TriggerMembership) bool {
		if ts, ok := byId[m.TriggerId]; ok {
			ts.current[m.BodyId] = struct{}{}
		}
		return true
	})
	return triggers
}

// StepWorld executes one tick of the world: load, simulate, diff triggers,
// commit. It either commits the whole tick or, on a store error, leaves the
// world untouched and returns the error.
func (e *Engine) StepWorld(world *PhysicsWorld, kinematics []KinematicState) error {
	if world == nil {
		return ErrNilWorld
	}
	trace := newTrace(world.DebugTime)
	tick := startSpan(e.log, world.DebugTime, trace, fmt.Sprintf("step_world_%d", world.Id))
	defer tick.end()

	colliders := e.loadColliders(world.Id)
	views := buildBodyViews(e.loadBodies(world.Id), colliders, e.warnMissingCollider)
	triggers := e.loadTriggers(world.Id, colliders)

	syncKinematicBodies(views, kinematics)

	span := startSpan(e.log, world.DebugTime, trace, "broad_phase")
	tree := broadPhase(world, views, triggers)
	pairs := tree.Pairs()
	span.end()

	if world.Debug {
		e.log.Debugf("world %d: %d bodies, %d triggers, %d candidate pairs",
			world.Id, len(views), len(triggers), len(pairs))
	}

	h := world.SubStepTime()
	span = startSpan(e.log, world.DebugTime, trace, "substeps")
	for s := 0; s < world.SubStep; s++ {
		constraints := narrowPhase(world, pairs, views, e.warnUnsupportedPair)
		integrateBodies(world, views, h, e.log)
		solvePositions(world, constraints, views, h)
		recomputeVelocities(views, h)
		solveVelocities(world, constraints, views, h)

		if world.Debug {
			e.log.Debugf("world %d substep %d: %d constraints", world.Id, s, len(constraints))
		}
	}
	span.end()

	span = startSpan(e.log, world.DebugTime, trace, "triggers")
	updateTriggerOverlaps(pairs, views, triggers, e.warnUnsupportedPair)
	writes := e.collectWrites(world, views, triggers)
	span.end()

	if writes.empty() {
		return nil
	}
	if err := e.store.ApplyTick(world.Id, writes); err != nil {
		return fmt.Errorf("commit tick for world %d: %w", world.Id, err)
	}
	return nil
}

// collectWrites buffers dirty body rows and trigger membership diffs for the
// atomic end-of-tick commit.
func (e *Engine) collectWrites(world *PhysicsWorld, views []BodyView, triggers []triggerState) TickWrites {
	var writes TickWrites
	for i := range views {
		v := &views[i]
		if v.dirty() {
			writes.BodyUpdates = append(writes.BodyUpdates, v.RigidBody)
		}
	}
	for i := range triggers {
		ts := &triggers[i]
		added, removed := ts.diff()
		if world.DebugTriggers && (len(added) > 0 || len(removed) > 0) {
			e.log.Debugf("trigger %d: added %v, removed %v", ts.trigger.Id, added, removed)
		}
		for _, bodyId := range added {
			writes.MembershipInserts = append(writes.MembershipInserts, TriggerMembership{
				TriggerId: ts.trigger.Id,
				WorldId:   world.Id,
				BodyId:    bodyId,
			})
		}
		for _, bodyId := range removed {
			writes.MembershipDeletes = append(writes.MembershipDeletes, MembershipKey{
				TriggerId: ts.trigger.Id,
				BodyId:    bodyId,
			})
		}
	}
	return writes
}

// StepWorldEvents runs StepWorld and additionally returns the trigger
// membership diff of the tick, for hosts that consume overlap events
// directly instead of watching the membership table.
func (e *Engine) StepWorldEvents(world *PhysicsWorld, kinematics []KinematicState) (TriggerEvents, error) {
	if world == nil {
		return TriggerEvents{}, ErrNilWorld
	}
	before := e.membershipSnapshot(world.Id)
	if err := e.StepWorld(world, kinematics); err != nil {
		return TriggerEvents{}, err
	}
	after := e.membershipSnapshot(world.Id)

	var events TriggerEvents
	for key, m := range after {
		if _, ok := before[key]; !ok {
			events.Added = append(events.Added, m)
		}
	}
	for key, m := range before {
		if _, ok := after[key]; !ok {
			events.Removed = append(events.Removed, m)
		}
	}
	sortMemberships(events.Added)
	sortMemberships(events.Removed)
	return events, nil
}

func (e *Engine) membershipSnapshot(worldId uint64) map[MembershipKey]TriggerMembership {
	snapshot := make(map[MembershipKey]TriggerMembership)
	e.store.EachTriggerMembership(worldId, func(m TriggerMembership) bool {
		snapshot[m.Key()] = m
		return true
	})
	return snapshot
}

// RaycastAll casts a ray through a world and returns every body hit within
// maxT, ordered by ascending hit parameter. A zero direction yields no hits.
// Trigger volumes are sensors and do not occlude rays.
func (e *Engine) RaycastAll(world *PhysicsWorld, origin, dir Vec3, maxT float64, solid bool) ([]RayHit, error) {
	if world == nil {
		return nil, ErrNilWorld
	}
	if dir.Dot(dir) < normalizeEpsilon || maxT < 0 {
		return nil, nil
	}

	colliders := e.loadColliders(world.Id)
	views := buildBodyViews(e.loadBodies(world.Id), colliders, e.warnMissingCollider)
	tree := broadPhase(world, views, nil)

	ray := Ray{Origin: origin, Dir: dir}
	var hits []RayHit
	for _, item := range tree.RayLeaves(origin, dir, maxT) {
		v := &views[item.Index]
		t, normal, ok, err := shapeRayHit(v.Collider, v.isometry(), ray, maxT, solid)
		if err != nil {
			e.warnUnsupportedPair(v.Collider.Shape, v.Collider.Shape, err)
			continue
		}
		if !ok {
			continue
		}
		hits = append(hits, RayHit{BodyId: v.Id, T: t, Point: ray.At(t), Normal: normal})
	}
	sortHits(hits)
	return hits, nil
}
