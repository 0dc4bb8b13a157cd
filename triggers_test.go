package physics

import (
	"testing"
)

func addTrigger(t *testing.T, store *MemoryStore, builder *TriggerBuilder) Trigger {
	t.Helper()
	trigger, err := builder.Build()
	if err != nil {
		t.Fatal(err)
	}
	return store.InsertTrigger(trigger)
}

func membershipKeys(store *MemoryStore, worldId uint64) []MembershipKey {
	var keys []MembershipKey
	store.EachTriggerMembership(worldId, func(m TriggerMembership) bool {
		keys = append(keys, m.Key())
		return true
	})
	return keys
}

func TestTriggerBuilderValidation(t *testing.T) {
	if _, err := NewTrigger(1).Build(); err == nil {
		t.Error("trigger without collider should fail to build")
	}
	trigger, err := NewTrigger(1).Position(Vec3{1, 2, 3}).Collider(7).Build()
	if err != nil {
		t.Fatal(err)
	}
	if trigger.Rotation != QuatIdent() {
		t.Error("default rotation should be identity")
	}
	if trigger.Position != (Vec3{1, 2, 3}) {
		t.Errorf("position not kept: %v", trigger.Position)
	}
}

// Scenario: a sphere falls through a cuboid trigger volume. Exactly one
// enter event and exactly one exit event fire, on the right ticks.
func TestTriggerEnterExit(t *testing.T) {
	// The dilation absorbs per-tick travel so the broad phase sees the
	// trigger the tick the overlap starts.
	engine, store, world := newTestScene(t, func(b *WorldBuilder) {
		b.TicksPerSecond(60).SubStep(20).QbvhDilation(1)
	})
	sphereCol := addSphereCollider(t, store, world.Id, 1)
	boxCol := addCuboidCollider(t, store, world.Id, Vec3{10, 10, 10})

	body := addBody(t, store, NewRigidBody(world.Id).Collider(sphereCol.Id).Mass(1).Position(Vec3{0, 50, 0}))
	trigger := addTrigger(t, store, NewTrigger(world.Id).Collider(boxCol.Id))

	var added, removed int
	var enterTick, exitTick int
	for tick := 1; tick <= 250; tick++ {
		events, err := engine.StepWorldEvents(world, nil)
		if err != nil {
			t.Fatal(err)
		}
		for _, m := range events.Added {
			if m.TriggerId != trigger.Id || m.BodyId != body.Id {
				t.Errorf("unexpected added membership %+v", m)
			}
			added++
			enterTick = tick
		}
		for _, m := range events.Removed {
			if m.TriggerId != trigger.Id || m.BodyId != body.Id {
				t.Errorf("unexpected removed membership %+v", m)
			}
			removed++
			exitTick = tick
		}
	}

	if added != 1 {
		t.Fatalf("expected exactly one enter event, got %d", added)
	}
	if removed != 1 {
		t.Fatalf("expected exactly one exit event, got %d", removed)
	}
	if exitTick <= enterTick {
		t.Errorf("exit tick %d should follow enter tick %d", exitTick, enterTick)
	}

	// Enter fires on the first tick the sphere-cuboid intersection holds at
	// tick end: falling from 50, the surface-to-surface overlap starts at
	// y <= 11, which free fall reaches just before the three second mark.
	if enterTick < 150 || enterTick > 190 {
		t.Errorf("enter tick %d outside the plausible window", enterTick)
	}
}

// Membership at tick end must equal the instantaneous intersection set.
func TestTriggerMembershipMatchesIntersection(t *testing.T) {
	engine, store, world := newTestScene(t, func(b *WorldBuilder) {
		b.Gravity(Vec3{})
	})
	sphereCol := addSphereCollider(t, store, world.Id, 1)
	boxCol := addCuboidCollider(t, store, world.Id, Vec3{5, 5, 5})

	inside := addBody(t, store, NewRigidBody(world.Id).Collider(sphereCol.Id).Mass(1).Position(Vec3{0, 0, 0}))
	nearEdge := addBody(t, store, NewRigidBody(world.Id).Collider(sphereCol.Id).Mass(1).Position(Vec3{5.9, 0, 0}))
	outside := addBody(t, store, NewRigidBody(world.Id).Collider(sphereCol.Id).Mass(1).Position(Vec3{20, 0, 0}))
	trigger := addTrigger(t, store, NewTrigger(world.Id).Collider(boxCol.Id))

	stepN(t, engine, world, 1)

	keys := membershipKeys(store, world.Id)
	want := []MembershipKey{
		{TriggerId: trigger.Id, BodyId: inside.Id},
		{TriggerId: trigger.Id, BodyId: nearEdge.Id},
	}
	if len(keys) != len(want) {
		t.Fatalf("membership = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("membership[%d] = %v, want %v", i, keys[i], want[i])
		}
	}
	_ = outside

	// Stable across further ticks while nothing moves.
	events, err := engine.StepWorldEvents(world, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(events.Added) != 0 || len(events.Removed) != 0 {
		t.Errorf("steady state should produce no events, got %+v", events)
	}
}

// Deleting a body while it is inside a trigger produces a removed diff on
// the next tick.
func TestTriggerRemovedOnBodyDeletion(t *testing.T) {
	engine, store, world := newTestScene(t, func(b *WorldBuilder) {
		b.Gravity(Vec3{})
	})
	sphereCol := addSphereCollider(t, store, world.Id, 1)
	boxCol := addCuboidCollider(t, store, world.Id, Vec3{5, 5, 5})

	body := addBody(t, store, NewRigidBody(world.Id).Collider(sphereCol.Id).Mass(1))
	addTrigger(t, store, NewTrigger(world.Id).Collider(boxCol.Id))

	stepN(t, engine, world, 1)
	if len(membershipKeys(store, world.Id)) != 1 {
		t.Fatal("body should be inside the trigger")
	}

	if err := store.DeleteBody(body.Id); err != nil {
		t.Fatal(err)
	}
	events, err := engine.StepWorldEvents(world, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(events.Removed) != 1 || events.Removed[0].BodyId != body.Id {
		t.Errorf("expected one removed event for the deleted body, got %+v", events)
	}
	if len(membershipKeys(store, world.Id)) != 0 {
		t.Error("membership table should be empty after the deletion diff")
	}
}

// Kinematic bodies count for trigger overlap; trigger-trigger pairs do not.
func TestTriggerOverlapKinematicAndTriggerPairs(t *testing.T) {
	engine, store, world := newTestScene(t, func(b *WorldBuilder) {
		b.Gravity(Vec3{})
	})
	sphereCol := addSphereCollider(t, store, world.Id, 1)
	boxCol := addCuboidCollider(t, store, world.Id, Vec3{5, 5, 5})

	kin := addBody(t, store, NewRigidBody(world.Id).Collider(sphereCol.Id).
		BodyType(BodyKinematic).Position(Vec3{100, 0, 0}))
	trigger := addTrigger(t, store, NewTrigger(world.Id).Collider(boxCol.Id))
	// A second trigger overlapping the first: no membership between them.
	addTrigger(t, store, NewTrigger(world.Id).Collider(boxCol.Id).Position(Vec3{1, 0, 0}))

	// Feed the kinematic body into the trigger volume.
	feed := []KinematicState{{BodyId: kin.Id, Position: Vec3{0, 0, 0}, Rotation: QuatIdent()}}
	if err := engine.StepWorld(world, feed); err != nil {
		t.Fatal(err)
	}

	keys := membershipKeys(store, world.Id)
	for _, key := range keys {
		if key.BodyId != kin.Id {
			t.Errorf("only the kinematic body may be a member, got %+v", key)
		}
	}
	found := false
	for _, key := range keys {
		if key.TriggerId == trigger.Id && key.BodyId == kin.Id {
			found = true
		}
	}
	if !found {
		t.Error("kinematic body inside the trigger should be a member")
	}
}

func TestTriggerStateDiff(t *testing.T) {
	ts := &triggerState{
		current:   map[uint64]struct{}{1: {}, 2: {}, 3: {}},
		tentative: map[uint64]struct{}{2: {}, 3: {}, 9: {}, 4: {}},
	}
	added, removed := ts.diff()
	if len(added) != 2 || added[0] != 4 || added[1] != 9 {
		t.Errorf("added = %v, want [4 9]", added)
	}
	if len(removed) != 1 || removed[0] != 1 {
		t.Errorf("removed = %v, want [1]", removed)
	}
	if _, ok := ts.current[9]; !ok {
		t.Error("diff should promote tentative to current")
	}
}
