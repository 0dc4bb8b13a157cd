package physics

import (
	"testing"
	"time"
)

func TestSchedulerStepsWorld(t *testing.T) {
	engine, store, world := newTestScene(t, func(b *WorldBuilder) {
		b.TicksPerSecond(200).SubStep(2)
	})
	sphere := addSphereCollider(t, store, world.Id, 1)
	body := addBody(t, store, NewRigidBody(world.Id).Collider(sphere.Id).Mass(1).Position(Vec3{0, 100, 0}))

	sched := NewScheduler(engine)
	sched.Start(world, nil)
	defer sched.StopAll()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, _ := store.Body(body.Id)
		if got.Position.Y() < 99.9 {
			return // the scheduler ticked the world
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("scheduler never advanced the world")
}

func TestSchedulerFeedsKinematics(t *testing.T) {
	engine, store, world := newTestScene(t, func(b *WorldBuilder) {
		b.TicksPerSecond(200).SubStep(2)
	})
	sphere := addSphereCollider(t, store, world.Id, 1)
	kin := addBody(t, store, NewRigidBody(world.Id).Collider(sphere.Id).BodyType(BodyKinematic))

	sched := NewScheduler(engine)
	sched.Start(world, func() []KinematicState {
		return []KinematicState{{BodyId: kin.Id, Position: Vec3{3, 3, 3}, Rotation: QuatIdent()}}
	})
	defer sched.StopAll()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, _ := store.Body(kin.Id)
		if got.Position == (Vec3{3, 3, 3}) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("scheduler never applied the kinematic feed")
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	engine, _, world := newTestScene(t, nil)
	sched := NewScheduler(engine)

	sched.Start(world, nil)
	sched.Start(world, nil) // double start is a no-op
	sched.Stop(world.Id)
	sched.Stop(world.Id) // double stop too
	sched.StopAll()
}
