package physics

import (
	"math"
	"testing"
)

// Scenario: three spheres along a ray come back ordered by distance.
func TestRaycastOrdering(t *testing.T) {
	engine, store, world := newTestScene(t, nil)
	sphere := addSphereCollider(t, store, world.Id, 1)

	ids := make(map[float64]uint64)
	for _, x := range []float64{5, 10, 15} {
		b := addBody(t, store, NewRigidBody(world.Id).Collider(sphere.Id).
			BodyType(BodyStatic).Position(Vec3{x, 0, 0}))
		ids[x] = b.Id
	}

	hits, err := engine.RaycastAll(world, Vec3{0, 0, 0}, Vec3{1, 0, 0}, 20, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	wantT := []float64{4, 9, 14}
	wantId := []uint64{ids[5], ids[10], ids[15]}
	for i, hit := range hits {
		if math.Abs(hit.T-wantT[i]) > 1e-9 {
			t.Errorf("hit %d at t=%v, want %v", i, hit.T, wantT[i])
		}
		if hit.BodyId != wantId[i] {
			t.Errorf("hit %d body %d, want %d", i, hit.BodyId, wantId[i])
		}
		if !vecNear(hit.Normal, Vec3{-1, 0, 0}, 1e-9) {
			t.Errorf("hit %d normal %v, want -X", i, hit.Normal)
		}
	}
}

func TestRaycastMaxTFiltersHits(t *testing.T) {
	engine, store, world := newTestScene(t, nil)
	sphere := addSphereCollider(t, store, world.Id, 1)
	for _, x := range []float64{5, 10, 15} {
		addBody(t, store, NewRigidBody(world.Id).Collider(sphere.Id).
			BodyType(BodyStatic).Position(Vec3{x, 0, 0}))
	}

	hits, err := engine.RaycastAll(world, Vec3{0, 0, 0}, Vec3{1, 0, 0}, 10, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Errorf("expected 2 hits within t=10, got %d", len(hits))
	}
}

func TestRaycastZeroDirection(t *testing.T) {
	engine, store, world := newTestScene(t, nil)
	sphere := addSphereCollider(t, store, world.Id, 1)
	addBody(t, store, NewRigidBody(world.Id).Collider(sphere.Id).BodyType(BodyStatic))

	hits, err := engine.RaycastAll(world, Vec3{-5, 0, 0}, Vec3{}, 100, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("zero direction should return no hits, got %d", len(hits))
	}
}

func TestRaycastSkipsTriggers(t *testing.T) {
	engine, store, world := newTestScene(t, nil)
	box := addCuboidCollider(t, store, world.Id, Vec3{1, 1, 1})
	sphere := addSphereCollider(t, store, world.Id, 1)

	addTrigger(t, store, NewTrigger(world.Id).Position(Vec3{5, 0, 0}).Collider(box.Id))
	body := addBody(t, store, NewRigidBody(world.Id).Collider(sphere.Id).
		BodyType(BodyStatic).Position(Vec3{10, 0, 0}))

	hits, err := engine.RaycastAll(world, Vec3{0, 0, 0}, Vec3{1, 0, 0}, 20, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].BodyId != body.Id {
		t.Errorf("ray should pass through triggers and hit the body, got %+v", hits)
	}
}

func TestRaySphereSolidInside(t *testing.T) {
	sphere := Collider{Shape: ShapeSphere, Radius: 2}
	ray := Ray{Origin: Vec3{0, 0, 0}, Dir: Vec3{1, 0, 0}}

	t1, _, ok, err := shapeRayHit(sphere, identAt(Vec3{}), ray, 10, true)
	if err != nil || !ok {
		t.Fatalf("solid cast from inside should hit, ok=%v err=%v", ok, err)
	}
	if t1 != 0 {
		t.Errorf("solid inside hit should be t=0, got %v", t1)
	}

	t2, n2, ok, _ := shapeRayHit(sphere, identAt(Vec3{}), ray, 10, false)
	if !ok {
		t.Fatal("hollow cast from inside should hit the far surface")
	}
	if math.Abs(t2-2) > 1e-12 {
		t.Errorf("expected exit at t=2, got %v", t2)
	}
	if !vecNear(n2, Vec3{1, 0, 0}, 1e-12) {
		t.Errorf("exit normal should face outward, got %v", n2)
	}
}

func TestRayCuboid(t *testing.T) {
	box := Collider{Shape: ShapeCuboid, HalfExtents: Vec3{1, 2, 3}}
	iso := identAt(Vec3{10, 0, 0})

	tHit, n, ok, _ := shapeRayHit(box, iso, Ray{Origin: Vec3{0, 0, 0}, Dir: Vec3{1, 0, 0}}, 20, true)
	if !ok {
		t.Fatal("ray should hit the box")
	}
	if math.Abs(tHit-9) > 1e-12 {
		t.Errorf("expected entry at t=9, got %v", tHit)
	}
	if !vecNear(n, Vec3{-1, 0, 0}, 1e-12) {
		t.Errorf("entry normal should face the ray, got %v", n)
	}

	// Parallel ray outside a slab misses.
	_, _, ok, _ = shapeRayHit(box, iso, Ray{Origin: Vec3{0, 5, 0}, Dir: Vec3{1, 0, 0}}, 20, true)
	if ok {
		t.Error("parallel ray outside the Y slab should miss")
	}

	// From inside, solid reports t=0.
	tIn, _, ok, _ := shapeRayHit(box, iso, Ray{Origin: Vec3{10, 0, 0}, Dir: Vec3{1, 0, 0}}, 20, true)
	if !ok || tIn != 0 {
		t.Errorf("solid inside cuboid should hit at t=0, ok=%v t=%v", ok, tIn)
	}
}

func TestRayHalfSpace(t *testing.T) {
	plane := Collider{Shape: ShapePlane, Normal: Vec3{0, 1, 0}}

	tHit, n, ok, _ := shapeRayHit(plane, identAt(Vec3{}), Ray{Origin: Vec3{0, 5, 0}, Dir: Vec3{0, -1, 0}}, 10, true)
	if !ok || math.Abs(tHit-5) > 1e-12 {
		t.Fatalf("expected plane hit at t=5, ok=%v t=%v", ok, tHit)
	}
	if !vecNear(n, Vec3{0, 1, 0}, 1e-12) {
		t.Errorf("normal should be the plane normal, got %v", n)
	}

	// Inside the half-space, solid reports t=0.
	tIn, _, ok, _ := shapeRayHit(plane, identAt(Vec3{}), Ray{Origin: Vec3{0, -1, 0}, Dir: Vec3{0, -1, 0}}, 10, true)
	if !ok || tIn != 0 {
		t.Errorf("solid inside half-space should hit at t=0, ok=%v t=%v", ok, tIn)
	}

	// Receding ray above the surface misses.
	_, _, ok, _ = shapeRayHit(plane, identAt(Vec3{}), Ray{Origin: Vec3{0, 5, 0}, Dir: Vec3{0, 1, 0}}, 10, true)
	if ok {
		t.Error("ray moving away from the half-space should miss")
	}
}

// Ray parameters scale with the direction length rather than assuming a unit
// direction.
func TestRayDirectionScaling(t *testing.T) {
	sphere := Collider{Shape: ShapeSphere, Radius: 1}
	tHit, _, ok, _ := shapeRayHit(sphere, identAt(Vec3{10, 0, 0}), Ray{Origin: Vec3{0, 0, 0}, Dir: Vec3{2, 0, 0}}, 10, true)
	if !ok {
		t.Fatal("scaled ray should hit")
	}
	if math.Abs(tHit-4.5) > 1e-12 {
		t.Errorf("expected t=4.5 with a length-2 direction, got %v", tHit)
	}
}
