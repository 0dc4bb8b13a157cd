package physics

import (
	"fmt"
	"reflect"
	"testing"
)

// gridLeaves lays out n unit boxes along a line with the given spacing.
func gridLeaves(n int, spacing float64) []qbvhLeaf {
	leaves := make([]qbvhLeaf, 0, n)
	for i := 0; i < n; i++ {
		x := float64(i) * spacing
		leaves = append(leaves, qbvhLeaf{
			item: Collidable{Id: uint64(i + 1), Index: i},
			aabb: Aabb{Min: Vec3{x, 0, 0}, Max: Vec3{x + 1, 1, 1}},
		})
	}
	return leaves
}

// bruteForcePairs is the reference the tree must agree with.
func bruteForcePairs(leaves []qbvhLeaf) map[[2]int]bool {
	pairs := make(map[[2]int]bool)
	for i := 0; i < len(leaves); i++ {
		for j := i + 1; j < len(leaves); j++ {
			if leaves[i].aabb.Intersects(leaves[j].aabb) {
				pairs[[2]int{i, j}] = true
			}
		}
	}
	return pairs
}

func pairSet(pairs []CandidatePair) map[[2]int]bool {
	set := make(map[[2]int]bool)
	for _, p := range pairs {
		set[[2]int{p.A.Index, p.B.Index}] = true
	}
	return set
}

func TestQbvhEmpty(t *testing.T) {
	tree := newQbvh(nil)
	if pairs := tree.Pairs(); len(pairs) != 0 {
		t.Errorf("empty tree should have no pairs, got %d", len(pairs))
	}
	if leaves := tree.RayLeaves(Vec3{}, Vec3{1, 0, 0}, 100); len(leaves) != 0 {
		t.Errorf("empty tree should have no ray leaves, got %d", len(leaves))
	}
}

func TestQbvhPairsMatchBruteForce(t *testing.T) {
	// Overlapping chain: spacing 0.5 makes each box overlap its neighbors.
	for _, n := range []int{1, 2, 3, 4, 5, 9, 17, 40} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			leaves := gridLeaves(n, 0.5)
			want := bruteForcePairs(leaves)
			got := pairSet(newQbvh(leaves).Pairs())
			if !reflect.DeepEqual(want, got) {
				t.Errorf("pair mismatch: want %v, got %v", want, got)
			}
		})
	}
}

func TestQbvhPairsDisjoint(t *testing.T) {
	leaves := gridLeaves(20, 5)
	if pairs := newQbvh(leaves).Pairs(); len(pairs) != 0 {
		t.Errorf("disjoint boxes should produce no pairs, got %d", len(pairs))
	}
}

func TestQbvhPairsClusters(t *testing.T) {
	// Two dense clusters far apart; no cross-cluster pairs.
	var leaves []qbvhLeaf
	idx := 0
	for c := 0; c < 2; c++ {
		base := float64(c) * 1000
		for i := 0; i < 6; i++ {
			x := base + float64(i)*0.25
			leaves = append(leaves, qbvhLeaf{
				item: Collidable{Id: uint64(idx + 1), Index: idx},
				aabb: Aabb{Min: Vec3{x, 0, 0}, Max: Vec3{x + 1, 1, 1}},
			})
			idx++
		}
	}
	want := bruteForcePairs(leaves)
	got := pairSet(newQbvh(leaves).Pairs())
	if !reflect.DeepEqual(want, got) {
		t.Errorf("pair mismatch: want %d pairs, got %d", len(want), len(got))
	}
	for p := range got {
		if (p[0] < 6) != (p[1] < 6) {
			t.Errorf("cross-cluster pair %v should not exist", p)
		}
	}
}

func TestQbvhPairsOrderedAndDeterministic(t *testing.T) {
	leaves := gridLeaves(15, 0.75)
	first := newQbvh(leaves).Pairs()
	for _, p := range first {
		if p.A.Index >= p.B.Index {
			t.Errorf("pair %v not ordered by index", p)
		}
	}
	leaves2 := gridLeaves(15, 0.75)
	second := newQbvh(leaves2).Pairs()
	if !reflect.DeepEqual(first, second) {
		t.Error("identical input should give identical pair enumeration")
	}
}

func TestQbvhRayLeaves(t *testing.T) {
	leaves := gridLeaves(10, 5)
	tree := newQbvh(leaves)

	// Ray along X at y=0.5 crosses every box within reach.
	hits := tree.RayLeaves(Vec3{-1, 0.5, 0.5}, Vec3{1, 0, 0}, 12)
	if len(hits) != 3 {
		t.Fatalf("expected 3 leaves within t=12, got %d", len(hits))
	}
	for i, h := range hits {
		if h.Index != i {
			t.Errorf("ray leaves should come back in index order: %v", hits)
		}
	}

	// Offset ray misses everything.
	if hits := tree.RayLeaves(Vec3{-1, 10, 0}, Vec3{1, 0, 0}, 100); len(hits) != 0 {
		t.Errorf("offset ray should miss, got %d leaves", len(hits))
	}
}

func TestBroadPhaseIndexesTriggersAfterBodies(t *testing.T) {
	world, err := NewWorld().Build()
	if err != nil {
		t.Fatal(err)
	}
	sphere, _ := SphereCollider(world.Id, 1)
	sphere.Id = 7

	views := []BodyView{
		newBodyView(RigidBody{Id: 1, ColliderId: 7, Rotation: QuatIdent()}, sphere),
		newBodyView(RigidBody{Id: 2, ColliderId: 7, Position: Vec3{0.5, 0, 0}, Rotation: QuatIdent()}, sphere),
	}
	triggers := []triggerState{{
		trigger:  Trigger{Id: 9, Position: Vec3{0, 0.5, 0}, Rotation: QuatIdent(), ColliderId: 7},
		collider: sphere,
	}}

	pairs := broadPhase(world, views, triggers).Pairs()
	if len(pairs) != 3 {
		t.Fatalf("expected 3 candidate pairs, got %d", len(pairs))
	}
	seenTrigger := false
	for _, p := range pairs {
		if p.B.IsTrigger {
			seenTrigger = true
			if p.B.Index != 2 {
				t.Errorf("trigger index should follow body indexes, got %d", p.B.Index)
			}
			if p.B.Id != 9 {
				t.Errorf("trigger collidable should carry the trigger id, got %d", p.B.Id)
			}
		}
		if p.A.IsTrigger {
			t.Errorf("trigger should never be the lower index here: %v", p)
		}
	}
	if !seenTrigger {
		t.Error("expected body-trigger candidate pairs")
	}
}
