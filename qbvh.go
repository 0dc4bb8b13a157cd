package physics

import (
	"math"
	"sort"
)

// The broad phase is a quaternary bounding-volume hierarchy rebuilt from
// scratch every tick over the loosened AABBs of all bodies and triggers.
// Rebuilding beats incremental refitting here: bodies move freely, the
// population is bounded, and the build is a handful of sorts.

// Collidable identifies one leaf of the tree: a body or a trigger, with its
// index into the tick's combined view ordering.
type Collidable struct {
	Id        uint64
	Index     int
	IsTrigger bool
}

// CandidatePair is an unordered broad-phase pair, stored with the smaller
// index first.
type CandidatePair struct {
	A Collidable
	B Collidable
}

type qbvhLeaf struct {
	item Collidable
	aabb Aabb
}

// qbvhNode has up to four children. Leaf nodes reference up to four leaves
// through the same child slots, distinguished by the leaf flag.
type qbvhNode struct {
	aabb     Aabb
	children [4]int32
	leaf     bool
	count    int8
}

type Qbvh struct {
	leaves []qbvhLeaf
	nodes  []qbvhNode
	root   int32
}

const qbvhNoChild = int32(-1)

// newQbvh builds the tree. Leaf order, splits and traversal are all
// deterministic for a fixed input ordering.
func newQbvh(leaves []qbvhLeaf) *Qbvh {
	t := &Qbvh{leaves: leaves, root: qbvhNoChild}
	if len(leaves) == 0 {
		return t
	}
	indices := make([]int32, len(leaves))
	for i := range indices {
		indices[i] = int32(i)
	}
	t.root = t.build(indices)
	return t
}

func (t *Qbvh) build(indices []int32) int32 {
	if len(indices) <= 4 {
		node := qbvhNode{leaf: true, count: int8(len(indices)), children: [4]int32{qbvhNoChild, qbvhNoChild, qbvhNoChild, qbvhNoChild}}
		node.aabb = t.leaves[indices[0]].aabb
		for i, li := range indices {
			node.children[i] = li
			node.aabb = node.aabb.Merged(t.leaves[li].aabb)
		}
		t.nodes = append(t.nodes, node)
		return int32(len(t.nodes) - 1)
	}

	halves := t.splitLongestAxis(indices)
	var groups [][]int32
	for _, half := range halves {
		if len(half) > 1 {
			quarters := t.splitLongestAxis(half)
			groups = append(groups, quarters[0], quarters[1])
		} else {
			groups = append(groups, half)
		}
	}

	node := qbvhNode{children: [4]int32{qbvhNoChild, qbvhNoChild, qbvhNoChild, qbvhNoChild}}
	first := true
	slot := 0
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		child := t.build(g)
		node.children[slot] = child
		slot++
		if first {
			node.aabb = t.nodes[child].aabb
			first = false
		} else {
			node.aabb = node.aabb.Merged(t.nodes[child].aabb)
		}
	}
	node.count = int8(slot)
	t.nodes = append(t.nodes, node)
	return int32(len(t.nodes) - 1)
}

// splitLongestAxis partitions indices at the median of leaf centers along
// the axis with the widest center spread. Ties fall back to leaf order, which
// keeps the build deterministic.
func (t *Qbvh) splitLongestAxis(indices []int32) [2][]int32 {
	lo := Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, li := range indices {
		c := t.leaves[li].aabb.Center()
		for k := 0; k < 3; k++ {
			lo[k] = math.Min(lo[k], c[k])
			hi[k] = math.Max(hi[k], c[k])
		}
	}
	axis := 0
	spread := hi[0] - lo[0]
	for k := 1; k < 3; k++ {
		if s := hi[k] - lo[k]; s > spread {
			axis = k
			spread = s
		}
	}

	sort.Slice(indices, func(i, j int) bool {
		ci := t.leaves[indices[i]].aabb.Center()[axis]
		cj := t.leaves[indices[j]].aabb.Center()[axis]
		if ci != cj {
			return ci < cj
		}
		return indices[i] < indices[j]
	})
	mid := len(indices) / 2
	return [2][]int32{indices[:mid], indices[mid:]}
}

// Pairs runs the self-vs-self simultaneous traversal and returns every
// deduplicated leaf pair whose AABBs intersect, ordered by (A.Index, B.Index)
// with A.Index < B.Index.
func (t *Qbvh) Pairs() []CandidatePair {
	if t.root == qbvhNoChild {
		return nil
	}
	var pairs []CandidatePair

	emit := func(la, lb qbvhLeaf) {
		if la.item.Index == lb.item.Index {
			return
		}
		if !la.aabb.Intersects(lb.aabb) {
			return
		}
		if la.item.Index > lb.item.Index {
			la, lb = lb, la
		}
		pairs = append(pairs, CandidatePair{A: la.item, B: lb.item})
	}

	type framePair struct{ a, b int32 }
	stack := []framePair{{t.root, t.root}}
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		na, nb := &t.nodes[fr.a], &t.nodes[fr.b]

		if fr.a == fr.b {
			if na.leaf {
				for i := 0; i < int(na.count); i++ {
					for j := i + 1; j < int(na.count); j++ {
						emit(t.leaves[na.children[i]], t.leaves[na.children[j]])
					}
				}
				continue
			}
			for i := 0; i < int(na.count); i++ {
				for j := i; j < int(na.count); j++ {
					stack = append(stack, framePair{na.children[i], na.children[j]})
				}
			}
			continue
		}

		if !na.aabb.Intersects(nb.aabb) {
			continue
		}
		switch {
		case na.leaf && nb.leaf:
			for i := 0; i < int(na.count); i++ {
				for j := 0; j < int(nb.count); j++ {
					emit(t.leaves[na.children[i]], t.leaves[nb.children[j]])
				}
			}
		case na.leaf:
			for j := 0; j < int(nb.count); j++ {
				stack = append(stack, framePair{fr.a, nb.children[j]})
			}
		case nb.leaf:
			for i := 0; i < int(na.count); i++ {
				stack = append(stack, framePair{na.children[i], fr.b})
			}
		default:
			for i := 0; i < int(na.count); i++ {
				for j := 0; j < int(nb.count); j++ {
					stack = append(stack, framePair{na.children[i], nb.children[j]})
				}
			}
		}
	}

	// Each leaf lives in exactly one node, so duplicates are impossible by
	// construction; the sort alone makes enumeration order deterministic.
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A.Index != pairs[j].A.Index {
			return pairs[i].A.Index < pairs[j].A.Index
		}
		return pairs[i].B.Index < pairs[j].B.Index
	})
	return pairs
}

// RayLeaves walks the tree and returns the collidables whose AABB the ray
// crosses within [0, maxT], in leaf order.
func (t *Qbvh) RayLeaves(origin, dir Vec3, maxT float64) []Collidable {
	if t.root == qbvhNoChild {
		return nil
	}
	var out []Collidable
	stack := []int32{t.root}
	for len(stack) > 0 {
		ni := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := &t.nodes[ni]
		if !node.aabb.intersectsRay(origin, dir, maxT) {
			continue
		}
		if node.leaf {
			for i := 0; i < int(node.count); i++ {
				leaf := t.leaves[node.children[i]]
				if leaf.aabb.intersectsRay(origin, dir, maxT) {
					out = append(out, leaf.item)
				}
			}
			continue
		}
		for i := 0; i < int(node.count); i++ {
			stack = append(stack, node.children[i])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// broadPhase builds the tick's QBVH from body views and triggers. Bodies use
// indexes [0, len(views)); triggers follow at len(views)+i.
func broadPhase(world *PhysicsWorld, views []BodyView, triggers []triggerState) *Qbvh {
	margin := world.predictionDistance()
	leaves := make([]qbvhLeaf, 0, len(views)+len(triggers))
	for i := range views {
		v := &views[i]
		leaves = append(leaves, qbvhLeaf{
			item: Collidable{Id: v.Id, Index: i},
			aabb: v.Collider.Aabb(v.isometry()).Loosened(margin),
		})
	}
	for i := range triggers {
		tr := &triggers[i]
		leaves = append(leaves, qbvhLeaf{
			item: Collidable{Id: tr.trigger.Id, Index: len(views) + i, IsTrigger: true},
			aabb: tr.collider.Aabb(tr.trigger.isometry()).Loosened(margin),
		})
	}
	return newQbvh(leaves)
}
