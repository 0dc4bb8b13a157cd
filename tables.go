package physics

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// RowStore is the persistence contract the engine consumes. Iteration is
// world-scoped and ordered by primary key; writes are handed over as one
// TickWrites batch that must apply atomically.
type RowStore interface {
	EachBody(worldId uint64, fn func(RigidBody) bool)
	EachCollider(worldId uint64, fn func(Collider) bool)
	EachTrigger(worldId uint64, fn func(Trigger) bool)
	EachTriggerMembership(worldId uint64, fn func(TriggerMembership) bool)

	// ApplyTick commits every write of one tick or none of them.
	ApplyTick(worldId uint64, writes TickWrites) error
}

// TickWrites is the buffered output of one tick.
type TickWrites struct {
	BodyUpdates       []RigidBody
	MembershipInserts []TriggerMembership
	MembershipDeletes []MembershipKey
}

func (w *TickWrites) empty() bool {
	return len(w.BodyUpdates) == 0 && len(w.MembershipInserts) == 0 && len(w.MembershipDeletes) == 0
}

var (
	ErrRowNotFound = errors.New("row not found")
	ErrRowExists   = errors.New("row already exists")
)

// MemoryStore is an in-memory RowStore with auto-incremented primary keys
// and per-world ordered indexes. It serializes writes per store, which
// trivially satisfies the per-world serializability the engine needs, and it
// is the store the tests run on.
type MemoryStore struct {
	mu sync.RWMutex

	nextWorldId    uint64
	nextBodyId     uint64
	nextColliderId uint64
	nextTriggerId  uint64

	worlds    map[uint64]PhysicsWorld
	bodies    map[uint64]RigidBody
	colliders map[uint64]Collider
	triggers  map[uint64]Trigger

	bodyIndex     map[uint64][]uint64 // worldId -> sorted body ids
	colliderIndex map[uint64][]uint64
	triggerIndex  map[uint64][]uint64

	memberships map[MembershipKey]TriggerMembership
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextWorldId:    1,
		nextBodyId:     1,
		nextColliderId: 1,
		nextTriggerId:  1,
		worlds:         make(map[uint64]PhysicsWorld),
		bodies:         make(map[uint64]RigidBody),
		colliders:      make(map[uint64]Collider),
		triggers:       make(map[uint64]Trigger),
		bodyIndex:      make(map[uint64][]uint64),
		colliderIndex:  make(map[uint64][]uint64),
		triggerIndex:   make(map[uint64][]uint64),
		memberships:    make(map[MembershipKey]TriggerMembership),
	}
}

// insertSorted keeps a world index ordered without a full re-sort.
func insertSorted(ids []uint64, id uint64) []uint64 {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

func removeSorted(ids []uint64, id uint64) []uint64 {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if i < len(ids) && ids[i] == id {
		return append(ids[:i], ids[i+1:]...)
	}
	return ids
}

// InsertWorld stores the world row, assigning an id when it has none.
func (s *MemoryStore) InsertWorld(world *PhysicsWorld) *PhysicsWorld {
	s.mu.Lock()
	defer s.mu.Unlock()
	if world.Id == 0 {
		world.Id = s.nextWorldId
		s.nextWorldId++
	}
	s.worlds[world.Id] = *world
	return world
}

// World returns a world row by id.
func (s *MemoryStore) World(id uint64) (PhysicsWorld, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.worlds[id]
	return w, ok
}

// InsertBody stores a body row, assigning an id when it has none.
func (s *MemoryStore) InsertBody(body RigidBody) RigidBody {
	s.mu.Lock()
	defer s.mu.Unlock()
	if body.Id == 0 {
		body.Id = s.nextBodyId
		s.nextBodyId++
	} else if body.Id >= s.nextBodyId {
		s.nextBodyId = body.Id + 1
	}
	if _, exists := s.bodies[body.Id]; !exists {
		s.bodyIndex[body.WorldId] = insertSorted(s.bodyIndex[body.WorldId], body.Id)
	}
	s.bodies[body.Id] = body
	return body
}

// Body returns a body row by primary key.
func (s *MemoryStore) Body(id uint64) (RigidBody, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bodies[id]
	return b, ok
}

// UpdateBody replaces an existing body row.
func (s *MemoryStore) UpdateBody(body RigidBody) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateBodyLocked(body)
}

func (s *MemoryStore) updateBodyLocked(body RigidBody) error {
	old, ok := s.bodies[body.Id]
	if !ok {
		return fmt.Errorf("%w: body %d", ErrRowNotFound, body.Id)
	}
	if old.WorldId != body.WorldId {
		s.bodyIndex[old.WorldId] = removeSorted(s.bodyIndex[old.WorldId], body.Id)
		s.bodyIndex[body.WorldId] = insertSorted(s.bodyIndex[body.WorldId], body.Id)
	}
	s.bodies[body.Id] = body
	return nil
}

// DeleteBody removes a body row. Memberships referencing it disappear on the
// next tick's diff.
func (s *MemoryStore) DeleteBody(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.bodies[id]
	if !ok {
		return fmt.Errorf("%w: body %d", ErrRowNotFound, id)
	}
	delete(s.bodies, id)
	s.bodyIndex[body.WorldId] = removeSorted(s.bodyIndex[body.WorldId], id)
	return nil
}

// InsertCollider stores a collider row, assigning an id when it has none.
func (s *MemoryStore) InsertCollider(collider Collider) Collider {
	s.mu.Lock()
	defer s.mu.Unlock()
	if collider.Id == 0 {
		collider.Id = s.nextColliderId
		s.nextColliderId++
	} else if collider.Id >= s.nextColliderId {
		s.nextColliderId = collider.Id + 1
	}
	if _, exists := s.colliders[collider.Id]; !exists {
		s.colliderIndex[collider.WorldId] = insertSorted(s.colliderIndex[collider.WorldId], collider.Id)
	}
	s.colliders[collider.Id] = collider
	return collider
}

// InsertTrigger stores a trigger row, assigning an id when it has none.
func (s *MemoryStore) InsertTrigger(trigger Trigger) Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()
	if trigger.Id == 0 {
		trigger.Id = s.nextTriggerId
		s.nextTriggerId++
	} else if trigger.Id >= s.nextTriggerId {
		s.nextTriggerId = trigger.Id + 1
	}
	if _, exists := s.triggers[trigger.Id]; !exists {
		s.triggerIndex[trigger.WorldId] = insertSorted(s.triggerIndex[trigger.WorldId], trigger.Id)
	}
	s.triggers[trigger.Id] = trigger
	return trigger
}

func (s *MemoryStore) EachBody(worldId uint64, fn func(RigidBody) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.bodyIndex[worldId] {
		if !fn(s.bodies[id]) {
			return
		}
	}
}

func (s *MemoryStore) EachCollider(worldId uint64, fn func(Collider) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.colliderIndex[worldId] {
		if !fn(s.colliders[id]) {
			return
		}
	}
}

func (s *MemoryStore) EachTrigger(worldId uint64, fn func(Trigger) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.triggerIndex[worldId] {
		if !fn(s.triggers[id]) {
			return
		}
	}
}

func (s *MemoryStore) EachTriggerMembership(worldId uint64, fn func(TriggerMembership) bool) {
	s.mu.RLock()
	rows := make([]TriggerMembership, 0)
	for _, m := range s.memberships {
		if m.WorldId == worldId {
			rows = append(rows, m)
		}
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TriggerId != rows[j].TriggerId {
			return rows[i].TriggerId < rows[j].TriggerId
		}
		return rows[i].BodyId < rows[j].BodyId
	})
	for _, m := range rows {
		if !fn(m) {
			return
		}
	}
}

// ApplyTick validates the whole batch before touching any row, so a failed
// commit leaves the store exactly as it was.
func (s *MemoryStore) ApplyTick(worldId uint64, writes TickWrites) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, body := range writes.BodyUpdates {
		if _, ok := s.bodies[body.Id]; !ok {
			return fmt.Errorf("%w: body %d", ErrRowNotFound, body.Id)
		}
	}
	for _, m := range writes.MembershipInserts {
		if _, ok := s.memberships[m.Key()]; ok {
			return fmt.Errorf("%w: membership %v", ErrRowExists, m.Key())
		}
	}
	for _, key := range writes.MembershipDeletes {
		if _, ok := s.memberships[key]; !ok {
			return fmt.Errorf("%w: membership %v", ErrRowNotFound, key)
		}
	}

	for _, body := range writes.BodyUpdates {
		if err := s.updateBodyLocked(body); err != nil {
			return err
		}
	}
	for _, m := range writes.MembershipInserts {
		s.memberships[m.Key()] = m
	}
	for _, key := range writes.MembershipDeletes {
		delete(s.memberships, key)
	}
	return nil
}
