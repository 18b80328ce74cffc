package reconcile

import "encoding/json"

// Snapshot is an immutable view of the collection at one version.
// The reconciler never mutates a snapshot after handing it out, so it can be
// shared freely between readers.
type Snapshot struct {
	items   []Entity
	index   map[ID]int
	version uint64
}

func emptySnapshot() *Snapshot {
	return &Snapshot{index: map[ID]int{}}
}

// Version increases by one for every visible state transition.
func (s *Snapshot) Version() uint64 {
	if s == nil {
		return 0
	}
	return s.version
}

// Len returns the number of entities.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Has reports whether an entity with the given id is present.
func (s *Snapshot) Has(id ID) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[id]
	return ok
}

// Get returns a copy of the entity with the given id.
func (s *Snapshot) Get(id ID) (Entity, bool) {
	if s == nil {
		return nil, false
	}
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.items[i].clone(), true
}

// At returns a copy of the entity at position i.
func (s *Snapshot) At(i int) Entity {
	return s.items[i].clone()
}

// Entities returns copies of all entities in collection order.
func (s *Snapshot) Entities() []Entity {
	if s == nil {
		return []Entity{}
	}
	out := make([]Entity, len(s.items))
	for i, e := range s.items {
		out[i] = e.clone()
	}
	return out
}

// IDs returns the entity ids in collection order.
func (s *Snapshot) IDs() []ID {
	if s == nil {
		return []ID{}
	}
	out := make([]ID, len(s.items))
	for i, e := range s.items {
		out[i], _ = e.ID()
	}
	return out
}

// MarshalJSON encodes the collection as a JSON array.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	if s == nil || len(s.items) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(s.items)
}

// working is a mutable copy of a snapshot used while applying notifications.
// It is committed into a new Snapshot once and then discarded.
type working struct {
	items []Entity
	index map[ID]int
	dirty bool
}

func (s *Snapshot) edit() *working {
	w := &working{
		items: make([]Entity, len(s.items)),
		index: make(map[ID]int, len(s.index)),
	}
	copy(w.items, s.items)
	for k, v := range s.index {
		w.index[k] = v
	}
	return w
}

func (w *working) lookup(id ID) (int, bool) {
	i, ok := w.index[id]
	return i, ok
}

func (w *working) replace(i int, e Entity) {
	w.items[i] = e
	w.dirty = true
}

func (w *working) insert(id ID, e Entity, placement Placement) {
	if placement == PlacePrepend {
		w.items = append(w.items, nil)
		copy(w.items[1:], w.items)
		w.items[0] = e
		w.reindex(0)
	} else {
		w.items = append(w.items, e)
		w.index[id] = len(w.items) - 1
	}
	w.dirty = true
}

func (w *working) remove(id ID) bool {
	i, ok := w.index[id]
	if !ok {
		return false
	}
	delete(w.index, id)
	w.items = append(w.items[:i], w.items[i+1:]...)
	w.reindex(i)
	w.dirty = true
	return true
}

// reindex recomputes positions for items at or after from.
func (w *working) reindex(from int) {
	for i := from; i < len(w.items); i++ {
		id, _ := w.items[i].ID()
		w.index[id] = i
	}
}

func (w *working) commit(version uint64) *Snapshot {
	return &Snapshot{items: w.items, index: w.index, version: version}
}
