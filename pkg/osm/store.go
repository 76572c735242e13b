package osm

// Store indexes OSM elements by kind and id. Ids of different kinds may
// collide, so every lookup is keyed on both.
//
// A Store is immutable once built and safe for concurrent reads.
type Store struct {
	nodes     map[int64]*Element
	ways      map[int64]*Element
	relations map[int64]*Element

	// insertion order per kind, first occurrence wins the slot
	order map[ElementType][]int64
}

// NewStore partitions elements into per-kind indexes. A duplicate id within
// one kind replaces the earlier element but keeps its original position.
func NewStore(elements []Element) *Store {
	s := &Store{
		nodes:     make(map[int64]*Element),
		ways:      make(map[int64]*Element),
		relations: make(map[int64]*Element),
		order:     make(map[ElementType][]int64, 3),
	}

	for i := range elements {
		el := &elements[i]
		index := s.index(el.Type)
		if index == nil {
			continue
		}
		if _, seen := index[el.ID]; !seen {
			s.order[el.Type] = append(s.order[el.Type], el.ID)
		}
		index[el.ID] = el
	}

	return s
}

func (s *Store) index(t ElementType) map[int64]*Element {
	switch t {
	case TypeNode:
		return s.nodes
	case TypeWay:
		return s.ways
	case TypeRelation:
		return s.relations
	}
	return nil
}

// Lookup returns the element of the given kind and id.
func (s *Store) Lookup(t ElementType, id int64) (*Element, bool) {
	index := s.index(t)
	if index == nil {
		return nil, false
	}
	el, ok := index[id]
	return el, ok
}

// Elements returns every element of kind t in source document order.
func (s *Store) Elements(t ElementType) []*Element {
	ids := s.order[t]
	index := s.index(t)
	out := make([]*Element, 0, len(ids))
	for _, id := range ids {
		out = append(out, index[id])
	}
	return out
}

// Count returns the number of distinct elements of kind t.
func (s *Store) Count(t ElementType) int {
	return len(s.order[t])
}
