package mockbackend

import (
	"maps"

	"github.com/google/uuid"
)

// Record is one stored JSON object.
type Record map[string]any

func (r Record) clone() Record {
	return maps.Clone(r)
}

// collection keeps records in insertion order. Callers hold the server lock.
type collection struct {
	order []string
	items map[string]Record
}

func newCollection() *collection {
	return &collection{items: make(map[string]Record)}
}

func (c *collection) list(keep func(Record) bool) []Record {
	out := make([]Record, 0, len(c.order))
	for _, id := range c.order {
		r := c.items[id]
		if keep == nil || keep(r) {
			out = append(out, r.clone())
		}
	}
	return out
}

func (c *collection) get(id string) (Record, bool) {
	r, ok := c.items[id]
	if !ok {
		return nil, false
	}
	return r.clone(), true
}

// create stores r under a fresh uuid, or under r["id"] when the fixture set one.
func (c *collection) create(r Record) Record {
	r = r.clone()
	id, _ := r["id"].(string)
	if id == "" {
		id = uuid.NewString()
		r["id"] = id
	}
	if _, exists := c.items[id]; !exists {
		c.order = append(c.order, id)
	}
	c.items[id] = r
	return r.clone()
}

// update merges patch into the record, or replaces it when replace is set.
// The id is never changed.
func (c *collection) update(id string, patch Record, replace bool) (Record, bool) {
	cur, ok := c.items[id]
	if !ok {
		return nil, false
	}
	next := cur.clone()
	if replace {
		next = Record{}
	}
	for k, v := range patch {
		next[k] = v
	}
	next["id"] = id
	c.items[id] = next
	return next.clone(), true
}

func (c *collection) delete(id string) bool {
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

func (c *collection) count(keep func(Record) bool) int {
	n := 0
	for _, id := range c.order {
		if keep == nil || keep(c.items[id]) {
			n++
		}
	}
	return n
}
