package blocks

import (
	"fmt"
	"sort"

	"sideworld/internal/grid"
)

// CollisionClass describes how a block type interacts with moving bodies.
type CollisionClass uint8

const (
	CollisionFull CollisionClass = iota
	CollisionNone
)

func (c CollisionClass) String() string {
	switch c {
	case CollisionFull:
		return "full"
	case CollisionNone:
		return "none"
	default:
		return fmt.Sprintf("collision(%d)", uint8(c))
	}
}

// ParseCollision maps the collision_box field of a block file.
func ParseCollision(s string) (CollisionClass, error) {
	switch s {
	case "full":
		return CollisionFull, nil
	case "none":
		return CollisionNone, nil
	default:
		return 0, fmt.Errorf("unknown collision_box %q", s)
	}
}

// SupportRule accepts a neighbour at Direction whose name is in Accepts.
type SupportRule struct {
	Direction grid.Offset
	Accepts   map[string]struct{}
}

func (r SupportRule) Accepted(name string) bool {
	_, ok := r.Accepts[name]
	return ok
}

// Def is the immutable definition of one block type.
type Def struct {
	Name        string
	Collision   CollisionClass
	Replaceable bool
	Transparent bool
	Slice       grid.WorldSlice

	// Support rules are alternatives: one satisfied rule is enough. An empty
	// list means the block needs no support.
	Support []SupportRule

	Counterparts  map[grid.Offset]string
	Overwriteable map[string]struct{}
	NextLayer     string
}

func (d *Def) NeedsSupport() bool {
	return len(d.Support) > 0
}

// CanOverwrite reports whether a structure cell of type d may replace an
// existing cell named existing.
func (d *Def) CanOverwrite(existing string) bool {
	_, ok := d.Overwriteable[existing]
	return ok
}

// CounterpartOffsets returns the counterpart offsets in a stable order.
func (d *Def) CounterpartOffsets() []grid.Offset {
	if len(d.Counterparts) == 0 {
		return nil
	}
	out := make([]grid.Offset, 0, len(d.Counterparts))
	for off := range d.Counterparts {
		out = append(out, off)
	}
	grid.SortOffsets(out)
	return out
}

// Registry is the read-only table of block types shared by the generator and
// the placement rules.
type Registry struct {
	defs  map[string]*Def
	names []string
}

// NewRegistry indexes defs and checks that every name they reference is
// itself defined.
func NewRegistry(defs ...Def) (*Registry, error) {
	r := &Registry{defs: make(map[string]*Def, len(defs))}
	for i := range defs {
		def := defs[i]
		if def.Name == "" {
			return nil, fmt.Errorf("block definition %d has no name", i)
		}
		if _, dup := r.defs[def.Name]; dup {
			return nil, fmt.Errorf("block %q defined twice", def.Name)
		}
		if def.Slice >= grid.SliceCount {
			return nil, fmt.Errorf("block %q: invalid slice %v", def.Name, def.Slice)
		}
		r.defs[def.Name] = &def
		r.names = append(r.names, def.Name)
	}
	sort.Strings(r.names)

	for _, name := range r.names {
		def := r.defs[name]
		for _, rule := range def.Support {
			for accepted := range rule.Accepts {
				if !r.Has(accepted) {
					return nil, fmt.Errorf("block %q: support %q names unknown block %q", name, rule.Direction, accepted)
				}
			}
		}
		for off, other := range def.Counterparts {
			if off == (grid.Offset{}) {
				return nil, fmt.Errorf("block %q: counterpart at zero offset", name)
			}
			otherDef, ok := r.defs[other]
			if !ok {
				return nil, fmt.Errorf("block %q: counterpart %q names unknown block %q", name, off, other)
			}
			if back := otherDef.Counterparts[off.Neg()]; back != name {
				return nil, fmt.Errorf("block %q: counterpart %q at %q does not point back", name, other, off)
			}
		}
		for other := range def.Overwriteable {
			if !r.Has(other) {
				return nil, fmt.Errorf("block %q: overwriteable names unknown block %q", name, other)
			}
		}
		if def.NextLayer != "" && !r.Has(def.NextLayer) {
			return nil, fmt.Errorf("block %q: next_layer names unknown block %q", name, def.NextLayer)
		}
	}
	return r, nil
}

func (r *Registry) Lookup(name string) (*Def, bool) {
	def, ok := r.defs[name]
	return def, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.defs[name]
	return ok
}

// Names lists every registered block type in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

func (r *Registry) Len() int {
	return len(r.names)
}

// Require returns an error naming the first unknown block in names.
func (r *Registry) Require(names ...string) error {
	for _, name := range names {
		if !r.Has(name) {
			return fmt.Errorf("unknown block type %q", name)
		}
	}
	return nil
}
