package data

import (
	"fmt"

	"github.com/worldsim/worldsim/internal/core/ecs"
)

// EntityRecord is the minimal persisted form of an entity: the template it
// came from plus whatever differs from that template.
type EntityRecord struct {
	Handle      uint64              `json:"handle" yaml:"handle"`
	Template    string              `json:"template" yaml:"template"`
	Overrides   []ecs.ComponentInfo `json:"overrides,omitempty" yaml:"overrides,omitempty"`
	Removed     []string            `json:"removed,omitempty" yaml:"removed,omitempty"`
	Fingerprint uint64              `json:"fingerprint" yaml:"fingerprint"`
}

// Serialize records o relative to its resolved template. A component whose
// state matches the template contributes nothing. A component the template
// does not declare is always recorded, with empty fields when it has nothing
// to override. Template components missing from o are listed in Removed.
func Serialize(o *ecs.GameObject, t *Resolved) EntityRecord {
	rec := EntityRecord{
		Handle:      uint64(o.Handle()),
		Template:    t.Name(),
		Fingerprint: t.Fingerprint(),
	}
	for _, c := range o.Components() {
		info, inTemplate := t.Info(c.Name())
		fields, changed := c.SerializeOverrides(info.Fields)
		switch {
		case changed:
			rec.Overrides = append(rec.Overrides, ecs.ComponentInfo{Name: c.Name(), Fields: fields})
		case !inTemplate:
			rec.Overrides = append(rec.Overrides, ecs.ComponentInfo{Name: c.Name(), Fields: ecs.Fields{}})
		}
	}
	for _, c := range t.components {
		if !o.HasComponent(c.Name) {
			rec.Removed = append(rec.Removed, c.Name)
		}
	}
	return rec
}

// Apply returns the component list an entity recorded against t should be
// rebuilt from: t's resolved list with removed entries dropped and the
// overrides merged on top. Overrides go through the same field-name
// canonicalization as the templates did.
func (t *Resolved) Apply(overrides []ecs.ComponentInfo, removed []string) ([]ecs.ComponentInfo, error) {
	base := t.components
	if len(removed) > 0 {
		drop := make(map[string]bool, len(removed))
		for _, n := range removed {
			drop[n] = true
		}
		base = make([]ecs.ComponentInfo, 0, len(t.components))
		for _, c := range t.components {
			if !drop[c.Name] {
				base = append(base, c)
			}
		}
	}
	out, err := Resolve(base, canonical(t.reg, overrides))
	if err != nil {
		return nil, fmt.Errorf("apply overrides to %s: %w", t.name, err)
	}
	return out, nil
}
