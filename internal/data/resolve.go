package data

import (
	"fmt"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/worldsim/worldsim/internal/core/ecs"
)

// Resolve merges own on top of a parent's resolved component list. Entries
// present in parent are merged field by field in place, child values
// winning; the rest are appended in their own order. Neither input is
// modified.
func Resolve(parent, own []ecs.ComponentInfo) ([]ecs.ComponentInfo, error) {
	out := make([]ecs.ComponentInfo, len(parent), len(parent)+len(own))
	idx := make(map[string]int, len(parent)+len(own))
	for i, c := range parent {
		out[i] = c.Clone()
		idx[c.Name] = i
	}
	for _, c := range own {
		i, ok := idx[c.Name]
		if !ok {
			idx[c.Name] = len(out)
			out = append(out, c.Clone())
			continue
		}
		merged, err := out[i].Merge(c)
		if err != nil {
			return nil, err
		}
		out[i] = merged
	}
	return out, nil
}

// Resolved is a template with its inheritance applied. It is immutable;
// accessors hand out copies.
type Resolved struct {
	reg         *ecs.Registry
	name        string
	parent      string
	components  []ecs.ComponentInfo
	index       map[string]int
	fingerprint uint64
}

func newResolved(reg *ecs.Registry, name, parent string, comps []ecs.ComponentInfo) *Resolved {
	r := &Resolved{
		reg:        reg,
		name:       name,
		parent:     parent,
		components: comps,
		index:      make(map[string]int, len(comps)),
	}
	for i, c := range comps {
		r.index[c.Name] = i
	}
	r.fingerprint = Fingerprint(name, comps)
	return r
}

func (r *Resolved) Name() string { return r.name }
func (r *Resolved) Parent() string { return r.parent }
func (r *Resolved) Len() int { return len(r.components) }
func (r *Resolved) Fingerprint() uint64 { return r.fingerprint }

// Components returns a copy of the resolved component list.
func (r *Resolved) Components() []ecs.ComponentInfo {
	out := make([]ecs.ComponentInfo, len(r.components))
	for i, c := range r.components {
		out[i] = c.Clone()
	}
	return out
}

// Info returns a copy of the resolved entry for component name.
func (r *Resolved) Info(name string) (ecs.ComponentInfo, bool) {
	i, ok := r.index[name]
	if !ok {
		return ecs.ComponentInfo{}, false
	}
	return r.components[i].Clone(), true
}

// Has reports whether the template declares component name.
func (r *Resolved) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Fingerprint hashes a resolved component list. Field order does not
// matter; component order does.
func Fingerprint(name string, comps []ecs.ComponentInfo) uint64 {
	d := xxhash.New()
	write := func(s string) {
		_, _ = d.WriteString(s)
		_, _ = d.Write([]byte{0})
	}
	write(name)
	for _, c := range comps {
		write(c.Name)
		for _, k := range c.Fields.Keys() {
			v := c.Fields[k]
			write(k)
			switch v.Kind() {
			case ecs.KindNumber:
				f, _ := v.Float()
				write("n" + strconv.FormatUint(math.Float64bits(f), 16))
			case ecs.KindString:
				write("s" + v.String())
			default:
				write("-")
			}
		}
		write("}")
	}
	return d.Sum64()
}

// TemplateTable holds every resolved template. It is built once and only
// read afterwards.
type TemplateTable struct {
	byName map[string]*Resolved
	order  []string // parents before children
}

func (t *TemplateTable) Get(name string) (*Resolved, bool) {
	r, ok := t.byName[name]
	return r, ok
}

func (t *TemplateTable) Len() int { return len(t.order) }

// Names lists template names with every parent before its children.
func (t *TemplateTable) Names() []string {
	return append([]string(nil), t.order...)
}

// ResolveAll resolves every template in parent-first order. A template whose
// parent is unknown, or which takes part in an inheritance cycle, is skipped
// together with its descendants and logged. The only error is a merge
// failure, which means the resolver itself is broken.
//
// Each template's own entries are rewritten to reg's canonical field names
// before merging, so a child's `rate` replaces a parent's `spin: 90`. A nil
// reg merges keys as written.
func ResolveAll(templates []Template, reg *ecs.Registry, log *zap.Logger) (*TemplateTable, error) {
	byName := make(map[string]*Template, len(templates))
	for i := range templates {
		t := &templates[i]
		if _, dup := byName[t.Name]; dup {
			log.Warn("duplicate template name", zap.String("name", t.Name))
			continue
		}
		byName[t.Name] = t
	}

	table := &TemplateTable{byName: make(map[string]*Resolved, len(byName))}

	const (
		unvisited = iota
		visiting
		done
		failed
	)
	state := make(map[string]int, len(byName))

	var visit func(name string, chain []string) (*Resolved, error)
	visit = func(name string, chain []string) (*Resolved, error) {
		switch state[name] {
		case done:
			return table.byName[name], nil
		case failed:
			return nil, nil
		case visiting:
			log.Warn("skip template: inheritance cycle",
				zap.String("name", name), zap.Strings("chain", append(chain, name)))
			state[name] = failed
			return nil, nil
		}
		t := byName[name]
		state[name] = visiting

		var parent []ecs.ComponentInfo
		if t.Parent != "" {
			if _, ok := byName[t.Parent]; !ok {
				log.Warn("skip template: unknown parent",
					zap.String("name", name), zap.String("parent", t.Parent))
				state[name] = failed
				return nil, nil
			}
			p, err := visit(t.Parent, append(chain, name))
			if err != nil {
				return nil, err
			}
			if p == nil {
				if state[name] != failed {
					log.Warn("skip template: parent did not resolve",
						zap.String("name", name), zap.String("parent", t.Parent))
				}
				state[name] = failed
				return nil, nil
			}
			parent = p.components
		}

		comps, err := Resolve(parent, canonical(reg, t.Components))
		if err != nil {
			return nil, fmt.Errorf("resolve template %s: %w", name, err)
		}
		r := newResolved(reg, name, t.Parent, comps)
		table.byName[name] = r
		table.order = append(table.order, name)
		state[name] = done
		return r, nil
	}

	for i := range templates {
		name := templates[i].Name
		if byName[name] != &templates[i] {
			continue
		}
		if _, err := visit(name, nil); err != nil {
			return nil, err
		}
	}
	return table, nil
}

func canonical(reg *ecs.Registry, infos []ecs.ComponentInfo) []ecs.ComponentInfo {
	if reg == nil || len(infos) == 0 {
		return infos
	}
	out := make([]ecs.ComponentInfo, len(infos))
	for i, c := range infos {
		out[i] = reg.Canonical(c)
	}
	return out
}
