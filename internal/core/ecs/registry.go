package ecs

import (
	"fmt"
	"sort"
)

// Constructor builds a component with its built-in defaults.
type Constructor func() Component

// Declaration is the static metadata of one component type.
type Declaration struct {
	Name     string
	New      Constructor
	Required []string

	canonical func(Fields) Fields
}

// Registry maps component names to constructors. It is populated at startup
// and read by the simulation goroutine afterwards; no locks.
type Registry struct {
	decls map[string]Declaration
}

func NewRegistry() *Registry {
	return &Registry{
		decls: make(map[string]Declaration, 16),
	}
}

// Declare registers a component type. Declaring an existing name replaces it.
// Required names are only checked when the component is instantiated.
func (r *Registry) Declare(name string, ctor Constructor, required ...string) {
	d := Declaration{
		Name:     name,
		New:      ctor,
		Required: append([]string(nil), required...),
	}
	if ctor != nil {
		if c, ok := ctor().(Canonicalizer); ok {
			d.canonical = c.CanonicalFields
		}
	}
	r.decls[name] = d
}

// Canonical returns info with its field keys rewritten to the canonical
// names of the declared component, so entries from different sources merge
// key for key. Unknown components and a nil registry leave info unchanged.
func (r *Registry) Canonical(info ComponentInfo) ComponentInfo {
	if r == nil || len(info.Fields) == 0 {
		return info
	}
	d, ok := r.decls[info.Name]
	if !ok || d.canonical == nil {
		return info
	}
	return ComponentInfo{Name: info.Name, Fields: d.canonical(info.Fields)}
}

// Lookup returns the declaration for name.
func (r *Registry) Lookup(name string) (Declaration, bool) {
	d, ok := r.decls[name]
	return d, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.decls[name]
	return ok
}

func (r *Registry) Len() int {
	return len(r.decls)
}

// Names returns every declared name in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.decls))
	for n := range r.decls {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Instantiate constructs a fresh component with default state. It checks that
// every required component type is declared; it does not check what any
// particular entity carries.
func (r *Registry) Instantiate(name string) (Component, error) {
	d, ok := r.decls[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownComponent, name)
	}
	for _, req := range d.Required {
		if _, ok := r.decls[req]; !ok {
			return nil, fmt.Errorf("%w: %q requires %q", ErrMissingDependency, name, req)
		}
	}
	c := d.New()
	if c == nil {
		return nil, fmt.Errorf("%w: %q constructor returned nil", ErrUnknownComponent, name)
	}
	return c, nil
}

// InstantiateWith constructs a component and applies its field overrides.
func (r *Registry) InstantiateWith(info ComponentInfo) (Component, error) {
	c, err := r.Instantiate(info.Name)
	if err != nil {
		return nil, err
	}
	if len(info.Fields) > 0 {
		if err := c.OverrideFields(info.Fields); err != nil {
			return nil, fmt.Errorf("override %s: %w", info.Name, err)
		}
	}
	return c, nil
}

// Build instantiates every entry of a resolved template in order. Any failure
// aborts the whole build; no partial list is returned.
func (r *Registry) Build(infos []ComponentInfo) ([]Component, error) {
	out := make([]Component, 0, len(infos))
	for _, info := range infos {
		c, err := r.InstantiateWith(info)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
