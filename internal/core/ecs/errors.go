package ecs

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownComponent is returned when a component name was never declared.
	ErrUnknownComponent = errors.New("unknown component")

	// ErrMissingDependency is returned when a declared component requires a
	// component type that is not declared in the registry.
	ErrMissingDependency = errors.New("missing component dependency")

	// ErrComponentField matches every *FieldError.
	ErrComponentField = errors.New("invalid component field")

	// ErrTemplateMerge means two component infos with different names were
	// merged. It indicates a resolver bug, not bad data.
	ErrTemplateMerge = errors.New("template merge name mismatch")

	// ErrMissingPosition is returned when an entity would be built without the
	// mandatory position component.
	ErrMissingPosition = errors.New("entity has no position component")

	ErrDuplicateComponent = errors.New("duplicate component")
)

// FieldError reports a malformed or unresolvable override value.
type FieldError struct {
	Component string
	Field     string
	Err       error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("component %s field %q: %v", e.Component, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

func (e *FieldError) Is(target error) bool { return target == ErrComponentField }

// FieldErr is shorthand used by component parsers.
func FieldErr(component, field string, err error) error {
	return &FieldError{Component: component, Field: field, Err: err}
}
