package component

import (
	"go.uber.org/zap"

	"github.com/worldsim/worldsim/internal/core/ecs"
	"github.com/worldsim/worldsim/internal/scripting"
)

// Class builds a component that will be known under name.
type Class func(name string) ecs.Component

// Env carries what some classes need at construction time.
type Env struct {
	Scripts *scripting.Engine // nil disables the Script class
	Log     *zap.Logger
}

// Classes returns the closed set of component classes a declaration file may
// reference, keyed by class name.
func Classes(env Env) map[string]Class {
	log := env.Log
	if log == nil {
		log = zap.NewNop()
	}
	return map[string]Class{
		"Position":      NewPosition,
		"Rotation":      NewRotation,
		"Scale":         NewScale,
		"Transform":     NewTransform,
		"Sprite":        NewSprite,
		"KeyboardInput": NewKeyboardInput,
		"MouseInput":    NewMouseInput,
		"ScrollInput":   NewScrollInput,
		"WASDMovement":  NewWASDMovement,
		"Velocity":      NewVelocity,
		"Spin":          NewSpin,
		"Script": func(name string) ecs.Component {
			return newScript(name, env.Scripts, log)
		},
	}
}

// Builtin is the default declaration of a class.
type Builtin struct {
	Name     string
	Class    string
	Required []string
}

// Builtins lists the canonical declarations, matching the shipped
// components.yaml.
var Builtins = []Builtin{
	{Name: "position", Class: "Position"},
	{Name: "rotation", Class: "Rotation"},
	{Name: "scale", Class: "Scale"},
	{Name: "transform", Class: "Transform", Required: []string{"position"}},
	{Name: "sprite", Class: "Sprite", Required: []string{"position"}},
	{Name: "keyboard_input", Class: "KeyboardInput"},
	{Name: "mouse_input", Class: "MouseInput"},
	{Name: "scroll_input", Class: "ScrollInput"},
	{Name: "wasd_movement_control", Class: "WASDMovement", Required: []string{"position", "keyboard_input"}},
	{Name: "velocity", Class: "Velocity", Required: []string{"position"}},
	{Name: "spin", Class: "Spin", Required: []string{"rotation"}},
	{Name: "script", Class: "Script", Required: []string{"position"}},
}

// Bind turns a class into a registry constructor for a declared name.
func Bind(class Class, name string) ecs.Constructor {
	return func() ecs.Component { return class(name) }
}

// DeclareBuiltins declares every builtin on r.
func DeclareBuiltins(r *ecs.Registry, env Env) {
	classes := Classes(env)
	for _, b := range Builtins {
		r.Declare(b.Name, Bind(classes[b.Class], b.Name), b.Required...)
	}
}
