package component

import (
	"sort"
	"strings"

	"github.com/worldsim/worldsim/internal/core/ecs"
	"github.com/worldsim/worldsim/internal/core/event"
)

// KeyboardInput re-raises raw key events on its owner, tagged with its own
// name. An empty key filter accepts every key.
type KeyboardInput struct {
	ecs.Base
	keys map[string]bool
}

func NewKeyboardInput(name string) ecs.Component {
	return &KeyboardInput{Base: ecs.NewBase(name)}
}

func (c *KeyboardInput) ReceiveInput(raw any) bool {
	k, ok := raw.(event.RawKey)
	if !ok || c.Owner() == nil {
		return false
	}
	key := strings.ToLower(k.Key)
	if len(c.keys) > 0 && !c.keys[key] {
		return false
	}
	c.Owner().DistributeEvent(event.Key{Origin: c.Name(), Key: key, Pressed: k.Pressed})
	return true
}

var keyboardAliases = map[string]string{ecs.PrimaryField: "keys"}

func (c *KeyboardInput) CanonicalFields(f ecs.Fields) ecs.Fields {
	return ecs.RenameFields(f, keyboardAliases)
}

func (c *KeyboardInput) OverrideFields(f ecs.Fields) error {
	f = c.CanonicalFields(f)
	for _, k := range f.Keys() {
		switch k {
		case "keys":
			c.keys = parseKeySet(f[k].String())
		default:
			return ecs.FieldErr(c.Name(), k, errUnknownField)
		}
	}
	return nil
}

func (c *KeyboardInput) SerializeOverrides(tmpl ecs.Fields) (ecs.Fields, bool) {
	cur := formatKeySet(c.keys)
	base := ""
	if v, ok := c.CanonicalFields(tmpl)["keys"]; ok {
		base = formatKeySet(parseKeySet(v.String()))
	}
	if cur == base {
		return nil, false
	}
	return ecs.Fields{"keys": ecs.String(cur)}, true
}

func parseKeySet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, k := range strings.Split(s, ",") {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out[k] = true
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func formatKeySet(m map[string]bool) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

// MouseInput re-raises raw mouse-button events on its owner.
type MouseInput struct {
	ecs.Base
}

func NewMouseInput(name string) ecs.Component {
	return &MouseInput{Base: ecs.NewBase(name)}
}

func (c *MouseInput) ReceiveInput(raw any) bool {
	m, ok := raw.(event.RawMouseButton)
	if !ok || c.Owner() == nil {
		return false
	}
	c.Owner().DistributeEvent(event.MouseButton{Origin: c.Name(), Button: m.Button, Pressed: m.Pressed, At: m.At})
	return true
}

// ScrollInput re-raises raw scroll events on its owner, scaled by its
// sensitivity.
type ScrollInput struct {
	ecs.Base
	sensitivity float64
}

func NewScrollInput(name string) ecs.Component {
	return &ScrollInput{Base: ecs.NewBase(name), sensitivity: 1}
}

func (c *ScrollInput) ReceiveInput(raw any) bool {
	s, ok := raw.(event.RawScroll)
	if !ok || c.Owner() == nil {
		return false
	}
	c.Owner().DistributeEvent(event.Scroll{Origin: c.Name(), DX: s.DX * c.sensitivity, DY: s.DY * c.sensitivity})
	return true
}

var scrollAliases = map[string]string{ecs.PrimaryField: "sensitivity"}

func (c *ScrollInput) CanonicalFields(f ecs.Fields) ecs.Fields {
	return ecs.RenameFields(f, scrollAliases)
}

func (c *ScrollInput) OverrideFields(f ecs.Fields) error {
	f = c.CanonicalFields(f)
	for _, k := range f.Keys() {
		switch k {
		case "sensitivity":
			v, err := f[k].Float()
			if err != nil {
				return ecs.FieldErr(c.Name(), k, err)
			}
			c.sensitivity = v
		default:
			return ecs.FieldErr(c.Name(), k, errUnknownField)
		}
	}
	return nil
}

func (c *ScrollInput) SerializeOverrides(tmpl ecs.Fields) (ecs.Fields, bool) {
	base := tmplFloat(c.CanonicalFields(tmpl), "sensitivity", 1)
	if c.sensitivity == base {
		return nil, false
	}
	return ecs.Fields{"sensitivity": ecs.Number(c.sensitivity)}, true
}
