package component

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/worldsim/worldsim/internal/core/ecs"
	"github.com/worldsim/worldsim/internal/geom"
)

var white = colorful.Color{R: 1, G: 1, B: 1}

// Sprite holds the data the renderer needs to draw an entity. The renderer
// only reads it.
type Sprite struct {
	ecs.Base
	index  int
	size   geom.Vec2
	colour colorful.Color
}

func NewSprite(name string) ecs.Component {
	return &Sprite{Base: ecs.NewBase(name), size: geom.V(1, 1), colour: white}
}

// RenderData is the read-only view handed to the renderer.
type RenderData struct {
	Index   int
	Size    geom.Vec2
	R, G, B uint8
	World   geom.Mat3
}

// RenderData combines the sprite fields with the owner's world transform.
// Entities without a transform component are drawn at their position.
func (c *Sprite) RenderData() RenderData {
	r, g, b := c.colour.RGB255()
	rd := RenderData{Index: c.index, Size: c.size, R: r, G: g, B: b, World: geom.Identity()}
	o := c.Owner()
	if o == nil {
		return rd
	}
	if t, ok := o.GetComponent("transform"); ok {
		if tr, ok := t.(*Transform); ok {
			rd.World = tr.World()
			return rd
		}
	}
	rd.World = geom.TRS(o.Position(), 0, geom.V(1, 1))
	return rd
}

func (c *Sprite) Index() int { return c.index }
func (c *Sprite) Size() geom.Vec2 { return c.size }
func (c *Sprite) Colour() string { return c.colour.Hex() }
func (c *Sprite) SetIndex(i int) { c.index = i }

var spriteAliases = map[string]string{ecs.PrimaryField: "index", "color": "colour"}

func (c *Sprite) CanonicalFields(f ecs.Fields) ecs.Fields {
	return ecs.RenameFields(f, spriteAliases)
}

func (c *Sprite) OverrideFields(f ecs.Fields) error {
	f = c.CanonicalFields(f)
	for _, k := range f.Keys() {
		v := f[k]
		switch k {
		case "index":
			i, err := v.Int()
			if err != nil {
				return ecs.FieldErr(c.Name(), k, err)
			}
			if i < 0 {
				return ecs.FieldErr(c.Name(), k, fmt.Errorf("negative sprite index %d", i))
			}
			c.index = i
		case "size":
			s, err := v.Vec2(true)
			if err != nil {
				return ecs.FieldErr(c.Name(), k, err)
			}
			c.size = s
		case "colour":
			col, err := parseColour(v)
			if err != nil {
				return ecs.FieldErr(c.Name(), k, err)
			}
			c.colour = col
		default:
			return ecs.FieldErr(c.Name(), k, errUnknownField)
		}
	}
	return nil
}

func (c *Sprite) SerializeOverrides(tmpl ecs.Fields) (ecs.Fields, bool) {
	tmpl = c.CanonicalFields(tmpl)
	out := ecs.Fields{}

	baseIndex := 0
	if v, ok := tmpl["index"]; ok {
		if i, err := v.Int(); err == nil {
			baseIndex = i
		}
	}
	if c.index != baseIndex {
		out["index"] = ecs.Number(float64(c.index))
	}
	if !c.size.Equal(tmplVec(tmpl, "size", geom.V(1, 1), true)) {
		out["size"] = ecs.VecValue(c.size)
	}
	baseColour := white
	if v, ok := tmpl["colour"]; ok {
		if col, err := parseColour(v); err == nil {
			baseColour = col
		}
	}
	if c.colour.Hex() != baseColour.Hex() {
		out["colour"] = ecs.String(c.colour.Hex())
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// parseColour accepts "#rrggbb" or "r,g,b" with 0-255 channels.
func parseColour(v ecs.Value) (colorful.Color, error) {
	s := strings.TrimSpace(v.String())
	if strings.HasPrefix(s, "#") {
		return colorful.Hex(s)
	}
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return colorful.Color{}, fmt.Errorf("expected \"#rrggbb\" or \"r,g,b\", got %q", s)
	}
	var ch [3]float64
	for i, p := range parts {
		f, err := ecs.String(p).Float()
		if err != nil {
			return colorful.Color{}, err
		}
		if f < 0 || f > 255 {
			return colorful.Color{}, fmt.Errorf("channel %v out of range", f)
		}
		ch[i] = f / 255
	}
	return colorful.Color{R: ch[0], G: ch[1], B: ch[2]}, nil
}
