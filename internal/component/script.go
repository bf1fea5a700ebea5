package component

import (
	"errors"

	"go.uber.org/zap"

	"github.com/worldsim/worldsim/internal/core/ecs"
	"github.com/worldsim/worldsim/internal/core/event"
	"github.com/worldsim/worldsim/internal/geom"
	"github.com/worldsim/worldsim/internal/scripting"
)

const defaultScriptFunc = "on_tick"

// Script runs a Lua movement rule on every tick. The rule receives the
// owner's position and angle and may return new values for either.
type Script struct {
	ecs.Base
	engine *scripting.Engine
	log    *zap.Logger

	file   string
	source string
	fn     string
	module *scripting.Module
	failed bool
}

func newScript(name string, engine *scripting.Engine, log *zap.Logger) ecs.Component {
	return &Script{Base: ecs.NewBase(name), engine: engine, log: log, fn: defaultScriptFunc}
}

func (c *Script) File() string { return c.file }

func (c *Script) Handle(ev event.Event) {
	t, ok := ev.(event.Tick)
	if !ok || c.module == nil || c.failed {
		return
	}
	o := c.Owner()
	if o == nil || o.PositionComponent() == nil {
		return
	}
	p := o.Position()
	in := scripting.StepInput{Handle: uint64(o.Handle()), X: p.X, Y: p.Y, DT: t.DT}
	if r := o.Rotation(); r != nil {
		in.Angle = r.Angle()
	}
	res, err := c.engine.Step(c.module, c.fn, in)
	if err != nil {
		// A broken rule stops running rather than spamming the log every tick.
		c.failed = true
		c.log.Error("movement script failed",
			zap.Uint64("handle", uint64(o.Handle())),
			zap.String("script", c.module.Name()),
			zap.Error(err))
		return
	}
	if res.Turned && o.Rotation() != nil {
		o.Rotation().SetAngle(res.Angle)
	}
	if res.Moved {
		o.PositionComponent().SetPosition(geom.V(res.X, res.Y))
	}
}

var scriptAliases = map[string]string{ecs.PrimaryField: "file"}

func (c *Script) CanonicalFields(f ecs.Fields) ecs.Fields {
	return ecs.RenameFields(f, scriptAliases)
}

// OverrideFields resolves the script reference. A missing file, a compile
// error or a missing function is a field error and aborts the entity build.
func (c *Script) OverrideFields(f ecs.Fields) error {
	f = c.CanonicalFields(f)
	for _, k := range f.Keys() {
		switch k {
		case "file":
			c.file = f[k].String()
		case "source":
			c.source = f[k].String()
		case "func":
			c.fn = f[k].String()
		default:
			return ecs.FieldErr(c.Name(), k, errUnknownField)
		}
	}
	if c.file == "" && c.source == "" {
		return nil
	}
	if c.engine == nil {
		return ecs.FieldErr(c.Name(), "file", errors.New("no script engine configured"))
	}
	var (
		m   *scripting.Module
		err error
	)
	if c.source != "" {
		m, err = c.engine.LoadSource(c.Name(), c.source)
	} else {
		m, err = c.engine.Load(c.file)
	}
	if err != nil {
		field := "file"
		if c.source != "" {
			field = "source"
		}
		return ecs.FieldErr(c.Name(), field, err)
	}
	if !m.Has(c.fn) {
		return ecs.FieldErr(c.Name(), "func", errors.New("script has no function "+c.fn))
	}
	c.module = m
	return nil
}

func (c *Script) SerializeOverrides(tmpl ecs.Fields) (ecs.Fields, bool) {
	tmpl = c.CanonicalFields(tmpl)
	out := ecs.Fields{}
	baseFile := ""
	if v, ok := tmpl["file"]; ok {
		baseFile = v.String()
	}
	if c.file != baseFile {
		out["file"] = ecs.String(c.file)
	}
	baseSource := ""
	if v, ok := tmpl["source"]; ok {
		baseSource = v.String()
	}
	if c.source != baseSource {
		out["source"] = ecs.String(c.source)
	}
	baseFn := defaultScriptFunc
	if v, ok := tmpl["func"]; ok {
		baseFn = v.String()
	}
	if c.fn != baseFn {
		out["func"] = ecs.String(c.fn)
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}
