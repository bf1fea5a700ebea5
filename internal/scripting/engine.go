package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for movement rules.
// Single-goroutine access only (simulation loop).
type Engine struct {
	vm      *lua.LState
	dir     string
	modules map[string]*Module
	log     *zap.Logger
}

// Module is a loaded script: the table its chunk returned.
type Module struct {
	name  string
	table *lua.LTable
}

func (m *Module) Name() string { return m.name }

// Has reports whether the module exports a function called fn.
func (m *Module) Has(fn string) bool {
	_, ok := m.table.RawGetString(fn).(*lua.LFunction)
	return ok
}

// NewEngine creates a Lua engine rooted at scriptsDir. Shared helper scripts
// in scriptsDir/lib are loaded as globals up front; movement rule modules are
// loaded on demand.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{
		vm:      vm,
		dir:     scriptsDir,
		modules: make(map[string]*Module),
		log:     log,
	}

	if scriptsDir != "" {
		if err := e.loadDir(filepath.Join(scriptsDir, "lib")); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load lib scripts: %w", err)
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Load returns the module in file rel (relative to the scripts dir), loading
// it on first use.
func (e *Engine) Load(rel string) (*Module, error) {
	key := "file:" + rel
	if m, ok := e.modules[key]; ok {
		return m, nil
	}
	clean := filepath.Clean(rel)
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return nil, fmt.Errorf("script %q escapes the scripts dir", rel)
	}
	path := filepath.Join(e.dir, clean)
	fn, err := e.vm.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load script %s: %w", path, err)
	}
	m, err := e.run(rel, fn)
	if err != nil {
		return nil, err
	}
	e.modules[key] = m
	e.log.Debug("loaded lua module", zap.String("file", path))
	return m, nil
}

// LoadSource compiles an inline module. Identical sources share one module.
func (e *Engine) LoadSource(name, src string) (*Module, error) {
	key := "src:" + src
	if m, ok := e.modules[key]; ok {
		return m, nil
	}
	fn, err := e.vm.LoadString(src)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	m, err := e.run(name, fn)
	if err != nil {
		return nil, err
	}
	e.modules[key] = m
	return m, nil
}

func (e *Engine) run(name string, fn *lua.LFunction) (*Module, error) {
	e.vm.Push(fn)
	if err := e.vm.PCall(0, 1, nil); err != nil {
		return nil, fmt.Errorf("run %s: %w", name, err)
	}
	ret := e.vm.Get(-1)
	e.vm.Pop(1)
	t, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("script %s must return a table, got %s", name, ret.Type())
	}
	return &Module{name: name, table: t}, nil
}

// StepInput is the state handed to a movement rule.
type StepInput struct {
	Handle uint64
	X, Y   float64
	Angle  float64
	DT     float64
}

// StepResult holds whatever the rule chose to change.
type StepResult struct {
	X, Y   float64
	Angle  float64
	Moved  bool
	Turned bool
}

// Step calls fn(ctx) on module m. The function may return nil (no change) or
// a table with any of x, y, angle.
func (e *Engine) Step(m *Module, fn string, in StepInput) (StepResult, error) {
	res := StepResult{X: in.X, Y: in.Y, Angle: in.Angle}
	f, ok := m.table.RawGetString(fn).(*lua.LFunction)
	if !ok {
		return res, fmt.Errorf("script %s has no function %q", m.name, fn)
	}

	ctx := e.vm.NewTable()
	ctx.RawSetString("handle", lua.LNumber(in.Handle))
	ctx.RawSetString("x", lua.LNumber(in.X))
	ctx.RawSetString("y", lua.LNumber(in.Y))
	ctx.RawSetString("angle", lua.LNumber(in.Angle))
	ctx.RawSetString("dt", lua.LNumber(in.DT))

	if err := e.vm.CallByParam(lua.P{
		Fn:      f,
		NRet:    1,
		Protect: true,
	}, ctx); err != nil {
		return res, fmt.Errorf("script %s.%s: %w", m.name, fn, err)
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return res, nil
	}
	if v, ok := lNum(rt, "x"); ok {
		res.X, res.Moved = v, true
	}
	if v, ok := lNum(rt, "y"); ok {
		res.Y, res.Moved = v, true
	}
	if v, ok := lNum(rt, "angle"); ok {
		res.Angle, res.Turned = v, true
	}
	return res, nil
}

// lNum reads a numeric field from a Lua table.
func lNum(t *lua.LTable, key string) (float64, bool) {
	n, ok := t.RawGetString(key).(lua.LNumber)
	return float64(n), ok
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
