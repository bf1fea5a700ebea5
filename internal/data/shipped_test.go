package data

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/worldsim/worldsim/internal/component"
	"github.com/worldsim/worldsim/internal/core/ecs"
	"github.com/worldsim/worldsim/internal/scripting"
)

const shipped = "../../data/yaml/"

func TestShippedDeclarationsMatchBuiltins(t *testing.T) {
	decls, err := LoadDeclarations(shipped+"components.yaml", zap.NewNop())
	require.NoError(t, err)
	require.Len(t, decls, len(component.Builtins))
	for i, b := range component.Builtins {
		require.Equal(t, b.Name, decls[i].Name)
		require.Equal(t, b.Class, decls[i].Class)
		require.ElementsMatch(t, b.Required, decls[i].Required, b.Name)
	}
}

func TestShippedTemplatesBuild(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	log := zap.New(core)

	engine, err := scripting.NewEngine("../../scripts", log)
	require.NoError(t, err)
	defer engine.Close()

	decls, err := LoadDeclarations(shipped+"components.yaml", log)
	require.NoError(t, err)
	reg := ecs.NewRegistry()
	require.Equal(t, len(decls), Declare(reg, decls, component.Classes(component.Env{Scripts: engine, Log: log}), log))

	tpls, err := LoadTemplateDir(shipped+"templates", log)
	require.NoError(t, err)
	table, err := ResolveAll(tpls, reg, log)
	require.NoError(t, err)
	require.Equal(t, len(tpls), table.Len())
	require.Zero(t, logs.Len(), "%v", logs.All())

	for _, name := range table.Names() {
		tpl, _ := table.Get(name)
		comps, err := reg.Build(tpl.Components())
		require.NoError(t, err, name)
		o, err := ecs.NewGameObject(1, name, comps)
		require.NoError(t, err, name)
		o.Destroy()
	}

	entries, err := LoadSpawnList(shipped + "spawn_list.yaml")
	require.NoError(t, err)
	for _, e := range entries {
		_, ok := table.Get(e.Template)
		require.True(t, ok, e.Template)
	}
}
