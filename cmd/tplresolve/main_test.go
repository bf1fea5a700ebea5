package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return dir
}

func TestShowPrintsMergedTemplates(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"base.yaml":  "name: base\ncomponents:\n  - position\n  - scale: \"2,2\"\n",
		"child.yaml": "name: child\nparent: base\ncomponents:\n  - rotation: 45\n",
	})
	table, err := loadTable(dir, nil, zap.NewNop())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, show(&buf, table, []string{"child"}))

	var doc struct {
		Name       string `yaml:"name"`
		Parent     string `yaml:"parent"`
		Components []struct {
			Name   string         `yaml:"name"`
			Fields map[string]any `yaml:"fields"`
		} `yaml:"components"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	require.Equal(t, "child", doc.Name)
	require.Equal(t, "base", doc.Parent)
	require.Len(t, doc.Components, 3)
	require.Equal(t, "position", doc.Components[0].Name)
	require.Equal(t, "2,2", doc.Components[1].Fields["value"])
	require.Equal(t, 45, doc.Components[2].Fields["value"])

	require.Error(t, show(&buf, table, []string{"missing"}))
}

func TestCheckReportsBrokenTemplates(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"templates/ok.yaml":    "name: ok\ncomponents:\n  - position\n  - sprite: {index: 2}\n",
		"templates/bad.yaml":   "name: bad\ncomponents:\n  - position\n  - scale: wide\n",
		"templates/ghost.yaml": "name: ghost\ncomponents:\n  - rotation\n",
		"components.yaml": `
- name: position
  class: Position
- name: rotation
  class: Rotation
- name: scale
  class: Scale
- name: sprite
  class: Sprite
  required: position
`,
	})
	var buf bytes.Buffer
	failed, err := check(&buf, filepath.Join(dir, "templates"), filepath.Join(dir, "components.yaml"), "", zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 2, failed)
	require.Contains(t, buf.String(), "ok    ok")
	require.Contains(t, buf.String(), "FAIL  bad")
	require.Contains(t, buf.String(), "FAIL  ghost")
}

func TestShowUsesCanonicalFieldNames(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"templates/base.yaml":  "name: base\ncomponents:\n  - rotation\n  - spin: 90\n",
		"templates/child.yaml": "name: child\nparent: base\ncomponents:\n  - spin:\n      rate: 45\n",
		"components.yaml":      "- name: rotation\n  class: Rotation\n- name: spin\n  class: Spin\n",
	})
	reg, err := registry(filepath.Join(dir, "components.yaml"), nil, zap.NewNop())
	require.NoError(t, err)
	table, err := loadTable(filepath.Join(dir, "templates"), reg, zap.NewNop())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, show(&buf, table, []string{"child"}))
	var doc struct {
		Components []struct {
			Name   string         `yaml:"name"`
			Fields map[string]any `yaml:"fields"`
		} `yaml:"components"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Components, 2)
	require.Equal(t, map[string]any{"rate": 45}, doc.Components[1].Fields)
}
