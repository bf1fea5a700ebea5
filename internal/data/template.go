package data

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/worldsim/worldsim/internal/core/ecs"
)

// Template is an entity blueprint as written on disk, before inheritance is
// applied.
type Template struct {
	Name       string
	Parent     string // empty for a root template
	Components []ecs.ComponentInfo
	Source     string // file it was read from
}

type templateFile struct {
	Name       string    `yaml:"name"`
	Parent     string    `yaml:"parent"`
	Components yaml.Node `yaml:"components"`
}

// ParseTemplate decodes one template document. Each entry of components is
// either a bare component name or a single-key map from the name to its field
// overrides. A scalar in place of the override map is shorthand for the
// component's primary field.
func ParseTemplate(raw []byte) (Template, error) {
	var f templateFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Template{}, err
	}
	t := Template{Name: strings.TrimSpace(f.Name), Parent: strings.TrimSpace(f.Parent)}
	if t.Name == "" {
		return Template{}, fmt.Errorf("missing name")
	}
	if t.Parent == t.Name {
		return Template{}, fmt.Errorf("%s: template is its own parent", t.Name)
	}
	comps, err := parseComponentList(&f.Components)
	if err != nil {
		return Template{}, fmt.Errorf("%s: %w", t.Name, err)
	}
	t.Components = comps
	return t, nil
}

func parseComponentList(n *yaml.Node) ([]ecs.ComponentInfo, error) {
	if n.Kind == 0 || n.Tag == "!!null" {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: components must be a list", n.Line)
	}
	out := make([]ecs.ComponentInfo, 0, len(n.Content))
	seen := make(map[string]bool, len(n.Content))
	for _, e := range n.Content {
		info, err := parseComponentEntry(e)
		if err != nil {
			return nil, err
		}
		if seen[info.Name] {
			return nil, fmt.Errorf("line %d: component %q listed twice", e.Line, info.Name)
		}
		seen[info.Name] = true
		out = append(out, info)
	}
	return out, nil
}

func parseComponentEntry(e *yaml.Node) (ecs.ComponentInfo, error) {
	switch e.Kind {
	case yaml.ScalarNode:
		name := strings.TrimSpace(e.Value)
		if name == "" {
			return ecs.ComponentInfo{}, fmt.Errorf("line %d: empty component name", e.Line)
		}
		return ecs.ComponentInfo{Name: name, Fields: ecs.Fields{}}, nil
	case yaml.MappingNode:
		if len(e.Content) != 2 {
			return ecs.ComponentInfo{}, fmt.Errorf("line %d: component entry must have exactly one key", e.Line)
		}
		name := strings.TrimSpace(e.Content[0].Value)
		if name == "" {
			return ecs.ComponentInfo{}, fmt.Errorf("line %d: empty component name", e.Line)
		}
		fields, err := parseFields(e.Content[1])
		if err != nil {
			return ecs.ComponentInfo{}, fmt.Errorf("%s: %w", name, err)
		}
		return ecs.ComponentInfo{Name: name, Fields: fields}, nil
	}
	return ecs.ComponentInfo{}, fmt.Errorf("line %d: unexpected component entry", e.Line)
}

func parseFields(v *yaml.Node) (ecs.Fields, error) {
	switch v.Kind {
	case yaml.ScalarNode:
		if v.Tag == "!!null" {
			return ecs.Fields{}, nil
		}
		var val ecs.Value
		if err := v.Decode(&val); err != nil {
			return nil, err
		}
		return ecs.Fields{ecs.PrimaryField: val}, nil
	case yaml.MappingNode:
		fields := ecs.Fields{}
		if err := v.Decode(&fields); err != nil {
			return nil, err
		}
		return fields, nil
	}
	return nil, fmt.Errorf("line %d: overrides must be a map or a scalar", v.Line)
}

// LoadTemplate reads and parses a single template file.
func LoadTemplate(path string) (Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Template{}, fmt.Errorf("read template: %w", err)
	}
	t, err := ParseTemplate(raw)
	if err != nil {
		return Template{}, fmt.Errorf("parse template %s: %w", path, err)
	}
	t.Source = path
	return t, nil
}

// LoadTemplateDir parses every *.yaml and *.yml file in dir, one template per
// file. Files are parsed concurrently; a file that fails to parse is skipped
// with a warning. Results are ordered by file name. When two files declare
// the same template name the first one wins.
func LoadTemplateDir(dir string, log *zap.Logger) ([]Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read template dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	parsed := make([]Template, len(paths))
	ok := make([]bool, len(paths))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range paths {
		g.Go(func() error {
			t, err := LoadTemplate(p)
			if err != nil {
				log.Warn("skip template file", zap.String("file", p), zap.Error(err))
				return nil
			}
			parsed[i], ok[i] = t, true
			return nil
		})
	}
	_ = g.Wait() // per-file errors are logged, never returned

	out := make([]Template, 0, len(paths))
	byName := make(map[string]string, len(paths))
	for i, t := range parsed {
		if !ok[i] {
			continue
		}
		if prev, dup := byName[t.Name]; dup {
			log.Warn("duplicate template name",
				zap.String("name", t.Name), zap.String("file", t.Source), zap.String("kept", prev))
			continue
		}
		byName[t.Name] = t.Source
		out = append(out, t)
	}
	return out, nil
}
