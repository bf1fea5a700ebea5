package data

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/worldsim/worldsim/internal/component"
	"github.com/worldsim/worldsim/internal/core/ecs"
)

// Declaration is one record of components.yaml: a component name bound to a
// class, plus the names that must be declared before it can be instantiated.
type Declaration struct {
	Name     string
	Class    string
	Required []string
}

type declarationRecord struct {
	Name     string    `yaml:"name"`
	Class    string    `yaml:"class"`
	Required yaml.Node `yaml:"required"`
}

// LoadDeclarations loads a component declaration file. A file that cannot be
// read or is not a YAML list is an error; a bad record is skipped with a
// warning.
func LoadDeclarations(path string, log *zap.Logger) ([]Declaration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read component declarations: %w", err)
	}
	decls, err := ParseDeclarations(raw, log.With(zap.String("file", path)))
	if err != nil {
		return nil, fmt.Errorf("parse component declarations %s: %w", path, err)
	}
	return decls, nil
}

// ParseDeclarations decodes each record on its own so one malformed entry
// does not prevent the rest from loading.
func ParseDeclarations(raw []byte, log *zap.Logger) ([]Declaration, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		return nil, nil // empty file
	}
	list := doc.Content[0]
	if list.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: expected a list of declarations", list.Line)
	}

	decls := make([]Declaration, 0, len(list.Content))
	seen := make(map[string]int, len(list.Content))
	for _, n := range list.Content {
		d, err := decodeDeclaration(n)
		if err != nil {
			log.Warn("skip component declaration", zap.Int("line", n.Line), zap.Error(err))
			continue
		}
		if i, dup := seen[d.Name]; dup {
			// Later records win, the same as re-declaring on the registry.
			log.Warn("component declared twice", zap.String("name", d.Name), zap.Int("line", n.Line))
			decls[i] = d
			continue
		}
		seen[d.Name] = len(decls)
		decls = append(decls, d)
	}
	return decls, nil
}

func decodeDeclaration(n *yaml.Node) (Declaration, error) {
	var rec declarationRecord
	if err := n.Decode(&rec); err != nil {
		return Declaration{}, err
	}
	d := Declaration{Name: strings.TrimSpace(rec.Name), Class: strings.TrimSpace(rec.Class)}
	if d.Name == "" {
		return Declaration{}, fmt.Errorf("missing name")
	}
	if d.Class == "" {
		return Declaration{}, fmt.Errorf("%s: missing class", d.Name)
	}
	req, err := parseRequired(&rec.Required)
	if err != nil {
		return Declaration{}, fmt.Errorf("%s: %w", d.Name, err)
	}
	d.Required = req
	return d, nil
}

// parseRequired accepts "a, b", the literal "none", an absent key, or a YAML
// list of names.
func parseRequired(n *yaml.Node) ([]string, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil, nil
		}
		s := strings.TrimSpace(n.Value)
		if s == "" || strings.EqualFold(s, "none") {
			return nil, nil
		}
		var out []string
		for _, p := range strings.Split(s, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				return nil, fmt.Errorf("empty name in required %q", s)
			}
			out = append(out, p)
		}
		return out, nil
	case yaml.SequenceNode:
		var out []string
		if err := n.Decode(&out); err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("line %d: required must be a string or a list", n.Line)
}

// Declare binds every declaration to its class and declares it on r. A
// declaration naming an unknown class is skipped with a warning. It returns
// the number of components declared.
func Declare(r *ecs.Registry, decls []Declaration, classes map[string]component.Class, log *zap.Logger) int {
	n := 0
	for _, d := range decls {
		class, ok := classes[d.Class]
		if !ok {
			log.Warn("skip component declaration: unknown class",
				zap.String("name", d.Name), zap.String("class", d.Class))
			continue
		}
		r.Declare(d.Name, component.Bind(class, d.Name), d.Required...)
		n++
	}
	return n
}
