// Command tplresolve prints resolved entity templates and checks that they
// build against the component declarations.
//
//	tplresolve show  [-dir data/yaml/templates] [name ...]
//	tplresolve check [-dir ...] [-components data/yaml/components.yaml] [-scripts scripts]
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/worldsim/worldsim/internal/component"
	"github.com/worldsim/worldsim/internal/core/ecs"
	"github.com/worldsim/worldsim/internal/data"
	"github.com/worldsim/worldsim/internal/scripting"
)

func printUsage() {
	fmt.Println("Usage: tplresolve <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  show    print resolved templates as YAML")
	fmt.Println("  check   instantiate every template against the component declarations")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		printUsage()
		return
	}

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	dir := fs.String("dir", "data/yaml/templates", "template directory")
	comps := fs.String("components", "data/yaml/components.yaml", "component declaration file")
	scripts := fs.String("scripts", "scripts", "script directory")
	verbose := fs.Bool("v", false, "log skipped files and templates")
	_ = fs.Parse(os.Args[2:])

	log := zap.NewNop()
	if *verbose {
		log, _ = zap.NewDevelopment()
	}

	var err error
	switch cmd {
	case "show":
		var (
			reg   *ecs.Registry
			table *data.TemplateTable
		)
		if reg, err = registry(*comps, nil, log); err == nil {
			if table, err = loadTable(*dir, reg, log); err == nil {
				err = show(os.Stdout, table, fs.Args())
			}
		}
	case "check":
		var failed int
		failed, err = check(os.Stdout, *dir, *comps, *scripts, log)
		if err == nil && failed > 0 {
			err = fmt.Errorf("%d template(s) failed to build", failed)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

// registry declares the components listed in file. engine may be nil when
// nothing is built from the registry.
func registry(file string, engine *scripting.Engine, log *zap.Logger) (*ecs.Registry, error) {
	decls, err := data.LoadDeclarations(file, log)
	if err != nil {
		return nil, err
	}
	reg := ecs.NewRegistry()
	data.Declare(reg, decls, component.Classes(component.Env{Scripts: engine, Log: log}), log)
	return reg, nil
}

// loadTable resolves the templates in dir. Field names are canonicalized
// against reg; a nil reg keeps them as written.
func loadTable(dir string, reg *ecs.Registry, log *zap.Logger) (*data.TemplateTable, error) {
	tpls, err := data.LoadTemplateDir(dir, log)
	if err != nil {
		return nil, err
	}
	return data.ResolveAll(tpls, reg, log)
}

// resolvedDoc is the printed form of one resolved template.
type resolvedDoc struct {
	Name        string              `yaml:"name"`
	Parent      string              `yaml:"parent,omitempty"`
	Fingerprint string              `yaml:"fingerprint"`
	Components  []ecs.ComponentInfo `yaml:"components"`
}

func show(w io.Writer, table *data.TemplateTable, names []string) error {
	if len(names) == 0 {
		names = table.Names()
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for _, n := range names {
		t, ok := table.Get(n)
		if !ok {
			return fmt.Errorf("template %q not found", n)
		}
		doc := resolvedDoc{
			Name:        t.Name(),
			Parent:      t.Parent(),
			Fingerprint: fmt.Sprintf("%016x", t.Fingerprint()),
			Components:  t.Components(),
		}
		if err := enc.Encode(doc); err != nil {
			return err
		}
	}
	return enc.Close()
}

func check(w io.Writer, dir, comps, scripts string, log *zap.Logger) (int, error) {
	engine, err := scripting.NewEngine(scripts, log)
	if err != nil {
		return 0, err
	}
	defer engine.Close()

	reg, err := registry(comps, engine, log)
	if err != nil {
		return 0, err
	}
	table, err := loadTable(dir, reg, log)
	if err != nil {
		return 0, err
	}

	failed := 0
	for _, n := range table.Names() {
		t, _ := table.Get(n)
		built, err := reg.Build(t.Components())
		if err == nil {
			var o *ecs.GameObject
			if o, err = ecs.NewGameObject(1, n, built); err == nil {
				o.Destroy()
			}
		}
		if err != nil {
			failed++
			fmt.Fprintf(w, "FAIL  %-24s %v\n", n, err)
			continue
		}
		fmt.Fprintf(w, "ok    %-24s %d components\n", n, len(built))
	}
	return failed, nil
}
