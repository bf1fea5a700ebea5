package data

import (
	"fmt"
	"math"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/worldsim/worldsim/internal/core/ecs"
	"github.com/worldsim/worldsim/internal/geom"
)

// SpawnEntry places count copies of a template around a point.
type SpawnEntry struct {
	Template string  `yaml:"template"`
	At       string  `yaml:"at"`     // "x,y"
	Count    int     `yaml:"count"`  // default 1
	Jitter   float64 `yaml:"jitter"` // scatter radius around At
	Note     string  `yaml:"note"`
}

// LoadSpawnList loads spawn_list.yaml.
func LoadSpawnList(path string) ([]SpawnEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spawn list: %w", err)
	}
	var entries []SpawnEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse spawn list: %w", err)
	}
	for i := range entries {
		e := &entries[i]
		if e.Template == "" {
			return nil, fmt.Errorf("spawn list entry %d: missing template", i)
		}
		if e.Count == 0 {
			e.Count = 1
		}
		if e.Count < 0 || e.Jitter < 0 {
			return nil, fmt.Errorf("spawn list entry %d (%s): negative count or jitter", i, e.Template)
		}
		if _, err := e.Origin(); err != nil {
			return nil, fmt.Errorf("spawn list entry %d (%s): %w", i, e.Template, err)
		}
	}
	return entries, nil
}

// Origin decodes At. An empty At is the world origin.
func (e SpawnEntry) Origin() (geom.Vec2, error) {
	if e.At == "" {
		return geom.Vec2{}, nil
	}
	return ecs.String(e.At).Vec2(false)
}

// Positions returns Count spawn points scattered uniformly within Jitter of
// the origin.
func (e SpawnEntry) Positions(rng *rand.Rand) []geom.Vec2 {
	o, _ := e.Origin()
	out := make([]geom.Vec2, e.Count)
	for i := range out {
		if e.Jitter == 0 {
			out[i] = o
			continue
		}
		r := e.Jitter * math.Sqrt(rng.Float64())
		a := rng.Float64() * 2 * math.Pi
		out[i] = o.Add(geom.V(r*math.Cos(a), r*math.Sin(a)))
	}
	return out
}
