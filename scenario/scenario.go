// Package scenario loads the description of a simulated world: its bounds,
// the tuning of its tree, the entities spawned at random and the fixed
// entities listed in a separate file.
package scenario

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/aukilabs/broadphase/featureflag"
	"github.com/aukilabs/broadphase/models"
	"github.com/aukilabs/broadphase/quadtree"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

const (
	ErrTypeRead    = "scenario_read"
	ErrTypeParse   = "scenario_parse"
	ErrTypeInvalid = "scenario_invalid"
)

// Scenario describes a world and how it is populated.
type Scenario struct {
	Name  string      `toml:"name"`
	World WorldConfig `toml:"world"`
	Spawn SpawnConfig `toml:"spawn"`

	// A YAML file listing fixed entities. A relative path is resolved from the
	// directory of the scenario file.
	EntitiesFile string `toml:"entities_file"`
}

type WorldConfig struct {
	Bounds        quadtree.Rect `toml:"bounds"`
	Capacity      int           `toml:"capacity"`
	MaxDepth      int           `toml:"max_depth"`
	MergeInterval int           `toml:"merge_interval"`
}

// SpawnConfig describes the entities created at random positions.
type SpawnConfig struct {
	Count       int     `toml:"count"`
	Seed        int64   `toml:"seed"`
	MinHalfSize float32 `toml:"min_half_size"`
	MaxHalfSize float32 `toml:"max_half_size"`
	MaxSpeed    float32 `toml:"max_speed"`

	// The share of spawned entities that never move, between 0 and 1.
	StaticRatio float32 `toml:"static_ratio"`
}

// Load reads the scenario at the given path. Values missing from the file
// keep their default.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("reading scenario failed").
			WithType(ErrTypeRead).
			WithTag("path", path).
			Wrap(err)
	}

	s := Default()
	md, err := toml.Decode(string(data), s)
	if err != nil {
		return nil, errors.New("parsing scenario failed").
			WithType(ErrTypeParse).
			WithTag("path", path).
			Wrap(err)
	}

	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}

		return nil, errors.New("scenario has unknown keys").
			WithType(ErrTypeParse).
			WithTag("path", path).
			WithTag("keys", strings.Join(keys, ","))
	}

	if s.EntitiesFile != "" && !filepath.IsAbs(s.EntitiesFile) {
		s.EntitiesFile = filepath.Join(filepath.Dir(path), s.EntitiesFile)
	}

	if err := s.Validate(); err != nil {
		return nil, errors.New("invalid scenario").
			WithTag("path", path).
			Wrap(err)
	}
	return s, nil
}

// Default returns the scenario used when none is given.
func Default() *Scenario {
	return &Scenario{
		Name: "default",
		World: WorldConfig{
			Bounds:        quadtree.DefaultBounds,
			Capacity:      quadtree.DefaultCapacity,
			MaxDepth:      quadtree.DefaultMaxDepth,
			MergeInterval: 10,
		},
		Spawn: SpawnConfig{
			Count:       200,
			Seed:        1,
			MinHalfSize: 2,
			MaxHalfSize: 8,
			MaxSpeed:    60,
		},
	}
}

func (s *Scenario) Validate() error {
	switch {
	case s.World.Bounds.Empty():
		return invalid("world bounds have no area", "bounds", s.World.Bounds)

	case s.World.Capacity < 0:
		return invalid("world capacity is negative", "capacity", s.World.Capacity)

	case s.World.MaxDepth < 0:
		return invalid("world max depth is negative", "max_depth", s.World.MaxDepth)

	case s.Spawn.Count < 0:
		return invalid("spawn count is negative", "count", s.Spawn.Count)

	case s.Spawn.MinHalfSize < 0 || s.Spawn.MaxHalfSize < s.Spawn.MinHalfSize:
		return invalid("spawn half sizes are not a valid range", "min_half_size", s.Spawn.MinHalfSize)

	case 2*s.Spawn.MaxHalfSize > s.World.Bounds.W || 2*s.Spawn.MaxHalfSize > s.World.Bounds.H:
		return invalid("spawned entities do not fit in the world", "max_half_size", s.Spawn.MaxHalfSize)

	case s.Spawn.MaxSpeed < 0:
		return invalid("spawn max speed is negative", "max_speed", s.Spawn.MaxSpeed)

	case s.Spawn.StaticRatio < 0 || s.Spawn.StaticRatio > 1:
		return invalid("spawn static ratio is not between 0 and 1", "static_ratio", s.Spawn.StaticRatio)

	default:
		return nil
	}
}

func invalid(msg, key string, v any) error {
	return errors.New(msg).
		WithType(ErrTypeInvalid).
		WithTag(key, v)
}

// WorldOptions returns the options of the world described by the scenario.
func (s *Scenario) WorldOptions(flags featureflag.FeatureFlag) models.WorldOptions {
	return models.WorldOptions{
		Name:          s.Name,
		Bounds:        s.World.Bounds,
		Capacity:      s.World.Capacity,
		MaxDepth:      s.World.MaxDepth,
		MergeInterval: s.World.MergeInterval,
		FeatureFlags:  flags,
	}
}

// Populate adds the fixed entities and then the spawned entities of the
// scenario to the given world. It returns the number of added entities.
func (s *Scenario) Populate(w *models.World) (int, error) {
	var added int

	if s.EntitiesFile != "" {
		fixed, err := LoadEntities(s.EntitiesFile)
		if err != nil {
			return added, err
		}

		for _, f := range fixed {
			if _, err := w.AddEntity(f.Body, f.Static); err != nil {
				return added, errors.New("adding fixed entity failed").
					WithTag("scenario", s.Name).
					WithTag("index", added).
					Wrap(err)
			}
			added++
		}
	}

	rnd := rand.New(rand.NewSource(s.Spawn.Seed))
	bounds := w.Bounds()

	for i := 0; i < s.Spawn.Count; i++ {
		if _, err := w.AddEntity(s.spawn(rnd, bounds), rnd.Float32() < s.Spawn.StaticRatio); err != nil {
			return added, errors.New("adding spawned entity failed").
				WithTag("scenario", s.Name).
				Wrap(err)
		}
		added++
	}

	logs.WithTag("scenario", s.Name).
		WithTag("entities", added).
		Info("world populated")
	return added, nil
}

func (s *Scenario) spawn(rnd *rand.Rand, bounds quadtree.Rect) models.Body {
	halfW := between(rnd, s.Spawn.MinHalfSize, s.Spawn.MaxHalfSize)
	halfH := between(rnd, s.Spawn.MinHalfSize, s.Spawn.MaxHalfSize)

	return models.Body{
		X:     between(rnd, bounds.X+halfW, bounds.MaxX()-halfW),
		Y:     between(rnd, bounds.Y+halfH, bounds.MaxY()-halfH),
		HalfW: halfW,
		HalfH: halfH,
		VX:    between(rnd, -s.Spawn.MaxSpeed, s.Spawn.MaxSpeed),
		VY:    between(rnd, -s.Spawn.MaxSpeed, s.Spawn.MaxSpeed),
	}
}

func between(rnd *rand.Rand, lo, hi float32) float32 {
	return lo + rnd.Float32()*(hi-lo)
}
