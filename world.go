package physics

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrInvalidWorld = errors.New("invalid world configuration")

// PhysicsWorld is one simulation domain. All bodies, colliders and triggers
// carrying its id are advanced together by a single StepWorld call.
type PhysicsWorld struct {
	Id uint64

	TicksPerSecond float64
	TimeStep       float64
	SubStep        int

	Gravity Vec3

	// Precision is the contact prediction distance: contacts further apart
	// than this are not generated.
	Precision float64

	PositionIterations int

	// QbvhDilation is the extra margin added to broad-phase AABBs on top of
	// the prediction distance.
	QbvhDilation float64

	Debug         bool
	DebugTriggers bool
	DebugTime     bool

	CombineFriction    FrictionCombiner
	CombineRestitution RestitutionCombiner
}

// SubStepTime returns the integration interval h.
func (w *PhysicsWorld) SubStepTime() float64 {
	return w.TimeStep / float64(w.SubStep)
}

// predictionDistance is the margin applied to broad-phase AABBs.
func (w *PhysicsWorld) predictionDistance() float64 {
	return w.Precision + w.QbvhDilation
}

func (w *PhysicsWorld) combineFriction(a, b Friction) Friction {
	if w.CombineFriction != nil {
		return w.CombineFriction(a, b)
	}
	return MeanFriction(a, b)
}

func (w *PhysicsWorld) combineRestitution(a, b Restitution) Restitution {
	if w.CombineRestitution != nil {
		return w.CombineRestitution(a, b)
	}
	return MeanRestitution(a, b)
}

// WorldBuilder assembles a valid PhysicsWorld.
type WorldBuilder struct {
	world       PhysicsWorld
	timeStepSet bool
	err         error
}

// NewWorld starts a builder with the usual defaults: 60 ticks per second,
// 4 substeps, earth gravity, 1mm precision, one position iteration.
func NewWorld() *WorldBuilder {
	return &WorldBuilder{world: PhysicsWorld{
		TicksPerSecond:     60,
		SubStep:            4,
		Gravity:            Vec3{0, -9.81, 0},
		Precision:          1e-3,
		PositionIterations: 1,
	}}
}

func (b *WorldBuilder) TicksPerSecond(tps float64) *WorldBuilder {
	b.world.TicksPerSecond = tps
	return b
}

// TimeStep overrides the derived 1/tps step. It must stay consistent with
// TicksPerSecond.
func (b *WorldBuilder) TimeStep(ts float64) *WorldBuilder {
	b.world.TimeStep = ts
	b.timeStepSet = true
	return b
}

func (b *WorldBuilder) SubStep(n int) *WorldBuilder {
	b.world.SubStep = n
	return b
}

func (b *WorldBuilder) Gravity(g Vec3) *WorldBuilder {
	b.world.Gravity = g
	return b
}

func (b *WorldBuilder) Precision(p float64) *WorldBuilder {
	b.world.Precision = p
	return b
}

func (b *WorldBuilder) PositionIterations(k int) *WorldBuilder {
	b.world.PositionIterations = k
	return b
}

func (b *WorldBuilder) QbvhDilation(d float64) *WorldBuilder {
	b.world.QbvhDilation = d
	return b
}

func (b *WorldBuilder) Debug(on bool) *WorldBuilder {
	b.world.Debug = on
	return b
}

func (b *WorldBuilder) DebugTriggers(on bool) *WorldBuilder {
	b.world.DebugTriggers = on
	return b
}

func (b *WorldBuilder) DebugTime(on bool) *WorldBuilder {
	b.world.DebugTime = on
	return b
}

func (b *WorldBuilder) CombineFriction(fn FrictionCombiner) *WorldBuilder {
	b.world.CombineFriction = fn
	return b
}

func (b *WorldBuilder) CombineRestitution(fn RestitutionCombiner) *WorldBuilder {
	b.world.CombineRestitution = fn
	return b
}

// Build validates the configuration. TimeStep defaults to 1/TicksPerSecond
// and, when set explicitly, must not drift from it by more than 1%.
func (b *WorldBuilder) Build() (*PhysicsWorld, error) {
	if b.err != nil {
		return nil, b.err
	}
	w := b.world
	if w.TicksPerSecond <= 0 || math.IsNaN(w.TicksPerSecond) {
		return nil, fmt.Errorf("%w: ticks_per_second %v must be > 0", ErrInvalidWorld, w.TicksPerSecond)
	}
	if w.SubStep < 1 {
		return nil, fmt.Errorf("%w: sub_step %d must be >= 1", ErrInvalidWorld, w.SubStep)
	}
	if w.PositionIterations < 1 {
		return nil, fmt.Errorf("%w: position_iterations %d must be >= 1", ErrInvalidWorld, w.PositionIterations)
	}
	if w.Precision < 0 {
		return nil, fmt.Errorf("%w: precision %v must be >= 0", ErrInvalidWorld, w.Precision)
	}
	if w.QbvhDilation < 0 {
		return nil, fmt.Errorf("%w: qbvh_dilation %v must be >= 0", ErrInvalidWorld, w.QbvhDilation)
	}
	derived := 1 / w.TicksPerSecond
	if !b.timeStepSet {
		w.TimeStep = derived
	} else if w.TimeStep <= 0 || math.Abs(w.TimeStep-derived) > derived*0.01 {
		return nil, fmt.Errorf("%w: time_step %v is inconsistent with ticks_per_second %v",
			ErrInvalidWorld, w.TimeStep, w.TicksPerSecond)
	}
	return &w, nil
}

// worldConfig is the YAML document shape for LoadWorldConfig. Pointer fields
// distinguish absent from zero.
type worldConfig struct {
	TicksPerSecond     *float64    `yaml:"ticks_per_second"`
	TimeStep           *float64    `yaml:"time_step"`
	SubStep            *int        `yaml:"sub_step"`
	Gravity            *[3]float64 `yaml:"gravity"`
	Precision          *float64    `yaml:"precision"`
	PositionIterations *int        `yaml:"position_iterations"`
	QbvhDilation       *float64    `yaml:"qbvh_dilation"`
	Debug              *bool       `yaml:"debug"`
	DebugTriggers      *bool       `yaml:"debug_triggers"`
	DebugTime          *bool       `yaml:"debug_time"`
}

// LoadWorldConfig reads a world configuration from a YAML file and validates
// it through the regular builder.
func LoadWorldConfig(path string) (*PhysicsWorld, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read world config: %w", err)
	}
	var cfg worldConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse world config %s: %w", path, err)
	}

	b := NewWorld()
	if cfg.TicksPerSecond != nil {
		b.TicksPerSecond(*cfg.TicksPerSecond)
	}
	if cfg.TimeStep != nil {
		b.TimeStep(*cfg.TimeStep)
	}
	if cfg.SubStep != nil {
		b.SubStep(*cfg.SubStep)
	}
	if cfg.Gravity != nil {
		b.Gravity(Vec3{cfg.Gravity[0], cfg.Gravity[1], cfg.Gravity[2]})
	}
	if cfg.Precision != nil {
		b.Precision(*cfg.Precision)
	}
	if cfg.PositionIterations != nil {
		b.PositionIterations(*cfg.PositionIterations)
	}
	if cfg.QbvhDilation != nil {
		b.QbvhDilation(*cfg.QbvhDilation)
	}
	if cfg.Debug != nil {
		b.Debug(*cfg.Debug)
	}
	if cfg.DebugTriggers != nil {
		b.DebugTriggers(*cfg.DebugTriggers)
	}
	if cfg.DebugTime != nil {
		b.DebugTime(*cfg.DebugTime)
	}
	return b.Build()
}
