package tuning

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"overgrowth.dev/internal/sim/growth"
	"overgrowth.dev/internal/sim/mathx"
	"overgrowth.dev/internal/sim/noise"
	"overgrowth.dev/internal/sim/stream"
)

var ErrInvalid = errors.New("invalid tuning")

//go:embed tuning.schema.json
var schemaText string

type Tuning struct {
	SegmentSize []float64 `yaml:"segment_size" json:"segment_size"`
	LoadRadius  int       `yaml:"load_radius" json:"load_radius"`
	AnchorCount int       `yaml:"anchor_count" json:"anchor_count"`

	AnchorMarkers bool    `yaml:"anchor_markers" json:"anchor_markers"`
	MarkerScale   float64 `yaml:"marker_scale" json:"marker_scale"`
	DrawVines     bool    `yaml:"draw_vines" json:"draw_vines"`

	TickRateHz      int   `yaml:"tick_rate_hz" json:"tick_rate_hz"`
	MaxStepsPerTick int   `yaml:"max_steps_per_tick" json:"max_steps_per_tick"`
	MaxBranchTasks  int   `yaml:"max_branch_tasks" json:"max_branch_tasks"`
	MaxBranchDepth  int   `yaml:"max_branch_depth" json:"max_branch_depth"`
	NoiseSeed       int64 `yaml:"noise_seed" json:"noise_seed"`

	Vine   Vine   `yaml:"vine" json:"vine"`
	Floral Floral `yaml:"floral" json:"floral"`
}

type Vine struct {
	InitialWidth              float64 `yaml:"initial_width" json:"initial_width"`
	WidthTaper                float64 `yaml:"width_taper" json:"width_taper"`
	CurveResolutionMultiplier float64 `yaml:"curve_resolution_multiplier" json:"curve_resolution_multiplier"`
	NoiseScale                float64 `yaml:"noise_scale" json:"noise_scale"`
	ControlPointRandomness    float64 `yaml:"control_point_randomness" json:"control_point_randomness"`
	MidpointOffset            float64 `yaml:"midpoint_offset" json:"midpoint_offset"`
	GrowthDelayMs             int     `yaml:"growth_delay_ms" json:"growth_delay_ms"`
	Noise                     string  `yaml:"noise" json:"noise"`
}

type Floral struct {
	MinBranchSteps    int     `yaml:"min_branch_steps" json:"min_branch_steps"`
	MaxBranchSteps    int     `yaml:"max_branch_steps" json:"max_branch_steps"`
	BranchWidth       float64 `yaml:"branch_width" json:"branch_width"`
	BranchTaper       float64 `yaml:"branch_taper" json:"branch_taper"`
	BranchOffsetScale float64 `yaml:"branch_offset_scale" json:"branch_offset_scale"`
	MinClusterCount   int     `yaml:"min_cluster_count" json:"min_cluster_count"`
	MaxClusterCount   int     `yaml:"max_cluster_count" json:"max_cluster_count"`
	MinClusterScale   float64 `yaml:"min_cluster_scale" json:"min_cluster_scale"`
	GrowthDelayMs     int     `yaml:"growth_delay_ms" json:"growth_delay_ms"`
	BranchingChance   float64 `yaml:"branching_chance" json:"branching_chance"`
	MinBranchWidth    float64 `yaml:"min_branch_width" json:"min_branch_width"`
	StepLength        float64 `yaml:"step_length" json:"step_length"`
	HeadingJitterDeg  float64 `yaml:"heading_jitter_deg" json:"heading_jitter_deg"`
	RootOffset        float64 `yaml:"root_offset" json:"root_offset"`
	ForkWarmupSteps   int     `yaml:"fork_warmup_steps" json:"fork_warmup_steps"`
}

func Defaults() Tuning {
	g := growth.DefaultConfig()
	return Tuning{
		SegmentSize:     []float64{10, 10},
		LoadRadius:      1,
		AnchorCount:     10,
		AnchorMarkers:   g.AnchorMarkers,
		MarkerScale:     g.MarkerScale,
		DrawVines:       g.DrawVines,
		TickRateHz:      20,
		MaxStepsPerTick: 0,
		MaxBranchTasks:  g.MaxBranchTasks,
		MaxBranchDepth:  g.MaxBranchDepth,
		NoiseSeed:       g.NoiseSeed,
		Vine: Vine{
			InitialWidth:              g.Vine.InitialWidth,
			WidthTaper:                g.Vine.WidthTaper,
			CurveResolutionMultiplier: g.Vine.CurveResolutionMultiplier,
			NoiseScale:                g.Vine.NoiseScale,
			ControlPointRandomness:    g.Vine.ControlPointRandomness,
			MidpointOffset:            g.Vine.MidpointOffset,
			GrowthDelayMs:             int(g.Vine.GrowthDelay / time.Millisecond),
			Noise:                     g.Vine.Noise,
		},
		Floral: Floral{
			MinBranchSteps:    g.Floral.MinBranchSteps,
			MaxBranchSteps:    g.Floral.MaxBranchSteps,
			BranchWidth:       g.Floral.BranchWidth,
			BranchTaper:       g.Floral.BranchTaper,
			BranchOffsetScale: g.Floral.BranchOffsetScale,
			MinClusterCount:   g.Floral.MinClusterCount,
			MaxClusterCount:   g.Floral.MaxClusterCount,
			MinClusterScale:   g.Floral.MinClusterScale,
			GrowthDelayMs:     int(g.Floral.GrowthDelay / time.Millisecond),
			BranchingChance:   g.Floral.BranchingChance,
			MinBranchWidth:    g.Floral.MinBranchWidth,
			StepLength:        g.Floral.StepLength,
			HeadingJitterDeg:  g.Floral.HeadingJitterDeg,
			RootOffset:        g.Floral.RootOffset,
			ForkWarmupSteps:   g.Floral.ForkWarmupSteps,
		},
	}
}

// Load reads a YAML file on top of Defaults, then normalizes and validates it.
// Keys missing from the file keep their default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (Tuning, error) {
	t := Defaults()
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

// Normalize fills values a partial file leaves unusable: a single segment_size
// entry is applied to both axes, and a zero tick rate or empty noise kind falls
// back to the default.
func (t *Tuning) Normalize() {
	switch len(t.SegmentSize) {
	case 0:
		t.SegmentSize = []float64{10, 10}
	case 1:
		t.SegmentSize = []float64{t.SegmentSize[0], t.SegmentSize[0]}
	}
	if t.TickRateHz == 0 {
		t.TickRateHz = 20
	}
	if t.Vine.Noise == "" {
		t.Vine.Noise = noise.KindPerlin
	}
}

func (t Tuning) Validate() error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var errs []error
	if t.Floral.MinBranchSteps > t.Floral.MaxBranchSteps {
		errs = append(errs, fmt.Errorf("floral.min_branch_steps %d > max_branch_steps %d", t.Floral.MinBranchSteps, t.Floral.MaxBranchSteps))
	}
	if t.Floral.MinClusterCount > t.Floral.MaxClusterCount {
		errs = append(errs, fmt.Errorf("floral.min_cluster_count %d > max_cluster_count %d", t.Floral.MinClusterCount, t.Floral.MaxClusterCount))
	}
	if t.Floral.MinClusterScale > t.Floral.BranchWidth {
		errs = append(errs, fmt.Errorf("floral.min_cluster_scale %v > branch_width %v", t.Floral.MinClusterScale, t.Floral.BranchWidth))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func compiledSchema() (*jsonschema.Schema, error) {
	s, err := jsonschema.CompileString("tuning.schema.json", schemaText)
	if err != nil {
		return nil, fmt.Errorf("tuning schema: %w", err)
	}
	return s, nil
}

func (t Tuning) TickDuration() time.Duration {
	if t.TickRateHz <= 0 {
		return 50 * time.Millisecond
	}
	return time.Second / time.Duration(t.TickRateHz)
}

func (t Tuning) Growth() growth.Config {
	return growth.Config{
		Vine: growth.VineConfig{
			InitialWidth:              t.Vine.InitialWidth,
			WidthTaper:                t.Vine.WidthTaper,
			CurveResolutionMultiplier: t.Vine.CurveResolutionMultiplier,
			NoiseScale:                t.Vine.NoiseScale,
			ControlPointRandomness:    t.Vine.ControlPointRandomness,
			MidpointOffset:            t.Vine.MidpointOffset,
			GrowthDelay:               time.Duration(t.Vine.GrowthDelayMs) * time.Millisecond,
			Noise:                     t.Vine.Noise,
		},
		Floral: growth.FloralConfig{
			MinBranchSteps:    t.Floral.MinBranchSteps,
			MaxBranchSteps:    t.Floral.MaxBranchSteps,
			BranchWidth:       t.Floral.BranchWidth,
			BranchTaper:       t.Floral.BranchTaper,
			BranchOffsetScale: t.Floral.BranchOffsetScale,
			MinClusterCount:   t.Floral.MinClusterCount,
			MaxClusterCount:   t.Floral.MaxClusterCount,
			MinClusterScale:   t.Floral.MinClusterScale,
			GrowthDelay:       time.Duration(t.Floral.GrowthDelayMs) * time.Millisecond,
			BranchingChance:   t.Floral.BranchingChance,
			MinBranchWidth:    t.Floral.MinBranchWidth,
			StepLength:        t.Floral.StepLength,
			HeadingJitterDeg:  t.Floral.HeadingJitterDeg,
			RootOffset:        t.Floral.RootOffset,
			ForkWarmupSteps:   t.Floral.ForkWarmupSteps,
		},
		DrawVines:      t.DrawVines,
		AnchorMarkers:  t.AnchorMarkers,
		MarkerScale:    t.MarkerScale,
		MaxBranchTasks: t.MaxBranchTasks,
		MaxBranchDepth: t.MaxBranchDepth,
		NoiseSeed:      t.NoiseSeed,
	}
}

func (t Tuning) Stream() stream.Config {
	size := mathx.V(10, 10)
	if len(t.SegmentSize) >= 2 {
		size = mathx.V(t.SegmentSize[0], t.SegmentSize[1])
	}
	return stream.Config{
		SegmentSize: size,
		LoadRadius:  t.LoadRadius,
		AnchorCount: t.AnchorCount,
		Growth:      t.Growth(),
	}
}
