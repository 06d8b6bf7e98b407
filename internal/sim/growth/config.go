package growth

import (
	"time"

	"overgrowth.dev/internal/sim/noise"
)

type VineConfig struct {
	InitialWidth              float64
	WidthTaper                float64
	CurveResolutionMultiplier float64
	NoiseScale                float64
	ControlPointRandomness    float64
	MidpointOffset            float64
	GrowthDelay               time.Duration

	// Noise selects the jitter field: "perlin" (default) or "value".
	Noise string
}

type FloralConfig struct {
	MinBranchSteps    int
	MaxBranchSteps    int
	BranchWidth       float64
	BranchTaper       float64
	BranchOffsetScale float64
	MinClusterCount   int
	MaxClusterCount   int
	MinClusterScale   float64
	GrowthDelay       time.Duration
	BranchingChance   float64

	MinBranchWidth   float64
	StepLength       float64
	HeadingJitterDeg float64
	RootOffset       float64
	ForkWarmupSteps  int
}

type Config struct {
	Vine   VineConfig
	Floral FloralConfig

	DrawVines     bool
	AnchorMarkers bool
	MarkerScale   float64

	// MaxBranchTasks caps live branch tasks per engine and MaxBranchDepth caps
	// fork generations; forks past either limit are dropped. Values below 1
	// fall back to the defaults.
	MaxBranchTasks int
	MaxBranchDepth int
	NoiseSeed      int64
}

func DefaultConfig() Config {
	return Config{
		Vine: VineConfig{
			InitialWidth:              0.1,
			WidthTaper:                0.97,
			CurveResolutionMultiplier: 20,
			NoiseScale:                0.5,
			ControlPointRandomness:    0.2,
			MidpointOffset:            0.1,
			GrowthDelay:               10 * time.Millisecond,
			Noise:                     noise.KindPerlin,
		},
		Floral: FloralConfig{
			MinBranchSteps:    10,
			MaxBranchSteps:    20,
			BranchWidth:       0.2,
			BranchTaper:       0.9,
			BranchOffsetScale: 0.5,
			MinClusterCount:   3,
			MaxClusterCount:   6,
			MinClusterScale:   0.03,
			GrowthDelay:       20 * time.Millisecond,
			BranchingChance:   0.1,
			MinBranchWidth:    0.05,
			StepLength:        0.1,
			HeadingJitterDeg:  20,
			RootOffset:        0.1,
			ForkWarmupSteps:   5,
		},
		DrawVines:      true,
		AnchorMarkers:  true,
		MarkerScale:    0.1,
		MaxBranchTasks: 256,
		MaxBranchDepth: 32,
	}
}
