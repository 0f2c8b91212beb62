package renderer

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ShadowType selects the shadow filtering technique.
type ShadowType string

const (
	BasicShadow   ShadowType = "basic"
	PCFShadow     ShadowType = "pcf"
	PCFSoftShadow ShadowType = "pcf-soft"
	VSMShadow     ShadowType = "vsm"
)

// ToneMapping selects the tone mapping operator applied to lit output.
type ToneMapping string

const (
	NoToneMapping       ToneMapping = "none"
	LinearToneMapping   ToneMapping = "linear"
	ReinhardToneMapping ToneMapping = "reinhard"
	CineonToneMapping   ToneMapping = "cineon"
	ACESToneMapping     ToneMapping = "aces"
)

// OutputColorSpace is the encoding of the final framebuffer values.
type OutputColorSpace string

const (
	SRGBOutput   OutputColorSpace = "srgb"
	LinearOutput OutputColorSpace = "linear"
)

type ShadowMapOptions struct {
	Enabled    bool       `toml:"enabled"`
	Type       ShadowType `toml:"type"`
	AutoUpdate bool       `toml:"auto_update"`
}

// Options configure a Renderer. They may be loaded from a TOML file.
type Options struct {
	// Antialias requests MSAA sample count for internal render targets.
	Antialias int    `toml:"antialias"`
	Precision string `toml:"precision"`

	SortObjects bool `toml:"sort_objects"`
	AutoClear   bool `toml:"auto_clear"`

	ShadowMap ShadowMapOptions `toml:"shadow_map"`

	ToneMapping         ToneMapping      `toml:"tone_mapping"`
	ToneMappingExposure float32          `toml:"tone_mapping_exposure"`
	OutputColorSpace    OutputColorSpace `toml:"output_color_space"`

	LocalClippingEnabled bool `toml:"local_clipping"`

	MaxBones        int `toml:"max_bones"`
	MaxMorphTargets int `toml:"max_morph_targets"`

	// SkipUnreadyPrograms skips items whose program is still compiling
	// instead of waiting for it.
	SkipUnreadyPrograms bool `toml:"skip_unready_programs"`
	// ProgramWaitMillis bounds how long a draw waits for its program when
	// unready programs are not skipped. The item is skipped past it.
	ProgramWaitMillis int `toml:"program_wait_ms"`
}

func DefaultOptions() Options {
	return Options{
		Precision:   "highp",
		SortObjects: true,
		AutoClear:   true,
		ShadowMap: ShadowMapOptions{
			Type:       PCFShadow,
			AutoUpdate: true,
		},
		ToneMapping:         NoToneMapping,
		ToneMappingExposure: 1,
		OutputColorSpace:    SRGBOutput,
		MaxBones:            64,
		MaxMorphTargets:     4,
		SkipUnreadyPrograms: true,
		ProgramWaitMillis:   2000,
	}
}

// LoadOptions reads options from a TOML file. Keys missing from the file
// keep their defaults.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("read options %q: %w", path, err)
	}
	if err := toml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parse options %q: %w", path, err)
	}
	return opts, opts.validate()
}

func (o Options) validate() error {
	switch o.ShadowMap.Type {
	case BasicShadow, PCFShadow, PCFSoftShadow, VSMShadow:
	default:
		return fmt.Errorf("options: unknown shadow type %q", o.ShadowMap.Type)
	}
	switch o.ToneMapping {
	case NoToneMapping, LinearToneMapping, ReinhardToneMapping, CineonToneMapping, ACESToneMapping:
	default:
		return fmt.Errorf("options: unknown tone mapping %q", o.ToneMapping)
	}
	switch o.OutputColorSpace {
	case SRGBOutput, LinearOutput:
	default:
		return fmt.Errorf("options: unknown output color space %q", o.OutputColorSpace)
	}
	if o.MaxMorphTargets < 0 || o.MaxMorphTargets > 8 {
		return fmt.Errorf("options: max_morph_targets %d out of range [0, 8]", o.MaxMorphTargets)
	}
	if o.ProgramWaitMillis < 0 {
		return fmt.Errorf("options: program_wait_ms %d is negative", o.ProgramWaitMillis)
	}
	return nil
}
