package pipeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-tfprep/internal/kernel"
	"github.com/cwbudde/algo-tfprep/tf/rfi"
)

// ErrConfig is wrapped by every configuration error.
var ErrConfig = errors.New("pipeline: invalid config")

// Mode selects the memory policy.
type Mode string

const (
	// ModeSpeed keeps every stage buffer allocated.
	ModeSpeed Mode = "speed"
	// ModeMemory releases stage buffers between chunks into a shared pool.
	ModeMemory Mode = "memory"
)

// Config is the pipeline configuration. Field tags match the keys of the
// configuration file.
type Config struct {
	Mode Mode `mapstructure:"mode" yaml:"mode"`

	// Downsampling factors in time and frequency.
	TD int `mapstructure:"td" yaml:"td"`
	FD int `mapstructure:"fd" yaml:"fd"`

	// BSWidth is the baseline time scale in seconds.
	BSWidth float64 `mapstructure:"bswidth" yaml:"bswidth"`

	// ZapList holds [low, high] frequency ranges in MHz.
	ZapList [][]float64 `mapstructure:"zaplist" yaml:"zaplist"`

	// ZapChannels holds physical channel indices to zap.
	ZapChannels []int `mapstructure:"zapchannels" yaml:"zapchannels,omitempty"`

	// RFIList is the ordered list of RFI operators, each a name followed by
	// its parameters: ["mask", td, fd], ["kadaneF", td, fd],
	// ["kadaneT", td, fd], ["zdot"], ["zero"], ["zerodm"].
	RFIList [][]string `mapstructure:"rfilist" yaml:"rfilist"`

	BandLimit   float64 `mapstructure:"bandlimit" yaml:"bandlimit"`
	WidthLimit  float64 `mapstructure:"widthlimit" yaml:"widthlimit"`
	BandLimitKT float64 `mapstructure:"bandlimitkt" yaml:"bandlimitKT"`
	ThreKadaneT float64 `mapstructure:"threkadanet" yaml:"threKadaneT"`
	ThreKadaneF float64 `mapstructure:"threkadanef" yaml:"threKadaneF"`
	ThreMask    float64 `mapstructure:"thremask" yaml:"threMask"`
	FillType    string  `mapstructure:"filltype" yaml:"filltype"`

	// DM enables dedispersion when non-zero.
	DM float64 `mapstructure:"dm" yaml:"dm"`

	// RM enables Faraday derotation when non-zero.
	RM float64 `mapstructure:"rm" yaml:"rm"`

	// ComputeStats computes channel mean and variance for every chunk that
	// arrives without them, so that equalization can run.
	ComputeStats bool `mapstructure:"computestats" yaml:"computeStats"`

	// Workers bounds the goroutines of parallel loops. 0 means GOMAXPROCS.
	Workers int `mapstructure:"workers" yaml:"workers"`

	// Kernel is one of auto, scalar, vector.
	Kernel string `mapstructure:"kernel" yaml:"kernel"`

	// Seed drives random fills.
	Seed uint64 `mapstructure:"seed" yaml:"seed"`
}

// DefaultConfig returns the configuration used when a key is not set.
func DefaultConfig() Config {
	return Config{
		Mode:    ModeSpeed,
		TD:      1,
		FD:      1,
		BSWidth: 0.1,
		RFIList: [][]string{
			{"kadaneF", "8", "4"},
			{"kadaneT", "8", "4"},
		},
		BandLimit:    10,
		WidthLimit:   10,
		BandLimitKT:  10,
		ThreKadaneT:  7,
		ThreKadaneF:  10,
		ThreMask:     10,
		FillType:     "mean",
		ComputeStats: true,
		Kernel:       kernel.Auto,
		Seed:         1,
	}
}

// op is one parsed RFI list entry.
type op struct {
	name   string
	td, fd int
}

func parseRFIList(list [][]string) ([]op, error) {
	ops := make([]op, 0, len(list))
	for i, entry := range list {
		if len(entry) == 0 {
			return nil, fmt.Errorf("%w: rfilist[%d] is empty", ErrConfig, i)
		}
		o := op{name: strings.ToLower(entry[0])}
		switch o.name {
		case "mask", "kadanef", "kadanet":
			if len(entry) != 3 {
				return nil, fmt.Errorf("%w: rfilist[%d] %s needs td and fd", ErrConfig, i, entry[0])
			}
			var err error
			if o.td, err = strconv.Atoi(strings.TrimSpace(entry[1])); err != nil || o.td < 1 {
				return nil, fmt.Errorf("%w: rfilist[%d] td %q", ErrConfig, i, entry[1])
			}
			if o.fd, err = strconv.Atoi(strings.TrimSpace(entry[2])); err != nil || o.fd < 1 {
				return nil, fmt.Errorf("%w: rfilist[%d] fd %q", ErrConfig, i, entry[2])
			}
		case "zdot", "zero", "zerodm":
		default:
			return nil, fmt.Errorf("%w: rfilist[%d] unknown operator %q", ErrConfig, i, entry[0])
		}
		ops = append(ops, o)
	}
	return ops, nil
}

func parseZapList(list [][]float64) ([]rfi.Range, error) {
	out := make([]rfi.Range, 0, len(list))
	for i, pair := range list {
		if len(pair) != 2 {
			return nil, fmt.Errorf("%w: zaplist[%d] needs two frequencies, got %d", ErrConfig, i, len(pair))
		}
		out = append(out, rfi.Range{Low: pair[0], High: pair[1]})
	}
	return out, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeSpeed, ModeMemory:
	default:
		return fmt.Errorf("%w: mode %q", ErrConfig, c.Mode)
	}
	if c.TD < 1 || c.FD < 1 {
		return fmt.Errorf("%w: td=%d fd=%d must be positive", ErrConfig, c.TD, c.FD)
	}
	if c.BSWidth < 0 {
		return fmt.Errorf("%w: bswidth %v is negative", ErrConfig, c.BSWidth)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers %d is negative", ErrConfig, c.Workers)
	}
	switch c.Kernel {
	case "", kernel.Auto, kernel.Scalar, kernel.Vector:
	default:
		return fmt.Errorf("%w: kernel %q", ErrConfig, c.Kernel)
	}
	if _, err := rfi.ParseFillType(c.FillType); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if _, err := parseRFIList(c.RFIList); err != nil {
		return err
	}
	if _, err := parseZapList(c.ZapList); err != nil {
		return err
	}
	return nil
}
