package topicfy

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Tuning holds the empirically chosen thresholds of the pipeline.
// Zero values mean "use DefaultTuning".
type Tuning struct {
	// OverlapThreshold is the word-overlap ratio above which two titles are
	// treated as the same story. Default: 0.7
	OverlapThreshold float64 `yaml:"overlap_threshold"`

	// RecentWindow bounds how far back published history is compared.
	// Default: 7 days
	RecentWindow time.Duration `yaml:"recent_window"`

	// RecentLimit caps how many published entries are read per evaluation.
	// Default: 200
	RecentLimit int `yaml:"recent_limit"`

	// MaxAccepted caps accepted candidates per run. Default: 20
	MaxAccepted int `yaml:"max_accepted"`

	// MinShortSide is the minimum pixel length of an image's shorter side.
	// RelaxedShortSide applies on the official-assets retry. Defaults: 600 / 300
	MinShortSide     int `yaml:"min_short_side"`
	RelaxedShortSide int `yaml:"relaxed_short_side"`

	// MinAspect / MaxAspect bound width/height. Defaults: 0.6 / 1.6
	MinAspect float64 `yaml:"min_aspect"`
	MaxAspect float64 `yaml:"max_aspect"`

	// Entropy override thresholds (bits, 0..8). Defaults: 6.8 / 7.6 / 7.5, 4 cells.
	FlatCellEntropy  float64 `yaml:"flat_cell_entropy"`
	CenterEntropyMax float64 `yaml:"center_entropy_max"`
	CornerEntropyMax float64 `yaml:"corner_entropy_max"`
	MinFlatCells     int     `yaml:"min_flat_cells"`

	// PerceptualDistance is the dHash Hamming distance below which two pool
	// images count as the same artwork. Default: 10
	PerceptualDistance int `yaml:"perceptual_distance"`

	// SearchDelay spaces consecutive community index requests; SearchRetryDelay
	// is waited once after a rate-limit response. Defaults: 1s / 5s
	SearchDelay      time.Duration `yaml:"search_delay"`
	SearchRetryDelay time.Duration `yaml:"search_retry_delay"`

	// RequestTimeout applies to every probe, crawl and lookup. Default: 10s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// BannedPatterns are case-insensitive regular expressions; a title or body
	// matching any of them is rejected before every other check.
	BannedPatterns []string `yaml:"banned_patterns"`
}

// DefaultTuning returns the thresholds the pipeline was calibrated with.
func DefaultTuning() Tuning {
	return Tuning{
		OverlapThreshold:   0.7,
		RecentWindow:       7 * 24 * time.Hour,
		RecentLimit:        200,
		MaxAccepted:        20,
		MinShortSide:       600,
		RelaxedShortSide:   300,
		MinAspect:          0.6,
		MaxAspect:          1.6,
		FlatCellEntropy:    6.8,
		CenterEntropyMax:   7.6,
		CornerEntropyMax:   7.5,
		MinFlatCells:       4,
		PerceptualDistance: 10,
		SearchDelay:        time.Second,
		SearchRetryDelay:   5 * time.Second,
		RequestTimeout:     10 * time.Second,
	}
}

// LoadTuning reads a YAML tuning file. Fields absent from the file keep
// their defaults.
func LoadTuning(path string) (Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("reading tuning file: %w", err)
	}

	var t Tuning
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tuning{}, fmt.Errorf("parsing YAML: %w", err)
	}
	if t.OverlapThreshold < 0 || t.OverlapThreshold > 1 {
		return Tuning{}, fmt.Errorf("overlap_threshold must be in [0,1], got %v", t.OverlapThreshold)
	}
	if t.MinAspect != 0 && t.MaxAspect != 0 && t.MinAspect >= t.MaxAspect {
		return Tuning{}, fmt.Errorf("min_aspect (%v) must be below max_aspect (%v)", t.MinAspect, t.MaxAspect)
	}

	return t.withDefaults(), nil
}

func (t Tuning) withDefaults() Tuning {
	d := DefaultTuning()
	if t.OverlapThreshold <= 0 {
		t.OverlapThreshold = d.OverlapThreshold
	}
	if t.RecentWindow <= 0 {
		t.RecentWindow = d.RecentWindow
	}
	if t.RecentLimit <= 0 {
		t.RecentLimit = d.RecentLimit
	}
	if t.MaxAccepted <= 0 {
		t.MaxAccepted = d.MaxAccepted
	}
	if t.MinShortSide <= 0 {
		t.MinShortSide = d.MinShortSide
	}
	if t.RelaxedShortSide <= 0 {
		t.RelaxedShortSide = d.RelaxedShortSide
	}
	if t.MinAspect <= 0 {
		t.MinAspect = d.MinAspect
	}
	if t.MaxAspect <= 0 {
		t.MaxAspect = d.MaxAspect
	}
	if t.FlatCellEntropy <= 0 {
		t.FlatCellEntropy = d.FlatCellEntropy
	}
	if t.CenterEntropyMax <= 0 {
		t.CenterEntropyMax = d.CenterEntropyMax
	}
	if t.CornerEntropyMax <= 0 {
		t.CornerEntropyMax = d.CornerEntropyMax
	}
	if t.PerceptualDistance <= 0 {
		t.PerceptualDistance = d.PerceptualDistance
	}
	if t.MinFlatCells <= 0 {
		t.MinFlatCells = d.MinFlatCells
	}
	if t.SearchDelay <= 0 {
		t.SearchDelay = d.SearchDelay
	}
	if t.SearchRetryDelay <= 0 {
		t.SearchRetryDelay = d.SearchRetryDelay
	}
	if t.RequestTimeout <= 0 {
		t.RequestTimeout = d.RequestTimeout
	}
	return t
}
