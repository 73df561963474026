// Package grid enumerates the hyperparameter search space.
package grid

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"github.com/tsawler/rnn-gridsearch/optimizer"
)

var (
	// ErrUnknownLayerType is returned for layer types other than lstm, gru, bilstm and bigru
	ErrUnknownLayerType = errors.New("unknown layer type")
	// ErrUnknownOptimizer is returned for optimizer names missing from the optimizer registry
	ErrUnknownOptimizer = errors.New("unknown optimizer")
	// ErrEmptyDimension is returned when a search dimension has no candidate values
	ErrEmptyDimension = errors.New("empty grid dimension")
	// ErrLayerWidth is returned when halving the units per stacked layer
	// leaves a layer with no units
	ErrLayerWidth = errors.New("layer has no units")
)

// RecurrentKind selects the recurrent cell and its direction
type RecurrentKind int

const (
	LSTM RecurrentKind = iota
	GRU
	BiLSTM
	BiGRU
)

func (k RecurrentKind) String() string {
	switch k {
	case LSTM:
		return "lstm"
	case GRU:
		return "gru"
	case BiLSTM:
		return "bilstm"
	case BiGRU:
		return "bigru"
	default:
		return "unknown"
	}
}

// Bidirectional reports whether the kind runs the cell in both directions
func (k RecurrentKind) Bidirectional() bool {
	return k == BiLSTM || k == BiGRU
}

// IsGRU reports whether the kind uses a gated recurrent unit cell
func (k RecurrentKind) IsGRU() bool {
	return k == GRU || k == BiGRU
}

// ParseRecurrentKind parses a layer type name case-insensitively
func ParseRecurrentKind(s string) (RecurrentKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lstm":
		return LSTM, nil
	case "gru":
		return GRU, nil
	case "bilstm":
		return BiLSTM, nil
	case "bigru":
		return BiGRU, nil
	}
	return 0, errors.Wrapf(ErrUnknownLayerType, "%q", s)
}

// Space lists the candidate values of every search dimension, in
// enumeration order.
type Space struct {
	LayerTypes       []string
	NumLayers        []int
	NumUnits         []int
	Dropout          []float64
	RecurrentDropout []float64
	SpatialDropout   []float64
	Optimizers       []string
	BatchSizes       []int
}

func (s Space) dims() []int {
	return []int{
		len(s.LayerTypes),
		len(s.NumLayers),
		len(s.NumUnits),
		len(s.Dropout),
		len(s.RecurrentDropout),
		len(s.SpatialDropout),
		len(s.Optimizers),
		len(s.BatchSizes),
	}
}

var dimNames = []string{
	"layer_type", "num_layers", "num_units", "dropout",
	"recurrent_dropout", "spatial_dropout", "optimizer", "batch_size",
}

// Size returns the number of grid points without enumerating them
func (s Space) Size() int {
	n := 1
	for _, d := range s.dims() {
		n *= d
	}
	return n
}

// Validate checks every dimension is non-empty and every categorical value
// is recognised.
func (s Space) Validate() error {
	for i, d := range s.dims() {
		if d == 0 {
			return errors.Wrapf(ErrEmptyDimension, "%s", dimNames[i])
		}
	}
	for _, lt := range s.LayerTypes {
		if _, err := ParseRecurrentKind(lt); err != nil {
			return err
		}
	}
	for _, name := range s.Optimizers {
		if !optimizer.IsRegistered(name) {
			return errors.Wrapf(ErrUnknownOptimizer, "%q", name)
		}
	}
	for _, layers := range s.NumLayers {
		if layers < 1 {
			return errors.Wrapf(ErrLayerWidth, "num_layers %d", layers)
		}
		for _, units := range s.NumUnits {
			if (Point{NumUnits: units}).UnitsAt(layers-1) < 1 {
				return errors.Wrapf(ErrLayerWidth, "%d units over %d layers", units, layers)
			}
		}
	}
	return nil
}

// Enumerate returns the Cartesian product of the space. The last dimension
// (batch size) varies fastest, matching itertools.product.
func Enumerate(s Space) ([]Point, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	dims := s.dims()
	points := make([]Point, 0, s.Size())
	idx := make([]int, len(dims))
	for {
		kind, _ := ParseRecurrentKind(s.LayerTypes[idx[0]])
		points = append(points, Point{
			Index:            len(points),
			LayerType:        kind,
			LayerName:        s.LayerTypes[idx[0]],
			NumLayers:        s.NumLayers[idx[1]],
			NumUnits:         s.NumUnits[idx[2]],
			Dropout:          s.Dropout[idx[3]],
			RecurrentDropout: s.RecurrentDropout[idx[4]],
			SpatialDropout:   s.SpatialDropout[idx[5]],
			Optimizer:        s.Optimizers[idx[6]],
			BatchSize:        s.BatchSizes[idx[7]],
		})

		// odometer increment, last digit first
		d := len(dims) - 1
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] < dims[d] {
				break
			}
			idx[d] = 0
		}
		if d < 0 {
			return points, nil
		}
	}
}

// Point is one combination of hyperparameter values
type Point struct {
	Index            int
	LayerType        RecurrentKind
	LayerName        string // layer type as written in the configuration
	NumLayers        int
	NumUnits         int
	Dropout          float64
	RecurrentDropout float64
	SpatialDropout   float64
	Optimizer        string
	BatchSize        int
}

// String renders the point as a tuple, e.g.
// ('lstm', 1, 128, 0.1, 0.1, 0.1, 'adam', 32). This is the reporting key.
func (p Point) String() string {
	name := p.LayerName
	if name == "" {
		name = p.LayerType.String()
	}
	parts := []string{
		quote(name),
		strconv.Itoa(p.NumLayers),
		strconv.Itoa(p.NumUnits),
		FormatFloat(p.Dropout),
		FormatFloat(p.RecurrentDropout),
		FormatFloat(p.SpatialDropout),
		quote(p.Optimizer),
		strconv.Itoa(p.BatchSize),
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// FileStem returns a path-safe rendering of String(): whitespace and quotes
// are dropped and parentheses, commas and path separators become '_'.
func (p Point) FileStem() string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '(', ')', ',', '/', '\\':
			return '_'
		case '\'', '"':
			return -1
		}
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, p.String())
}

// UnitsAt returns the width of recurrent layer i: NumUnits halved i times
func (p Point) UnitsAt(i int) int {
	return p.NumUnits >> uint(i)
}

func quote(s string) string {
	return "'" + s + "'"
}

// FormatFloat prints the shortest representation that round-trips, always
// with a decimal point or exponent so floats never look like ints.
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
