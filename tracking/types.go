package tracking

import (
	"errors"
	"fmt"
	"image"
)

// Mode represents the current mode of the tracker
type Mode int

const (
	ModeIdle Mode = iota
	ModeTracking
)

func (m Mode) String() string {
	switch m {
	case ModeTracking:
		return "TRACKING"
	default:
		return "IDLE"
	}
}

// Criteria is the CAMShift termination rule: stop after MaxIter iterations or
// once the window moves less than Epsilon.
type Criteria struct {
	MaxIter int
	Epsilon float64
}

// Params holds the colour model and search settings
type Params struct {
	HistBins int     // Buckets over the hue range
	HueMin   float64 // Lower hue bound (inclusive)
	HueMax   float64 // Upper hue bound (exclusive), OpenCV 8-bit hue is 0-180
	SatMin   float64 // Mask: minimum saturation
	ValMin   float64 // Mask: minimum value
	SatMax   float64 // Mask: upper saturation bound
	ValMax   float64 // Mask: upper value bound
	NormMin  float64 // Histogram normalization range
	NormMax  float64
	Criteria Criteria
	Mirror   bool // Flip every frame before processing
	FlipCode int  // OpenCV flip code used when mirroring (1 mirrors around the y-axis)
}

// DefaultParams returns the settings of the stock CAMShift demo
func DefaultParams() Params {
	return Params{
		HistBins: 16,
		HueMin:   0,
		HueMax:   180,
		SatMin:   30,
		ValMin:   10,
		SatMax:   256,
		ValMax:   256,
		NormMin:  0,
		NormMax:  255,
		Criteria: Criteria{MaxIter: 10, Epsilon: 1},
		Mirror:   true,
		FlipCode: 1,
	}
}

// Validate reports the first setting OpenCV would reject
func (p Params) Validate() error {
	switch {
	case p.HistBins <= 0:
		return fmt.Errorf("histogram bins must be positive, got %d", p.HistBins)
	case p.HueMax <= p.HueMin:
		return fmt.Errorf("hue range [%g,%g) is empty", p.HueMin, p.HueMax)
	case p.SatMax <= p.SatMin || p.ValMax <= p.ValMin:
		return errors.New("saturation/value mask range is empty")
	case p.NormMax <= p.NormMin:
		return fmt.Errorf("normalization range [%g,%g] is empty", p.NormMin, p.NormMax)
	case p.Criteria.MaxIter <= 0 && p.Criteria.Epsilon <= 0:
		return errors.New("termination criteria never stop")
	case p.FlipCode < -1 || p.FlipCode > 1:
		return fmt.Errorf("flip code must be -1, 0 or 1, got %d", p.FlipCode)
	}
	return nil
}

// Processor is the colour-model contract backed by the vision library.
// The frame being processed is bound by the implementation before each Step.
type Processor interface {
	// BuildModel replaces the hue histogram with one computed over roi.
	BuildModel(roi image.Rectangle) error
	// Search runs CAMShift seeded with window against the masked
	// back-projection and returns the bounding box of the rotated result.
	Search(window image.Rectangle) (image.Rectangle, error)
}

// Sink receives tracked centroids
type Sink interface {
	Send(p image.Point) error
}

// Recorder receives per-frame tracking counters
type Recorder interface {
	FrameTracked()
	SetMode(mode int)
}

// Result is the outcome of a single Step
type Result struct {
	Mode      Mode
	TrackID   string
	Committed bool            // A new selection was adopted this frame
	Selection image.Rectangle // Valid when Committed
	Tracked   bool            // Search ran and a centroid was produced
	Window    image.Rectangle // Tracking window after this frame
	Centroid  image.Point
}

// Centroid returns the integer center of r
func Centroid(r image.Rectangle) image.Point {
	return image.Pt(r.Min.X+r.Dx()/2, r.Min.Y+r.Dy()/2)
}
