package vision

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"espvision/tracking"
)

// ErrEmptyWindow is returned when a rectangle has no overlap with the frame.
// OpenCV asserts on empty ROIs, so they never reach native code.
var ErrEmptyWindow = errors.New("window does not overlap the frame")

// Camera is an opened capture device
type Camera struct {
	capture *gocv.VideoCapture
}

// OpenCamera opens capture device id
func OpenCamera(id int) (*Camera, error) {
	capture, err := gocv.VideoCaptureDevice(id)
	if err != nil {
		return nil, fmt.Errorf("open capture device %d: %w", id, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("capture device %d is not open", id)
	}
	// Keep latency low, only the newest frame matters
	capture.Set(gocv.VideoCaptureBufferSize, 1)
	return &Camera{capture: capture}, nil
}

// Read grabs the next frame into m. It reports false for a failed or empty
// read.
func (c *Camera) Read(m *gocv.Mat) bool {
	if ok := c.capture.Read(m); !ok {
		return false
	}
	return !m.Empty()
}

// Close releases the device
func (c *Camera) Close() error {
	return c.capture.Close()
}

// HueProcessor implements tracking.Processor over a hue plane and an S/V
// mask derived from the most recently prepared frame.
type HueProcessor struct {
	params tracking.Params

	hsv  gocv.Mat
	hue  gocv.Mat
	mask gocv.Mat
	hist gocv.Mat
	back gocv.Mat

	bounds   image.Rectangle
	hasModel bool
}

// NewHueProcessor allocates the working Mats
func NewHueProcessor(params tracking.Params) (*HueProcessor, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tracking params: %w", err)
	}
	return &HueProcessor{
		params: params,
		hsv:    gocv.NewMat(),
		hue:    gocv.NewMat(),
		mask:   gocv.NewMat(),
		hist:   gocv.NewMat(),
		back:   gocv.NewMat(),
	}, nil
}

// Prepare mirrors frame in place and derives the hue plane and S/V mask
// used by the next BuildModel and Search.
func (p *HueProcessor) Prepare(frame *gocv.Mat) {
	if p.params.Mirror {
		gocv.Flip(*frame, frame, p.params.FlipCode)
	}
	gocv.CvtColor(*frame, &p.hsv, gocv.ColorBGRToHSV)
	gocv.ExtractChannel(p.hsv, &p.hue, 0)

	lower := gocv.NewScalar(p.params.HueMin, p.params.SatMin, p.params.ValMin, 0)
	upper := gocv.NewScalar(p.params.HueMax, p.params.SatMax, p.params.ValMax, 0)
	gocv.InRangeWithScalar(p.hsv, lower, upper, &p.mask)

	p.bounds = image.Rect(0, 0, frame.Cols(), frame.Rows())
}

// BuildModel computes the normalized hue histogram inside roi
func (p *HueProcessor) BuildModel(roi image.Rectangle) error {
	clipped := roi.Intersect(p.bounds)
	if clipped.Empty() {
		return fmt.Errorf("selection %v: %w", roi, ErrEmptyWindow)
	}

	hueROI := p.hue.Region(clipped)
	defer hueROI.Close()
	maskROI := p.mask.Region(clipped)
	defer maskROI.Close()

	raw := gocv.NewMat()
	defer raw.Close()
	gocv.CalcHist([]gocv.Mat{hueROI}, []int{0}, maskROI, &raw,
		[]int{p.params.HistBins}, []float64{p.params.HueMin, p.params.HueMax}, false)
	gocv.Normalize(raw, &p.hist, p.params.NormMin, p.params.NormMax, gocv.NormMinMax)

	p.hasModel = true
	return nil
}

// Search back-projects the hue plane against the model, restricts it to the
// S/V mask and runs CAMShift from window. The bounding box of the rotated
// result is returned unmodified.
func (p *HueProcessor) Search(window image.Rectangle) (image.Rectangle, error) {
	if !p.hasModel {
		return image.Rectangle{}, errors.New("no colour model")
	}
	seed := window.Intersect(p.bounds)
	if seed.Empty() {
		return image.Rectangle{}, fmt.Errorf("seed %v: %w", window, ErrEmptyWindow)
	}

	gocv.CalcBackProject([]gocv.Mat{p.hue}, []int{0}, p.hist, &p.back,
		[]float64{p.params.HueMin, p.params.HueMax}, true)
	gocv.BitwiseAnd(p.back, p.mask, &p.back)

	criteria := gocv.NewTermCriteria(gocv.Count|gocv.EPS, p.params.Criteria.MaxIter, p.params.Criteria.Epsilon)
	box := gocv.CamShift(p.back, seed, criteria)
	return box.BoundingRect, nil
}

// BackProjection exposes the last masked back-projection for debug display
func (p *HueProcessor) BackProjection() gocv.Mat {
	return p.back
}

// Close releases all working Mats
func (p *HueProcessor) Close() {
	p.hsv.Close()
	p.hue.Close()
	p.mask.Close()
	p.hist.Close()
	p.back.Close()
}
