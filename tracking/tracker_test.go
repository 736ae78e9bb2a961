package tracking

import (
	"errors"
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProcessor records model builds and answers searches from a script.
type fakeProcessor struct {
	models   []image.Rectangle
	seeds    []image.Rectangle
	results  []image.Rectangle // consumed in order; the last one repeats
	buildErr error
	findErr  error
}

func (f *fakeProcessor) BuildModel(roi image.Rectangle) error {
	if f.buildErr != nil {
		return f.buildErr
	}
	f.models = append(f.models, roi)
	return nil
}

func (f *fakeProcessor) Search(window image.Rectangle) (image.Rectangle, error) {
	f.seeds = append(f.seeds, window)
	if f.findErr != nil {
		return image.Rectangle{}, f.findErr
	}
	if len(f.results) == 0 {
		return window, nil
	}
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r, nil
}

type fakeSink struct {
	points []image.Point
	err    error
}

func (s *fakeSink) Send(p image.Point) error {
	s.points = append(s.points, p)
	return s.err
}

type fakeRecorder struct {
	tracked int
	modes   []int
}

func (r *fakeRecorder) FrameTracked()    { r.tracked++ }
func (r *fakeRecorder) SetMode(mode int) { r.modes = append(r.modes, mode) }

func TestCentroid(t *testing.T) {
	cases := []struct {
		rect image.Rectangle
		want image.Point
	}{
		{image.Rect(20, 30, 60, 50), image.Pt(40, 40)},
		{image.Rect(0, 0, 5, 7), image.Pt(2, 3)},
		{image.Rect(10, 10, 11, 11), image.Pt(10, 10)},
		{image.Rect(3, 4, 3, 4), image.Pt(3, 4)},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Centroid(c.rect), "rect %v", c.rect)
	}
}

func TestIdleWithoutSelection(t *testing.T) {
	proc := &fakeProcessor{}
	sink := &fakeSink{}
	tr := NewTracker(proc, sink, nil)

	for i := 0; i < 3; i++ {
		res := tr.Step(image.Rectangle{}, false)
		assert.Equal(t, ModeIdle, res.Mode)
		assert.False(t, res.Tracked)
	}
	assert.Empty(t, proc.models)
	assert.Empty(t, proc.seeds)
	assert.Empty(t, sink.points)
	assert.Empty(t, tr.TrackID())
}

func TestCommitStartsTracking(t *testing.T) {
	proc := &fakeProcessor{}
	sink := &fakeSink{}
	rec := &fakeRecorder{}
	tr := NewTracker(proc, sink, rec)

	sel := image.Rect(10, 10, 60, 80)
	res := tr.Step(sel, true)

	require.True(t, res.Committed)
	assert.Equal(t, ModeTracking, res.Mode)
	assert.Equal(t, sel, res.Selection)
	assert.Equal(t, []image.Rectangle{sel}, proc.models)
	assert.Equal(t, []image.Rectangle{sel}, proc.seeds, "search is seeded with the selection on the commit frame")
	assert.Equal(t, 50, sel.Dx())
	assert.Equal(t, 70, sel.Dy())
	assert.NotEmpty(t, res.TrackID)
	assert.Equal(t, []int{int(ModeTracking)}, rec.modes)
	assert.Equal(t, 1, rec.tracked)
}

func TestTelemetryFromSearchResult(t *testing.T) {
	proc := &fakeProcessor{results: []image.Rectangle{image.Rect(20, 30, 60, 50)}}
	sink := &fakeSink{}
	tr := NewTracker(proc, sink, nil)

	res := tr.Step(image.Rect(0, 0, 10, 10), true)

	require.True(t, res.Tracked)
	assert.Equal(t, image.Pt(40, 40), res.Centroid)
	assert.Equal(t, []image.Point{{40, 40}}, sink.points)
	assert.Equal(t, image.Rect(20, 30, 60, 50), tr.Window())
}

func TestBoundingRectSeedsNextFrame(t *testing.T) {
	first := image.Rect(12, 14, 52, 74)
	second := image.Rect(15, 16, 50, 70)
	proc := &fakeProcessor{results: []image.Rectangle{first, second}}
	tr := NewTracker(proc, &fakeSink{}, nil)

	sel := image.Rect(10, 10, 60, 80)
	tr.Step(sel, true)
	tr.Step(image.Rectangle{}, false)
	tr.Step(image.Rectangle{}, false)

	want := []image.Rectangle{sel, first, second}
	if diff := cmp.Diff(want, proc.seeds); diff != "" {
		t.Errorf("search seeds mismatch (-want +got):\n%s", diff)
	}
}

func TestTrackingIsStableBetweenCommits(t *testing.T) {
	proc := &fakeProcessor{}
	sink := &fakeSink{}
	tr := NewTracker(proc, sink, nil)

	sel := image.Rect(10, 10, 60, 80)
	first := tr.Step(sel, true)
	for i := 0; i < 10; i++ {
		res := tr.Step(image.Rectangle{}, false)
		assert.Equal(t, ModeTracking, res.Mode)
		assert.False(t, res.Committed)
		assert.Equal(t, sel, res.Window)
		assert.Equal(t, first.TrackID, res.TrackID)
	}
	assert.Len(t, proc.models, 1, "model is built once per commit")
	assert.Len(t, sink.points, 11)
}

func TestRecommitReseeds(t *testing.T) {
	proc := &fakeProcessor{results: []image.Rectangle{image.Rect(30, 30, 70, 90)}}
	rec := &fakeRecorder{}
	tr := NewTracker(proc, &fakeSink{}, rec)

	first := tr.Step(image.Rect(10, 10, 60, 80), true)
	tr.Step(image.Rectangle{}, false)

	next := image.Rect(200, 100, 240, 130)
	proc.results = nil
	res := tr.Step(next, true)

	assert.True(t, res.Committed)
	assert.Equal(t, []image.Rectangle{image.Rect(10, 10, 60, 80), next}, proc.models)
	assert.Equal(t, next, proc.seeds[len(proc.seeds)-1], "re-seed discards the previous window")
	assert.NotEqual(t, first.TrackID, res.TrackID)
	assert.Equal(t, []int{int(ModeTracking)}, rec.modes, "mode change reported once")
}

func TestFailedModelKeepsState(t *testing.T) {
	proc := &fakeProcessor{buildErr: errors.New("empty roi")}
	sink := &fakeSink{}
	tr := NewTracker(proc, sink, nil)

	res := tr.Step(image.Rect(0, 0, 10, 10), true)
	assert.False(t, res.Committed)
	assert.Equal(t, ModeIdle, res.Mode)
	assert.Empty(t, sink.points)
}

func TestSearchErrorSkipsFrame(t *testing.T) {
	proc := &fakeProcessor{findErr: errors.New("empty window")}
	sink := &fakeSink{}
	tr := NewTracker(proc, sink, nil)

	sel := image.Rect(0, 0, 10, 10)
	res := tr.Step(sel, true)
	assert.True(t, res.Committed)
	assert.Equal(t, ModeTracking, res.Mode)
	assert.False(t, res.Tracked)
	assert.Equal(t, sel, res.Window)
	assert.Empty(t, sink.points)
}

func TestSinkErrorsIgnored(t *testing.T) {
	sink := &fakeSink{err: errors.New("broken pipe")}
	tr := NewTracker(&fakeProcessor{}, sink, nil)

	tr.Step(image.Rect(0, 0, 10, 10), true)
	res := tr.Step(image.Rectangle{}, false)
	assert.True(t, res.Tracked)
	assert.Len(t, sink.points, 2)
}

func TestDebugFunctionReceivesTrackID(t *testing.T) {
	var ids []string
	SetDebugFunction(func(component, message string, trackID ...string) {
		if len(trackID) > 0 {
			ids = append(ids, trackID[0])
		}
	})
	defer SetDebugFunction(nil)

	tr := NewTracker(&fakeProcessor{}, &fakeSink{}, nil)
	res := tr.Step(image.Rect(0, 0, 10, 10), true)
	require.NotEmpty(t, ids)
	assert.Equal(t, res.TrackID, ids[len(ids)-1])
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	bad := []func(p *Params){
		func(p *Params) { p.HistBins = 0 },
		func(p *Params) { p.HueMax = p.HueMin },
		func(p *Params) { p.SatMax = p.SatMin },
		func(p *Params) { p.NormMax = -1 },
		func(p *Params) { p.Criteria = Criteria{} },
		func(p *Params) { p.FlipCode = 2 },
	}
	for i, mutate := range bad {
		p := DefaultParams()
		mutate(&p)
		assert.Error(t, p.Validate(), "case %d", i)
	}
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "IDLE", ModeIdle.String())
	assert.Equal(t, "TRACKING", ModeTracking.String())
}
