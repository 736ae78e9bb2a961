package tracking

import (
	"fmt"
	"image"

	"github.com/google/uuid"
)

// debugMsgFunc is set by the main package to use unified logging
var debugMsgFunc func(component, message string, trackID ...string)

// SetDebugFunction allows main package to provide the debug logger
func SetDebugFunction(fn func(component, message string, trackID ...string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string, trackID ...string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message, trackID...)
	}
}

// Tracker follows one colour region at a time. A committed selection always
// restarts tracking from a fresh model; there is no way back to idle.
type Tracker struct {
	proc     Processor
	sink     Sink
	recorder Recorder

	mode    Mode
	window  image.Rectangle
	trackID string
}

// NewTracker creates an idle tracker. recorder may be nil.
func NewTracker(proc Processor, sink Sink, recorder Recorder) *Tracker {
	return &Tracker{proc: proc, sink: sink, recorder: recorder}
}

// Mode returns the current tracking mode
func (t *Tracker) Mode() Mode { return t.mode }

// Window returns the current tracking window
func (t *Tracker) Window() image.Rectangle { return t.window }

// TrackID returns the ID of the current track, empty while idle
func (t *Tracker) TrackID() string { return t.trackID }

// Step advances the tracker by one frame. sel is consulted only when ready.
func (t *Tracker) Step(sel image.Rectangle, ready bool) Result {
	res := Result{}

	if ready {
		if err := t.proc.BuildModel(sel); err != nil {
			debugMsg("TRACK", fmt.Sprintf("Ignoring selection %v: %v", sel, err), t.trackID)
		} else {
			t.window = sel
			t.trackID = uuid.NewString()
			if t.mode != ModeTracking {
				t.mode = ModeTracking
				if t.recorder != nil {
					t.recorder.SetMode(int(t.mode))
				}
			}
			res.Committed = true
			res.Selection = sel
			debugMsg("TRACK", fmt.Sprintf("Initialize tracking, setting up CAMShift search at %v", sel), t.trackID)
		}
	}

	if t.mode == ModeTracking {
		bounding, err := t.proc.Search(t.window)
		if err != nil {
			debugMsg("TRACK", fmt.Sprintf("Search skipped: %v", err), t.trackID)
		} else {
			t.window = bounding
			res.Tracked = true
			res.Centroid = Centroid(bounding)
			// Delivery is best effort; the sink accounts for its own failures.
			_ = t.sink.Send(res.Centroid)
			if t.recorder != nil {
				t.recorder.FrameTracked()
			}
		}
	}

	res.Mode = t.mode
	res.Window = t.window
	res.TrackID = t.trackID
	return res
}
