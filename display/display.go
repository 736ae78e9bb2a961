package display

import (
	"image"
	"time"

	"gocv.io/x/gocv"

	"espvision/selection"
)

// Key codes returned by WaitKey
const (
	keyNone   = -1
	keyEscape = 27
	keySpace  = 32
)

// Action is what the loop should do after a frame was shown
type Action int

const (
	Continue Action = iota
	Quit
)

// Handler receives pointer events produced by the window
type Handler interface {
	Handle(selection.Event)
}

// Window is the single display surface. gocv has no raw mouse callback, so
// an interactive drag (SelectROI) is translated into the button-down/button-up
// pair a mouse callback would have produced.
type Window struct {
	win     *gocv.Window
	handler Handler
}

// Open creates the named window. Events are delivered to handler.
func Open(name string, handler Handler) *Window {
	return &Window{win: gocv.NewWindow(name), handler: handler}
}

// Show renders frame and waits poll for input. Pending input is dispatched
// before Show returns.
func (w *Window) Show(frame gocv.Mat, poll time.Duration) Action {
	w.win.IMShow(frame)
	key := w.win.WaitKey(int(poll / time.Millisecond))
	return w.dispatch(key, frame)
}

func (w *Window) dispatch(key int, frame gocv.Mat) Action {
	switch key {
	case keyNone:
		return Continue
	case 'q', 'Q', keyEscape:
		return Quit
	case 's', 'S', keySpace:
		// Blocks until the drag is confirmed or cancelled
		w.Select(w.win.SelectROI(frame))
	}
	return Continue
}

// Select replays a finished drag as pointer events. A cancelled drag yields an
// empty rectangle, which the handler rejects.
func (w *Window) Select(r image.Rectangle) {
	for _, ev := range DragEvents(r) {
		w.handler.Handle(ev)
	}
}

// DragEvents returns the pointer event sequence for a drag spanning r
func DragEvents(r image.Rectangle) []selection.Event {
	return []selection.Event{
		{Kind: selection.ButtonDown, X: r.Min.X, Y: r.Min.Y},
		{Kind: selection.ButtonUp, X: r.Max.X, Y: r.Max.Y},
	}
}

// IsOpen reports whether the window is still on screen
func (w *Window) IsOpen() bool {
	return w.win.IsOpen()
}

// Close destroys the window
func (w *Window) Close() error {
	return w.win.Close()
}
