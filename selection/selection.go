package selection

import (
	"image"
	"sync"
)

// EventKind is the kind of pointer event reported by the display binding.
type EventKind int

const (
	Other EventKind = iota
	ButtonDown
	ButtonUp
)

func (k EventKind) String() string {
	switch k {
	case ButtonDown:
		return "button-down"
	case ButtonUp:
		return "button-up"
	default:
		return "other"
	}
}

// Event is a single pointer event in window pixel coordinates.
type Event struct {
	Kind EventKind
	X, Y int
}

// Observer is notified about every button-up outcome.
type Observer interface {
	SelectionCommitted()
	SelectionRejected()
}

// State records the user's drag selection and hands committed rectangles to
// the frame loop through a single-slot channel. Handle and Take may be called
// from different goroutines.
type State struct {
	mu       sync.Mutex
	origin   image.Point
	dragging bool

	ready    chan image.Rectangle
	observer Observer
}

// NewState returns an empty selection state. observer may be nil.
func NewState(observer Observer) *State {
	return &State{
		ready:    make(chan image.Rectangle, 1),
		observer: observer,
	}
}

// Handle applies a pointer event. A button-up commits the rectangle spanned
// since the last button-down only when both extents are strictly positive.
func (s *State) Handle(ev Event) {
	switch ev.Kind {
	case ButtonDown:
		s.mu.Lock()
		s.origin = image.Pt(ev.X, ev.Y)
		s.dragging = true
		s.mu.Unlock()
	case ButtonUp:
		s.mu.Lock()
		origin := s.origin
		s.dragging = false
		s.mu.Unlock()

		width := ev.X - origin.X
		height := ev.Y - origin.Y
		if width <= 0 || height <= 0 {
			if s.observer != nil {
				s.observer.SelectionRejected()
			}
			return
		}
		s.commit(image.Rect(origin.X, origin.Y, origin.X+width, origin.Y+height))
	}
}

// commit replaces any unconsumed rectangle with r.
func (s *State) commit(r image.Rectangle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.ready:
	default:
	}
	s.ready <- r
	if s.observer != nil {
		s.observer.SelectionCommitted()
	}
}

// Take returns the committed rectangle and clears the ready flag. It never
// blocks.
func (s *State) Take() (image.Rectangle, bool) {
	select {
	case r := <-s.ready:
		return r, true
	default:
		return image.Rectangle{}, false
	}
}

// Pending reports the last button-down origin and whether a drag is open.
func (s *State) Pending() (image.Point, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.origin, s.dragging
}
