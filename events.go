package framevk

import (
	"fmt"
	"sync"
)

// Event is a typed platform notification.
type Event interface {
	fmt.Stringer
	event()
}

type Resized struct {
	Width, Height int
}

type PointerMoved struct {
	X, Y float64
}

type PointerButton struct {
	Button  int
	Pressed bool
}

type Scrolled struct {
	DX, DY float64
}

type KeyPressed struct {
	Key   Key
	Shift bool
}

// Key is a platform independent key code for the few keys the renderer
// reacts to.
type Key int

const (
	KeyUnknown Key = iota
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyEscape
)

func (Resized) event()       {}
func (PointerMoved) event()  {}
func (PointerButton) event() {}
func (Scrolled) event()      {}
func (KeyPressed) event()    {}

func (e Resized) String() string      { return fmt.Sprintf("resized %dx%d", e.Width, e.Height) }
func (e PointerMoved) String() string { return fmt.Sprintf("pointer %.1f,%.1f", e.X, e.Y) }
func (e PointerButton) String() string {
	return fmt.Sprintf("button %d pressed=%t", e.Button, e.Pressed)
}
func (e Scrolled) String() string   { return fmt.Sprintf("scroll %.2f,%.2f", e.DX, e.DY) }
func (e KeyPressed) String() string { return fmt.Sprintf("key %d shift=%t", e.Key, e.Shift) }

// EventQueue buffers platform events between frames. Push may be called from
// platform callbacks; Drain is called once per frame by the engine.
type EventQueue struct {
	mu     sync.Mutex
	events []Event
}

func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

func (q *EventQueue) Push(ev Event) {
	q.mu.Lock()
	q.events = append(q.events, ev)
	q.mu.Unlock()
}

// Drain returns the buffered events in arrival order and empties the queue.
func (q *EventQueue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.events
	q.events = nil
	return out
}

func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
