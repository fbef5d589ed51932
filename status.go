package framevk

// Status is the coarse application state published to observers.
type Status int

const (
	StatusRunning Status = iota
	StatusIdle
)

func (s Status) String() string {
	if s == StatusIdle {
		return "idle"
	}
	return "running"
}

// StatusNotifier holds the current status and delivers changes to
// subscribers. Set only marks the status dirty; Notify delivers it, so an
// observer sees at most one call per loop iteration.
type StatusNotifier struct {
	status    Status
	dirty     bool
	observers []func(Status)
}

func (n *StatusNotifier) Subscribe(fn func(Status)) {
	n.observers = append(n.observers, fn)
}

func (n *StatusNotifier) Set(s Status) {
	if n.status != s {
		n.status = s
		n.dirty = true
	}
}

func (n *StatusNotifier) Status() Status {
	return n.status
}

// Notify delivers a pending change, if any.
func (n *StatusNotifier) Notify() {
	if !n.dirty {
		return
	}
	n.dirty = false
	for _, fn := range n.observers {
		fn(n.status)
	}
}
