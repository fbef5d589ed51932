package gputest

// Window is a scripted platform window. FramebufferSize reports the current
// entry of Sizes; every WaitEvents call advances to the next entry, and the
// last entry sticks.
type Window struct {
	Sizes [][2]int

	WaitCalls int
	PollCalls int
	Closed    bool

	// OnWait runs inside WaitEvents after the size has advanced.
	OnWait func()

	index int
}

// NewWindow returns a window that goes through sizes in order.
func NewWindow(sizes ...[2]int) *Window {
	if len(sizes) == 0 {
		sizes = [][2]int{{800, 600}}
	}
	return &Window{Sizes: sizes}
}

func (w *Window) FramebufferSize() (int, int) {
	s := w.Sizes[w.index]
	return s[0], s[1]
}

func (w *Window) WaitEvents() {
	w.WaitCalls++
	if w.index < len(w.Sizes)-1 {
		w.index++
	}
	if w.OnWait != nil {
		w.OnWait()
	}
}

func (w *Window) PollEvents() {
	w.PollCalls++
}

func (w *Window) ShouldClose() bool {
	return w.Closed
}

// Resize replaces the script with a single size.
func (w *Window) Resize(width, height int) {
	w.Sizes = [][2]int{{width, height}}
	w.index = 0
}
