// Package glfwdisplay hosts the renderer in a GLFW window. It implements
// framevk.Window, turns GLFW callbacks into framevk events and creates the
// Vulkan surface for the window.
package glfwdisplay

import (
	"github.com/andewx/framevk"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Init starts GLFW and points the Vulkan loader at it. It must run on the
// main thread, which the caller keeps locked.
func Init() error {
	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "init glfw")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return framevk.ConfigErrorf("glfw reports no Vulkan loader")
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		glfw.Terminate()
		return errors.Wrap(err, "init vulkan")
	}
	return nil
}

func Terminate() {
	glfw.Terminate()
}

type Display struct {
	window *glfw.Window
	events *framevk.EventQueue
}

var _ framevk.Window = (*Display)(nil)

// New opens a resizable window without a client API. Input and resize
// callbacks push into events.
func New(width, height int, title string, events *framevk.EventQueue) (*Display, error) {
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.Visible, glfw.True)
	window, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create window")
	}
	d := &Display{window: window, events: events}
	if events != nil {
		d.bind()
	}
	return d, nil
}

func (d *Display) bind() {
	d.window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		d.events.Push(framevk.Resized{Width: width, Height: height})
	})
	d.window.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		d.events.Push(framevk.PointerMoved{X: x, Y: y})
	})
	d.window.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		if action == glfw.Repeat {
			return
		}
		d.events.Push(framevk.PointerButton{Button: int(button), Pressed: action == glfw.Press})
	})
	d.window.SetScrollCallback(func(_ *glfw.Window, dx, dy float64) {
		d.events.Push(framevk.Scrolled{DX: dx, DY: dy})
	})
	d.window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, _ int, action glfw.Action, mods glfw.ModifierKey) {
		if action == glfw.Release {
			return
		}
		k := translateKey(key)
		if k == framevk.KeyUnknown {
			return
		}
		if k == framevk.KeyEscape {
			w.SetShouldClose(true)
		}
		d.events.Push(framevk.KeyPressed{Key: k, Shift: mods&glfw.ModShift != 0})
	})
}

func translateKey(key glfw.Key) framevk.Key {
	switch key {
	case glfw.KeyLeft:
		return framevk.KeyLeft
	case glfw.KeyRight:
		return framevk.KeyRight
	case glfw.KeyUp:
		return framevk.KeyUp
	case glfw.KeyDown:
		return framevk.KeyDown
	case glfw.KeyEscape:
		return framevk.KeyEscape
	}
	return framevk.KeyUnknown
}

func (d *Display) FramebufferSize() (int, int) {
	return d.window.GetFramebufferSize()
}

func (d *Display) WaitEvents() { glfw.WaitEvents() }

func (d *Display) PollEvents() { glfw.PollEvents() }

func (d *Display) ShouldClose() bool { return d.window.ShouldClose() }

// RequiredInstanceExtensions lists the instance extensions GLFW needs to
// present to this window.
func (d *Display) RequiredInstanceExtensions() []string {
	return d.window.GetRequiredInstanceExtensions()
}

// CreateSurface has the shape of vkdriver.Options.Surface.
func (d *Display) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	ptr, err := d.window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, errors.Wrap(err, "create window surface")
	}
	return vk.SurfaceFromPointer(ptr), nil
}

func (d *Display) Window() *glfw.Window { return d.window }

func (d *Display) Destroy() {
	if d.window != nil {
		d.window.Destroy()
		d.window = nil
	}
}
