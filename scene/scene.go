package scene

import (
	"bytes"
	"encoding/binary"

	"github.com/andewx/framevk"
	"github.com/andewx/framevk/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// Uniforms is the std140 uniform block shared by the vertex and fragment
// shaders at binding 0.
type Uniforms struct {
	Model      mgl32.Mat4
	View       mgl32.Mat4
	Projection mgl32.Mat4
	Normal     mgl32.Mat4
	CameraPos  mgl32.Vec4
	LightPos   mgl32.Vec4
}

const UniformSize = 4*64 + 2*16

func (u *Uniforms) Bytes() []byte {
	var buf bytes.Buffer
	buf.Grow(UniformSize)
	// Fixed size float arrays cannot fail to encode.
	_ = binary.Write(&buf, binary.LittleEndian, u)
	return buf.Bytes()
}

const (
	lightStep = 0.8
	dragScale = 0.01
)

// Scene is the frame source and event handler for the orbiting model view.
type Scene struct {
	Camera *Camera
	Light  mgl32.Vec3
	Model  mgl32.Mat4

	dragging  bool
	firstMove bool
	lastX     float64
	lastY     float64
}

var (
	_ framevk.FrameSource  = (*Scene)(nil)
	_ framevk.EventHandler = (*Scene)(nil)
)

func New() *Scene {
	return &Scene{
		Camera:    NewCamera(),
		Model:     mgl32.Translate3D(0, -3, 0).Mul4(mgl32.Scale3D(1.7, 1.7, 1.7)),
		firstMove: true,
	}
}

func (s *Scene) UniformSize() int { return UniformSize }

func (s *Scene) Uniforms() Uniforms {
	return Uniforms{
		Model:      s.Model,
		View:       s.Camera.View(),
		Projection: s.Camera.Projection(),
		Normal:     s.Model.Inv().Transpose(),
		CameraPos:  s.Camera.Eye().Vec4(1),
		LightPos:   s.Light.Vec4(1),
	}
}

// FrameData tracks the extent's aspect ratio and packs the uniforms.
func (s *Scene) FrameData(extent gpu.Extent) []byte {
	s.Camera.Resize(int(extent.Width), int(extent.Height))
	u := s.Uniforms()
	return u.Bytes()
}

func (s *Scene) HandleEvent(ev framevk.Event) {
	switch ev := ev.(type) {
	case framevk.Resized:
		s.Camera.Resize(ev.Width, ev.Height)
	case framevk.PointerButton:
		if ev.Button == 0 {
			s.dragging = ev.Pressed
			s.firstMove = true
		}
	case framevk.PointerMoved:
		s.drag(ev.X, ev.Y)
	case framevk.Scrolled:
		s.Camera.Zoom(float32(ev.DY))
	case framevk.KeyPressed:
		s.moveLight(ev)
	}
}

func (s *Scene) drag(x, y float64) {
	if s.firstMove {
		s.lastX, s.lastY = x, y
		s.firstMove = false
	}
	dx := float32(x-s.lastX) * dragScale
	dy := float32(s.lastY-y) * dragScale
	s.lastX, s.lastY = x, y
	if !s.dragging {
		return
	}
	if dx != 0 {
		s.Camera.RotateAzimuth(dx)
	}
	if dy != 0 {
		s.Camera.RotatePolar(-dy)
	}
}

// moveLight walks the light on the XZ plane. With shift held, up and down
// move it along Y instead.
func (s *Scene) moveLight(ev framevk.KeyPressed) {
	switch ev.Key {
	case framevk.KeyLeft:
		s.Light[0] -= lightStep
	case framevk.KeyRight:
		s.Light[0] += lightStep
	case framevk.KeyUp:
		if ev.Shift {
			s.Light[1] += lightStep
		} else {
			s.Light[2] += lightStep
		}
	case framevk.KeyDown:
		if ev.Shift {
			s.Light[1] -= lightStep
		} else {
			s.Light[2] -= lightStep
		}
	}
}
