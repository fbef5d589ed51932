// Package scene holds the orbit camera, the light and the per frame uniform
// block the renderer writes into each frame slot.
package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// polarCap keeps the camera just short of the poles where the view matrix
// degenerates.
const polarCap = math.Pi/2 - 0.001

// Camera orbits Center at Radius. Azimuth turns around Up, Polar lifts the
// eye above or below the horizon.
type Camera struct {
	Center    mgl32.Vec3
	Up        mgl32.Vec3
	Radius    float32
	MinRadius float32
	Azimuth   float32
	Polar     float32

	FovY   float32
	Near   float32
	Far    float32
	Aspect float32
}

func NewCamera() *Camera {
	return &Camera{
		Center:    mgl32.Vec3{0, 0, 0},
		Up:        mgl32.Vec3{0, 1, 0},
		Radius:    40,
		MinRadius: 1,
		Azimuth:   -10,
		Polar:     10,
		FovY:      mgl32.DegToRad(65),
		Near:      0.1,
		Far:       700,
		Aspect:    16.0 / 9.0,
	}
}

// RotateAzimuth turns the camera around the up axis, wrapping into [0, 2π).
func (c *Camera) RotateAzimuth(radians float32) {
	full := 2 * math.Pi
	a := math.Mod(float64(c.Azimuth+radians), full)
	if a < 0 {
		a += full
	}
	c.Azimuth = float32(a)
}

func (c *Camera) RotatePolar(radians float32) {
	c.Polar += radians
	if c.Polar > polarCap {
		c.Polar = polarCap
	}
	if c.Polar < -polarCap {
		c.Polar = -polarCap
	}
}

// Zoom moves the eye toward the center, never closer than MinRadius.
func (c *Camera) Zoom(by float32) {
	c.Radius -= by
	if c.Radius < c.MinRadius {
		c.Radius = c.MinRadius
	}
}

func (c *Camera) Resize(width, height int) {
	if width > 0 && height > 0 {
		c.Aspect = float32(width) / float32(height)
	}
}

func (c *Camera) Eye() mgl32.Vec3 {
	sinA, cosA := math.Sincos(float64(c.Azimuth))
	sinP, cosP := math.Sincos(float64(c.Polar))
	r := float64(c.Radius)
	return c.Center.Add(mgl32.Vec3{
		float32(r * cosP * cosA),
		float32(r * sinP),
		float32(r * cosP * sinA),
	})
}

func (c *Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Eye(), c.Center, c.Up)
}

// Projection is a perspective projection in Vulkan clip space.
func (c *Camera) Projection() mgl32.Mat4 {
	return VulkanProjection(mgl32.Perspective(c.FovY, c.Aspect, c.Near, c.Far))
}

// clipCorrection flips Y and maps depth from [-1, 1] to [0, 1].
var clipCorrection = mgl32.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// VulkanProjection converts an OpenGL style projection to Vulkan's top left
// clip space with a [0, 1] depth range.
func VulkanProjection(proj mgl32.Mat4) mgl32.Mat4 {
	return clipCorrection.Mul4(proj)
}
