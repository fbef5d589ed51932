package glfwdisplay

import (
	"testing"

	"github.com/andewx/framevk"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/stretchr/testify/assert"
)

func TestTranslateKey(t *testing.T) {
	cases := map[glfw.Key]framevk.Key{
		glfw.KeyLeft:   framevk.KeyLeft,
		glfw.KeyRight:  framevk.KeyRight,
		glfw.KeyUp:     framevk.KeyUp,
		glfw.KeyDown:   framevk.KeyDown,
		glfw.KeyEscape: framevk.KeyEscape,
		glfw.KeyA:      framevk.KeyUnknown,
		glfw.KeySpace:  framevk.KeyUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, translateKey(in), "glfw key %d", in)
	}
}
