package framevk

import (
	"testing"

	"github.com/andewx/framevk/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaReleasesDependentsFirst(t *testing.T) {
	a := NewArena()
	var order []string
	track := func(kind gpu.Kind, h gpu.Handle, name string, parents ...Parent) {
		require.NoError(t, a.Track("scene", kind, h, func() { order = append(order, name) }, parents...))
	}
	track(gpu.KindMemory, 1, "memory")
	track(gpu.KindImage, 2, "image", ParentOf(gpu.KindMemory, 1))
	track(gpu.KindImageView, 3, "view", ParentOf(gpu.KindImage, 2))
	track(gpu.KindSampler, 4, "sampler")

	assert.ErrorIs(t, a.Release(gpu.KindImage, 2), ErrInvalidArgument)
	assert.True(t, a.Owns(gpu.KindImage, 2))

	require.NoError(t, a.ReleaseOwner("scene"))
	assert.Equal(t, []string{"sampler", "view", "image", "memory"}, order)
	assert.Zero(t, a.Live(""))
	assert.False(t, a.Owns(gpu.KindMemory, 1))
}

func TestArenaReleaseOne(t *testing.T) {
	a := NewArena()
	released := 0
	require.NoError(t, a.Track("a", gpu.KindBuffer, 7, func() { released++ }))
	require.NoError(t, a.Release(gpu.KindBuffer, 7))
	assert.Equal(t, 1, released)
	assert.ErrorIs(t, a.Release(gpu.KindBuffer, 7), ErrInvalidArgument)
	assert.Equal(t, 1, released)

	// A released handle value may be reused by the driver.
	require.NoError(t, a.Track("a", gpu.KindBuffer, 7, nil))
	assert.Equal(t, 1, a.Live("a"))
}

func TestArenaTrackValidation(t *testing.T) {
	a := NewArena()
	assert.ErrorIs(t, a.Track("a", gpu.KindFence, gpu.NullHandle, nil), ErrInvalidArgument)
	require.NoError(t, a.Track("a", gpu.KindFence, 1, nil))
	assert.ErrorIs(t, a.Track("b", gpu.KindFence, 1, nil), ErrInvalidArgument)
	assert.ErrorIs(t, a.Track("a", gpu.KindImageView, 2, nil, ParentOf(gpu.KindImage, 99)), ErrInvalidArgument)

	// The same value under another kind is a different object.
	require.NoError(t, a.Track("a", gpu.KindSemaphore, 1, nil))
	assert.Equal(t, 2, a.Live("a"))
}

func TestArenaOwnerScopes(t *testing.T) {
	a := NewArena()
	require.NoError(t, a.Track("swapchain", gpu.KindImage, 1, nil))
	require.NoError(t, a.Track("swapchain", gpu.KindImageView, 2, nil, ParentOf(gpu.KindImage, 1)))
	require.NoError(t, a.Track("scene", gpu.KindBuffer, 3, nil))
	require.NoError(t, a.Track("scene", gpu.KindImageView, 4, nil, ParentOf(gpu.KindImage, 1)))

	// The scene view still depends on the swapchain image.
	assert.ErrorIs(t, a.ReleaseOwner("swapchain"), ErrInvalidArgument)
	assert.True(t, a.Owns(gpu.KindImage, 1))
	assert.False(t, a.Owns(gpu.KindImageView, 2))

	require.NoError(t, a.ReleaseOwner("scene"))
	require.NoError(t, a.ReleaseOwner("swapchain"))
	assert.Zero(t, a.Live(""))
}
