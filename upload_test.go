package framevk

import (
	"testing"

	"github.com/andewx/framevk/gpu"
	"github.com/andewx/framevk/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func newUploader(t *testing.T, drv *gputest.Driver) (*Uploader, *Queues) {
	t.Helper()
	queues, err := NewQueues(drv)
	require.NoError(t, err)
	u, err := NewUploader(drv, queues, quietLogs())
	require.NoError(t, err)
	return u, queues
}

func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + 3)
	}
	return data
}

func TestUploadBufferRoundTrip(t *testing.T) {
	drv := gputest.NewDriver()
	u, queues := newUploader(t, drv)

	for _, size := range []int{1, 4096, 1023} {
		data := pattern(size)
		res, err := u.UploadBuffer(data, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit), 0)
		require.NoError(t, err, "size %d", size)
		assert.Equal(t, uint64(size), res.Size)
		assert.NotZero(t, res.Usage&vk.BufferUsageFlags(vk.BufferUsageTransferDstBit))

		mapped, err := drv.MapMemory(res.Memory, 0, res.Size)
		require.NoError(t, err)
		assert.Equal(t, data, append([]byte(nil), mapped...), "size %d", size)
		drv.UnmapMemory(res.Memory)

		res.Destroy()
		assert.Zero(t, drv.Live(gpu.KindBuffer), "staging or destination leaked for size %d", size)
		assert.Zero(t, drv.Live(gpu.KindMemory))
	}
	assert.Equal(t, 3, drv.Submits[queues.Transfer])
	assert.Equal(t, 3, drv.WaitIdles[queues.Transfer])
	assert.Zero(t, drv.Live(gpu.KindCommandBuffer))
	u.Destroy()
	assert.Zero(t, drv.Live(gpu.KindCommandPool))
	assert.Empty(t, drv.Violations)
}

func TestUploadBufferRejectsEmpty(t *testing.T) {
	drv := gputest.NewDriver()
	u, _ := newUploader(t, drv)
	_, err := u.UploadBuffer(nil, vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit), 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Zero(t, drv.Live(gpu.KindBuffer))
}

func TestUploadBufferAcrossFamilies(t *testing.T) {
	drv := gputest.NewDriver()
	drv.Families = []gpu.QueueFamily{
		{Index: 0, Flags: vk.QueueFlags(vk.QueueTransferBit), Count: 1},
		{Index: 1, Flags: vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueComputeBit), Count: 1, PresentSupport: true},
	}
	u, queues := newUploader(t, drv)
	require.Equal(t, uint32(0), queues.Families.Transfer())
	require.Equal(t, uint32(1), queues.Families.Graphics())

	data := pattern(300)
	res, err := u.UploadBuffer(data, vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit), 0)
	require.NoError(t, err)
	assert.Equal(t, data, drv.BufferContents(res.Buffer))
	assert.Equal(t, 1, drv.Submits[queues.Transfer])
	assert.Zero(t, drv.Submits[queues.Graphics])
	assert.Empty(t, drv.Violations)
}

func TestUploadBufferMemoryFailure(t *testing.T) {
	drv := gputest.NewDriver()
	u, _ := newUploader(t, drv)
	drv.FailOn("AllocateMemory", gputest.ErrInjected)

	_, err := u.UploadBuffer(pattern(16), vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit), 0)
	assert.ErrorIs(t, err, ErrCreate)
	assert.Zero(t, drv.Live(gpu.KindBuffer))
}

func TestUploadBufferNoMemoryType(t *testing.T) {
	drv := gputest.NewDriver()
	u, _ := newUploader(t, drv)
	props := vk.MemoryPropertyFlags(vk.MemoryPropertyLazilyAllocatedBit)

	_, err := u.UploadBuffer(pattern(16), vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit), props)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Zero(t, drv.Live(gpu.KindBuffer))
	assert.Zero(t, drv.Live(gpu.KindMemory))
}

func TestFindMemoryType(t *testing.T) {
	types := []gpu.MemoryType{
		{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)},
		{PropertyFlags: hostVisible},
		{PropertyFlags: hostVisible | deviceLocal},
	}
	index, err := FindMemoryType(types, 0b111, hostVisible)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), index)

	index, err = FindMemoryType(types, 0b100, hostVisible)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), index)

	_, err = FindMemoryType(types, 0b001, hostVisible)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestMipLevels(t *testing.T) {
	tests := []struct {
		w, h, want uint32
	}{
		{1, 1, 1},
		{2, 1, 2},
		{3, 1, 2},
		{4, 4, 3},
		{512, 512, 10},
		{1024, 768, 11},
		{640, 1080, 11},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MipLevels(tt.w, tt.h), "%dx%d", tt.w, tt.h)
	}
}

func TestUploadImageWithMipmaps(t *testing.T) {
	drv := gputest.NewDriver()
	u, queues := newUploader(t, drv)
	pixels := pattern(8 * 4 * 4)

	img, err := u.UploadImage(pixels, ImageDesc{Width: 8, Height: 4, Format: vk.FormatR8g8b8a8Srgb, Mipmaps: true})
	require.NoError(t, err)
	assert.Equal(t, uint32(4), img.MipLevels)
	assert.Equal(t, pixels, drv.ImageContents(img.Image))
	for level, layout := range drv.ImageLayouts(img.Image) {
		assert.Equal(t, vk.ImageLayoutShaderReadOnlyOptimal, layout, "level %d", level)
	}
	assert.Equal(t, 1, drv.Submits[queues.Graphics])
	assert.Zero(t, drv.Live(gpu.KindBuffer), "staging buffer leaked")
	assert.Empty(t, drv.Violations)

	img.Destroy()
	assert.Zero(t, drv.Live(gpu.KindImage))
	assert.Zero(t, drv.Live(gpu.KindMemory))
}

func TestUploadImageSingleLevel(t *testing.T) {
	drv := gputest.NewDriver()
	u, _ := newUploader(t, drv)

	img, err := u.UploadImage(pattern(16*16*4), ImageDesc{Width: 16, Height: 16, Format: vk.FormatR8g8b8a8Unorm})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), img.MipLevels)
	assert.Equal(t, []vk.ImageLayout{vk.ImageLayoutShaderReadOnlyOptimal}, drv.ImageLayouts(img.Image))
	assert.Empty(t, drv.Violations)
}

func TestUploadImageValidation(t *testing.T) {
	drv := gputest.NewDriver()
	u, _ := newUploader(t, drv)

	_, err := u.UploadImage(pattern(10), ImageDesc{Width: 2, Height: 2, Format: vk.FormatR8g8b8a8Unorm})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = u.UploadImage(pattern(16), ImageDesc{Width: 2, Height: 2, Format: vk.FormatD32Sfloat})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	drv.Features = map[vk.Format]vk.FormatFeatureFlags{}
	_, err = u.UploadImage(pattern(16), ImageDesc{Width: 2, Height: 2, Format: vk.FormatR8g8b8a8Unorm, Mipmaps: true})
	assert.ErrorIs(t, err, ErrConfig)

	assert.Zero(t, drv.Live(gpu.KindImage))
	assert.Zero(t, drv.Live(gpu.KindBuffer))
}
