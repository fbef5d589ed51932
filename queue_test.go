package framevk

import (
	"testing"

	"github.com/andewx/framevk/gpu"
	"github.com/andewx/framevk/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func family(index uint32, present bool, bits ...vk.QueueFlagBits) gpu.QueueFamily {
	var flags vk.QueueFlags
	for _, b := range bits {
		flags |= vk.QueueFlags(b)
	}
	return gpu.QueueFamily{Index: index, Flags: flags, Count: 1, PresentSupport: present}
}

func TestFindQueueFamiliesSingleFamily(t *testing.T) {
	set, err := FindQueueFamilies([]gpu.QueueFamily{
		family(0, true, vk.QueueGraphicsBit, vk.QueueComputeBit, vk.QueueTransferBit),
	})
	require.NoError(t, err)
	assert.True(t, set.IsComplete())
	assert.Equal(t, []uint32{0}, set.Unique())
	mode, families := set.SharingFor(RoleGraphics, RolePresent)
	assert.Equal(t, vk.SharingModeExclusive, mode)
	assert.Nil(t, families)
}

func TestFindQueueFamiliesSplitPresent(t *testing.T) {
	set, err := FindQueueFamilies([]gpu.QueueFamily{
		family(0, false, vk.QueueGraphicsBit, vk.QueueComputeBit),
		family(1, true, vk.QueueTransferBit),
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), set.Graphics())
	assert.Equal(t, uint32(1), set.Present())
	// A graphics family can run transfers and comes first.
	assert.Equal(t, uint32(0), set.Transfer())
	assert.Equal(t, []uint32{0, 1}, set.Unique())

	mode, families := set.SharingFor(RoleGraphics, RolePresent)
	assert.Equal(t, vk.SharingModeConcurrent, mode)
	assert.Equal(t, []uint32{0, 1}, families)
}

func TestFindQueueFamiliesSkipsEmptyFamilies(t *testing.T) {
	empty := family(0, true, vk.QueueGraphicsBit, vk.QueueComputeBit, vk.QueueTransferBit)
	empty.Count = 0
	set, err := FindQueueFamilies([]gpu.QueueFamily{
		empty,
		family(1, true, vk.QueueGraphicsBit, vk.QueueComputeBit),
	})
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, set.Unique())
}

func TestFindQueueFamiliesStopsAtFirstMatch(t *testing.T) {
	set, err := FindQueueFamilies([]gpu.QueueFamily{
		family(0, true, vk.QueueGraphicsBit, vk.QueueComputeBit),
		family(1, true, vk.QueueGraphicsBit, vk.QueueComputeBit, vk.QueueTransferBit),
	})
	require.NoError(t, err)
	for role := QueueRole(0); role < roleCount; role++ {
		index, ok := set.Index(role)
		assert.True(t, ok, role.String())
		assert.Equal(t, uint32(0), index, role.String())
	}
}

func TestFindQueueFamiliesMissingRoles(t *testing.T) {
	// Graphics without compute does not qualify.
	_, err := FindQueueFamilies([]gpu.QueueFamily{
		family(0, true, vk.QueueGraphicsBit),
	})
	require.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "graphics")
	assert.NotContains(t, err.Error(), "present")

	_, err = FindQueueFamilies([]gpu.QueueFamily{
		family(0, false, vk.QueueGraphicsBit, vk.QueueComputeBit),
	})
	require.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "present")

	_, err = FindQueueFamilies(nil)
	require.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "graphics, present, transfer")
}

func TestNewQueues(t *testing.T) {
	drv := gputest.NewDriver()
	drv.Families = []gpu.QueueFamily{
		family(0, false, vk.QueueGraphicsBit, vk.QueueComputeBit, vk.QueueTransferBit),
		family(1, true),
	}
	q, err := NewQueues(drv)
	require.NoError(t, err)
	assert.True(t, q.HasSeparatePresentQueue())
	assert.Equal(t, q.Graphics, q.Transfer)
	assert.NotEqual(t, q.Graphics, q.Present)

	drv = gputest.NewDriver()
	q, err = NewQueues(drv)
	require.NoError(t, err)
	assert.False(t, q.HasSeparatePresentQueue())
	assert.Equal(t, q.Graphics, q.Present)
}
