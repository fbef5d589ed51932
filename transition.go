package framevk

import (
	"github.com/andewx/framevk/gpu"
	vk "github.com/vulkan-go/vulkan"
)

// Transition holds the synchronization scopes of one image layout change.
type Transition struct {
	SrcAccess vk.AccessFlags
	DstAccess vk.AccessFlags
	SrcStage  vk.PipelineStageFlags
	DstStage  vk.PipelineStageFlags
}

type layoutPair struct {
	old, new vk.ImageLayout
}

var transitions = map[layoutPair]Transition{
	{vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal}: {
		SrcAccess: 0,
		DstAccess: vk.AccessFlags(vk.AccessTransferWriteBit),
		SrcStage:  vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		DstStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
	},
	{vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal}: {
		SrcAccess: vk.AccessFlags(vk.AccessTransferWriteBit),
		DstAccess: vk.AccessFlags(vk.AccessShaderReadBit),
		SrcStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		DstStage:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
	},
}

// TransitionFor looks up the barrier scopes for a layout change. Pairs
// outside the table are rejected.
func TransitionFor(oldLayout, newLayout vk.ImageLayout) (Transition, error) {
	t, ok := transitions[layoutPair{oldLayout, newLayout}]
	if !ok {
		return Transition{}, invalidArgumentf("unsupported layout transition %d -> %d", oldLayout, newLayout)
	}
	return t, nil
}

// Barrier builds the image barrier for a table transition over mip levels
// [0, levels).
func (t Transition) Barrier(img gpu.Image, oldLayout, newLayout vk.ImageLayout, levels uint32) gpu.ImageBarrier {
	return gpu.ImageBarrier{
		Image:        img,
		OldLayout:    oldLayout,
		NewLayout:    newLayout,
		SrcAccess:    t.SrcAccess,
		DstAccess:    t.DstAccess,
		SrcStage:     t.SrcStage,
		DstStage:     t.DstStage,
		Aspect:       vk.ImageAspectFlags(vk.ImageAspectColorBit),
		BaseMipLevel: 0,
		LevelCount:   levels,
	}
}

// recordTransition records a whole image layout change into cmd.
func recordTransition(drv gpu.Driver, cmd gpu.CommandBuffer, img gpu.Image, oldLayout, newLayout vk.ImageLayout, levels uint32) error {
	t, err := TransitionFor(oldLayout, newLayout)
	if err != nil {
		return err
	}
	drv.CmdPipelineBarrier(cmd, t.Barrier(img, oldLayout, newLayout, levels))
	return nil
}
