package framevk

import (
	"strings"

	"github.com/andewx/framevk/gpu"
	vk "github.com/vulkan-go/vulkan"
)

type QueueRole int

const (
	RoleGraphics QueueRole = iota
	RolePresent
	RoleTransfer
	roleCount
)

func (r QueueRole) String() string {
	switch r {
	case RoleGraphics:
		return "graphics"
	case RolePresent:
		return "present"
	case RoleTransfer:
		return "transfer"
	}
	return "unknown"
}

//Queue family indices resolved for each role. Roles may alias the same family.
type QueueFamilySet struct {
	indices  [roleCount]uint32
	resolved [roleCount]bool
}

func (s QueueFamilySet) Graphics() uint32 { return s.indices[RoleGraphics] }
func (s QueueFamilySet) Present() uint32  { return s.indices[RolePresent] }
func (s QueueFamilySet) Transfer() uint32 { return s.indices[RoleTransfer] }

func (s QueueFamilySet) Index(role QueueRole) (uint32, bool) {
	return s.indices[role], s.resolved[role]
}

func (s QueueFamilySet) IsComplete() bool {
	for _, ok := range s.resolved {
		if !ok {
			return false
		}
	}
	return true
}

//Distinct family indices in role order. Device creation requests one queue per entry.
func (s QueueFamilySet) Unique() []uint32 {
	return s.uniqueOf(RoleGraphics, RolePresent, RoleTransfer)
}

func (s QueueFamilySet) uniqueOf(roles ...QueueRole) []uint32 {
	var out []uint32
	for _, role := range roles {
		if !s.resolved[role] {
			continue
		}
		index := s.indices[role]
		seen := false
		for _, u := range out {
			if u == index {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, index)
		}
	}
	return out
}

//Sharing mode for a resource touched by the given roles. Exclusive when every role maps to the same
//family, otherwise concurrent across the distinct families.
func (s QueueFamilySet) SharingFor(roles ...QueueRole) (vk.SharingMode, []uint32) {
	families := s.uniqueOf(roles...)
	if len(families) <= 1 {
		return vk.SharingModeExclusive, nil
	}
	return vk.SharingModeConcurrent, families
}

func (s QueueFamilySet) missing() []string {
	var names []string
	for role := QueueRole(0); role < roleCount; role++ {
		if !s.resolved[role] {
			names = append(names, role.String())
		}
	}
	return names
}

func hasFlags(flags vk.QueueFlags, bits vk.QueueFlagBits) bool {
	return flags&vk.QueueFlags(bits) == vk.QueueFlags(bits)
}

//Finds the first family satisfying each role, scanning once and stopping as soon as every role
//is resolved. Graphics families must also support compute. Any family able to run graphics or
//compute work can also run transfers.
func FindQueueFamilies(families []gpu.QueueFamily) (QueueFamilySet, error) {
	var set QueueFamilySet
	resolve := func(role QueueRole, index uint32) {
		if !set.resolved[role] {
			set.indices[role] = index
			set.resolved[role] = true
		}
	}

	for _, family := range families {
		if family.Count == 0 {
			continue
		}
		if hasFlags(family.Flags, vk.QueueGraphicsBit|vk.QueueComputeBit) {
			resolve(RoleGraphics, family.Index)
		}
		if family.PresentSupport {
			resolve(RolePresent, family.Index)
		}
		if hasFlags(family.Flags, vk.QueueTransferBit) ||
			hasFlags(family.Flags, vk.QueueGraphicsBit) ||
			hasFlags(family.Flags, vk.QueueComputeBit) {
			resolve(RoleTransfer, family.Index)
		}
		if set.IsComplete() {
			return set, nil
		}
	}

	return set, configErrorf("no queue family for %s", strings.Join(set.missing(), ", "))
}

//Resolved queue families together with the queue handle for each role.
type Queues struct {
	Families QueueFamilySet
	Graphics gpu.Queue
	Present  gpu.Queue
	Transfer gpu.Queue
}

func NewQueues(drv gpu.Driver) (*Queues, error) {
	set, err := FindQueueFamilies(drv.QueueFamilies())
	if err != nil {
		return nil, err
	}
	return &Queues{
		Families: set,
		Graphics: drv.Queue(set.Graphics()),
		Present:  drv.Queue(set.Present()),
		Transfer: drv.Queue(set.Transfer()),
	}, nil
}

//True when presentation happens on a different family than rendering.
func (q *Queues) HasSeparatePresentQueue() bool {
	return q.Families.Graphics() != q.Families.Present()
}
