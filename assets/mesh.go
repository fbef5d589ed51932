package assets

import (
	"bytes"
	"encoding/binary"

	"github.com/andewx/framevk/vkdriver"
	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/vulkan-go/vulkan"
)

// Vertex matches the vertex shader inputs at locations 0 to 3.
type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
}

const VertexStride = 11 * 4

func VertexAttributes() []vkdriver.VertexAttribute {
	return []vkdriver.VertexAttribute{
		{Location: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
		{Location: 1, Format: vk.FormatR32g32b32Sfloat, Offset: 12},
		{Location: 2, Format: vk.FormatR32g32b32Sfloat, Offset: 24},
		{Location: 3, Format: vk.FormatR32g32Sfloat, Offset: 36},
	}
}

// Mesh is an indexed triangle list.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

func (m *Mesh) VertexBytes() []byte {
	var buf bytes.Buffer
	buf.Grow(len(m.Vertices) * VertexStride)
	_ = binary.Write(&buf, binary.LittleEndian, m.Vertices)
	return buf.Bytes()
}

func (m *Mesh) IndexBytes() []byte {
	var buf bytes.Buffer
	buf.Grow(len(m.Indices) * 4)
	_ = binary.Write(&buf, binary.LittleEndian, m.Indices)
	return buf.Bytes()
}

func (m *Mesh) IndexType() vk.IndexType { return vk.IndexTypeUint32 }

type face struct {
	normal, u, v mgl32.Vec3
}

// u cross v points along the normal so every face winds counter clockwise
// seen from outside.
var cubeFaces = []face{
	{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
	{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
}

var cornerColors = []mgl32.Vec3{
	{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 1},
	{1, 1, 0}, {1, 0, 1}, {0, 1, 1}, {0.5, 0.5, 0.5},
}

// Cube builds a unit cube centered on the origin with four vertices per
// face so normals and texture coordinates stay per face.
func Cube() *Mesh {
	m := &Mesh{}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	uvs := [4]mgl32.Vec2{{0, 1}, {1, 1}, {1, 0}, {0, 0}}
	for i, f := range cubeFaces {
		center := f.normal.Mul(0.5)
		base := uint32(len(m.Vertices))
		for j, c := range corners {
			pos := center.Add(f.u.Mul(c[0] * 0.5)).Add(f.v.Mul(c[1] * 0.5))
			m.Vertices = append(m.Vertices, Vertex{
				Position: pos,
				Color:    cornerColors[(i+j)%len(cornerColors)],
				Normal:   f.normal,
				UV:       uvs[j],
			})
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base+2, base+3, base)
	}
	return m
}
