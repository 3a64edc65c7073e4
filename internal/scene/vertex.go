package scene

import (
	"bytes"
	"encoding/binary"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
)

// Vertex is the packed vertex shared by the raster pipeline and the ray
// tracing shaders.
type Vertex struct {
	Position      mgl32.Vec3
	Normal        mgl32.Vec3
	TexCoord      mgl32.Vec2
	MaterialIndex int32
}

// Byte sizes of the packed GPU records.
const (
	VertexSize   = 36
	IndexSize    = 4
	AABBSize     = 24
	MaterialSize = 32
	OffsetSize   = 8
)

// VertexInput describes Vertex to the graphics pipeline.
func VertexInput() gpu.VertexInput {
	return gpu.VertexInput{
		Stride: VertexSize,
		Attributes: []gpu.VertexAttribute{
			{Location: 0, Format: gpu.FormatR32G32B32Sfloat, Offset: 0},
			{Location: 1, Format: gpu.FormatR32G32B32Sfloat, Offset: 12},
			{Location: 2, Format: gpu.FormatR32G32Sfloat, Offset: 24},
			{Location: 3, Format: gpu.FormatR32Sint, Offset: 32},
		},
	}
}

// AABB matches VkAabbPositionsKHR.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// Material model identifiers understood by the closest-hit shaders.
const (
	Lambertian   uint32 = 0
	Metallic     uint32 = 1
	Dielectric   uint32 = 2
	DiffuseLight uint32 = 4
)

type Material struct {
	Diffuse         mgl32.Vec4
	Fuzziness       float32
	RefractionIndex float32
	TextureID       int32
	Model           uint32
}

func NewLambertian(color mgl32.Vec3) Material {
	return Material{Diffuse: color.Vec4(1), TextureID: -1, Model: Lambertian}
}

func NewMetallic(color mgl32.Vec3, fuzz float32) Material {
	return Material{Diffuse: color.Vec4(1), Fuzziness: fuzz, TextureID: -1, Model: Metallic}
}

func NewDielectric(index float32) Material {
	return Material{Diffuse: mgl32.Vec4{0.7, 0.7, 1, 1}, RefractionIndex: index, TextureID: -1, Model: Dielectric}
}

func NewDiffuseLight(color mgl32.Vec3) Material {
	return Material{Diffuse: color.Vec4(1), TextureID: -1, Model: DiffuseLight}
}

// Offset locates a model inside the packed index and vertex buffers, in
// elements. Ray tracing shaders index it by instance id.
type Offset struct {
	IndexOffset  uint32
	VertexOffset uint32
}

func encode(data interface{}) []byte {
	var buf bytes.Buffer
	// Only fixed-size values reach here; Write cannot fail on a bytes.Buffer.
	binary.Write(&buf, binary.LittleEndian, data)
	return buf.Bytes()
}
