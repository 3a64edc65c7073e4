package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Model is one entry of the packed scene. Procedural models are traced
// against Box by an intersection shader; their mesh, if any, is only used
// by the raster path.
type Model struct {
	Name       string
	Vertices   []Vertex
	Indices    []uint32
	Procedural bool
	Box        AABB
}

func (m Model) VertexCount() uint32 { return uint32(len(m.Vertices)) }
func (m Model) IndexCount() uint32 { return uint32(len(m.Indices)) }

// Transform applies t to every vertex position and normal.
func (m Model) Transform(t mgl32.Mat4) Model {
	normal := t.Mat3().Inv().Transpose()
	out := m
	out.Vertices = make([]Vertex, len(m.Vertices))
	for i, v := range m.Vertices {
		v.Position = mgl32.TransformCoordinate(v.Position, t)
		v.Normal = normal.Mul3x1(v.Normal).Normalize()
		out.Vertices[i] = v
	}
	if m.Procedural {
		a := mgl32.TransformCoordinate(m.Box.Min, t)
		b := mgl32.TransformCoordinate(m.Box.Max, t)
		for i := range a {
			out.Box.Min[i] = float32(math.Min(float64(a[i]), float64(b[i])))
			out.Box.Max[i] = float32(math.Max(float64(a[i]), float64(b[i])))
		}
	}
	return out
}

// NewBox returns an axis aligned box mesh between lo and hi.
func NewBox(name string, lo, hi mgl32.Vec3, material int32) Model {
	faces := []struct {
		normal  mgl32.Vec3
		corners [4]mgl32.Vec3
	}{
		{mgl32.Vec3{0, 0, 1}, [4]mgl32.Vec3{{lo[0], lo[1], hi[2]}, {hi[0], lo[1], hi[2]}, {hi[0], hi[1], hi[2]}, {lo[0], hi[1], hi[2]}}},
		{mgl32.Vec3{0, 0, -1}, [4]mgl32.Vec3{{hi[0], lo[1], lo[2]}, {lo[0], lo[1], lo[2]}, {lo[0], hi[1], lo[2]}, {hi[0], hi[1], lo[2]}}},
		{mgl32.Vec3{1, 0, 0}, [4]mgl32.Vec3{{hi[0], lo[1], hi[2]}, {hi[0], lo[1], lo[2]}, {hi[0], hi[1], lo[2]}, {hi[0], hi[1], hi[2]}}},
		{mgl32.Vec3{-1, 0, 0}, [4]mgl32.Vec3{{lo[0], lo[1], lo[2]}, {lo[0], lo[1], hi[2]}, {lo[0], hi[1], hi[2]}, {lo[0], hi[1], lo[2]}}},
		{mgl32.Vec3{0, 1, 0}, [4]mgl32.Vec3{{lo[0], hi[1], hi[2]}, {hi[0], hi[1], hi[2]}, {hi[0], hi[1], lo[2]}, {lo[0], hi[1], lo[2]}}},
		{mgl32.Vec3{0, -1, 0}, [4]mgl32.Vec3{{lo[0], lo[1], lo[2]}, {hi[0], lo[1], lo[2]}, {hi[0], lo[1], hi[2]}, {lo[0], lo[1], hi[2]}}},
	}
	uvs := [4]mgl32.Vec2{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

	m := Model{Name: name}
	for _, f := range faces {
		base := uint32(len(m.Vertices))
		for i, c := range f.corners {
			m.Vertices = append(m.Vertices, Vertex{Position: c, Normal: f.normal, TexCoord: uvs[i], MaterialIndex: material})
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return m
}

// NewSphere returns a procedural sphere. A UV sphere mesh is attached so the
// raster path can draw it.
func NewSphere(name string, center mgl32.Vec3, radius float32, material int32) Model {
	const slices, stacks = 32, 16
	m := Model{
		Name:       name,
		Procedural: true,
		Box: AABB{
			Min: center.Sub(mgl32.Vec3{radius, radius, radius}),
			Max: center.Add(mgl32.Vec3{radius, radius, radius}),
		},
	}
	for j := 0; j <= stacks; j++ {
		phi := math.Pi * float64(j) / stacks
		for i := 0; i <= slices; i++ {
			theta := 2 * math.Pi * float64(i) / slices
			n := mgl32.Vec3{
				float32(math.Sin(phi) * math.Cos(theta)),
				float32(math.Cos(phi)),
				float32(math.Sin(phi) * math.Sin(theta)),
			}
			m.Vertices = append(m.Vertices, Vertex{
				Position:      center.Add(n.Mul(radius)),
				Normal:        n,
				TexCoord:      mgl32.Vec2{float32(i) / slices, float32(j) / stacks},
				MaterialIndex: material,
			})
		}
	}
	for j := 0; j < stacks; j++ {
		for i := 0; i < slices; i++ {
			a := uint32(j*(slices+1) + i)
			b := a + slices + 1
			m.Indices = append(m.Indices, a, b, a+1, b, b+1, a+1)
		}
	}
	return m
}
