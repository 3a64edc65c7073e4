// Package scene packs models into the shared GPU buffers consumed by the
// raster and ray tracing paths, and provides the built-in scenes and camera.
package scene

import (
	"bytes"
	"fmt"

	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/resource"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/log"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
)

var logger = log.New("scene")

// Scene owns the packed geometry. Models are stored back to back in one
// vertex and one index buffer; consumers advance running offsets by each
// model's counts.
type Scene struct {
	Name      string
	Camera    Camera
	models    []Model
	materials []Material

	vertices  *resource.Buffer
	indices   *resource.Buffer
	aabbs     *resource.Buffer
	materialB *resource.Buffer
	offsets   *resource.Buffer
}

func New(name string, models []Model, materials []Material, camera Camera) *Scene {
	return &Scene{Name: name, Camera: camera, models: models, materials: materials}
}

func (s *Scene) Models() []Model { return s.models }
func (s *Scene) Materials() []Material { return s.materials }

func (s *Scene) VertexBuffer() *resource.Buffer { return s.vertices }
func (s *Scene) IndexBuffer() *resource.Buffer { return s.indices }
func (s *Scene) AABBBuffer() *resource.Buffer { return s.aabbs }
func (s *Scene) MaterialBuffer() *resource.Buffer { return s.materialB }
func (s *Scene) OffsetBuffer() *resource.Buffer { return s.offsets }

// HasProcedurals reports whether any model is traced against a box.
func (s *Scene) HasProcedurals() bool {
	for _, m := range s.models {
		if m.Procedural {
			return true
		}
	}
	return false
}

// Pack returns the concatenated vertex, index, box and offset data. Boxes
// are emitted for procedural models only, in model order.
func (s *Scene) Pack() (vertices []Vertex, indices []uint32, boxes []AABB, offsets []Offset) {
	for _, m := range s.models {
		offsets = append(offsets, Offset{IndexOffset: uint32(len(indices)), VertexOffset: uint32(len(vertices))})
		vertices = append(vertices, m.Vertices...)
		indices = append(indices, m.Indices...)
		if m.Procedural {
			boxes = append(boxes, m.Box)
		}
	}
	return
}

// Upload copies the scene into device local buffers usable as vertex/index
// input, storage buffers and acceleration structure build input.
func (s *Scene) Upload(dev gpu.Device, pool *resource.CommandPool) (err error) {
	if len(s.models) == 0 {
		return errors.New("scene: no models")
	}
	defer func() {
		if err != nil {
			s.Destroy()
		}
	}()

	vertices, indices, boxes, offsets := s.Pack()
	// Shaders always bind these buffers, so empty ones get a zero element.
	if len(vertices) == 0 {
		vertices = []Vertex{{}}
	}
	if len(indices) == 0 {
		indices = []uint32{0}
	}
	if len(boxes) == 0 {
		boxes = []AABB{{}}
	}
	materials := s.materials
	if len(materials) == 0 {
		materials = []Material{NewLambertian([3]float32{0.7, 0.7, 0.7})}
	}

	const geometry = gpu.BufferUsageStorageBuffer | gpu.BufferUsageShaderDeviceAddress |
		gpu.BufferUsageAccelerationStructureInput
	upload := func(name string, usage gpu.BufferUsage, data interface{}) (*resource.Buffer, error) {
		b, err := resource.NewDeviceBuffer(dev, pool, usage, encode(data))
		if err != nil {
			return nil, errors.Wrapf(err, "upload %s", name)
		}
		b.SetName(name)
		return b, nil
	}
	if s.vertices, err = upload("vertices", geometry|gpu.BufferUsageVertexBuffer, vertices); err != nil {
		return err
	}
	if s.indices, err = upload("indices", geometry|gpu.BufferUsageIndexBuffer, indices); err != nil {
		return err
	}
	if s.aabbs, err = upload("aabbs", geometry, boxes); err != nil {
		return err
	}
	if s.materialB, err = upload("materials", gpu.BufferUsageStorageBuffer, materials); err != nil {
		return err
	}
	if s.offsets, err = upload("offsets", gpu.BufferUsageStorageBuffer, offsets); err != nil {
		return err
	}
	logger.Debugf("uploaded scene %q: %d models, %d vertices, %d indices", s.Name, len(s.models), len(vertices), len(indices))
	return nil
}

func (s *Scene) Destroy() {
	for _, b := range []**resource.Buffer{&s.vertices, &s.indices, &s.aabbs, &s.materialB, &s.offsets} {
		(*b).Destroy()
		*b = nil
	}
}

// Stats renders a table of the scene contents.
func (s *Scene) Stats() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Model", "Kind", "Vertices", "Indices"})
	var vertices, indices uint32
	for _, m := range s.models {
		kind := "mesh"
		if m.Procedural {
			kind = "procedural"
		}
		table.Append([]string{m.Name, kind, fmt.Sprint(m.VertexCount()), fmt.Sprint(m.IndexCount())})
		vertices += m.VertexCount()
		indices += m.IndexCount()
	}
	table.SetFooter([]string{"", "TOTAL", fmt.Sprint(vertices), fmt.Sprint(indices)})
	table.Render()
	return buf.String()
}
