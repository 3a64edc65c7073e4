package accel

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu/gputest"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/resource"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/scene"
)

var errFake = errors.New("fake failure")

// meshAndBox is a triangle mesh of 50 vertices and 90 indices followed by a
// procedural model with one box.
func meshAndBox() *scene.Scene {
	mesh := scene.Model{
		Name:     "mesh",
		Vertices: make([]scene.Vertex, 50),
		Indices:  make([]uint32, 90),
	}
	box := scene.Model{
		Name:       "box",
		Procedural: true,
		Box:        scene.AABB{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}},
	}
	return scene.New("scenario", []scene.Model{mesh, box}, nil, scene.Camera{})
}

func upload(t *testing.T, sc *scene.Scene) (*gputest.Device, *resource.CommandPool) {
	dev := gputest.NewDevice()
	pool, err := resource.NewCommandPool(dev)
	if err != nil {
		t.Fatal(err)
	}
	if err := sc.Upload(dev, pool); err != nil {
		t.Fatal(err)
	}
	return dev, pool
}

func TestBottomLevelOffsets(t *testing.T) {
	sc := meshAndBox()
	dev, pool := upload(t, sc)
	defer pool.Destroy()
	defer sc.Destroy()

	infos, off := BottomLevel(sc)
	if len(infos) != 2 {
		t.Fatalf("expected 2 bottom level builds; got %d", len(infos))
	}
	exp := Offsets{Vertex: 50 * scene.VertexSize, Index: 90 * scene.IndexSize, AABB: scene.AABBSize}
	if off != exp || off.Vertex != 1800 || off.Index != 360 || off.AABB != 24 {
		t.Fatalf("expected offsets %+v; got %+v", exp, off)
	}

	specs := []struct {
		typ        gpu.GeometryType
		primitives uint32
		data       uint64
	}{
		{gpu.GeometryTriangles, 30, sc.VertexBuffer().Address()},
		{gpu.GeometryAABBs, 1, sc.AABBBuffer().Address()},
	}
	for index, spec := range specs {
		g := infos[index].Geometries[0]
		if g.Type != spec.typ || g.PrimitiveCount != spec.primitives {
			t.Fatalf("[spec %d] expected %d primitives of type %d; got %d of %d",
				index, spec.primitives, spec.typ, g.PrimitiveCount, g.Type)
		}
		data := g.VertexData
		if g.Type == gpu.GeometryAABBs {
			data = g.AABBData
		}
		if data != spec.data {
			t.Fatalf("[spec %d] expected data at %#x; got %#x", index, spec.data, data)
		}
	}
	if len(dev.Violations) != 0 {
		t.Fatalf("unexpected violations %v", dev.Violations)
	}
}

func TestBuildOrdersTopAfterBottom(t *testing.T) {
	sc := meshAndBox()
	dev, pool := upload(t, sc)

	s, err := Build(dev, pool, sc)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Bottom) != 2 || s.Top == 0 {
		t.Fatalf("expected 2 bottom and 1 top structure; got %d/%d", len(s.Bottom), s.Top)
	}

	cmds := dev.Submissions[len(dev.Submissions)-1].Commands
	exp := []string{
		"build acceleration structure",
		"build acceleration structure",
		"barrier",
		"build acceleration structure",
	}
	names := gputest.Names(cmds)
	if len(names) != len(exp) {
		t.Fatalf("expected commands %v; got %v", exp, names)
	}
	for i := range exp {
		if names[i] != exp[i] {
			t.Fatalf("[cmd %d] expected %q; got %q", i, exp[i], names[i])
		}
	}
	barrier := cmds[2].Args.(gputest.BarrierArgs)
	if barrier.Src != gpu.StageAccelerationStructureBuild || len(barrier.Memory) != 1 {
		t.Fatalf("unexpected barrier %+v", barrier)
	}
	last := cmds[3].Args.(gpu.AccelerationBuildInfo)
	if last.Type != gpu.AccelerationTopLevel || last.Destination != s.Top {
		t.Fatalf("expected the top level build last; got %+v", last)
	}

	// scene 5 + BLAS + TLAS + instances; scratch is gone
	if n := dev.Live("buffer"); n != 8 {
		t.Fatalf("expected 8 live buffers; got %v", dev.Leaks())
	}
	if dev.Names[uint64(s.Top)] != "TLAS" {
		t.Fatal("expected TLAS debug name")
	}

	s.Destroy()
	s.Destroy()
	sc.Destroy()
	pool.Destroy()
	if leaks := dev.Leaks(); len(leaks) != 0 {
		t.Fatalf("expected no leaks; got %v", leaks)
	}
	if len(dev.Violations) != 0 {
		t.Fatalf("unexpected violations %v", dev.Violations)
	}
}

func TestBuildFailureReleases(t *testing.T) {
	specs := []string{"acceleration structure", "submit"}
	for index, spec := range specs {
		sc := meshAndBox()
		dev, pool := upload(t, sc)
		dev.Fail[spec] = errFake
		if _, err := Build(dev, pool, sc); err == nil {
			t.Fatalf("[spec %d] expected failure", index)
		}
		sc.Destroy()
		pool.Destroy()
		if leaks := dev.Leaks(); len(leaks) != 0 {
			t.Fatalf("[spec %d] expected no leaks; got %v", index, leaks)
		}
	}
}

func TestInstanceEncoding(t *testing.T) {
	in := Instance{
		Transform:   mgl32.Translate3D(1, 2, 3),
		CustomIndex: 7,
		Mask:        0xFF,
		HitGroup:    HitGroupProcedural,
		Reference:   0xA0000010,
	}
	data, err := in.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != InstanceSize {
		t.Fatalf("expected %d bytes; got %d", InstanceSize, len(data))
	}
	specs := []struct {
		offset int
		exp    float32
	}{
		{0, 1}, {12, 1}, {28, 2}, {40, 1}, {44, 3},
	}
	for index, spec := range specs {
		got := math.Float32frombits(binary.LittleEndian.Uint32(data[spec.offset:]))
		if got != spec.exp {
			t.Fatalf("[spec %d] expected %v at byte %d; got %v", index, spec.exp, spec.offset, got)
		}
	}
	if w := binary.LittleEndian.Uint32(data[48:]); w != 7|0xFF<<24 {
		t.Fatalf("expected packed index and mask; got %#x", w)
	}
	if w := binary.LittleEndian.Uint32(data[52:]); w != HitGroupProcedural {
		t.Fatalf("expected hit group %d; got %#x", HitGroupProcedural, w)
	}
	if ref := binary.LittleEndian.Uint64(data[56:]); ref != in.Reference {
		t.Fatalf("expected reference %#x; got %#x", in.Reference, ref)
	}
}
