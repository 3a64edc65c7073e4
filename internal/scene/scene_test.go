package scene

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu/gputest"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/input"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/resource"
)

var errFake = errors.New("fake failure")

func TestRecordSizes(t *testing.T) {
	specs := []struct {
		value interface{}
		exp   int
	}{
		{Vertex{}, VertexSize},
		{AABB{}, AABBSize},
		{Material{}, MaterialSize},
		{Offset{}, OffsetSize},
	}
	for index, spec := range specs {
		if got := len(encode(spec.value)); got != spec.exp {
			t.Fatalf("[spec %d] expected %T to pack into %d bytes; got %d", index, spec.value, spec.exp, got)
		}
	}
}

func TestPackOffsets(t *testing.T) {
	box := NewBox("box", mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, 0)
	sphere := Model{Name: "ball", Procedural: true, Box: AABB{Max: mgl32.Vec3{1, 1, 1}}}
	sc := New("test", []Model{box, sphere, box}, nil, Camera{})

	vertices, indices, boxes, offsets := sc.Pack()
	if len(vertices) != 48 || len(indices) != 72 || len(boxes) != 1 {
		t.Fatalf("unexpected packed sizes %d/%d/%d", len(vertices), len(indices), len(boxes))
	}
	exp := []Offset{{0, 0}, {36, 24}, {36, 24}}
	for i, o := range offsets {
		if o != exp[i] {
			t.Fatalf("[model %d] expected offset %+v; got %+v", i, exp[i], o)
		}
	}
	if !sc.HasProcedurals() {
		t.Fatal("expected scene to report procedural geometry")
	}
}

func TestUploadAndDestroy(t *testing.T) {
	dev := gputest.NewDevice()
	pool, _ := resource.NewCommandPool(dev)
	sc, err := Builtin("boxes")
	if err != nil {
		t.Fatal(err)
	}
	if err := sc.Upload(dev, pool); err != nil {
		t.Fatal(err)
	}
	if sc.VertexBuffer().Address() == 0 || sc.AABBBuffer() == nil {
		t.Fatal("expected addressable geometry buffers")
	}
	if dev.Names[uint64(sc.IndexBuffer().Handle)] != "indices" {
		t.Fatal("expected debug name on index buffer")
	}
	if dev.Live("buffer") != 5 {
		t.Fatalf("expected 5 scene buffers; got %v", dev.Leaks())
	}
	if !strings.Contains(sc.Stats(), "TOTAL") {
		t.Fatal("expected stats table footer")
	}
	sc.Destroy()
	pool.Destroy()
	if leaks := dev.Leaks(); len(leaks) != 0 {
		t.Fatalf("expected no leaks; got %v", leaks)
	}
}

func TestUploadPadsEmptyBuffers(t *testing.T) {
	sphere := Model{Name: "ball", Procedural: true, Box: AABB{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}}
	box := NewBox("box", mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, 0)
	specs := []struct {
		models []Model
	}{
		{[]Model{sphere}},
		{[]Model{sphere, sphere}},
		{[]Model{box}},
	}
	for index, spec := range specs {
		dev := gputest.NewDevice()
		pool, _ := resource.NewCommandPool(dev)
		sc := New("padded", spec.models, nil, Camera{})
		if err := sc.Upload(dev, pool); err != nil {
			t.Fatalf("[spec %d] unexpected error %v", index, err)
		}
		if len(dev.Violations) != 0 {
			t.Fatalf("[spec %d] expected no violations; got %v", index, dev.Violations)
		}
		if dev.Live("buffer") != 5 {
			t.Fatalf("[spec %d] expected 5 scene buffers; got %v", index, dev.Leaks())
		}
		sc.Destroy()
		pool.Destroy()
	}
}

func TestUploadFailureReleasesBuffers(t *testing.T) {
	dev := gputest.NewDevice()
	pool, _ := resource.NewCommandPool(dev)
	sc, _ := Builtin("spheres")
	dev.Fail["submit"] = errFake

	if err := sc.Upload(dev, pool); err == nil {
		t.Fatal("expected upload failure")
	}
	if n := dev.Live("buffer"); n != 0 {
		t.Fatalf("expected buffers to be released; got %v", dev.Leaks())
	}
}

func TestBuiltinUnknown(t *testing.T) {
	if _, err := Builtin("teapot"); err == nil {
		t.Fatal("expected unknown scene to fail")
	}
}

func TestControllerMovesCamera(t *testing.T) {
	cam := &Camera{Yaw: -90, FieldOfView: 45}
	ctrl := NewController(cam)

	if ctrl.Update(1) {
		t.Fatal("expected no movement without input")
	}
	ctrl.OnKey(input.KeyW, input.Press)
	if !ctrl.Update(1) {
		t.Fatal("expected movement while W is held")
	}
	if cam.Position.Z() >= 0 {
		t.Fatalf("expected camera to move along -Z; got %v", cam.Position)
	}
	ctrl.OnKey(input.KeyW, input.Release)
	if ctrl.Update(1) {
		t.Fatal("expected camera to stop after release")
	}

	p := cam.Projection(gpu.Extent2D{Width: 800, Height: 600})
	if p[5] >= 0 {
		t.Fatal("expected Y flipped projection")
	}
}
