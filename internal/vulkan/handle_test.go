package vulkan

import (
	"reflect"
	"testing"

	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
)

func TestHandleRoundTrip(t *testing.T) {
	specs := []uint64{0, 1, 0xdeadbeef, ^uint64(0)}
	for index, spec := range specs {
		ptr := to[uintptr](spec)
		if got := from(ptr); got != spec {
			t.Fatalf("[spec %d] expected %#x; got %#x", index, spec, got)
		}
	}

	images := []gpu.Image{3, 5, 8}
	raw := toSlice[uint64](images)
	if back := fromSlice[gpu.Image](raw); !reflect.DeepEqual(back, images) {
		t.Fatalf("expected %v; got %v", images, back)
	}
}

func TestUnionWritesLeadingBytes(t *testing.T) {
	type clearValue struct{ words [4]uint32 }
	type depthStencil struct {
		depth   float32
		stencil uint32
	}
	u := union[clearValue](depthStencil{depth: 1, stencil: 7})
	if u.words[0] != 0x3f800000 || u.words[1] != 7 || u.words[2] != 0 {
		t.Fatalf("expected depth 1.0 and stencil 7 in the first words; got %#v", u.words)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for a member larger than the union")
		}
	}()
	union[uint32](uint64(1))
}

func TestUnique(t *testing.T) {
	specs := []struct {
		in  []string
		exp []string
	}{
		{nil, []string{}},
		{[]string{"a", "b", "a"}, []string{"a", "b"}},
		{[]string{gpu.ExtSurface, gpu.ExtSurface, gpu.ExtDebugUtils}, []string{gpu.ExtSurface, gpu.ExtDebugUtils}},
	}
	for index, spec := range specs {
		got := unique(append([]string{}, spec.in...))
		if len(got) != len(spec.exp) {
			t.Fatalf("[spec %d] expected %v; got %v", index, spec.exp, got)
		}
		for k := range got {
			if got[k] != spec.exp[k] {
				t.Fatalf("[spec %d] expected %v; got %v", index, spec.exp, got)
			}
		}
	}
}
