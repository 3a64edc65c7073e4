package frame

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu/gputest"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/resource"
)

var errFake = errors.New("fake failure")

func TestTransformCacheIsOneDeep(t *testing.T) {
	t1 := mgl32.Translate3D(1, 0, 0)
	t2 := mgl32.Translate3D(0, 2, 0)
	t3 := mgl32.Translate3D(0, 0, 3)
	proj := mgl32.Perspective(mgl32.DegToRad(45), 4.0/3.0, 0.1, 100)

	var cache TransformCache
	specs := []struct {
		current mgl32.Mat4
		expLast mgl32.Mat4
	}{
		{t1, t1},
		{t2, t1},
		{t3, t2},
	}
	for index, spec := range specs {
		ubo := UniformBufferObject{ModelView: spec.current, Projection: proj}
		cache.Advance(&ubo)
		if ubo.LastModelView != spec.expLast {
			t.Fatalf("[spec %d] expected last model view %v; got %v", index, spec.expLast, ubo.LastModelView)
		}
		if ubo.LastProjection != proj {
			t.Fatalf("[spec %d] expected last projection to carry over", index)
		}
	}
	if mv, _, ok := cache.Previous(); !ok || mv != t3 {
		t.Fatalf("expected cache to hold the latest transform; got %v", mv)
	}
}

func TestUniformBufferEncoding(t *testing.T) {
	ubo := UniformBufferObject{
		ModelView:        mgl32.Translate3D(1, 2, 3),
		LastModelView:    mgl32.Ident4(),
		Samples:          8,
		HasPreviousFrame: 1,
	}
	data, err := ubo.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != UniformBufferSize {
		t.Fatalf("expected %d bytes; got %d", UniformBufferSize, len(data))
	}
	var decoded UniformBufferObject
	if err := decoded.UnmarshalBinary(data); err != nil {
		t.Fatal(err)
	}
	if decoded != ubo {
		t.Fatalf("expected decoded object to match; got %+v", decoded)
	}
	if err := decoded.UnmarshalBinary(data[:10]); err == nil {
		t.Fatal("expected short buffer to be rejected")
	}
}

func TestSetLifecycle(t *testing.T) {
	dev := gputest.NewDevice()
	pool, _ := resource.NewCommandPool(dev)

	set, err := NewSet(dev, pool, 3)
	if err != nil {
		t.Fatal(err)
	}
	if set.Len() != 3 || dev.Live("fence") != 3 || dev.Live("semaphore") != 6 {
		t.Fatalf("expected 3 slots with their sync objects; got %v", dev.Leaks())
	}
	for i := 0; i < 4; i++ {
		if got := set.Current().Index; got != i%3 {
			t.Fatalf("expected slot %d; got %d", i%3, got)
		}
		set.Advance()
	}

	// Every slot fence starts signaled.
	if r := set.Current().InFlight.Wait(gpu.NoTimeout); r != gpu.Success {
		t.Fatalf("expected signaled fence; got %s", r)
	}

	set.FreeCommandBuffers()
	set.Destroy()
	pool.Destroy()
	if leaks := dev.Leaks(); len(leaks) != 0 {
		t.Fatalf("expected no leaks; got %v", leaks)
	}
	if len(dev.Violations) != 0 {
		t.Fatalf("unexpected violations: %v", dev.Violations)
	}
}

func TestNewSetReleasesOnFailure(t *testing.T) {
	dev := gputest.NewDevice()
	pool, _ := resource.NewCommandPool(dev)
	dev.Fail["buffer"] = errFake

	if _, err := NewSet(dev, pool, 2); err == nil {
		t.Fatal("expected uniform buffer failure to surface")
	}
	if dev.Live("fence") != 0 || dev.Live("semaphore") != 0 || dev.Live("command buffer") != 0 {
		t.Fatalf("expected partial set to be released; got %v", dev.Leaks())
	}
}
