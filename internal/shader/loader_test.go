package shader

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu/gputest"
)

func spirv(words ...uint32) []byte {
	out := make([]byte, 0, 4*len(words))
	for _, w := range words {
		out = append(out, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	return out
}

func TestNewWords(t *testing.T) {
	specs := []struct {
		data   []byte
		expErr bool
	}{
		{spirv(SPIRVMagic, 0x00010500, 0, 1, 0), false},
		{spirv(0xdeadbeef, 0), true},
		{[]byte{0x03, 0x02, 0x23}, true},
		{nil, true},
	}
	for index, spec := range specs {
		words, err := NewWords(spec.data)
		if (err != nil) != spec.expErr {
			t.Fatalf("[spec %d] expected error %t; got %v", index, spec.expErr, err)
		}
		if err == nil && words.Sizeof() != uint64(len(spec.data)) {
			t.Fatalf("[spec %d] expected size %d; got %d", index, len(spec.data), words.Sizeof())
		}
	}
}

func TestLoaderCachesFiles(t *testing.T) {
	dev := gputest.NewDevice()
	files := fstest.MapFS{
		"shaders/Graphics.vert.spv": {Data: spirv(SPIRVMagic, 1, 2, 3)},
		"shaders/broken.spv":        {Data: spirv(1, 2)},
	}
	loader := NewLoader(dev, files)

	for i := 0; i < 2; i++ {
		module, err := loader.Load("shaders/Graphics.vert.spv")
		if err != nil {
			t.Fatal(err)
		}
		if module == 0 {
			t.Fatal("expected a shader module")
		}
		dev.DestroyShaderModule(module)
	}
	if len(loader.cache) != 1 {
		t.Fatalf("expected decoded words to be cached once; got %d", len(loader.cache))
	}

	if _, err := loader.Load("shaders/missing.spv"); err == nil {
		t.Fatal("expected missing file to fail")
	}
	if _, err := loader.Load("shaders/broken.spv"); err == nil || !strings.Contains(err.Error(), "broken.spv") {
		t.Fatalf("expected error naming the file; got %v", err)
	}
	if leaks := dev.Leaks(); len(leaks) != 0 {
		t.Fatalf("expected no leaks; got %v", leaks)
	}
}

func TestPostProcessSource(t *testing.T) {
	src := PostProcessSource()
	checks := []struct {
		pattern string
		desc    string
	}{
		{"@group(0) @binding(0) var color_tex: texture_2d<f32>", "sampled output image"},
		{"@group(0) @binding(1) var depth_tex: texture_depth_2d", "sampled depth image"},
		{"@group(0) @binding(2) var out_tex: texture_storage_2d", "storage image"},
		{"fn main(", "rgba entry point"},
		{"fn main_bgra(", "bgra entry point"},
		{"@builtin(global_invocation_id)", "compute builtin"},
	}
	for _, check := range checks {
		if !strings.Contains(src, check.pattern) {
			t.Errorf("post-processing shader missing %s: %q", check.desc, check.pattern)
		}
	}

	words, err := Compile(src)
	if err != nil {
		t.Fatalf("expected the post-processing shader to compile; got %v", err)
	}
	if len(words) < 5 || words[0] != 0x07230203 {
		t.Fatalf("expected a SPIR-V module; got %d words", len(words))
	}
}
