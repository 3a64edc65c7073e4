package cmd

import (
	"testing"

	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
)

func TestParsePresentMode(t *testing.T) {
	specs := []struct {
		name string
		exp  gpu.PresentMode
		err  bool
	}{
		{"mailbox", gpu.PresentModeMailbox, false},
		{"FIFO", gpu.PresentModeFifo, false},
		{"fifo-relaxed", gpu.PresentModeFifoRelaxed, false},
		{"immediate", gpu.PresentModeImmediate, false},
		{"vsync", 0, true},
	}
	for index, spec := range specs {
		got, err := parsePresentMode(spec.name)
		if (err != nil) != spec.err {
			t.Fatalf("[spec %d] expected error %t; got %v", index, spec.err, err)
		}
		if !spec.err && got != spec.exp {
			t.Fatalf("[spec %d] expected %v; got %v", index, spec.exp, got)
		}
	}
}

func TestPickDevice(t *testing.T) {
	required := []string{gpu.ExtSwapchain, gpu.ExtRayTracingPipeline}
	devices := []gpu.PhysicalDevice{
		{Name: "llvmpipe", Extensions: []string{gpu.ExtSwapchain}},
		{Name: "NVIDIA GeForce RTX 3080", Extensions: []string{gpu.ExtSwapchain, gpu.ExtRayTracingPipeline}},
	}
	specs := []struct {
		devices  []gpu.PhysicalDevice
		selector string
		exp      string
		err      bool
	}{
		{devices, "", "NVIDIA GeForce RTX 3080", false},
		{devices, "0", "llvmpipe", false},
		{devices, "rtx", "NVIDIA GeForce RTX 3080", false},
		{devices, "radeon", "", true},
		{devices[:1], "", "", true},
		{nil, "", "", true},
	}
	for index, spec := range specs {
		got, err := pickDevice(spec.devices, spec.selector, required)
		if (err != nil) != spec.err {
			t.Fatalf("[spec %d] expected error %t; got %v", index, spec.err, err)
		}
		if got.Name != spec.exp {
			t.Fatalf("[spec %d] expected %q; got %q", index, spec.exp, got.Name)
		}
	}
}
