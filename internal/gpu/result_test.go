package gpu

import (
	"strings"
	"testing"
)

func TestResultString(t *testing.T) {
	specs := []struct {
		result Result
		exp    string
	}{
		{Success, "VK_SUCCESS"},
		{ErrorOutOfDate, "VK_ERROR_OUT_OF_DATE_KHR"},
		{Suboptimal, "VK_SUBOPTIMAL_KHR"},
		{Result(-77), "VkResult(-77)"},
	}

	for index, s := range specs {
		if got := s.result.String(); got != s.exp {
			t.Fatalf("[spec %d] expected %q; got %q", index, s.exp, got)
		}
	}
}

func TestCheck(t *testing.T) {
	if err := Check(Success, "submit"); err != nil {
		t.Fatalf("expected nil error for success; got %v", err)
	}
	if err := Check(Suboptimal, "present"); err != nil {
		t.Fatalf("expected positive status codes to pass; got %v", err)
	}

	err := Check(ErrorDeviceLost, "submit draw command buffer")
	re, ok := err.(*ResultError)
	if !ok {
		t.Fatalf("expected *ResultError; got %T", err)
	}
	if re.Result != ErrorDeviceLost {
		t.Fatalf("expected result %s; got %s", ErrorDeviceLost, re.Result)
	}
	if !strings.Contains(err.Error(), "VK_ERROR_DEVICE_LOST") {
		t.Fatalf("expected symbolic code in message; got %q", err.Error())
	}
}

func TestNeedsRecreate(t *testing.T) {
	for _, r := range []Result{ErrorOutOfDate, Suboptimal} {
		if !r.NeedsRecreate() {
			t.Fatalf("expected %s to request recreation", r)
		}
	}
	for _, r := range []Result{Success, Timeout, ErrorDeviceLost} {
		if r.NeedsRecreate() {
			t.Fatalf("expected %s not to request recreation", r)
		}
	}
}

func TestDeviceRequirements(t *testing.T) {
	req := DeviceRequirements{Extensions: []string{ExtSwapchain}}
	req.AddExtensions(ExtSwapchain, ExtAccelerationStructure, ExtRayTracingPipeline)

	if len(req.Extensions) != 3 {
		t.Fatalf("expected duplicate extensions to be dropped; got %v", req.Extensions)
	}
	req.Features |= FeatureBufferDeviceAddress | FeatureRayTracingPipeline
	if !req.Features.Has(FeatureRayTracingPipeline) || req.Features.Has(FeatureFillModeNonSolid) {
		t.Fatalf("unexpected feature set %b", req.Features)
	}

	pd := PhysicalDevice{Extensions: []string{ExtSwapchain, ExtAccelerationStructure}}
	if pd.Supports(req.Extensions...) {
		t.Fatal("expected device without ray tracing pipeline extension to be rejected")
	}
}
