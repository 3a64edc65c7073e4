package gpu

// Extension names used by the renderer.
const (
	ExtSwapchain               = "VK_KHR_swapchain"
	ExtDeferredHostOperations  = "VK_KHR_deferred_host_operations"
	ExtAccelerationStructure   = "VK_KHR_acceleration_structure"
	ExtRayTracingPipeline      = "VK_KHR_ray_tracing_pipeline"
	ExtPortabilitySubset       = "VK_KHR_portability_subset"
	LayerKhronosValidation     = "VK_LAYER_KHRONOS_validation"
	ExtDebugUtils              = "VK_EXT_debug_utils"
	ExtGetPhysicalDeviceProps2 = "VK_KHR_get_physical_device_properties2"
	ExtPortabilityEnumeration  = "VK_KHR_portability_enumeration"
	ExtSurface                 = "VK_KHR_surface"
	ExtGetSurfaceCapabilities2 = "VK_KHR_get_surface_capabilities2"
)

// Features is a set of optional device features to enable at creation.
type Features uint32

const (
	FeatureFillModeNonSolid Features = 1 << iota
	FeatureSamplerAnisotropy
	FeatureBufferDeviceAddress
	FeatureRuntimeDescriptorArray
	FeatureNonUniformImageIndexing
	FeatureAccelerationStructure
	FeatureRayTracingPipeline
)

// Has reports whether every feature in want is present.
func (f Features) Has(want Features) bool { return f&want == want }

// DeviceRequirements is composed by the orchestrator and its render backend
// before the logical device is created.
type DeviceRequirements struct {
	Extensions []string
	Features   Features
}

// AddExtensions appends names not already present.
func (r *DeviceRequirements) AddExtensions(names ...string) {
	for _, name := range names {
		if !r.HasExtension(name) {
			r.Extensions = append(r.Extensions, name)
		}
	}
}

// HasExtension reports whether name has been requested.
func (r *DeviceRequirements) HasExtension(name string) bool {
	for _, ext := range r.Extensions {
		if ext == name {
			return true
		}
	}
	return false
}
