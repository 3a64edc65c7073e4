package gputest

import "github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"

// Instance is a fake gpu.Instance handing out a single fake Device.
type Instance struct {
	Device  *Device
	Devices []gpu.PhysicalDevice

	// Requirements records what CreateDevice was asked for.
	Requirements gpu.DeviceRequirements
	Created      int
}

// NewInstance returns an instance exposing one ray-tracing capable device.
func NewInstance() *Instance {
	return &Instance{
		Device: NewDevice(),
		Devices: []gpu.PhysicalDevice{{
			Handle:     1,
			Name:       "Fake GPU",
			Type:       "discrete",
			APIVersion: "1.3.0",
			Extensions: []string{
				gpu.ExtSwapchain,
				gpu.ExtDeferredHostOperations,
				gpu.ExtAccelerationStructure,
				gpu.ExtRayTracingPipeline,
			},
		}},
	}
}

func (i *Instance) Extensions() []gpu.ExtensionProperties {
	return []gpu.ExtensionProperties{{Name: gpu.ExtSurface, SpecVersion: 25}}
}

func (i *Instance) Layers() []gpu.LayerProperties {
	return []gpu.LayerProperties{{Name: gpu.LayerKhronosValidation, Description: "validation"}}
}

func (i *Instance) PhysicalDevices() []gpu.PhysicalDevice { return i.Devices }

func (i *Instance) CreateDevice(pd gpu.PhysicalDevice, req gpu.DeviceRequirements) (gpu.Device, error) {
	i.Requirements = req
	i.Created++
	return i.Device, nil
}
