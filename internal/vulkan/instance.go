package vulkan

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/ibd1279/vks"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/pkg/errors"
)

// InstanceOptions configures instance creation.
type InstanceOptions struct {
	AppName string
	// Validation enables the Khronos validation layer and debug object names
	// when they are installed.
	Validation bool
	Extensions []string
	Layers     []string
}

var _ gpu.Instance = (*Instance)(nil)

// Instance implements gpu.Instance. When created with a window it also owns
// the presentation surface every device created from it renders to.
type Instance struct {
	instance vks.InstanceFacade
	surface  vks.SurfaceKHR
	window   *glfw.Window
	names    bool

	physical map[uint64]vks.PhysicalDeviceFacade
}

// NewInstance creates the Vulkan instance. window may be nil for a headless
// instance, which can list devices but not create them.
func NewInstance(window *glfw.Window, opts InstanceOptions) (*Instance, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	available := make([]string, 0)
	for _, ext := range enumerateExtensions("") {
		available = append(available, ext.Name)
	}
	installed := make([]string, 0)
	for _, layer := range enumerateLayers() {
		installed = append(installed, layer.Name)
	}

	extensions := append([]string{}, opts.Extensions...)
	layers := append([]string{}, opts.Layers...)
	if window != nil {
		extensions = append(extensions, window.GetRequiredInstanceExtensions()...)
		extensions = append(extensions, gpu.ExtSurface)
	}
	var flags vks.InstanceCreateFlags
	if contains(available, gpu.ExtPortabilityEnumeration) {
		extensions = append(extensions, gpu.ExtPortabilityEnumeration, gpu.ExtGetPhysicalDeviceProps2)
		flags |= vks.InstanceCreateFlags(vks.VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR)
	}
	names := false
	if opts.Validation {
		if contains(installed, gpu.LayerKhronosValidation) {
			layers = append(layers, gpu.LayerKhronosValidation)
		} else {
			logger.Warningf("%s requested but not installed", gpu.LayerKhronosValidation)
		}
		if contains(available, gpu.ExtDebugUtils) {
			extensions = append(extensions, gpu.ExtDebugUtils)
			names = true
		}
	}
	extensions = unique(extensions)
	layers = unique(layers)
	for _, ext := range extensions {
		if !contains(available, ext) {
			return nil, errors.Errorf("vulkan: instance extension %s not available", ext)
		}
	}

	appName := opts.AppName
	if appName == "" {
		appName = "hybrid-raytracer"
	}
	appInfo := vks.CPtr(arp, &vks.ApplicationInfo{},
		vks.SetEngine(arp, "NoEngine", vks.MakeApiVersion(0, 1, 0, 0)),
		vks.SetApplication(arp, appName, vks.MakeApiVersion(0, 0, 1, 0)),
		vks.SetDefaultSType,
		func(in *vks.ApplicationInfo) {
			in.SetApiVersion(uint32(vks.VK_API_VERSION_1_3))
		},
	)
	createInfo := vks.CPtr(arp, &vks.InstanceCreateInfo{},
		vks.SetInstanceLayers(arp, layers),
		vks.SetInstanceExtensions(arp, extensions),
		vks.SetDefaultSType,
		func(in *vks.InstanceCreateInfo) {
			in.SetPApplicationInfo(appInfo)
			in.SetFlags(flags)
		},
	)

	var handle vks.Instance
	if err := check(vks.CreateInstance(createInfo, nil, &handle), "create instance"); err != nil {
		return nil, err
	}
	inst := &Instance{
		instance: vks.MakeInstanceFacade(handle),
		window:   window,
		names:    names,
		physical: make(map[uint64]vks.PhysicalDeviceFacade),
	}
	logger.Debugf("instance created with layers %v and extensions %v", layers, extensions)

	if window != nil {
		surface, err := window.CreateWindowSurface(inst.instance.H, nil)
		if err != nil {
			inst.Destroy()
			return nil, errors.Wrap(err, "create window surface")
		}
		inst.surface = *(*vks.SurfaceKHR)(unsafe.Pointer(surface))
	}
	return inst, nil
}

// Destroy releases the surface and the instance. Every device must be gone.
func (i *Instance) Destroy() {
	if i.surface != vks.NullSurfaceKHR {
		i.instance.DestroySurfaceKHR(i.surface, nil)
		i.surface = vks.NullSurfaceKHR
	}
	if i.instance.H != vks.NullInstance {
		i.instance.DestroyInstance(nil)
		i.instance.H = vks.NullInstance
	}
}

func (i *Instance) Extensions() []gpu.ExtensionProperties { return enumerateExtensions("") }

func (i *Instance) Layers() []gpu.LayerProperties { return enumerateLayers() }

// PhysicalDevices lists every enumerated GPU with its properties and device
// extensions.
func (i *Instance) PhysicalDevices() []gpu.PhysicalDevice {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	var count uint32
	if result := i.instance.EnumeratePhysicalDevices(&count, nil); result.IsError() {
		logger.Errorf("enumerate physical devices: %v", result.AsErr())
		return nil
	}
	handles := make([]vks.PhysicalDevice, count)
	if result := i.instance.EnumeratePhysicalDevices(&count, handles); result.IsError() {
		logger.Errorf("enumerate physical devices: %v", result.AsErr())
		return nil
	}

	devices := make([]gpu.PhysicalDevice, 0, len(handles))
	for _, h := range handles {
		phyDev := i.instance.MakePhysicalDeviceFacade(h)
		props := vks.CPtr(arp, &vks.PhysicalDeviceProperties2{},
			vks.SetDefaultSType,
		)
		phyDev.GetPhysicalDeviceProperties2(props)

		pd := gpu.PhysicalDevice{
			Handle:     from(h),
			Name:       vks.ToString(props.Properties().DeviceName()),
			Type:       fmt.Sprint(props.Properties().DeviceType()),
			APIVersion: fmt.Sprint(vks.ApiVersion(props.Properties().ApiVersion())),
		}

		layer := vks.NewCStr(arp, "")
		if result := phyDev.EnumerateDeviceExtensionProperties(layer, &count, nil); result.IsError() {
			logger.Warningf("enumerate extensions of %s: %v", pd.Name, result.AsErr())
		} else {
			exts := make([]vks.ExtensionProperties, count)
			phyDev.EnumerateDeviceExtensionProperties(layer, &count, exts)
			for _, ext := range exts {
				pd.Extensions = append(pd.Extensions, vks.ToString(ext.ExtensionName()))
			}
		}
		i.physical[pd.Handle] = phyDev
		devices = append(devices, pd)
	}
	return devices
}

// CreateDevice opens pd with the requested extensions and features.
func (i *Instance) CreateDevice(pd gpu.PhysicalDevice, req gpu.DeviceRequirements) (gpu.Device, error) {
	phyDev, ok := i.physical[pd.Handle]
	if !ok {
		return nil, errors.Errorf("vulkan: unknown physical device %q", pd.Name)
	}
	if i.surface == vks.NullSurfaceKHR {
		return nil, errors.New("vulkan: instance has no surface")
	}
	return newDevice(i, phyDev, req)
}

func enumerateExtensions(layer string) []gpu.ExtensionProperties {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	name := vks.NewCStr(arp, layer)
	var count uint32
	if result := vks.EnumerateInstanceExtensionProperties(name, &count, nil); result.IsError() {
		logger.Errorf("enumerate instance extensions: %v", result.AsErr())
		return nil
	}
	props := make([]vks.ExtensionProperties, count)
	if result := vks.EnumerateInstanceExtensionProperties(name, &count, props); result.IsError() {
		logger.Errorf("enumerate instance extensions: %v", result.AsErr())
		return nil
	}
	out := make([]gpu.ExtensionProperties, len(props))
	for k, ext := range props {
		out[k] = gpu.ExtensionProperties{
			Name:        vks.ToString(ext.ExtensionName()),
			SpecVersion: ext.SpecVersion(),
		}
	}
	return out
}

func enumerateLayers() []gpu.LayerProperties {
	var count uint32
	if result := vks.EnumerateInstanceLayerProperties(&count, nil); result.IsError() {
		logger.Errorf("enumerate instance layers: %v", result.AsErr())
		return nil
	}
	props := make([]vks.LayerProperties, count)
	if result := vks.EnumerateInstanceLayerProperties(&count, props); result.IsError() {
		logger.Errorf("enumerate instance layers: %v", result.AsErr())
		return nil
	}
	out := make([]gpu.LayerProperties, len(props))
	for k, layer := range props {
		out[k] = gpu.LayerProperties{
			Name:                  vks.ToString(layer.LayerName()),
			Description:           vks.ToString(layer.Description()),
			SpecVersion:           layer.SpecVersion(),
			ImplementationVersion: layer.ImplementationVersion(),
		}
	}
	return out
}

func unique(names []string) []string {
	out := names[:0]
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
