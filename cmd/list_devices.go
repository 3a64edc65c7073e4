package cmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ibd1279/vks"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/raytrace"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/vulkan"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// ListDevices prints the Vulkan devices, and with --all the instance layers
// and extensions, visible to this process.
func ListDevices(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	vks.Init().OrPanic()
	defer vks.Destroy()

	inst, err := vulkan.NewInstance(nil, vulkan.InstanceOptions{Validation: ctx.Bool("validation")})
	if err != nil {
		return err
	}
	defer inst.Destroy()

	required := rayTracedExtensions()
	devices := inst.PhysicalDevices()

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"#", "Device", "Type", "API version", "Ray tracing"})
	for index, pd := range devices {
		table.Append([]string{
			fmt.Sprintf("%d", index),
			pd.Name,
			pd.Type,
			pd.APIVersion,
			fmt.Sprintf("%t", pd.Supports(required...)),
		})
	}
	table.Render()
	logger.Noticef("system provides %d vulkan device(s)\n%s", len(devices), buf.String())

	if !ctx.Bool("all") {
		return nil
	}
	buf.Reset()
	table = tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Layer", "Version", "Description"})
	for _, layer := range inst.Layers() {
		table.Append([]string{layer.Name, fmt.Sprintf("%d", layer.ImplementationVersion), layer.Description})
	}
	table.Render()
	logger.Noticef("instance layers\n%s", buf.String())

	names := make([]string, 0)
	for _, ext := range inst.Extensions() {
		names = append(names, ext.Name)
	}
	logger.Noticef("instance extensions\n  %s", strings.Join(names, "\n  "))
	for _, pd := range devices {
		logger.Infof("%s extensions\n  %s", pd.Name, strings.Join(pd.Extensions, "\n  "))
	}
	return nil
}

// pickDevice selects by index or case-insensitive name fragment. An empty
// selector takes the first device supporting every required extension.
func pickDevice(devices []gpu.PhysicalDevice, selector string, required []string) (gpu.PhysicalDevice, error) {
	if len(devices) == 0 {
		return gpu.PhysicalDevice{}, fmt.Errorf("no vulkan devices found")
	}
	for index, pd := range devices {
		switch {
		case selector == "" && pd.Supports(required...):
			return pd, nil
		case selector != "" && selector == fmt.Sprintf("%d", index):
			return pd, nil
		case selector != "" && strings.Contains(strings.ToLower(pd.Name), strings.ToLower(selector)):
			return pd, nil
		}
	}
	if selector == "" {
		return gpu.PhysicalDevice{}, fmt.Errorf("no device supports %s", strings.Join(required, ", "))
	}
	return gpu.PhysicalDevice{}, fmt.Errorf("no device matches %q", selector)
}

// rayTracedExtensions is what the ray tracing backend asks of a device.
func rayTracedExtensions() []string {
	req := gpu.DeviceRequirements{}
	req.AddExtensions(gpu.ExtSwapchain)
	raytrace.NewBackend().OnDeviceSetup(&req)
	return req.Extensions
}
