package cmd

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ibd1279/vks"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/app"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/input"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/raytrace"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/scene"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/vulkan"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/window"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// RunFlags are the options of the run command.
var RunFlags = []cli.Flag{
	cli.IntFlag{Name: "width", Value: 1280, Usage: "window width in screen coordinates"},
	cli.IntFlag{Name: "height", Value: 720, Usage: "window height in screen coordinates"},
	cli.StringFlag{Name: "scene", Value: scene.Names()[0], Usage: "built-in scene: " + strings.Join(scene.Names(), ", ")},
	cli.StringFlag{Name: "device", Usage: "device index or name fragment; defaults to the first ray tracing capable device"},
	cli.StringFlag{Name: "present-mode", Value: "mailbox", Usage: "immediate, mailbox, fifo or fifo-relaxed"},
	cli.StringFlag{Name: "copy-mode", Value: "in-frame", Usage: "how the previous frame is saved: in-frame or one-shot"},
	cli.StringFlag{Name: "shaders", Value: "shaders", Usage: "directory holding the compiled SPIR-V shaders"},
	cli.StringFlag{Name: "post-shader", Usage: "SPIR-V file in the shader directory replacing the post-processing shader"},
	cli.BoolFlag{Name: "raster", Usage: "start with rasterization instead of ray tracing"},
	cli.BoolFlag{Name: "wireframe", Usage: "start with wireframe rasterization"},
	cli.BoolFlag{Name: "validation", Usage: "enable the validation layer and debug names"},
	cli.DurationFlag{Name: "fence-timeout", Usage: "give up on a frame fence after this long; zero waits forever"},
	cli.UintFlag{Name: "samples", Value: 8, Usage: "ray traced samples per pixel per frame"},
	cli.UintFlag{Name: "bounces", Value: 16, Usage: "maximum ray bounces"},
}

// Run opens a window and renders the selected scene until it is closed.
func Run(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	opts, err := runOptions(ctx)
	if err != nil {
		return err
	}
	sc, err := scene.Builtin(ctx.String("scene"))
	if err != nil {
		return err
	}

	if err := window.Init(); err != nil {
		return err
	}
	defer window.Terminate()
	vks.Init().OrPanic()
	defer vks.Destroy()

	win, err := window.New(ctx.Int("width"), ctx.Int("height"), "hybrid-raytracer: "+ctx.String("scene"))
	if err != nil {
		return err
	}
	defer win.Destroy()

	inst, err := vulkan.NewInstance(win.Native(), vulkan.InstanceOptions{Validation: ctx.Bool("validation")})
	if err != nil {
		return err
	}
	defer inst.Destroy()

	var application *app.Application
	controller := scene.NewController(&sc.Camera)
	opts.Camera = controller
	opts.Input = input.Chain{
		input.Keys{
			input.KeyEscape: win.Close,
			input.KeyF1: func() {
				application.SetWireFrame(!application.WireFrame())
				logger.Infof("wireframe %t", application.WireFrame())
			},
			input.KeyF2: func() {
				application.SetRayTraced(!application.RayTraced())
				logger.Infof("ray traced %t", application.RayTraced())
			},
		},
		mouseLook{win},
		controller,
	}
	application = app.New(inst, win, sc, os.DirFS(ctx.String("shaders")), raytrace.NewBackend(), opts)
	defer application.Close()

	pd, err := pickDevice(application.PhysicalDevices(), ctx.String("device"), rayTracedExtensions())
	if err != nil {
		return err
	}
	if err := application.SetPhysicalDevice(pd); err != nil {
		return err
	}
	logger.Noticef("scene %s\n%s", ctx.String("scene"), sc.Stats())

	err = application.Run()
	displayFrameStats(application.Stats())
	return err
}

func runOptions(ctx *cli.Context) (app.Options, error) {
	opts := app.DefaultOptions()
	mode, err := parsePresentMode(ctx.String("present-mode"))
	if err != nil {
		return opts, err
	}
	opts.PresentMode = mode
	if opts.CopyMode, err = app.ParseCopyMode(ctx.String("copy-mode")); err != nil {
		return opts, err
	}
	opts.RayTraced = !ctx.Bool("raster") && !ctx.Bool("wireframe")
	opts.Wireframe = ctx.Bool("wireframe")
	opts.FenceTimeout = ctx.Duration("fence-timeout")
	opts.PostShader = ctx.String("post-shader")
	opts.Samples = uint32(ctx.Uint("samples"))
	opts.Bounces = uint32(ctx.Uint("bounces"))
	if opts.Samples == 0 {
		return opts, errors.New("samples must be at least 1")
	}
	return opts, nil
}

func parsePresentMode(name string) (gpu.PresentMode, error) {
	for _, mode := range []gpu.PresentMode{
		gpu.PresentModeImmediate,
		gpu.PresentModeMailbox,
		gpu.PresentModeFifo,
		gpu.PresentModeFifoRelaxed,
	} {
		if strings.EqualFold(mode.String(), name) {
			return mode, nil
		}
	}
	return 0, errors.Errorf("unknown present mode %q", name)
}

// mouseLook hides the cursor while the right button is held.
type mouseLook struct{ win *window.Window }

func (m mouseLook) OnMouseButton(button input.MouseButton, action input.Action) {
	if button == input.MouseRight && action != input.Repeat {
		m.win.CaptureCursor(action == input.Press)
	}
}

func (mouseLook) OnKey(key input.Key, action input.Action) {}
func (mouseLook) OnCursorPosition(x, y float64)           {}
func (mouseLook) OnScroll(dx, dy float64)                 {}

func displayFrameStats(stats app.Stats) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Frames", "Recreations", "Last frame", "Average frame"})
	table.Append([]string{
		fmt.Sprintf("%d", stats.Frames),
		fmt.Sprintf("%d", stats.Recreations),
		stats.LastFrame.String(),
		stats.AverageFrame().String(),
	})
	table.SetFooter([]string{"", "", "Total", stats.Total.String()})
	table.Render()
	logger.Noticef("frame statistics\n%s", buf.String())
}
