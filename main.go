package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/ibd1279/vks-examples/hybrid-raytracer/cmd"
	"github.com/urfave/cli"
)

// GLFW and the Vulkan surface calls must stay on the main thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "hybrid-raytracer"
	app.Usage = "render scenes with Vulkan rasterization or hardware ray tracing"
	app.Version = "0.1.0"
	app.Flags = cmd.LogFlags
	app.Commands = []cli.Command{
		{
			Name:  "run",
			Usage: "render a built-in scene in a window",
			Description: `
Open a window and render the scene until the window is closed. F1 toggles
wireframe rasterization, F2 toggles between ray tracing and rasterization.
WASD, Q and E move the camera; hold the right mouse button to look around.

Frame statistics are printed when the window closes.`,
			Flags:  cmd.RunFlags,
			Action: cmd.Run,
		},
		{
			Name:  "list-devices",
			Usage: "list vulkan devices and their ray tracing support",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "all",
					Usage: "also list instance layers and extensions",
				},
				cli.BoolFlag{
					Name:  "validation",
					Usage: "enable the validation layer",
				},
			},
			Action: cmd.ListDevices,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
