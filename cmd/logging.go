package cmd

import (
	"strings"

	"github.com/ibd1279/vks-examples/hybrid-raytracer/log"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

var logger = log.New("hybrid-raytracer")

// LogFlags are the global logging options shared by every command.
var LogFlags = []cli.Flag{
	cli.StringFlag{Name: "log-level", Value: "notice", Usage: "debug, info, notice, warning or error"},
	cli.StringSliceFlag{Name: "log-module", Usage: "per-package level as module=level, e.g. vulkan=debug"},
	cli.BoolFlag{Name: "v", Usage: "shorthand for --log-level info"},
	cli.BoolFlag{Name: "vv", Usage: "shorthand for --log-level debug"},
}

// logLevels resolves the global level and module overrides. The -v and -vv
// shorthands only ever raise verbosity above --log-level.
func logLevels(name string, verbose, debug bool, modules []string) (log.Level, map[string]log.Level, error) {
	level, err := log.ParseLevel(name)
	if err != nil {
		return level, nil, err
	}
	if verbose && level > log.Info {
		level = log.Info
	}
	if debug {
		level = log.Debug
	}

	overrides := make(map[string]log.Level, len(modules))
	for _, m := range modules {
		module, lvl, ok := strings.Cut(m, "=")
		if !ok || module == "" {
			return level, nil, errors.Errorf("log module %q is not module=level", m)
		}
		if overrides[module], err = log.ParseLevel(lvl); err != nil {
			return level, nil, errors.Wrapf(err, "log module %s", module)
		}
	}
	return level, overrides, nil
}

func setupLogging(ctx *cli.Context) error {
	level, overrides, err := logLevels(
		ctx.GlobalString("log-level"),
		ctx.GlobalBool("v"),
		ctx.GlobalBool("vv"),
		ctx.GlobalStringSlice("log-module"),
	)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	for module, l := range overrides {
		log.SetLevel(l, module)
	}
	return nil
}
