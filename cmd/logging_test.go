package cmd

import (
	"testing"

	"github.com/ibd1279/vks-examples/hybrid-raytracer/log"
)

func TestLogLevels(t *testing.T) {
	specs := []struct {
		name    string
		verbose bool
		debug   bool
		modules []string
		exp     log.Level
		expMods map[string]log.Level
		err     bool
	}{
		{"notice", false, false, nil, log.Notice, map[string]log.Level{}, false},
		{"notice", true, false, nil, log.Info, map[string]log.Level{}, false},
		{"error", true, true, nil, log.Debug, map[string]log.Level{}, false},
		{"debug", true, false, nil, log.Debug, map[string]log.Level{}, false},
		{"warning", false, false, []string{"vulkan=debug", "app=error"}, log.Warning, map[string]log.Level{"vulkan": log.Debug, "app": log.Error}, false},
		{"loud", false, false, nil, 0, nil, true},
		{"notice", false, false, []string{"vulkan"}, 0, nil, true},
		{"notice", false, false, []string{"vulkan=chatty"}, 0, nil, true},
	}
	for index, spec := range specs {
		level, mods, err := logLevels(spec.name, spec.verbose, spec.debug, spec.modules)
		if (err != nil) != spec.err {
			t.Fatalf("[spec %d] expected error %t; got %v", index, spec.err, err)
		}
		if spec.err {
			continue
		}
		if level != spec.exp {
			t.Fatalf("[spec %d] expected level %d; got %d", index, spec.exp, level)
		}
		if len(mods) != len(spec.expMods) {
			t.Fatalf("[spec %d] expected overrides %v; got %v", index, spec.expMods, mods)
		}
		for module, exp := range spec.expMods {
			if mods[module] != exp {
				t.Fatalf("[spec %d] expected %s at %d; got %d", index, module, exp, mods[module])
			}
		}
	}
}
