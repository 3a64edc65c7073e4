// Package shader turns SPIR-V files and WGSL sources into shader modules.
package shader

import (
	"bytes"
	_ "embed"
	"encoding/binary"
	"io/fs"
	"path"
	"strings"

	"github.com/gogpu/naga"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/log"
	"github.com/pkg/errors"
)

var logger = log.New("shader")

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic = 0x07230203

//go:embed shaders/postprocess.wgsl
var postProcessWGSL string

// PostProcessSource returns the built-in post-processing compute shader.
func PostProcessSource() string { return postProcessWGSL }

// Words is a SPIR-V module as 32-bit words.
type Words []uint32

// NewWords decodes little-endian SPIR-V bytes.
func NewWords(b []byte) (Words, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, errors.Errorf("shader: SPIR-V size %d is not a positive multiple of 4", len(b))
	}
	words := make([]uint32, len(b)/4)
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, words); err != nil {
		return nil, errors.Wrap(err, "shader: decode SPIR-V")
	}
	if words[0] != SPIRVMagic {
		return nil, errors.Errorf("shader: bad SPIR-V magic %#08x", words[0])
	}
	return Words(words), nil
}

func (words Words) Sizeof() uint64 { return uint64(len(words) * 4) }

// Compile translates WGSL to SPIR-V.
func Compile(wgsl string) (Words, error) {
	spirv, err := naga.Compile(wgsl)
	if err != nil {
		return nil, errors.Wrap(err, "shader: compile WGSL")
	}
	return NewWords(spirv)
}

// Loader creates shader modules from files in an fs.FS. Files ending in
// .wgsl are compiled; everything else is read as SPIR-V. Callers own the
// returned modules.
type Loader struct {
	dev   gpu.Device
	files fs.FS
	cache map[string]Words
}

func NewLoader(dev gpu.Device, files fs.FS) *Loader {
	return &Loader{dev: dev, files: files, cache: make(map[string]Words)}
}

func (l *Loader) Load(name string) (gpu.ShaderModule, error) {
	words, err := l.words(name)
	if err != nil {
		return 0, err
	}
	return l.create(name, words)
}

// LoadSource compiles WGSL source held in memory.
func (l *Loader) LoadSource(name, wgsl string) (gpu.ShaderModule, error) {
	words, ok := l.cache[name]
	if !ok {
		var err error
		if words, err = Compile(wgsl); err != nil {
			return 0, errors.Wrap(err, name)
		}
		l.cache[name] = words
	}
	return l.create(name, words)
}

func (l *Loader) words(name string) (Words, error) {
	if words, ok := l.cache[name]; ok {
		return words, nil
	}
	data, err := fs.ReadFile(l.files, name)
	if err != nil {
		return nil, errors.Wrapf(err, "shader: read %s", name)
	}
	var words Words
	if strings.EqualFold(path.Ext(name), ".wgsl") {
		words, err = Compile(string(data))
	} else {
		words, err = NewWords(data)
	}
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	l.cache[name] = words
	return words, nil
}

func (l *Loader) create(name string, words Words) (gpu.ShaderModule, error) {
	module, err := l.dev.CreateShaderModule(words)
	if err != nil {
		return 0, errors.Wrapf(err, "shader: create module %s", name)
	}
	logger.Debugf("loaded %s (%d bytes)", name, words.Sizeof())
	return module, nil
}

// Source loads shader modules by name.
type Source interface {
	Load(name string) (gpu.ShaderModule, error)
}

// Compiler is a Source that also accepts in-memory WGSL.
type Compiler interface {
	Source
	LoadSource(name, wgsl string) (gpu.ShaderModule, error)
}
