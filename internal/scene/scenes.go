package scene

import (
	"math/rand"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

var builtins = map[string]func() *Scene{
	"spheres": randomSpheres,
	"boxes":   boxes,
}

// Names lists the built-in scenes.
func Names() []string {
	var names []string
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtin returns a freshly generated built-in scene.
func Builtin(name string) (*Scene, error) {
	fn, ok := builtins[name]
	if !ok {
		return nil, errors.Errorf("scene: unknown scene %q (have %v)", name, Names())
	}
	return fn(), nil
}

// randomSpheres is a ground box with a field of small procedural spheres,
// three large ones and a mesh box.
func randomSpheres() *Scene {
	rng := rand.New(rand.NewSource(42))
	materials := []Material{NewLambertian(mgl32.Vec3{0.5, 0.5, 0.5})}
	models := []Model{NewBox("ground", mgl32.Vec3{-50, -1, -50}, mgl32.Vec3{50, 0, 50}, 0)}

	for a := -5; a < 5; a++ {
		for b := -5; b < 5; b++ {
			center := mgl32.Vec3{float32(a) + 0.9*rng.Float32(), 0.2, float32(b) + 0.9*rng.Float32()}
			if center.Sub(mgl32.Vec3{4, 0.2, 0}).Len() <= 0.9 {
				continue
			}
			choose := rng.Float32()
			switch {
			case choose < 0.8:
				materials = append(materials, NewLambertian(mgl32.Vec3{rng.Float32() * rng.Float32(), rng.Float32() * rng.Float32(), rng.Float32() * rng.Float32()}))
			case choose < 0.95:
				materials = append(materials, NewMetallic(mgl32.Vec3{0.5 * (1 + rng.Float32()), 0.5 * (1 + rng.Float32()), 0.5 * (1 + rng.Float32())}, 0.5*rng.Float32()))
			default:
				materials = append(materials, NewDielectric(1.5))
			}
			models = append(models, NewSphere("sphere", center, 0.2, int32(len(materials)-1)))
		}
	}

	materials = append(materials,
		NewDielectric(1.5),
		NewLambertian(mgl32.Vec3{0.4, 0.2, 0.1}),
		NewMetallic(mgl32.Vec3{0.7, 0.6, 0.5}, 0),
	)
	n := int32(len(materials))
	models = append(models,
		NewSphere("glass", mgl32.Vec3{0, 1, 0}, 1, n-3),
		NewSphere("matte", mgl32.Vec3{-4, 1, 0}, 1, n-2),
		NewBox("metal box", mgl32.Vec3{3.2, 0, -0.8}, mgl32.Vec3{4.8, 1.6, 0.8}, n-1),
	)

	return New("spheres", models, materials, Camera{
		Position:      mgl32.Vec3{13, 2, 3},
		Yaw:           -167,
		Pitch:         -8,
		FieldOfView:   20,
		Aperture:      0.1,
		FocusDistance: 10,
	})
}

// boxes is a small triangle-only scene, useful on the raster path.
func boxes() *Scene {
	materials := []Material{
		NewLambertian(mgl32.Vec3{0.73, 0.73, 0.73}),
		NewLambertian(mgl32.Vec3{0.65, 0.05, 0.05}),
		NewDiffuseLight(mgl32.Vec3{15, 15, 15}),
	}
	models := []Model{
		NewBox("floor", mgl32.Vec3{-5, -0.1, -5}, mgl32.Vec3{5, 0, 5}, 0),
		NewBox("tall", mgl32.Vec3{-0.5, 0, -0.5}, mgl32.Vec3{0.5, 3, 0.5}, 1).
			Transform(mgl32.Translate3D(-1.2, 0, -0.5).Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(15)))),
		NewBox("short", mgl32.Vec3{-0.5, 0, -0.5}, mgl32.Vec3{0.5, 1.2, 0.5}, 0).
			Transform(mgl32.Translate3D(1.2, 0, 0.6).Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(-18)))),
		NewBox("light", mgl32.Vec3{-1, 4.9, -1}, mgl32.Vec3{1, 5, 1}, 2),
	}
	return New("boxes", models, materials, Camera{
		Position:    mgl32.Vec3{0, 2.5, 9},
		Yaw:         -90,
		FieldOfView: 40,
	})
}
