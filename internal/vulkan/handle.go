// Package vulkan implements the gpu interfaces on top of vks.
//
// All calls follow the same shape: an AutoReleaser per operation owns the C
// copies of the create-info structures, and every result is checked with
// gpu.Check so callers see the symbolic Vulkan name in errors.
package vulkan

import (
	"unsafe"

	"github.com/ibd1279/vks"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"
	"github.com/ibd1279/vks-examples/hybrid-raytracer/log"
)

var logger = log.New("vulkan")

// to reinterprets a gpu handle as the vks handle of the same size.
func to[T any](h uint64) T { return *(*T)(unsafe.Pointer(&h)) }

// from reinterprets a vks handle as a 64-bit gpu handle.
func from[T any](h T) uint64 { return *(*uint64)(unsafe.Pointer(&h)) }

func toSlice[T any, H ~uint64](hs []H) []T {
	out := make([]T, len(hs))
	for k, h := range hs {
		out[k] = to[T](uint64(h))
	}
	return out
}

func fromSlice[H ~uint64, T any](vs []T) []H {
	out := make([]H, len(vs))
	for k, v := range vs {
		out[k] = H(from(v))
	}
	return out
}

// union writes member into the leading bytes of a C union value.
func union[U, M any](member M) U {
	var u U
	if unsafe.Sizeof(member) > unsafe.Sizeof(u) {
		panic("vulkan: union member larger than union")
	}
	*(*M)(unsafe.Pointer(&u)) = member
	return u
}

func check(result vks.Result, op string) error {
	return gpu.Check(gpu.Result(result), op)
}

func bool32(b bool) vks.Bool32 {
	if b {
		return vks.VK_TRUE
	}
	return vks.VK_FALSE
}

func extent2D(e gpu.Extent2D) vks.Extent2D {
	return vks.Extent2D{}.WithWidth(e.Width).WithHeight(e.Height)
}

func subresourceRange(r gpu.SubresourceRange) vks.ImageSubresourceRange {
	return vks.ImageSubresourceRange{}.
		WithAspectMask(vks.ImageAspectFlags(r.Aspect)).
		WithBaseMipLevel(r.BaseMipLevel).
		WithLevelCount(r.LevelCount).
		WithBaseArrayLayer(r.BaseArrayLayer).
		WithLayerCount(r.LayerCount)
}

func contains(list []string, name string) bool {
	for _, v := range list {
		if v == name {
			return true
		}
	}
	return false
}
