package resource

import "github.com/ibd1279/vks-examples/hybrid-raytracer/internal/gpu"

// PoolSizes counts each descriptor type across sets copies of bindings, in
// order of first appearance.
func PoolSizes(bindings []gpu.DescriptorBinding, sets int) []gpu.DescriptorPoolSize {
	var sizes []gpu.DescriptorPoolSize
	index := map[gpu.DescriptorType]int{}
	for _, b := range bindings {
		i, ok := index[b.Type]
		if !ok {
			i = len(sizes)
			index[b.Type] = i
			sizes = append(sizes, gpu.DescriptorPoolSize{Type: b.Type})
		}
		sizes[i].Count += b.Count * uint32(sets)
	}
	return sizes
}

// Layouts repeats layout n times, one per descriptor set to allocate.
func Layouts(layout gpu.DescriptorSetLayout, n int) []gpu.DescriptorSetLayout {
	out := make([]gpu.DescriptorSetLayout, n)
	for i := range out {
		out[i] = layout
	}
	return out
}
