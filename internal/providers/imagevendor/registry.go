package imagevendor

import (
	"fmt"
	"sort"
)

// Registry maps vendor kinds to their implementations.
type Registry struct {
	vendors map[Kind]Vendor
}

// NewRegistry indexes vendors by their Kind. Later entries replace earlier ones.
func NewRegistry(vendors ...Vendor) *Registry {
	r := &Registry{vendors: make(map[Kind]Vendor, len(vendors))}
	for _, v := range vendors {
		if v != nil {
			r.vendors[v.Kind()] = v
		}
	}
	return r
}

// Get returns the vendor registered for kind.
func (r *Registry) Get(kind Kind) (Vendor, error) {
	if r != nil {
		if v, ok := r.vendors[kind]; ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("imagevendor: no vendor registered for %q", kind)
}

// Kinds lists registered kinds in sorted order.
func (r *Registry) Kinds() []Kind {
	if r == nil {
		return nil
	}
	kinds := make([]Kind, 0, len(r.vendors))
	for k := range r.vendors {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
