package caches

import (
	"fmt"
)

// TypeDisk is the type tag for the disk-backed cache variant.
const TypeDisk = "disk"

// constructors is the dispatch table mapping a cache type tag to its variant
// constructor. This is the extension point for new cache variants.
var constructors = map[string]func(name string) Cache{
	TypeDisk: func(name string) Cache { return NewDiskCache(name) },
}

// New creates the cache variant selected by the given type tag. An
// unrecognized tag is an error naming the tag and the cache's declared name.
func New(cacheType, name string) (Cache, error) {
	ctor, ok := constructors[cacheType]
	if !ok {
		return nil, fmt.Errorf("unknown cache type %q for cache %q", cacheType, name)
	}
	return ctor(name), nil
}
