package sources

import (
	"fmt"
)

// TypeWMS is the type tag for the remote-WMS source variant.
const TypeWMS = "wms"

// constructors is the dispatch table mapping a source type tag to its
// variant constructor. This is the extension point for new source variants.
var constructors = map[string]func(name string) Source{
	TypeWMS: func(name string) Source { return NewWMSSource(name) },
}

// New creates the source variant selected by the given type tag. An
// unrecognized tag is an error naming the tag and the source's declared name.
func New(sourceType, name string) (Source, error) {
	ctor, ok := constructors[sourceType]
	if !ok {
		return nil, fmt.Errorf("unknown source type %q for source %q", sourceType, name)
	}
	return ctor(name), nil
}
