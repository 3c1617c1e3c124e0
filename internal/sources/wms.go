package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/beevik/etree"

	"github.com/gridpoint/tilecached/internal/httpclient"
)

// WMSSource fetches imagery from a remote OGC Web Map Service with GetMap
// requests.
type WMSSource struct {
	name string
	srs  string

	// URL is the upstream GetMap endpoint, from the <url> tag.
	URL string

	// Params are the static request parameters copied verbatim from the
	// children of the <wmsparams> tag. At minimum LAYERS must be set.
	Params url.Values

	client httpclient.Client
}

// NewWMSSource creates an unconfigured WMS source.
func NewWMSSource(name string) *WMSSource {
	return &WMSSource{
		name:   name,
		Params: url.Values{},
		client: httpclient.NewDefaultClient(0),
	}
}

// Name returns the unique registered name of the source.
func (s *WMSSource) Name() string { return s.name }

// SRS returns the source's spatial reference string.
func (s *WMSSource) SRS() string { return s.srs }

// SetSRS stores the source's spatial reference string.
func (s *WMSSource) SetSRS(srs string) { s.srs = srs }

// SetClient replaces the HTTP client. Used by tests.
func (s *WMSSource) SetClient(c httpclient.Client) { s.client = c }

// Configure interprets the source subtree: <url> holds the upstream GetMap
// endpoint, and every child of <wmsparams> becomes a static request
// parameter named after its tag.
func (s *WMSSource) Configure(node *etree.Element) error {
	for _, child := range node.ChildElements() {
		switch child.Tag {
		case "url":
			s.URL = child.Text()
		case "wmsparams":
			for _, param := range child.ChildElements() {
				s.Params.Set(param.Tag, param.Text())
			}
		}
	}
	return nil
}

// Check validates that the source has everything a GetMap request needs.
func (s *WMSSource) Check() error {
	if s.URL == "" {
		return fmt.Errorf("wms source %q has no <url> configured", s.name)
	}
	if s.Params.Get("LAYERS") == "" {
		return fmt.Errorf("wms source %q has no LAYERS wms parameter configured", s.name)
	}
	return nil
}

// GetMap issues a WMS GetMap request for the given extent and dimensions.
func (s *WMSSource) GetMap(ctx context.Context, req *MapRequest) ([]byte, string, error) {
	params := url.Values{}
	for key, vals := range s.Params {
		for _, v := range vals {
			params.Set(key, v)
		}
	}
	params.Set("SERVICE", "WMS")
	params.Set("REQUEST", "GetMap")
	params.Set("BBOX", fmt.Sprintf("%g,%g,%g,%g", req.Extent[0], req.Extent[1], req.Extent[2], req.Extent[3]))
	params.Set("WIDTH", strconv.Itoa(req.Width))
	params.Set("HEIGHT", strconv.Itoa(req.Height))
	srs := req.SRS
	if srs == "" {
		srs = s.srs
	}
	params.Set("SRS", srs)

	body, contentType, err := s.client.Get(ctx, s.URL, params)
	if err != nil {
		return nil, "", fmt.Errorf("wms source %q: %w", s.name, err)
	}
	return body, contentType, nil
}
