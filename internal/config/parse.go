package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/gridpoint/tilecached/internal/caches"
	"github.com/gridpoint/tilecached/internal/imageio"
	"github.com/gridpoint/tilecached/internal/service"
	"github.com/gridpoint/tilecached/internal/sources"
	"github.com/gridpoint/tilecached/internal/tileset"
)

// RootTag is the expected root element of the configuration document.
const RootTag = "tilecached"

// lockProbeFile is the temporary file created inside the lock directory to
// verify it is writable.
const lockProbeFile = "probe.lock"

// Load reads the configuration document at path and compiles it. On any
// failure the first error encountered is returned (a *ParseError or
// *DiskError) and no partial configuration is exposed.
func Load(path string) (*Config, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, &ParseError{File: path, Message: fmt.Sprintf("failed to parse XML: %v", err)}
	}

	c := &compiler{file: path, cfg: New()}
	if err := c.compile(doc); err != nil {
		return nil, err
	}
	return c.cfg, nil
}

// compiler walks the document tree and assembles the Config. Compilation is
// strictly fail-fast: the first error aborts the remainder of the walk and
// all postconditions.
type compiler struct {
	file string
	cfg  *Config
}

// errorf builds a ParseError carrying the document path.
func (c *compiler) errorf(format string, args ...any) error {
	return &ParseError{File: c.file, Message: fmt.Sprintf(format, args...)}
}

// wrap converts an entity-level error into a ParseError unless it already
// is one.
func (c *compiler) wrap(err error) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		return err
	}
	return &ParseError{File: c.file, Message: err.Error()}
}

func (c *compiler) compile(doc *etree.Document) error {
	root := doc.Root()
	if root == nil {
		return c.errorf("document has no root element")
	}
	if root.Tag != RootTag {
		return c.errorf("document does not begin with <%s> tag, found <%s>", RootTag, root.Tag)
	}

	for _, node := range root.ChildElements() {
		var err error
		switch node.Tag {
		case "source":
			err = c.parseSource(node)
		case "cache":
			err = c.parseCache(node)
		case "format":
			err = c.parseFormat(node)
		case "tileset":
			err = c.parseTileset(node)
		case "services":
			c.parseServices(node)
		case "merge_format":
			err = c.parseMergeFormat(node)
		case "lock_dir":
			c.cfg.LockDir = node.Text()
		default:
			return c.errorf("unknown tag <%s>", node.Tag)
		}
		if err != nil {
			return err
		}
	}

	if err := c.probeLockDir(); err != nil {
		return err
	}
	if !c.cfg.Services.Any() {
		return c.errorf("no services configured; you must add a <services> tag with <wms/> or <tms/> children")
	}
	return nil
}

// nameAndType pulls the two identifying attributes off an entity node,
// reporting which one is missing so the diagnostic can name the entity kind.
func (c *compiler) nameAndType(node *etree.Element) (string, string, error) {
	name := node.SelectAttrValue("name", "")
	if name == "" {
		return "", "", c.errorf("mandatory attribute \"name\" not found in <%s>", node.Tag)
	}
	typ := node.SelectAttrValue("type", "")
	if typ == "" {
		return "", "", c.errorf("mandatory attribute \"type\" not found in <%s>", node.Tag)
	}
	return name, typ, nil
}

func (c *compiler) parseSource(node *etree.Element) error {
	name, typ, err := c.nameAndType(node)
	if err != nil {
		return err
	}
	if _, exists := c.cfg.Source(name); exists {
		return c.errorf("duplicate source with name %q", name)
	}

	src, err := sources.New(typ, name)
	if err != nil {
		return c.wrap(err)
	}

	for _, child := range node.ChildElements() {
		if child.Tag == "srs" {
			src.SetSRS(child.Text())
		}
	}

	if err := src.Configure(node); err != nil {
		return c.wrap(err)
	}
	if err := src.Check(); err != nil {
		return c.wrap(err)
	}
	if err := c.cfg.AddSource(src); err != nil {
		return c.wrap(err)
	}
	return nil
}

func (c *compiler) parseCache(node *etree.Element) error {
	name, typ, err := c.nameAndType(node)
	if err != nil {
		return err
	}
	if _, exists := c.cfg.Cache(name); exists {
		return c.errorf("duplicate cache with name %q", name)
	}

	ca, err := caches.New(typ, name)
	if err != nil {
		return c.wrap(err)
	}

	if err := ca.Configure(node); err != nil {
		return c.wrap(err)
	}
	if err := ca.Check(); err != nil {
		return c.wrap(err)
	}
	if err := c.cfg.AddCache(ca); err != nil {
		return c.wrap(err)
	}
	return nil
}

// parseFormat builds one image format. Unlike the tileset parser, format
// definitions are schema-strict: any unrecognized child tag is a hard error.
func (c *compiler) parseFormat(node *etree.Element) error {
	name, typ, err := c.nameAndType(node)
	if err != nil {
		return err
	}

	var format imageio.Format
	switch typ {
	case "PNG":
		compression := imageio.CompressionDefault
		colors := -1
		for _, child := range node.ChildElements() {
			switch child.Tag {
			case "compression":
				switch strings.TrimSpace(child.Text()) {
				case "fast":
					compression = imageio.CompressionFast
				case "best":
					compression = imageio.CompressionBest
				default:
					return c.errorf("unknown compression type %q for format %q", child.Text(), name)
				}
			case "colors":
				v, convErr := strconv.Atoi(strings.TrimSpace(child.Text()))
				if convErr != nil || v < imageio.MinColors || v > imageio.MaxColors {
					return c.errorf("failed to parse colors %q for format %q (expecting an integer between 2 and 256, eg <colors>256</colors>)",
						child.Text(), name)
				}
				colors = v
			default:
				return c.errorf("unknown tag <%s> for format %q", child.Tag, name)
			}
		}
		if colors == -1 {
			format = imageio.NewPNGFormat(name, compression)
		} else {
			format = imageio.NewPNGQFormat(name, compression, colors)
		}

	case "JPEG":
		quality := imageio.DefaultQuality
		for _, child := range node.ChildElements() {
			switch child.Tag {
			case "quality":
				v, convErr := strconv.Atoi(strings.TrimSpace(child.Text()))
				if convErr != nil || v < imageio.MinQuality || v > imageio.MaxQuality {
					return c.errorf("failed to parse quality %q for format %q (expecting an integer between 1 and 100, eg <quality>90</quality>)",
						child.Text(), name)
				}
				quality = v
			default:
				return c.errorf("unknown tag <%s> for format %q", child.Tag, name)
			}
		}
		format = imageio.NewJPEGFormat(name, quality)

	default:
		return c.errorf("unknown format type %q for format %q", typ, name)
	}

	c.cfg.AddFormat(format)
	return nil
}

// parseTileset builds one tileset. Child tags outside the recognized set are
// silently ignored; the format parser is strict instead. Both behaviors are
// pinned by tests.
func (c *compiler) parseTileset(node *etree.Element) error {
	name := node.SelectAttrValue("name", "")
	if name == "" {
		return c.errorf("mandatory attribute \"name\" not found in <tileset>")
	}
	if _, exists := c.cfg.Tileset(name); exists {
		return c.errorf("duplicate tileset with name %q", name)
	}

	ts := tileset.New(name)
	for _, child := range node.ChildElements() {
		text := child.Text()
		switch child.Tag {
		case "cache":
			ca, ok := c.cfg.Cache(text)
			if !ok {
				return c.errorf("tileset %q references cache %q, but it is not configured", name, text)
			}
			ts.Cache = ca
		case "source":
			src, ok := c.cfg.Source(text)
			if !ok {
				return c.errorf("tileset %q references source %q, but it is not configured", name, text)
			}
			ts.Source = src
		case "format":
			f, ok := c.cfg.Format(text)
			if !ok {
				return c.errorf("tileset %q references format %q, but it is not configured", name, text)
			}
			ts.Format = f
		case "srs":
			ts.SRS = text
		case "size":
			vals, convErr := parseIntList(text)
			if convErr != nil || len(vals) != 2 {
				return c.errorf("failed to parse size %q for tileset %q (expecting two space separated integers, eg <size>256 256</size>)",
					text, name)
			}
			ts.TileWidth, ts.TileHeight = vals[0], vals[1]
		case "extent":
			vals, convErr := parseFloatList(text)
			if convErr != nil || len(vals) != 4 {
				return c.errorf("failed to parse extent %q for tileset %q (expecting 4 space separated numbers, eg <extent>-180 -90 180 90</extent>)",
					text, name)
			}
			copy(ts.Extent[:], vals)
		case "resolutions":
			vals, convErr := parseFloatList(text)
			if convErr != nil || len(vals) == 0 {
				return c.errorf("failed to parse resolutions %q for tileset %q (expecting space separated numbers, eg <resolutions>1 2 4 8</resolutions>)",
					text, name)
			}
			ts.Resolutions = vals
		case "metatile":
			vals, convErr := parseIntList(text)
			if convErr != nil || len(vals) != 2 {
				return c.errorf("failed to parse metatile %q for tileset %q (expecting 2 space separated integers, eg <metatile>5 5</metatile>)",
					text, name)
			}
			ts.MetaWidth, ts.MetaHeight = vals[0], vals[1]
		case "metabuffer":
			v, convErr := strconv.Atoi(strings.TrimSpace(text))
			if convErr != nil {
				return c.errorf("failed to parse metabuffer %q for tileset %q (expecting an integer, eg <metabuffer>1</metabuffer>)",
					text, name)
			}
			ts.MetaBuffer = v
		case "expires":
			v, convErr := strconv.Atoi(strings.TrimSpace(text))
			if convErr != nil {
				return c.errorf("failed to parse expires %q for tileset %q (expecting an integer, eg <expires>3600</expires>)",
					text, name)
			}
			ts.Expires = v
		}
	}

	if ts.Cache == nil {
		return c.errorf("tileset %q has no cache configured; you must add a <cache> tag", name)
	}
	if ts.Source == nil {
		return c.errorf("tileset %q has no source configured; you must add a <source> tag", name)
	}
	if ts.SRS == "" {
		return c.errorf("tileset %q has no srs configured; you must add a <srs> tag", name)
	}
	if ts.Extent[0] == ts.Extent[2] || ts.Extent[1] == ts.Extent[3] {
		return c.errorf("tileset %q has no (or invalid) extent configured; you must add/correct an <extent> tag", name)
	}
	if ts.Levels() == 0 {
		return c.errorf("tileset %q has no resolutions configured; you must add a <resolutions> tag", name)
	}

	// A tileset that assembles metatiles needs a format to re-encode the
	// split tiles with; single-tile passthrough does not.
	if ts.Format == nil && (ts.MetaWidth != 1 || ts.MetaHeight != 1 || ts.MetaBuffer != 0) {
		ts.Format = c.cfg.MergeFormat
	}

	if err := c.cfg.AddTileset(ts); err != nil {
		return c.wrap(err)
	}
	return nil
}

// parseServices enables the protocol front-ends named by the children of the
// <services> block. A child enables its service unless its text content is
// exactly "false". Unrecognized children are ignored.
func (c *compiler) parseServices(node *etree.Element) {
	for _, child := range node.ChildElements() {
		var t service.Type
		switch child.Tag {
		case "wms":
			t = service.WMS
		case "tms":
			t = service.TMS
		default:
			continue
		}
		if child.Text() != "false" {
			c.cfg.Services.Enable(t)
		}
	}
}

func (c *compiler) parseMergeFormat(node *etree.Element) error {
	text := node.Text()
	format, ok := c.cfg.Format(text)
	if !ok {
		return c.errorf("merge_format tag references format %q but it is not configured", text)
	}
	c.cfg.MergeFormat = format
	return nil
}

// probeLockDir verifies the configured lock directory can be created and is
// writable by creating and removing a probe file inside it. This is a
// capability check against the filesystem, not a parse check, and reports
// DiskError accordingly.
func (c *compiler) probeLockDir() error {
	dir := c.cfg.LockDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &DiskError{Path: dir, Message: fmt.Sprintf("failed to create lock directory %s", dir), Err: err}
	}

	probe := filepath.Join(dir, lockProbeFile)
	f, err := os.Create(probe)
	if err != nil {
		return &DiskError{Path: probe, Message: fmt.Sprintf("failed to create test lockfile %s", probe), Err: err}
	}
	if err := f.Close(); err != nil {
		return &DiskError{Path: probe, Message: fmt.Sprintf("failed to close test lockfile %s", probe), Err: err}
	}
	if err := os.Remove(probe); err != nil {
		return &DiskError{Path: probe, Message: fmt.Sprintf("failed to remove test lockfile %s", probe), Err: err}
	}
	return nil
}

// parseIntList splits a whitespace-separated list of integers. Every token
// must fully parse.
func parseIntList(s string) ([]int, error) {
	fields := strings.Fields(s)
	vals := make([]int, 0, len(fields))
	for _, field := range fields {
		v, err := strconv.Atoi(field)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// parseFloatList splits a whitespace-separated list of real numbers. Every
// token must fully parse.
func parseFloatList(s string) ([]float64, error) {
	fields := strings.Fields(s)
	vals := make([]float64, 0, len(fields))
	for _, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}
