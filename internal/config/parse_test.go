package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridpoint/tilecached/internal/imageio"
	"github.com/gridpoint/tilecached/internal/service"
)

const (
	fixtureSource = `<source name="wms1" type="wms">
		<srs>EPSG:4326</srs>
		<url>http://upstream.example/wms</url>
		<wmsparams><LAYERS>roads</LAYERS></wmsparams>
	</source>`

	fixtureCache = `<cache name="diskcache" type="disk"><base>/tmp/tiles</base></cache>`

	fixtureTileset = `<tileset name="t1">
		<cache>diskcache</cache>
		<source>wms1</source>
		<srs>EPSG:4326</srs>
		<size>256 256</size>
		<extent>-180 -90 180 90</extent>
		<resolutions>1 2 4 8</resolutions>
	</tileset>`
)

func writeDoc(t *testing.T, xml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tilecached.xml")
	require.NoError(t, os.WriteFile(path, []byte(xml), 0o644))
	return path
}

// compileDoc wraps the body in the root tag, a writable lock_dir, and an
// enabled wms service, then compiles it.
func compileDoc(t *testing.T, body string) (*Config, error) {
	t.Helper()
	lockDir := filepath.Join(t.TempDir(), "locks")
	xml := fmt.Sprintf("<tilecached>%s<lock_dir>%s</lock_dir><services><wms/></services></tilecached>", body, lockDir)
	return Load(writeDoc(t, xml))
}

func requireParseError(t *testing.T, err error, fragments ...string) {
	t.Helper()
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	for _, fragment := range fragments {
		assert.Contains(t, err.Error(), fragment)
	}
}

func TestLoadEndToEnd(t *testing.T) {
	t.Parallel()

	cfg, err := compileDoc(t, `<format name="PNG" type="PNG"/>`+fixtureCache+fixtureSource+fixtureTileset)
	require.NoError(t, err)

	_, ok := cfg.Format("PNG")
	assert.True(t, ok)
	_, ok = cfg.Cache("diskcache")
	assert.True(t, ok)
	src, ok := cfg.Source("wms1")
	require.True(t, ok)
	assert.Equal(t, "EPSG:4326", src.SRS())

	ts, ok := cfg.Tileset("t1")
	require.True(t, ok)
	assert.Equal(t, 4, ts.Levels())
	assert.Equal(t, []float64{1, 2, 4, 8}, ts.Resolutions)
	assert.Equal(t, 256, ts.TileWidth)
	assert.Equal(t, 256, ts.TileHeight)
	assert.Equal(t, [4]float64{-180, -90, 180, 90}, ts.Extent)

	// Single-tile passthrough: no metatiling, no explicit format.
	assert.Nil(t, ts.Format)

	assert.True(t, cfg.Services.Enabled(service.WMS))
	assert.False(t, cfg.Services.Enabled(service.TMS))
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.xml"))
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
}

func TestLoadMalformedXML(t *testing.T) {
	t.Parallel()

	_, err := Load(writeDoc(t, `<tilecached><source`))
	requireParseError(t, err, "XML")
}

func TestLoadWrongRootTag(t *testing.T) {
	t.Parallel()

	_, err := Load(writeDoc(t, `<mapcache></mapcache>`))
	requireParseError(t, err, "<tilecached>", "<mapcache>")
}

func TestLoadUnknownTopLevelTag(t *testing.T) {
	t.Parallel()

	_, err := compileDoc(t, `<grid name="g"/>`)
	requireParseError(t, err, "<grid>")
}

func TestSourceMissingAttributes(t *testing.T) {
	t.Parallel()

	_, err := compileDoc(t, `<source type="wms"/>`)
	requireParseError(t, err, `"name"`, "<source>")

	_, err = compileDoc(t, `<source name="wms1"/>`)
	requireParseError(t, err, `"type"`, "<source>")
}

func TestSourceUnknownType(t *testing.T) {
	t.Parallel()

	_, err := compileDoc(t, `<source name="wms1" type="mapserver"/>`)
	requireParseError(t, err, "mapserver", "wms1")
}

func TestSourceCheckFailureNotRegistered(t *testing.T) {
	t.Parallel()

	// Missing <url>: Configure succeeds, Check fails, nothing registered.
	_, err := compileDoc(t, `<source name="wms1" type="wms"><wmsparams><LAYERS>l</LAYERS></wmsparams></source>`)
	requireParseError(t, err, "wms1")
}

func TestDuplicateSource(t *testing.T) {
	t.Parallel()

	_, err := compileDoc(t, fixtureSource+fixtureSource)
	requireParseError(t, err, "duplicate source", "wms1")
}

func TestDuplicateCache(t *testing.T) {
	t.Parallel()

	_, err := compileDoc(t, fixtureCache+fixtureCache)
	requireParseError(t, err, "duplicate cache", "diskcache")
}

func TestDuplicateTileset(t *testing.T) {
	t.Parallel()

	_, err := compileDoc(t, fixtureCache+fixtureSource+fixtureTileset+fixtureTileset)
	requireParseError(t, err, "duplicate tileset", "t1")
}

func TestCacheUnknownType(t *testing.T) {
	t.Parallel()

	_, err := compileDoc(t, `<cache name="c1" type="sqlite"/>`)
	requireParseError(t, err, "sqlite", "c1")
}

func TestFormatPNG(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		xml     string
		wantErr string
		check   func(t *testing.T, f *imageio.PNGFormat)
	}{
		{
			name: "plain_defaults",
			xml:  `<format name="mypng" type="PNG"/>`,
			check: func(t *testing.T, f *imageio.PNGFormat) {
				assert.False(t, f.Quantized())
				assert.Equal(t, imageio.CompressionDefault, f.Compression())
			},
		},
		{
			name: "compression_fast",
			xml:  `<format name="mypng" type="PNG"><compression>fast</compression></format>`,
			check: func(t *testing.T, f *imageio.PNGFormat) {
				assert.Equal(t, imageio.CompressionFast, f.Compression())
			},
		},
		{
			name: "compression_best",
			xml:  `<format name="mypng" type="PNG"><compression>best</compression></format>`,
			check: func(t *testing.T, f *imageio.PNGFormat) {
				assert.Equal(t, imageio.CompressionBest, f.Compression())
			},
		},
		{
			name:    "compression_unknown",
			xml:     `<format name="mypng" type="PNG"><compression>better</compression></format>`,
			wantErr: "better",
		},
		{
			name: "colors_lower_bound",
			xml:  `<format name="mypng" type="PNG"><colors>2</colors></format>`,
			check: func(t *testing.T, f *imageio.PNGFormat) {
				assert.True(t, f.Quantized())
				assert.Equal(t, 2, f.Colors())
			},
		},
		{
			name: "colors_upper_bound",
			xml:  `<format name="mypng" type="PNG"><colors>256</colors></format>`,
			check: func(t *testing.T, f *imageio.PNGFormat) {
				assert.Equal(t, 256, f.Colors())
			},
		},
		{
			name:    "colors_below_range",
			xml:     `<format name="mypng" type="PNG"><colors>1</colors></format>`,
			wantErr: `colors "1"`,
		},
		{
			name:    "colors_above_range",
			xml:     `<format name="mypng" type="PNG"><colors>257</colors></format>`,
			wantErr: `colors "257"`,
		},
		{
			name:    "colors_not_numeric",
			xml:     `<format name="mypng" type="PNG"><colors>lots</colors></format>`,
			wantErr: `colors "lots"`,
		},
		{
			name:    "colors_trailing_garbage",
			xml:     `<format name="mypng" type="PNG"><colors>256x</colors></format>`,
			wantErr: `colors "256x"`,
		},
		{
			name:    "unknown_child_tag",
			xml:     `<format name="mypng" type="PNG"><gamma>2.2</gamma></format>`,
			wantErr: "<gamma>",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := compileDoc(t, tt.xml)
			if tt.wantErr != "" {
				requireParseError(t, err, tt.wantErr, "mypng")
				return
			}
			require.NoError(t, err)
			f, ok := cfg.Format("mypng")
			require.True(t, ok)
			pngFormat, ok := f.(*imageio.PNGFormat)
			require.True(t, ok)
			tt.check(t, pngFormat)
		})
	}
}

func TestFormatJPEG(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		xml         string
		wantErr     string
		wantQuality int
	}{
		{
			name:        "default_quality",
			xml:         `<format name="myjpeg" type="JPEG"/>`,
			wantQuality: 95,
		},
		{
			name:        "quality_lower_bound",
			xml:         `<format name="myjpeg" type="JPEG"><quality>1</quality></format>`,
			wantQuality: 1,
		},
		{
			name:        "quality_upper_bound",
			xml:         `<format name="myjpeg" type="JPEG"><quality>100</quality></format>`,
			wantQuality: 100,
		},
		{
			name:    "quality_below_range",
			xml:     `<format name="myjpeg" type="JPEG"><quality>0</quality></format>`,
			wantErr: `quality "0"`,
		},
		{
			name:    "quality_above_range",
			xml:     `<format name="myjpeg" type="JPEG"><quality>101</quality></format>`,
			wantErr: `quality "101"`,
		},
		{
			name:    "quality_not_numeric",
			xml:     `<format name="myjpeg" type="JPEG"><quality>high</quality></format>`,
			wantErr: `quality "high"`,
		},
		{
			name:    "unknown_child_tag",
			xml:     `<format name="myjpeg" type="JPEG"><progressive>true</progressive></format>`,
			wantErr: "<progressive>",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := compileDoc(t, tt.xml)
			if tt.wantErr != "" {
				requireParseError(t, err, tt.wantErr, "myjpeg")
				return
			}
			require.NoError(t, err)
			f, ok := cfg.Format("myjpeg")
			require.True(t, ok)
			jpegFormat, ok := f.(*imageio.JPEGFormat)
			require.True(t, ok)
			assert.Equal(t, tt.wantQuality, jpegFormat.Quality())
		})
	}
}

func TestFormatMissingAttributes(t *testing.T) {
	t.Parallel()

	_, err := compileDoc(t, `<format type="PNG"/>`)
	requireParseError(t, err, `"name"`, "<format>")

	_, err = compileDoc(t, `<format name="f"/>`)
	requireParseError(t, err, `"type"`, "<format>")
}

func TestFormatUnknownType(t *testing.T) {
	t.Parallel()

	_, err := compileDoc(t, `<format name="f" type="WEBP"/>`)
	requireParseError(t, err, "WEBP", `"f"`)
}

// A document may silently redefine a built-in format by reusing its name.
func TestFormatOverridesBuiltin(t *testing.T) {
	t.Parallel()

	cfg, err := compileDoc(t, `<format name="PNG" type="PNG"><compression>best</compression></format>`)
	require.NoError(t, err)

	f, ok := cfg.Format("PNG")
	require.True(t, ok)
	pngFormat, ok := f.(*imageio.PNGFormat)
	require.True(t, ok)
	assert.Equal(t, imageio.CompressionBest, pngFormat.Compression())
}

func TestTilesetValidation(t *testing.T) {
	t.Parallel()

	base := func(children string) string {
		return fixtureCache + fixtureSource + `<tileset name="t1">` + children + `</tileset>`
	}
	valid := `<cache>diskcache</cache><source>wms1</source><srs>EPSG:4326</srs>` +
		`<size>256 256</size><extent>-180 -90 180 90</extent><resolutions>1 2 4 8</resolutions>`

	tests := []struct {
		name     string
		children string
		wantErr  []string
	}{
		{
			name:     "missing_cache",
			children: `<source>wms1</source><srs>EPSG:4326</srs><size>256 256</size><extent>-180 -90 180 90</extent><resolutions>1</resolutions>`,
			wantErr:  []string{"t1", "no cache"},
		},
		{
			name:     "missing_source",
			children: `<cache>diskcache</cache><srs>EPSG:4326</srs><size>256 256</size><extent>-180 -90 180 90</extent><resolutions>1</resolutions>`,
			wantErr:  []string{"t1", "no source"},
		},
		{
			name:     "missing_srs",
			children: `<cache>diskcache</cache><source>wms1</source><size>256 256</size><extent>-180 -90 180 90</extent><resolutions>1</resolutions>`,
			wantErr:  []string{"t1", "no srs"},
		},
		{
			name:     "missing_extent",
			children: `<cache>diskcache</cache><source>wms1</source><srs>EPSG:4326</srs><size>256 256</size><resolutions>1</resolutions>`,
			wantErr:  []string{"t1", "extent"},
		},
		{
			name:     "degenerate_extent_x",
			children: `<cache>diskcache</cache><source>wms1</source><srs>EPSG:4326</srs><size>256 256</size><extent>10 -90 10 90</extent><resolutions>1</resolutions>`,
			wantErr:  []string{"t1", "extent"},
		},
		{
			name:     "degenerate_extent_y",
			children: `<cache>diskcache</cache><source>wms1</source><srs>EPSG:4326</srs><size>256 256</size><extent>-180 5 180 5</extent><resolutions>1</resolutions>`,
			wantErr:  []string{"t1", "extent"},
		},
		{
			name:     "missing_resolutions",
			children: `<cache>diskcache</cache><source>wms1</source><srs>EPSG:4326</srs><size>256 256</size><extent>-180 -90 180 90</extent>`,
			wantErr:  []string{"t1", "resolutions"},
		},
		{
			name:     "unknown_cache_reference",
			children: `<cache>othercache</cache>`,
			wantErr:  []string{"t1", "othercache", "not configured"},
		},
		{
			name:     "unknown_source_reference",
			children: `<cache>diskcache</cache><source>othersource</source>`,
			wantErr:  []string{"t1", "othersource", "not configured"},
		},
		{
			name:     "unknown_format_reference",
			children: `<cache>diskcache</cache><source>wms1</source><format>WEBP</format>`,
			wantErr:  []string{"t1", "WEBP", "not configured"},
		},
		{
			name:     "size_wrong_count",
			children: `<size>256 256 256</size>` + valid,
			wantErr:  []string{"t1", `"256 256 256"`},
		},
		{
			name:     "size_single_value",
			children: `<size>256</size>` + valid,
			wantErr:  []string{"t1", `"256"`},
		},
		{
			name:     "size_trailing_garbage",
			children: `<size>256 256px</size>` + valid,
			wantErr:  []string{"t1", `"256 256px"`},
		},
		{
			name:     "extent_wrong_count",
			children: `<cache>diskcache</cache><source>wms1</source><srs>EPSG:4326</srs><size>256 256</size><extent>-180 -90 180</extent><resolutions>1</resolutions>`,
			wantErr:  []string{"t1", `"-180 -90 180"`},
		},
		{
			name:     "resolutions_not_numeric",
			children: `<resolutions>1 two 4</resolutions>` + valid,
			wantErr:  []string{"t1", `"1 two 4"`},
		},
		{
			name:     "metatile_wrong_count",
			children: `<metatile>5</metatile>` + valid,
			wantErr:  []string{"t1", `"5"`},
		},
		{
			name:     "metabuffer_not_numeric",
			children: `<metabuffer>one</metabuffer>` + valid,
			wantErr:  []string{"t1", `"one"`},
		},
		{
			name:     "expires_trailing_garbage",
			children: `<expires>3600s</expires>` + valid,
			wantErr:  []string{"t1", `"3600s"`},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := compileDoc(t, base(tt.children))
			requireParseError(t, err, tt.wantErr...)
		})
	}
}

func TestTilesetMissingName(t *testing.T) {
	t.Parallel()

	_, err := compileDoc(t, `<tileset/>`)
	requireParseError(t, err, `"name"`, "<tileset>")
}

// Unlike format definitions, unrecognized tileset children are silently
// ignored.
func TestTilesetIgnoresUnknownChildTags(t *testing.T) {
	t.Parallel()

	body := fixtureCache + fixtureSource + `<tileset name="t1">
		<cache>diskcache</cache>
		<source>wms1</source>
		<srs>EPSG:4326</srs>
		<size>256 256</size>
		<extent>-180 -90 180 90</extent>
		<resolutions>1 2</resolutions>
		<watermark>true</watermark>
	</tileset>`

	cfg, err := compileDoc(t, body)
	require.NoError(t, err)
	_, ok := cfg.Tileset("t1")
	assert.True(t, ok)
}

func TestTilesetResolutionsOrderPreserved(t *testing.T) {
	t.Parallel()

	body := fixtureCache + fixtureSource + `<tileset name="t1">
		<cache>diskcache</cache>
		<source>wms1</source>
		<srs>EPSG:4326</srs>
		<size>256 256</size>
		<extent>-180 -90 180 90</extent>
		<resolutions>8 4 2 1</resolutions>
	</tileset>`

	cfg, err := compileDoc(t, body)
	require.NoError(t, err)
	ts, _ := cfg.Tileset("t1")
	assert.Equal(t, []float64{8, 4, 2, 1}, ts.Resolutions)
	assert.Equal(t, 4, ts.Levels())
}

func TestTilesetFormatBackfill(t *testing.T) {
	t.Parallel()

	makeTileset := func(extra string) string {
		return fixtureCache + fixtureSource + `<tileset name="t1">
			<cache>diskcache</cache>
			<source>wms1</source>
			<srs>EPSG:4326</srs>
			<size>256 256</size>
			<extent>-180 -90 180 90</extent>
			<resolutions>1 2 4 8</resolutions>` + extra + `</tileset>`
	}

	t.Run("single_tile_passthrough_stays_unset", func(t *testing.T) {
		t.Parallel()

		cfg, err := compileDoc(t, makeTileset(`<metatile>1 1</metatile><metabuffer>0</metabuffer>`))
		require.NoError(t, err)
		ts, _ := cfg.Tileset("t1")
		assert.Nil(t, ts.Format)
	})

	t.Run("metatiling_backfills_merge_format", func(t *testing.T) {
		t.Parallel()

		cfg, err := compileDoc(t, makeTileset(`<metatile>2 2</metatile>`))
		require.NoError(t, err)
		ts, _ := cfg.Tileset("t1")
		require.NotNil(t, ts.Format)
		assert.Equal(t, cfg.MergeFormat, ts.Format)
		assert.Equal(t, "PNG", ts.Format.Name())
	})

	t.Run("metabuffer_alone_backfills", func(t *testing.T) {
		t.Parallel()

		cfg, err := compileDoc(t, makeTileset(`<metabuffer>1</metabuffer>`))
		require.NoError(t, err)
		ts, _ := cfg.Tileset("t1")
		require.NotNil(t, ts.Format)
		assert.Equal(t, cfg.MergeFormat, ts.Format)
	})

	t.Run("explicit_format_wins", func(t *testing.T) {
		t.Parallel()

		cfg, err := compileDoc(t, makeTileset(`<metatile>2 2</metatile><format>JPEG</format>`))
		require.NoError(t, err)
		ts, _ := cfg.Tileset("t1")
		require.NotNil(t, ts.Format)
		assert.Equal(t, "JPEG", ts.Format.Name())
	})
}

func TestMergeFormatOverride(t *testing.T) {
	t.Parallel()

	body := `<merge_format>JPEG</merge_format>` + fixtureCache + fixtureSource + `<tileset name="t1">
		<cache>diskcache</cache>
		<source>wms1</source>
		<srs>EPSG:4326</srs>
		<size>256 256</size>
		<extent>-180 -90 180 90</extent>
		<resolutions>1 2</resolutions>
		<metatile>3 3</metatile>
	</tileset>`

	cfg, err := compileDoc(t, body)
	require.NoError(t, err)
	assert.Equal(t, "JPEG", cfg.MergeFormat.Name())

	ts, _ := cfg.Tileset("t1")
	require.NotNil(t, ts.Format)
	assert.Equal(t, "JPEG", ts.Format.Name())
}

func TestMergeFormatUnknown(t *testing.T) {
	t.Parallel()

	_, err := compileDoc(t, `<merge_format>WEBP</merge_format>`)
	requireParseError(t, err, "merge_format", "WEBP")
}

func TestServices(t *testing.T) {
	t.Parallel()

	lockDir := func(t *testing.T) string {
		return filepath.Join(t.TempDir(), "locks")
	}

	t.Run("wms_false_yields_no_services", func(t *testing.T) {
		t.Parallel()

		xml := fmt.Sprintf(`<tilecached><lock_dir>%s</lock_dir><services><wms>false</wms></services></tilecached>`, lockDir(t))
		_, err := Load(writeDoc(t, xml))
		requireParseError(t, err, "no services configured")
	})

	t.Run("no_services_block", func(t *testing.T) {
		t.Parallel()

		xml := fmt.Sprintf(`<tilecached><lock_dir>%s</lock_dir></tilecached>`, lockDir(t))
		_, err := Load(writeDoc(t, xml))
		requireParseError(t, err, "no services configured")
	})

	t.Run("both_enabled", func(t *testing.T) {
		t.Parallel()

		xml := fmt.Sprintf(`<tilecached><lock_dir>%s</lock_dir><services><wms/><tms>true</tms></services></tilecached>`, lockDir(t))
		cfg, err := Load(writeDoc(t, xml))
		require.NoError(t, err)
		assert.True(t, cfg.Services.Enabled(service.WMS))
		assert.True(t, cfg.Services.Enabled(service.TMS))
	})

	t.Run("unrecognized_service_child_ignored", func(t *testing.T) {
		t.Parallel()

		xml := fmt.Sprintf(`<tilecached><lock_dir>%s</lock_dir><services><wmts/><tms/></services></tilecached>`, lockDir(t))
		cfg, err := Load(writeDoc(t, xml))
		require.NoError(t, err)
		assert.False(t, cfg.Services.Enabled(service.WMS))
		assert.True(t, cfg.Services.Enabled(service.TMS))
	})
}

func TestLockDir(t *testing.T) {
	t.Parallel()

	t.Run("created_recursively", func(t *testing.T) {
		t.Parallel()

		lockDir := filepath.Join(t.TempDir(), "a", "b", "locks")
		xml := fmt.Sprintf(`<tilecached><lock_dir>%s</lock_dir><services><wms/></services></tilecached>`, lockDir)
		cfg, err := Load(writeDoc(t, xml))
		require.NoError(t, err)
		assert.Equal(t, lockDir, cfg.LockDir)

		info, statErr := os.Stat(lockDir)
		require.NoError(t, statErr)
		assert.True(t, info.IsDir())
	})

	t.Run("unusable_path_is_disk_error", func(t *testing.T) {
		t.Parallel()

		// A regular file where the lock directory should be.
		blocker := filepath.Join(t.TempDir(), "blocker")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

		xml := fmt.Sprintf(`<tilecached><lock_dir>%s</lock_dir><services><wms/></services></tilecached>`, blocker)
		_, err := Load(writeDoc(t, xml))
		require.Error(t, err)

		var de *DiskError
		require.ErrorAs(t, err, &de)
		var pe *ParseError
		assert.False(t, errors.As(err, &pe))
	})
}

// The first error anywhere aborts the walk: entities after the failure are
// never registered.
func TestFailFast(t *testing.T) {
	t.Parallel()

	body := `<bogus/>` + fixtureCache
	_, err := compileDoc(t, body)
	requireParseError(t, err, "<bogus>")
}

// Top-level children are processed in document order, so references must
// point backwards: a tileset may only use entities defined before it.
func TestForwardReferenceRejected(t *testing.T) {
	t.Parallel()

	body := fixtureSource + `<tileset name="t1">
		<cache>diskcache</cache>
		<source>wms1</source>
		<srs>EPSG:4326</srs>
		<size>256 256</size>
		<extent>-180 -90 180 90</extent>
		<resolutions>1</resolutions>
	</tileset>` + fixtureCache

	_, err := compileDoc(t, body)
	requireParseError(t, err, "t1", "diskcache", "not configured")
}
