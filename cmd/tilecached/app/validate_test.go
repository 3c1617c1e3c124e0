package app

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	dir := t.TempDir()
	doc := fmt.Sprintf(`<tilecached>
%s
<lock_dir>%s</lock_dir>
<services><wms/></services>
</tilecached>`, body, filepath.Join(dir, "locks"))

	path := filepath.Join(dir, "tilecached.xml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
	return path
}

func TestValidateCommand(t *testing.T) {
	t.Parallel()

	good := writeConfig(t, `
<source name="osm" type="wms">
  <url>http://upstream.example/wms</url>
  <wmsparams><LAYERS>basemap</LAYERS></wmsparams>
</source>
<cache name="store" type="disk"><base>/tmp/tiles</base></cache>
<tileset name="basemap">
  <source>osm</source>
  <cache>store</cache>
  <srs>EPSG:4326</srs>
  <size>256 256</size>
  <extent>-180 -90 180 90</extent>
  <resolutions>0.703125 0.3515625</resolutions>
</tileset>`)

	var out bytes.Buffer
	cmd := validateCmd
	cmd.SetOut(&out)

	require.NoError(t, runValidate(cmd, []string{good}))
	assert.Contains(t, out.String(), "OK (1 tilesets)")
}

func TestValidateCommandBadConfig(t *testing.T) {
	t.Parallel()

	// The tileset references a cache that is never configured.
	bad := writeConfig(t, `
<source name="osm" type="wms">
  <url>http://upstream.example/wms</url>
  <wmsparams><LAYERS>basemap</LAYERS></wmsparams>
</source>
<tileset name="basemap">
  <source>osm</source>
  <cache>store</cache>
  <srs>EPSG:4326</srs>
  <size>256 256</size>
  <extent>-180 -90 180 90</extent>
  <resolutions>0.703125</resolutions>
</tileset>`)

	err := runValidate(validateCmd, []string{bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `references cache "store"`)
}
