package api

import (
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gridpoint/tilecached/internal/config"
	"github.com/gridpoint/tilecached/internal/locking"
	"github.com/gridpoint/tilecached/internal/tileset"
)

// alignTolerance is the fraction of a tile span a WMS request may deviate
// from the grid before it is rejected as unaligned.
const alignTolerance = 1e-6

// wmsRouter serves the WMS front-end. Only GetMap requests that align
// exactly with a tileset's grid are served from the cache.
func wmsRouter(cfg *config.Config, locks *locking.Manager) http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		serveWMS(w, req, cfg, locks)
	})
	return r
}

func serveWMS(w http.ResponseWriter, req *http.Request, cfg *config.Config, locks *locking.Manager) {
	q := req.URL.Query()
	if request := q.Get("REQUEST"); request != "GetMap" {
		http.Error(w, "unsupported request "+request, http.StatusBadRequest)
		return
	}

	ts, ok := cfg.Tileset(q.Get("LAYERS"))
	if !ok {
		http.Error(w, "unknown layer "+q.Get("LAYERS"), http.StatusNotFound)
		return
	}

	width, errW := strconv.Atoi(q.Get("WIDTH"))
	height, errH := strconv.Atoi(q.Get("HEIGHT"))
	if errW != nil || errH != nil || width != ts.TileWidth || height != ts.TileHeight {
		http.Error(w, "requested size does not match the tile grid", http.StatusBadRequest)
		return
	}

	bbox, err := parseBBOX(q.Get("BBOX"))
	if err != nil {
		http.Error(w, "invalid BBOX", http.StatusBadRequest)
		return
	}

	level, col, row, ok := resolveTile(ts, bbox)
	if !ok {
		http.Error(w, "request does not align with the tile grid", http.StatusBadRequest)
		return
	}

	serveTile(w, req, ts, locks, level, col, row)
}

func parseBBOX(s string) ([4]float64, error) {
	var bbox [4]float64
	var err error
	parts := splitComma(s)
	if len(parts) != 4 {
		return bbox, strconv.ErrSyntax
	}
	for i, part := range parts {
		bbox[i], err = strconv.ParseFloat(part, 64)
		if err != nil {
			return bbox, err
		}
	}
	return bbox, nil
}

func splitComma(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// resolveTile maps a requested bounding box onto the tileset grid. The box
// must match one tile at one level, within tolerance.
func resolveTile(ts *tileset.Tileset, bbox [4]float64) (level, col, row int, ok bool) {
	reqRes := (bbox[2] - bbox[0]) / float64(ts.TileWidth)
	for lvl, res := range ts.Resolutions {
		if math.Abs(res-reqRes) > res*alignTolerance {
			continue
		}
		tileW := res * float64(ts.TileWidth)
		tileH := res * float64(ts.TileHeight)

		fcol := (bbox[0] - ts.Extent[0]) / tileW
		frow := (bbox[1] - ts.Extent[1]) / tileH
		col = int(math.Round(fcol))
		row = int(math.Round(frow))
		if math.Abs(fcol-float64(col)) > alignTolerance || math.Abs(frow-float64(row)) > alignTolerance {
			return 0, 0, 0, false
		}
		return lvl, col, row, true
	}
	return 0, 0, 0, false
}
