package api

import (
	"encoding/xml"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gridpoint/tilecached/internal/config"
	"github.com/gridpoint/tilecached/internal/locking"
)

// tmsRouter serves the Tile Map Service front-end:
// /tms/1.0.0/{tileset}/{level}/{col}/{row}.{ext}
func tmsRouter(cfg *config.Config, locks *locking.Manager) http.Handler {
	r := chi.NewRouter()
	r.Get("/1.0.0", func(w http.ResponseWriter, r *http.Request) {
		serveTileMapService(w, cfg)
	})
	r.Get("/1.0.0/{tileset}/{level}/{col}/{tile}", func(w http.ResponseWriter, req *http.Request) {
		serveTMSTile(w, req, cfg, locks)
	})
	return r
}

// tileMapService is the capabilities document listing the served tilesets.
type tileMapService struct {
	XMLName xml.Name      `xml:"TileMapService"`
	Version string        `xml:"version,attr"`
	Maps    []tileMapInfo `xml:"TileMaps>TileMap"`
}

type tileMapInfo struct {
	Title string `xml:"title,attr"`
	SRS   string `xml:"srs,attr"`
	Href  string `xml:"href,attr"`
}

func serveTileMapService(w http.ResponseWriter, cfg *config.Config) {
	doc := tileMapService{Version: "1.0.0"}
	for name, ts := range cfg.Tilesets() {
		doc.Maps = append(doc.Maps, tileMapInfo{
			Title: name,
			SRS:   ts.SRS,
			Href:  "/tms/1.0.0/" + name,
		})
	}

	w.Header().Set("Content-Type", "text/xml")
	_ = xml.NewEncoder(w).Encode(doc)
}

func serveTMSTile(w http.ResponseWriter, req *http.Request, cfg *config.Config, locks *locking.Manager) {
	name := chi.URLParam(req, "tileset")
	ts, ok := cfg.Tileset(name)
	if !ok {
		http.Error(w, "unknown tileset "+name, http.StatusNotFound)
		return
	}

	level, err := strconv.Atoi(chi.URLParam(req, "level"))
	if err != nil {
		http.Error(w, "invalid level", http.StatusBadRequest)
		return
	}
	col, err := strconv.Atoi(chi.URLParam(req, "col"))
	if err != nil {
		http.Error(w, "invalid column", http.StatusBadRequest)
		return
	}

	// The row segment carries the image extension: "7.png".
	tile := chi.URLParam(req, "tile")
	rowPart, _, found := strings.Cut(tile, ".")
	if !found {
		http.Error(w, "missing tile extension", http.StatusBadRequest)
		return
	}
	row, err := strconv.Atoi(rowPart)
	if err != nil {
		http.Error(w, "invalid row", http.StatusBadRequest)
		return
	}

	if _, err := ts.TileExtent(level, col, row); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	serveTile(w, req, ts, locks, level, col, row)
}
