package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gridpoint/tilecached/internal/caches"
	"github.com/gridpoint/tilecached/internal/locking"
	"github.com/gridpoint/tilecached/internal/logger"
	"github.com/gridpoint/tilecached/internal/sources"
	"github.com/gridpoint/tilecached/internal/tileset"
)

// tileExtension returns the cache-key extension for a tileset's tiles. A
// tileset without a format serves the upstream bytes unmodified; those are
// keyed as png, the dominant upstream default.
func tileExtension(ts *tileset.Tileset) string {
	if ts.Format != nil {
		return ts.Format.Extension()
	}
	return "png"
}

// tileContentType returns the HTTP content type for a tileset's tiles.
func tileContentType(ts *tileset.Tileset) string {
	if ts.Format != nil {
		return ts.Format.MimeType()
	}
	return "image/png"
}

// fetchTile returns the bytes for one tile, reading the cache first and
// falling back to the upstream source on a miss. A render lock serializes
// concurrent misses for the same tile so the upstream is hit once.
func fetchTile(ctx context.Context, ts *tileset.Tileset, locks *locking.Manager, level, col, row int) ([]byte, error) {
	key := caches.Key{
		Tileset:   ts.Name,
		Level:     level,
		Col:       col,
		Row:       row,
		Extension: tileExtension(ts),
	}

	if data, found, err := ts.Cache.Get(key); err != nil {
		return nil, err
	} else if found {
		return data, nil
	}

	lock := locks.TileLock(ts.Name, level, col, row)
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("failed to take render lock for tile %d/%d/%d of %q: %w", level, col, row, ts.Name, err)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	// Another request may have rendered the tile while we waited.
	if data, found, err := ts.Cache.Get(key); err != nil {
		return nil, err
	} else if found {
		return data, nil
	}

	extent, err := ts.TileExtent(level, col, row)
	if err != nil {
		return nil, err
	}

	data, _, err := ts.Source.GetMap(ctx, &sources.MapRequest{
		Extent: extent,
		Width:  ts.TileWidth,
		Height: ts.TileHeight,
		SRS:    ts.SRS,
	})
	if err != nil {
		return nil, err
	}

	if err := ts.Cache.Set(key, data); err != nil {
		// Serving the tile matters more than caching it.
		logger.Warnf("failed to cache tile %d/%d/%d of %q: %v", level, col, row, ts.Name, err)
	}
	return data, nil
}

// serveTile writes one tile with its content type and expiry headers.
func serveTile(w http.ResponseWriter, r *http.Request, ts *tileset.Tileset, locks *locking.Manager, level, col, row int) {
	data, err := fetchTile(r.Context(), ts, locks, level, col, row)
	if err != nil {
		logger.Errorf("failed to serve tile %d/%d/%d of %q: %v", level, col, row, ts.Name, err)
		http.Error(w, "failed to render tile", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", tileContentType(ts))
	if ts.Expires > 0 {
		w.Header().Set("Cache-Control", "max-age="+strconv.Itoa(ts.Expires))
	}
	_, _ = w.Write(data)
}
