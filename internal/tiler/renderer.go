package tiler

import (
	"context"
	"encoding/json"
	"net/url"
)

// Dataset kinds.
const (
	KindCOG    = "cog"
	KindSTAC   = "stac"
	KindMosaic = "mosaicjson"
)

// Renderer reads raster datasets and renders tiles. Implementations own
// all raster I/O; the API only routes, validates and maps errors.
type Renderer interface {
	Info(ctx context.Context, req DatasetRequest) (json.RawMessage, error)
	Statistics(ctx context.Context, req DatasetRequest) (json.RawMessage, error)
	Point(ctx context.Context, req PointRequest) (*PointValues, error)
	Tile(ctx context.Context, req TileRequest) (*Image, error)

	TileMatrixSets(ctx context.Context) ([]string, error)
	// TileMatrixSet returns the OGC definition of one tile matrix set.
	// Unknown ids fail with ErrNotFound.
	TileMatrixSet(ctx context.Context, id string) (json.RawMessage, error)
	ColorMaps(ctx context.Context) ([]string, error)
	Algorithms(ctx context.Context) (json.RawMessage, error)

	// Versions reports the native libraries behind the renderer, keyed by
	// library name.
	Versions(ctx context.Context) (map[string]string, error)
}

// DatasetRequest names a single dataset. Query carries the remaining
// rendering options (bidx, assets, expression, rescale...) untouched.
type DatasetRequest struct {
	Kind  string
	URL   string
	Query url.Values
}

type PointRequest struct {
	DatasetRequest
	Lon, Lat float64
}

// TileRequest asks for one tile. Mosaic tiles set Assets instead of URL.
type TileRequest struct {
	Kind          string
	URL           string
	Assets        []string
	TileMatrixSet string
	Z, X, Y       int
	Scale         int
	Format        string
	Query         url.Values
}

type PointValues struct {
	Coordinates [2]float64 `json:"coordinates"`
	Values      []float64  `json:"values"`
	BandNames   []string   `json:"band_names"`
}

type Image struct {
	ContentType string
	Data        []byte
}
