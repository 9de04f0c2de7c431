package tiler

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/keithlinneman/titiler-go/internal/mosaic"
	"github.com/keithlinneman/titiler-go/internal/xerrors"
)

// fakeRenderer records requests and returns canned results.
type fakeRenderer struct {
	mu     sync.Mutex
	tiles  []TileRequest
	points []PointRequest
	infos  []DatasetRequest

	info     json.RawMessage
	err      error
	pointErr map[string]error
	versions map[string]string
}

func (f *fakeRenderer) Info(_ context.Context, req DatasetRequest) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infos = append(f.infos, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.info != nil {
		return f.info, nil
	}
	return json.RawMessage(`{"bounds":[-10,-5,10,5],"minzoom":2,"maxzoom":12}`), nil
}

func (f *fakeRenderer) Statistics(_ context.Context, req DatasetRequest) (json.RawMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"b1":{"min":0,"max":255}}`), nil
}

func (f *fakeRenderer) Point(_ context.Context, req PointRequest) (*PointValues, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, req)
	if err := f.pointErr[req.URL]; err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &PointValues{Values: []float64{1, 2}, BandNames: []string{"b1", "b2"}}, nil
}

func (f *fakeRenderer) Tile(_ context.Context, req TileRequest) (*Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tiles = append(f.tiles, req)
	if f.err != nil {
		return nil, f.err
	}
	ct, _ := ContentType(req.Format)
	return &Image{ContentType: ct, Data: []byte("tile-bytes")}, nil
}

func (f *fakeRenderer) TileMatrixSets(context.Context) ([]string, error) {
	return []string{"WebMercatorQuad", "WorldCRS84Quad"}, nil
}

func (f *fakeRenderer) TileMatrixSet(_ context.Context, id string) (json.RawMessage, error) {
	if id != "WebMercatorQuad" && id != "WorldCRS84Quad" {
		return nil, xerrors.Newf("%w: unknown tile matrix set %q", ErrNotFound, id)
	}
	return json.RawMessage(`{"id":"` + id + `","tileMatrices":[]}`), nil
}

func (f *fakeRenderer) ColorMaps(context.Context) ([]string, error) {
	return []string{"viridis"}, nil
}

func (f *fakeRenderer) Algorithms(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{"hillshade":{}}`), nil
}

func (f *fakeRenderer) Versions(context.Context) (map[string]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.versions, nil
}

// fakeMosaics serves documents by source string.
type fakeMosaics map[string]any

func (f fakeMosaics) Read(_ context.Context, src string) (*mosaic.MosaicJSON, error) {
	v, ok := f[src]
	if !ok {
		return nil, mosaic.ErrNotFound
	}
	if err, ok := v.(error); ok {
		return nil, err
	}
	return mosaic.Decode([]byte(v.(string)))
}

const testMosaic = `{
  "mosaicjson": "0.0.3",
  "minzoom": 1,
  "maxzoom": 3,
  "quadkey_zoom": 2,
  "bounds": [-180, -85, 180, 85],
  "center": [-135, 75, 2],
  "tiles": {
    "00": ["a.tif", "b.tif"],
    "13": ["d.tif"]
  }
}`
