package tiler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

func (api *API) datasetRoutes(r chi.Router, kind string) {
	r.Get("/info", api.handle(kind, "info", api.datasetInfo(kind)))
	r.Get("/statistics", api.handle(kind, "statistics", api.datasetStatistics(kind)))
	r.Get("/point/{lonlat}", api.handle(kind, "point", api.datasetPoint(kind)))
	r.Get("/tiles/{tms}/{z}/{x}/{y}", api.handle(kind, "tile", api.datasetTile(kind)))
	r.Get("/{tms}/tilejson.json", api.handle(kind, "tilejson", api.datasetTileJSON(kind)))
}

func datasetRequest(r *http.Request, kind string) (DatasetRequest, error) {
	u, err := requiredURL(r)
	if err != nil {
		return DatasetRequest{}, err
	}
	return DatasetRequest{Kind: kind, URL: u, Query: passthrough(r)}, nil
}

func (api *API) datasetInfo(kind string) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		req, err := datasetRequest(r, kind)
		if err != nil {
			return err
		}
		info, err := api.opts.Renderer.Info(r.Context(), req)
		if err != nil {
			return err
		}
		writeJSON(r.Context(), w, "application/json", info)
		return nil
	}
}

func (api *API) datasetStatistics(kind string) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		req, err := datasetRequest(r, kind)
		if err != nil {
			return err
		}
		stats, err := api.opts.Renderer.Statistics(r.Context(), req)
		if err != nil {
			return err
		}
		writeJSON(r.Context(), w, "application/json", stats)
		return nil
	}
}

func (api *API) datasetPoint(kind string) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		lon, lat, err := parseLonLat(chi.URLParam(r, "lonlat"))
		if err != nil {
			return err
		}
		req, err := datasetRequest(r, kind)
		if err != nil {
			return err
		}
		pv, err := api.opts.Renderer.Point(r.Context(), PointRequest{DatasetRequest: req, Lon: lon, Lat: lat})
		if err != nil {
			return err
		}
		pv.Coordinates = [2]float64{lon, lat}
		writeJSON(r.Context(), w, "application/json", pv)
		return nil
	}
}

// tileRequest parses the tile path of r. URL and Assets are left to the caller.
func tileRequest(r *http.Request, kind string) (TileRequest, error) {
	z, err := parseIndex("zoom", chi.URLParam(r, "z"))
	if err != nil {
		return TileRequest{}, err
	}
	x, err := parseIndex("column", chi.URLParam(r, "x"))
	if err != nil {
		return TileRequest{}, err
	}
	ty, err := parseTileY(chi.URLParam(r, "y"))
	if err != nil {
		return TileRequest{}, err
	}
	return TileRequest{
		Kind:          kind,
		TileMatrixSet: chi.URLParam(r, "tms"),
		Z:             z,
		X:             x,
		Y:             ty.Y,
		Scale:         ty.Scale,
		Format:        ty.Format,
		Query:         passthrough(r),
	}, nil
}

func (api *API) datasetTile(kind string) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		req, err := tileRequest(r, kind)
		if err != nil {
			return err
		}
		if req.URL, err = requiredURL(r); err != nil {
			return err
		}
		img, err := api.opts.Renderer.Tile(r.Context(), req)
		if err != nil {
			return err
		}
		api.writeImage(w, kind, req.Format, img)
		return nil
	}
}

// TileJSON is a TileJSON 2.2.0 document.
type TileJSON struct {
	TileJSON string     `json:"tilejson"`
	Name     string     `json:"name,omitempty"`
	Version  string     `json:"version"`
	Scheme   string     `json:"scheme"`
	Tiles    []string   `json:"tiles"`
	MinZoom  int        `json:"minzoom"`
	MaxZoom  int        `json:"maxzoom"`
	Bounds   [4]float64 `json:"bounds"`
	Center   [3]float64 `json:"center"`
}

// tileTemplate builds the tile URL template advertised in TileJSON.
// tile_format and tile_scale select the extension and scale; the rest of
// the query is carried over so rendering options reach the tiles.
func (api *API) tileTemplate(r *http.Request, kind, tms string) (string, error) {
	q := r.URL.Query()
	scale := 1
	if s := q.Get("tile_scale"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxScale {
			return "", badParam("tile_scale", s)
		}
		scale = n
	}
	ext := ""
	if f := strings.ToLower(q.Get("tile_format")); f != "" {
		if _, ok := ContentType(f); !ok {
			return "", badParam("tile_format", f)
		}
		ext = "." + f
	}
	for _, k := range []string{"tile_scale", "tile_format", "minzoom", "maxzoom"} {
		q.Del(k)
	}

	t := api.baseURL(r) + "/" + kind + "/tiles/" + url.PathEscape(tms) +
		"/{z}/{x}/{y}@" + strconv.Itoa(scale) + "x" + ext
	if enc := q.Encode(); enc != "" {
		t += "?" + enc
	}
	return t, nil
}

// zoomOverride applies minzoom/maxzoom query overrides.
func zoomOverride(r *http.Request, minZoom, maxZoom int) (int, int, error) {
	q := r.URL.Query()
	if s := q.Get("minzoom"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return 0, 0, badParam("minzoom", s)
		}
		minZoom = n
	}
	if s := q.Get("maxzoom"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return 0, 0, badParam("maxzoom", s)
		}
		maxZoom = n
	}
	return minZoom, maxZoom, nil
}

// datasetBounds is the subset of a renderer info response used for TileJSON.
type datasetBounds struct {
	Bounds  []float64 `json:"bounds"`
	MinZoom *int      `json:"minzoom"`
	MaxZoom *int      `json:"maxzoom"`
}

func (api *API) datasetTileJSON(kind string) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		tms := chi.URLParam(r, "tms")
		req, err := datasetRequest(r, kind)
		if err != nil {
			return err
		}
		req.Query.Del("tile_scale")
		req.Query.Del("tile_format")

		raw, err := api.opts.Renderer.Info(r.Context(), req)
		if err != nil {
			return err
		}
		var info datasetBounds
		_ = json.Unmarshal(raw, &info)

		tj := TileJSON{
			TileJSON: "2.2.0",
			Version:  "1.0.0",
			Scheme:   "xyz",
			MinZoom:  0,
			MaxZoom:  24,
			Bounds:   [4]float64{-180, -90, 180, 90},
		}
		if info.MinZoom != nil {
			tj.MinZoom = *info.MinZoom
		}
		if info.MaxZoom != nil {
			tj.MaxZoom = *info.MaxZoom
		}
		if len(info.Bounds) == 4 {
			copy(tj.Bounds[:], info.Bounds)
		}
		if tj.MinZoom, tj.MaxZoom, err = zoomOverride(r, tj.MinZoom, tj.MaxZoom); err != nil {
			return err
		}
		tj.Center = [3]float64{(tj.Bounds[0] + tj.Bounds[2]) / 2, (tj.Bounds[1] + tj.Bounds[3]) / 2, float64(tj.MinZoom)}

		tmpl, err := api.tileTemplate(r, kind, tms)
		if err != nil {
			return err
		}
		tj.Tiles = []string{tmpl}
		writeJSON(r.Context(), w, "application/json", tj)
		return nil
	}
}
