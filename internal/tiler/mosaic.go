package tiler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/titiler-go/internal/httpmw"
	"github.com/keithlinneman/titiler-go/internal/mosaic"
	"github.com/keithlinneman/titiler-go/internal/xerrors"
)

const maxValidateBody = 16 << 20

func (api *API) mosaicRoutes(r chi.Router) {
	k := KindMosaic
	r.Get("/", api.handle(k, "read", api.mosaicRead))
	r.Post("/validate", api.handle(k, "validate", api.mosaicValidate))
	r.Get("/bounds", api.handle(k, "bounds", api.mosaicBounds))
	r.Get("/info", api.handle(k, "info", api.mosaicInfo))
	r.Get("/info.geojson", api.handle(k, "info", api.mosaicInfoGeoJSON))
	r.Get("/point/{lonlat}", api.handle(k, "point", api.mosaicPoint))
	r.Get("/tiles/{tms}/{z}/{x}/{y}", api.handle(k, "tile", api.mosaicTile))
	r.Get("/{tms}/tilejson.json", api.handle(k, "tilejson", api.mosaicTileJSON))
	r.Get("/{z}/{x}/{y}/assets", api.handle(k, "assets", api.mosaicTileAssets))
	r.Get("/{lonlat}/assets", api.handle(k, "assets", api.mosaicPointAssets))
}

func (api *API) loadMosaic(r *http.Request) (*mosaic.MosaicJSON, error) {
	src, err := requiredURL(r)
	if err != nil {
		return nil, err
	}
	return api.opts.Mosaics.Read(r.Context(), src)
}

func (api *API) mosaicRead(w http.ResponseWriter, r *http.Request) error {
	m, err := api.loadMosaic(r)
	if err != nil {
		return err
	}
	writeJSON(r.Context(), w, "application/json", m)
	return nil
}

// mosaicValidate checks a posted document. Invalid documents are 422.
func (api *API) mosaicValidate(w http.ResponseWriter, r *http.Request) error {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxValidateBody))
	if err != nil {
		return xerrors.Newf("%w: read body: %w", ErrBadRequest, err)
	}
	m, err := mosaic.Decode(b)
	if err != nil {
		httpmw.WriteDetail(w, http.StatusUnprocessableEntity, err.Error())
		return nil
	}
	writeJSON(r.Context(), w, "application/json", m)
	return nil
}

func (api *API) mosaicBounds(w http.ResponseWriter, r *http.Request) error {
	m, err := api.loadMosaic(r)
	if err != nil {
		return err
	}
	writeJSON(r.Context(), w, "application/json", map[string]any{"bounds": m.Bounds})
	return nil
}

func withQuadkeys(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("quadkeys"))
	return ok
}

func (api *API) mosaicInfo(w http.ResponseWriter, r *http.Request) error {
	m, err := api.loadMosaic(r)
	if err != nil {
		return err
	}
	writeJSON(r.Context(), w, "application/json", m.Info(withQuadkeys(r)))
	return nil
}

func (api *API) mosaicInfoGeoJSON(w http.ResponseWriter, r *http.Request) error {
	m, err := api.loadMosaic(r)
	if err != nil {
		return err
	}
	writeJSON(r.Context(), w, "application/geo+json", m.InfoFeature(withQuadkeys(r)))
	return nil
}

func requireMosaicTMS(tms string) error {
	if tms != mosaic.TileMatrixSet {
		return xerrors.Newf("%w: mosaics are only available on %s (got %q)", ErrBadRequest, mosaic.TileMatrixSet, tms)
	}
	return nil
}

func (api *API) mosaicTile(w http.ResponseWriter, r *http.Request) error {
	req, err := tileRequest(r, KindMosaic)
	if err != nil {
		return err
	}
	if err := requireMosaicTMS(req.TileMatrixSet); err != nil {
		return err
	}
	m, err := api.loadMosaic(r)
	if err != nil {
		return err
	}
	if req.Assets, err = m.AssetsForTile(mosaic.Tile{X: req.X, Y: req.Y, Z: req.Z}); err != nil {
		return err
	}
	img, err := api.opts.Renderer.Tile(r.Context(), req)
	if err != nil {
		return err
	}
	api.writeImage(w, KindMosaic, req.Format, img)
	return nil
}

func (api *API) mosaicTileJSON(w http.ResponseWriter, r *http.Request) error {
	tms := chi.URLParam(r, "tms")
	if err := requireMosaicTMS(tms); err != nil {
		return err
	}
	m, err := api.loadMosaic(r)
	if err != nil {
		return err
	}
	info := m.Info(false)
	tj := TileJSON{
		TileJSON: "2.2.0",
		Name:     info.Name,
		Version:  "1.0.0",
		Scheme:   "xyz",
		Bounds:   info.Bounds,
		Center:   info.Center,
	}
	if tj.MinZoom, tj.MaxZoom, err = zoomOverride(r, m.MinZoom, m.MaxZoom); err != nil {
		return err
	}
	tmpl, err := api.tileTemplate(r, KindMosaic, tms)
	if err != nil {
		return err
	}
	tj.Tiles = []string{tmpl}
	writeJSON(r.Context(), w, "application/json", tj)
	return nil
}

func (api *API) mosaicTileAssets(w http.ResponseWriter, r *http.Request) error {
	var t mosaic.Tile
	var err error
	if t.Z, err = parseIndex("zoom", chi.URLParam(r, "z")); err != nil {
		return err
	}
	if t.X, err = parseIndex("column", chi.URLParam(r, "x")); err != nil {
		return err
	}
	if t.Y, err = parseIndex("row", chi.URLParam(r, "y")); err != nil {
		return err
	}
	if !t.Valid() {
		return xerrors.Newf("%w: tile %d/%d/%d", ErrBadRequest, t.Z, t.X, t.Y)
	}
	m, err := api.loadMosaic(r)
	if err != nil {
		return err
	}
	assets, err := m.AssetsForTile(t)
	if errors.Is(err, mosaic.ErrNoAssets) {
		assets = []string{}
	} else if err != nil {
		return err
	}
	writeJSON(r.Context(), w, "application/json", assets)
	return nil
}

func (api *API) mosaicPointAssets(w http.ResponseWriter, r *http.Request) error {
	lon, lat, err := parseLonLat(chi.URLParam(r, "lonlat"))
	if err != nil {
		return err
	}
	m, err := api.loadMosaic(r)
	if err != nil {
		return err
	}
	assets, err := m.AssetsForPoint(lon, lat)
	if errors.Is(err, mosaic.ErrNoAssets) {
		assets = []string{}
	} else if err != nil {
		return err
	}
	writeJSON(r.Context(), w, "application/json", assets)
	return nil
}

// assetValues is one asset's entry in a mosaic point response:
// [asset, values, band_names].
type assetValues [3]any

// mosaicPoint samples every asset covering the point. Assets that do not
// cover it are skipped.
func (api *API) mosaicPoint(w http.ResponseWriter, r *http.Request) error {
	lon, lat, err := parseLonLat(chi.URLParam(r, "lonlat"))
	if err != nil {
		return err
	}
	m, err := api.loadMosaic(r)
	if err != nil {
		return err
	}
	assets, err := m.AssetsForPoint(lon, lat)
	if err != nil {
		return err
	}

	values := make([]assetValues, 0, len(assets))
	for _, a := range assets {
		pv, err := api.opts.Renderer.Point(r.Context(), PointRequest{
			DatasetRequest: DatasetRequest{Kind: KindCOG, URL: a, Query: passthrough(r)},
			Lon:            lon,
			Lat:            lat,
		})
		if errors.Is(err, ErrTileOutsideBounds) {
			continue
		}
		if err != nil {
			return err
		}
		values = append(values, assetValues{a, pv.Values, pv.BandNames})
	}
	if len(values) == 0 {
		return xerrors.Wrapf(mosaic.ErrNoAssets, "point %g,%g", lon, lat)
	}
	writeJSON(r.Context(), w, "application/json", map[string]any{
		"coordinates": [2]float64{lon, lat},
		"values":      values,
	})
	return nil
}
