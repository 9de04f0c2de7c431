package tiler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/titiler-go/internal/httpmw"
	"github.com/keithlinneman/titiler-go/internal/log"
	"github.com/keithlinneman/titiler-go/internal/mosaic"
	"github.com/keithlinneman/titiler-go/internal/prof"
	"github.com/keithlinneman/titiler-go/internal/xerrors"
)

// MosaicReader loads MosaicJSON documents.
type MosaicReader interface {
	Read(ctx context.Context, src string) (*mosaic.MosaicJSON, error)
}

type Options struct {
	Renderer Renderer
	Mosaics  MosaicReader

	// Title is served on the landing page
	Title   string
	Version string

	// RootPath prefixes generated links when served behind a proxy
	RootPath string

	DisableCOG    bool
	DisableSTAC   bool
	DisableMosaic bool

	OnError func(kind string, status int)
	OnTile  func(kind, format string)
}

// API serves the tiler endpoints.
type API struct {
	opts Options
}

func NewAPI(opts Options) *API {
	if opts.Renderer == nil {
		opts.Renderer = Unavailable{}
	}
	if opts.Mosaics == nil {
		opts.Mosaics = mosaic.NewStore(mosaic.Options{})
	}
	if opts.Title == "" {
		opts.Title = "titiler"
	}
	opts.RootPath = strings.TrimRight(opts.RootPath, "/")
	return &API{opts: opts}
}

// RegisterRoutes attaches the tiler endpoints to the router
func (api *API) RegisterRoutes(r chi.Router) {
	r.Get("/", api.handle("", "landing", api.landing))
	r.Get("/healthz", api.handle("", "healthz", api.healthz))
	r.Get("/tileMatrixSets", api.handle("", "tilematrixsets", api.tileMatrixSets))
	r.Get("/tileMatrixSets/{tileMatrixSetId}", api.handle("", "tilematrixset", api.tileMatrixSet))
	r.Get("/algorithms", api.handle("", "algorithms", api.algorithms))
	r.Get("/colorMaps", api.handle("", "colormaps", api.colorMaps))

	if !api.opts.DisableCOG {
		r.Route("/"+KindCOG, func(r chi.Router) {
			r.Use(httpmw.Scope(KindCOG))
			api.datasetRoutes(r, KindCOG)
		})
	}
	if !api.opts.DisableSTAC {
		r.Route("/"+KindSTAC, func(r chi.Router) {
			r.Use(httpmw.Scope(KindSTAC))
			api.datasetRoutes(r, KindSTAC)
		})
	}
	if !api.opts.DisableMosaic {
		r.Route("/"+KindMosaic, func(r chi.Router) {
			r.Use(httpmw.Scope(KindMosaic))
			api.mosaicRoutes(r)
		})
	}
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle runs fn under profiler labels and renders its error, if any.
func (api *API) handle(kind, op string, fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prof.Do(r.Context(), kind, op, func(ctx context.Context) {
			if err := fn(w, r.WithContext(ctx)); err != nil {
				api.writeError(w, r.WithContext(ctx), kind, err)
			}
		})
	}
}

func (api *API) writeError(w http.ResponseWriter, r *http.Request, kind string, err error) {
	ctx := r.Context()
	status := StatusFor(err)
	if api.opts.OnError != nil {
		api.opts.OnError(kind, status)
	}

	L := log.FromContext(ctx)
	if status >= http.StatusInternalServerError {
		L.Error(ctx, err, "tiler request failed", "status", status, "dataset_kind", kind)
	} else {
		L.Debug(ctx, "tiler request rejected", "status", status, "dataset_kind", kind, "err", err)
	}

	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	httpmw.WriteDetail(w, status, msg)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, contentType string, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(ctx).Warn(ctx, "failed to encode JSON response", "error", err)
	}
}

func (api *API) writeImage(w http.ResponseWriter, kind, format string, img *Image) {
	if api.opts.OnTile != nil {
		api.opts.OnTile(kind, format)
	}
	w.Header().Set("Content-Type", img.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

// baseURL is scheme://host plus the root path, without a trailing slash.
func (api *API) baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + api.opts.RootPath
}

// requiredURL returns the dataset url parameter.
func requiredURL(r *http.Request) (string, error) {
	u := strings.TrimSpace(r.URL.Query().Get("url"))
	if u == "" {
		return "", xerrors.Newf("%w: url", ErrMissingParam)
	}
	return u, nil
}

// passthrough is the query forwarded to the renderer: everything except
// the dataset url and the access token.
func passthrough(r *http.Request, drop ...string) url.Values {
	q := r.URL.Query()
	q.Del("url")
	q.Del(httpmw.AccessTokenParam)
	for _, k := range drop {
		q.Del(k)
	}
	return q
}

type link struct {
	Title string `json:"title"`
	Href  string `json:"href"`
	Type  string `json:"type"`
	Rel   string `json:"rel"`
}

func (api *API) landing(w http.ResponseWriter, r *http.Request) error {
	base := api.baseURL(r)
	writeJSON(r.Context(), w, "application/json", map[string]any{
		"title": api.opts.Title,
		"links": []link{
			{Title: "Landing page", Href: base + "/", Type: "application/json", Rel: "self"},
			{Title: "Health check", Href: base + "/healthz", Type: "application/json", Rel: "service-status"},
			{Title: "Tile matrix sets", Href: base + "/tileMatrixSets", Type: "application/json", Rel: "data"},
			{Title: "TiTiler Documentation (external link)", Href: "https://developmentseed.org/titiler/", Type: "text/html", Rel: "doc"},
			{Title: "TiTiler source code (external link)", Href: "https://github.com/developmentseed/titiler", Type: "text/html", Rel: "doc"},
		},
	})
	return nil
}

func (api *API) healthz(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	versions := map[string]string{}
	native, err := api.opts.Renderer.Versions(ctx)
	if err != nil {
		log.FromContext(ctx).Warn(ctx, "renderer versions unavailable", "error", err)
	}
	for k, v := range native {
		versions[k] = v
	}
	versions["titiler"] = api.opts.Version

	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(ctx, w, "application/json", map[string]any{"versions": versions})
	return nil
}

func (api *API) tileMatrixSets(w http.ResponseWriter, r *http.Request) error {
	ids, err := api.opts.Renderer.TileMatrixSets(r.Context())
	if err != nil {
		return err
	}
	type entry struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		Links []link `json:"links"`
	}
	base := api.baseURL(r)
	out := make([]entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, entry{
			ID:    id,
			Title: id,
			Links: []link{{
				Title: "Definition of " + id,
				Href:  base + "/tileMatrixSets/" + url.PathEscape(id),
				Type:  "application/json",
				Rel:   "http://www.opengis.net/def/rel/ogc/1.0/tiling-scheme",
			}},
		})
	}
	writeJSON(r.Context(), w, "application/json", map[string]any{"tileMatrixSets": out})
	return nil
}

func (api *API) tileMatrixSet(w http.ResponseWriter, r *http.Request) error {
	def, err := api.opts.Renderer.TileMatrixSet(r.Context(), chi.URLParam(r, "tileMatrixSetId"))
	if err != nil {
		return err
	}
	writeJSON(r.Context(), w, "application/json", def)
	return nil
}

func (api *API) algorithms(w http.ResponseWriter, r *http.Request) error {
	algs, err := api.opts.Renderer.Algorithms(r.Context())
	if err != nil {
		return err
	}
	writeJSON(r.Context(), w, "application/json", algs)
	return nil
}

func (api *API) colorMaps(w http.ResponseWriter, r *http.Request) error {
	names, err := api.opts.Renderer.ColorMaps(r.Context())
	if err != nil {
		return err
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(r.Context(), w, "application/json", map[string]any{"colorMaps": names})
	return nil
}
