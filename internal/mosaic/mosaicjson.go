package mosaic

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/keithlinneman/titiler-go/internal/xerrors"
)

// TileMatrixSet is the only grid MosaicJSON quadkeys are defined on.
const TileMatrixSet = "WebMercatorQuad"

const defaultName = "mosaic"

var knownVersions = map[string]bool{"0.0.1": true, "0.0.2": true, "0.0.3": true}

// MosaicJSON is a decoded document. Fields this server does not interpret
// are kept as raw JSON so a GET round-trips them unchanged.
type MosaicJSON struct {
	MosaicJSON  string              `json:"mosaicjson"`
	Name        *string             `json:"name,omitempty"`
	Description *string             `json:"description,omitempty"`
	Version     string              `json:"version,omitempty"`
	Attribution *string             `json:"attribution,omitempty"`
	MinZoom     int                 `json:"minzoom"`
	MaxZoom     int                 `json:"maxzoom"`
	QuadkeyZoom *int                `json:"quadkey_zoom,omitempty"`
	Bounds      [4]float64          `json:"bounds"`
	Center      *[3]float64         `json:"center,omitempty"`
	Tiles       map[string][]string `json:"tiles"`

	TileMatrixSet json.RawMessage `json:"tilematrixset,omitempty"`
	AssetType     *string         `json:"asset_type,omitempty"`
	AssetPrefix   *string         `json:"asset_prefix,omitempty"`
	DataType      *string         `json:"data_type,omitempty"`
	ColorMap      json.RawMessage `json:"colormap,omitempty"`
	Layers        json.RawMessage `json:"layers,omitempty"`
}

// Decode parses and validates a document. Failures wrap ErrInvalid.
func Decode(b []byte) (*MosaicJSON, error) {
	m := &MosaicJSON{Bounds: [4]float64{-180, -90, 180, 90}}
	if err := json.Unmarshal(b, m); err != nil {
		return nil, xerrors.Newf("%w: decode mosaicjson: %w", ErrInvalid, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the document against the MosaicJSON 0.0.x schema. All problems
// are reported together and the result wraps ErrInvalid.
func (m *MosaicJSON) Validate() error {
	var errs []error
	if !knownVersions[m.MosaicJSON] {
		errs = append(errs, xerrors.Newf("unsupported mosaicjson version %q", m.MosaicJSON))
	}
	if m.MinZoom < 0 || m.MaxZoom > MaxZoom || m.MinZoom > m.MaxZoom {
		errs = append(errs, xerrors.Newf("invalid zoom range %d..%d", m.MinZoom, m.MaxZoom))
	}
	qz := m.quadkeyZoom()
	if m.QuadkeyZoom != nil && (qz < m.MinZoom || qz > m.MaxZoom) {
		errs = append(errs, xerrors.Newf("quadkey_zoom %d outside %d..%d", qz, m.MinZoom, m.MaxZoom))
	}
	w, s, e, n := m.Bounds[0], m.Bounds[1], m.Bounds[2], m.Bounds[3]
	if w < -180 || e > 180 || s < -90 || n > 90 || w > e || s > n {
		errs = append(errs, xerrors.Newf("invalid bounds %v", m.Bounds))
	}
	if m.Tiles == nil {
		errs = append(errs, xerrors.New("missing tiles"))
	}
	for qk := range m.Tiles {
		if len(qk) != qz {
			errs = append(errs, xerrors.Newf("quadkey %q is not at zoom %d", qk, qz))
			continue
		}
		if _, err := ParseQuadkey(qk); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(append([]error{ErrInvalid}, errs...)...)
}

func (m *MosaicJSON) quadkeyZoom() int {
	if m.QuadkeyZoom != nil {
		return *m.QuadkeyZoom
	}
	return m.MinZoom
}

// AssetsForTile lists the assets covering t, without duplicates, in
// document order for deeper tiles and quadkey order for shallower ones.
func (m *MosaicJSON) AssetsForTile(t Tile) ([]string, error) {
	if !t.Valid() {
		return nil, xerrors.Newf("invalid tile %d/%d/%d", t.Z, t.X, t.Y)
	}
	qz := m.quadkeyZoom()
	qk := t.Quadkey()

	var assets []string
	if t.Z >= qz {
		assets = dedupe(m.Tiles[qk[:qz]])
	} else {
		keys := make([]string, 0, 4)
		for k := range m.Tiles {
			if strings.HasPrefix(k, qk) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var all []string
		for _, k := range keys {
			all = append(all, m.Tiles[k]...)
		}
		assets = dedupe(all)
	}
	if len(assets) == 0 {
		return nil, xerrors.Wrapf(ErrNoAssets, "tile %d/%d/%d", t.Z, t.X, t.Y)
	}
	return m.prefixed(assets), nil
}

// AssetsForPoint lists the assets of the quadkey containing lon/lat.
func (m *MosaicJSON) AssetsForPoint(lon, lat float64) ([]string, error) {
	if lon < m.Bounds[0] || lon > m.Bounds[2] || lat < m.Bounds[1] || lat > m.Bounds[3] {
		return nil, xerrors.Wrapf(ErrNoAssets, "point %g,%g outside mosaic bounds", lon, lat)
	}
	return m.AssetsForTile(TileAt(lon, lat, m.quadkeyZoom()))
}

func (m *MosaicJSON) prefixed(assets []string) []string {
	if m.AssetPrefix == nil || *m.AssetPrefix == "" {
		return assets
	}
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = *m.AssetPrefix + a
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Info is the summary served by /mosaicjson/info.
type Info struct {
	Bounds        [4]float64 `json:"bounds"`
	Center        [3]float64 `json:"center"`
	MinZoom       int        `json:"minzoom"`
	MaxZoom       int        `json:"maxzoom"`
	Name          string     `json:"name"`
	Quadkeys      []string   `json:"quadkeys"`
	TileMatrixSet string     `json:"mosaic_tilematrixset"`
	MosaicMinZoom int        `json:"mosaic_minzoom"`
	MosaicMaxZoom int        `json:"mosaic_maxzoom"`
}

// Info summarises m. Quadkeys are listed only when withQuadkeys is set.
func (m *MosaicJSON) Info(withQuadkeys bool) Info {
	info := Info{
		Bounds:        m.Bounds,
		Center:        m.center(),
		MinZoom:       m.MinZoom,
		MaxZoom:       m.MaxZoom,
		Name:          defaultName,
		Quadkeys:      []string{},
		TileMatrixSet: TileMatrixSet,
		MosaicMinZoom: m.MinZoom,
		MosaicMaxZoom: m.MaxZoom,
	}
	if m.Name != nil && *m.Name != "" {
		info.Name = *m.Name
	}
	if withQuadkeys {
		for qk := range m.Tiles {
			info.Quadkeys = append(info.Quadkeys, qk)
		}
		sort.Strings(info.Quadkeys)
	}
	return info
}

func (m *MosaicJSON) center() [3]float64 {
	if m.Center != nil {
		return *m.Center
	}
	return [3]float64{
		(m.Bounds[0] + m.Bounds[2]) / 2,
		(m.Bounds[1] + m.Bounds[3]) / 2,
		float64(m.MinZoom),
	}
}

// Feature is a GeoJSON Feature.
type Feature struct {
	Type       string     `json:"type"`
	BBox       [4]float64 `json:"bbox"`
	Geometry   Polygon    `json:"geometry"`
	Properties any        `json:"properties"`
}

type Polygon struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
}

// InfoFeature wraps Info in a Feature whose geometry is the bounds.
func (m *MosaicJSON) InfoFeature(withQuadkeys bool) Feature {
	w, s, e, n := m.Bounds[0], m.Bounds[1], m.Bounds[2], m.Bounds[3]
	return Feature{
		Type: "Feature",
		BBox: m.Bounds,
		Geometry: Polygon{
			Type:        "Polygon",
			Coordinates: [][][2]float64{{{w, s}, {e, s}, {e, n}, {w, n}, {w, s}}},
		},
		Properties: m.Info(withQuadkeys),
	}
}
