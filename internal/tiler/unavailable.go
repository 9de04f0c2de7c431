package tiler

import (
	"context"
	"encoding/json"

	"github.com/keithlinneman/titiler-go/internal/xerrors"
)

// Unavailable is the Renderer used when no rendering backend is
// configured. Listings are empty and every dataset call fails with
// ErrUnavailable.
type Unavailable struct{}

var _ Renderer = Unavailable{}

func (Unavailable) Info(context.Context, DatasetRequest) (json.RawMessage, error) {
	return nil, xerrors.Wrap(ErrUnavailable, "info")
}

func (Unavailable) Statistics(context.Context, DatasetRequest) (json.RawMessage, error) {
	return nil, xerrors.Wrap(ErrUnavailable, "statistics")
}

func (Unavailable) Point(context.Context, PointRequest) (*PointValues, error) {
	return nil, xerrors.Wrap(ErrUnavailable, "point")
}

func (Unavailable) Tile(context.Context, TileRequest) (*Image, error) {
	return nil, xerrors.Wrap(ErrUnavailable, "tile")
}

func (Unavailable) TileMatrixSets(context.Context) ([]string, error) { return []string{"WebMercatorQuad"}, nil }
func (Unavailable) TileMatrixSet(context.Context, string) (json.RawMessage, error) {
	return nil, xerrors.Wrap(ErrUnavailable, "tile matrix set")
}
func (Unavailable) ColorMaps(context.Context) ([]string, error)      { return []string{}, nil }
func (Unavailable) Algorithms(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}
func (Unavailable) Versions(context.Context) (map[string]string, error) {
	return map[string]string{}, nil
}
