package tiler

import (
	"context"
	"errors"
	"net/http"

	"github.com/keithlinneman/titiler-go/internal/mosaic"
	"github.com/keithlinneman/titiler-go/internal/xerrors"
)

var (
	// ErrBadRequest covers malformed parameters.
	ErrBadRequest = errors.New("bad request")

	// ErrMissingParam is returned when a required query parameter is absent.
	ErrMissingParam = errors.New("missing required parameter")

	// ErrNotFound is returned when the dataset does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTileOutsideBounds is returned for tiles that do not intersect the dataset.
	ErrTileOutsideBounds = errors.New("tile outside bounds")

	// ErrUnavailable is returned by renderers that cannot serve the call.
	ErrUnavailable = errors.New("renderer unavailable")
)

var statusTable = []struct {
	err    error
	status int
}{
	{ErrBadRequest, http.StatusBadRequest},
	{ErrMissingParam, http.StatusUnprocessableEntity},
	{ErrNotFound, http.StatusNotFound},
	{ErrTileOutsideBounds, http.StatusNotFound},
	{ErrUnavailable, http.StatusNotImplemented},
	{mosaic.ErrAuth, http.StatusUnauthorized},
	{mosaic.ErrNotFound, http.StatusNotFound},
	{mosaic.ErrNoAssets, http.StatusNoContent},
	{mosaic.ErrUnsupportedBackend, http.StatusBadRequest},
	{mosaic.ErrInvalid, http.StatusFailedDependency},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
}

// StatusFor maps err to the HTTP status served for it. Unknown errors are 500.
func StatusFor(err error) int {
	for _, e := range statusTable {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

func badParam(name, value string) error {
	return xerrors.Newf("%w: invalid %s %q", ErrBadRequest, name, value)
}
