package mosaic

import "errors"

var (
	// ErrNotFound is returned when the document does not exist at its source.
	ErrNotFound = errors.New("mosaic not found")

	// ErrAuth is returned when the backend refused our credentials.
	ErrAuth = errors.New("mosaic access denied")

	// ErrInvalid covers documents that could be read but not decoded or
	// validated, and backend failures other than not-found and auth.
	ErrInvalid = errors.New("invalid mosaic")

	// ErrUnsupportedBackend is returned for sources whose scheme is unknown
	// or disabled.
	ErrUnsupportedBackend = errors.New("unsupported mosaic backend")

	// ErrNoAssets is returned when no asset intersects the requested tile
	// or point.
	ErrNoAssets = errors.New("no assets found")
)
