package tiler

import (
	"strconv"
	"strings"

	"github.com/keithlinneman/titiler-go/internal/xerrors"
)

// DefaultFormat is used when a tile path has no extension.
const DefaultFormat = "png"

const maxScale = 4

var contentTypes = map[string]string{
	"png":     "image/png",
	"npy":     "application/x-binary",
	"tif":     "image/tiff; application=geotiff",
	"jpeg":    "image/jpeg",
	"jpg":     "image/jpg",
	"jp2":     "image/jp2",
	"webp":    "image/webp",
	"pngraw":  "image/png",
	"jpegxl":  "image/jxl",
	"jxl":     "image/jxl",
	"geojson": "application/geo+json",
}

// ContentType returns the media type for a tile format.
func ContentType(format string) (string, bool) {
	ct, ok := contentTypes[format]
	return ct, ok
}

// tileY is the last tile path segment: "12", "12@2x", "12.png" or "12@2x.png".
type tileY struct {
	Y      int
	Scale  int
	Format string
}

func parseTileY(seg string) (tileY, error) {
	out := tileY{Scale: 1, Format: DefaultFormat}

	if i := strings.IndexByte(seg, '.'); i >= 0 {
		out.Format = strings.ToLower(seg[i+1:])
		seg = seg[:i]
		if _, ok := contentTypes[out.Format]; !ok {
			return tileY{}, xerrors.Newf("%w: unsupported format %q", ErrBadRequest, out.Format)
		}
	}
	if i := strings.IndexByte(seg, '@'); i >= 0 {
		s := seg[i+1:]
		seg = seg[:i]
		if !strings.HasSuffix(s, "x") {
			return tileY{}, xerrors.Newf("%w: invalid scale %q", ErrBadRequest, s)
		}
		n, err := strconv.Atoi(strings.TrimSuffix(s, "x"))
		if err != nil || n < 1 || n > maxScale {
			return tileY{}, xerrors.Newf("%w: invalid scale %q", ErrBadRequest, s)
		}
		out.Scale = n
	}

	y, err := strconv.Atoi(seg)
	if err != nil || y < 0 {
		return tileY{}, xerrors.Newf("%w: invalid tile row %q", ErrBadRequest, seg)
	}
	out.Y = y
	return out, nil
}

func parseIndex(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, xerrors.Newf("%w: invalid %s %q", ErrBadRequest, name, s)
	}
	return n, nil
}

// parseLonLat parses a "lon,lat" path segment.
func parseLonLat(s string) (lon, lat float64, err error) {
	a, b, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, xerrors.Newf("%w: expected lon,lat got %q", ErrBadRequest, s)
	}
	lon, err1 := strconv.ParseFloat(strings.TrimSpace(a), 64)
	lat, err2 := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if err1 != nil || err2 != nil || lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return 0, 0, xerrors.Newf("%w: invalid coordinates %q", ErrBadRequest, s)
	}
	return lon, lat, nil
}
