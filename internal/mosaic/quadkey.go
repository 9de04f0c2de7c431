package mosaic

import (
	"math"
	"strings"

	"github.com/keithlinneman/titiler-go/internal/xerrors"
)

// MaxZoom is the deepest zoom MosaicJSON allows.
const MaxZoom = 30

// Web Mercator latitude limit
const maxLat = 85.0511287798066

// Tile is a WebMercatorQuad tile index.
type Tile struct {
	X, Y, Z int
}

// Valid reports whether t exists in the tile matrix.
func (t Tile) Valid() bool {
	if t.Z < 0 || t.Z > MaxZoom {
		return false
	}
	n := 1 << t.Z
	return t.X >= 0 && t.X < n && t.Y >= 0 && t.Y < n
}

// Quadkey encodes t. Zoom 0 is the empty string.
func (t Tile) Quadkey() string {
	var b strings.Builder
	b.Grow(t.Z)
	for i := t.Z; i > 0; i-- {
		digit := byte('0')
		mask := 1 << (i - 1)
		if t.X&mask != 0 {
			digit++
		}
		if t.Y&mask != 0 {
			digit += 2
		}
		b.WriteByte(digit)
	}
	return b.String()
}

// Bounds returns the tile's [west, south, east, north] in degrees.
func (t Tile) Bounds() [4]float64 {
	n := float64(int(1) << t.Z)
	lon := func(x int) float64 { return float64(x)/n*360 - 180 }
	lat := func(y int) float64 {
		return math.Atan(math.Sinh(math.Pi*(1-2*float64(y)/n))) * 180 / math.Pi
	}
	return [4]float64{lon(t.X), lat(t.Y + 1), lon(t.X + 1), lat(t.Y)}
}

// ParseQuadkey decodes a quadkey into its tile.
func ParseQuadkey(qk string) (Tile, error) {
	if len(qk) > MaxZoom {
		return Tile{}, xerrors.Newf("quadkey %q deeper than zoom %d", qk, MaxZoom)
	}
	t := Tile{Z: len(qk)}
	for i := 0; i < len(qk); i++ {
		mask := 1 << (t.Z - i - 1)
		switch qk[i] {
		case '0':
		case '1':
			t.X |= mask
		case '2':
			t.Y |= mask
		case '3':
			t.X |= mask
			t.Y |= mask
		default:
			return Tile{}, xerrors.Newf("invalid quadkey digit %q in %q", qk[i], qk)
		}
	}
	return t, nil
}

// TileAt returns the tile containing lon/lat at zoom z. Latitudes beyond
// the Web Mercator limit are clamped.
func TileAt(lon, lat float64, z int) Tile {
	lat = math.Max(-maxLat, math.Min(maxLat, lat))
	n := float64(int(1) << z)
	x := math.Floor((lon + 180) / 360 * n)
	r := lat * math.Pi / 180
	y := math.Floor((1 - math.Log(math.Tan(r)+1/math.Cos(r))/math.Pi) / 2 * n)

	clamp := func(v float64) int {
		return int(math.Max(0, math.Min(n-1, v)))
	}
	return Tile{X: clamp(x), Y: clamp(y), Z: z}
}
