// Package mosaic reads and validates MosaicJSON documents and answers which
// source assets cover a Web Mercator tile or point.
//
// A MosaicJSON document maps quadkeys at a fixed zoom (quadkey_zoom,
// defaulting to minzoom) to lists of dataset URLs. Tiles deeper than that
// zoom resolve through their ancestor quadkey; shallower tiles collect the
// assets of every descendant quadkey.
package mosaic
