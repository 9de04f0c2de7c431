// Package tiler is the HTTP API of the tile server: dataset metadata,
// statistics, point queries and tiles for COG, STAC and MosaicJSON
// sources. Pixel work is delegated to a Renderer.
package tiler
