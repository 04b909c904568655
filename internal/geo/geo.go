// Package geo converts game-world coordinates for the web map and for
// storage. World coordinates are meters on a flat plane; we treat them as
// EPSG:3857 offsets from a configurable anchor so the frontend can feed a
// standard tile layer, and we keep centroids in WKB because SQLite has no
// spatial awareness of its own.
package geo

import (
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Projection anchors the game world inside Web Mercator. OriginX/OriginY are
// the 3857 coordinates of the world's (0,0).
type Projection struct {
	OriginX float64
	OriginY float64
}

// LatLng converts a world coordinate to a 4326 latitude/longitude pair for
// the web map's tile layer.
func (p Projection) LatLng(x, y float64) (lat, lng float64) {
	f := wgs84.EPSG().Transform(3857, 4326)
	lng, lat, _ = f(p.OriginX+x, p.OriginY+y, 0)
	return lat, lng
}

// CellPoint builds a 2D geometry point for a heat-cell centroid.
func CellPoint(x, y float64) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: x, Y: y},
		Type: geom.DimXY,
	})
}

// CellWKB returns the WKB encoding of a heat-cell centroid, the format the
// storage backends persist.
func CellWKB(x, y float64) []byte {
	return CellPoint(x, y).AsBinary()
}
