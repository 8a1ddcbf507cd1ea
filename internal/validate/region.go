package validate

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/quartier-data/listings-cli/internal/rules"
)

// Region answers point-in-region queries for geo validation.
type Region interface {
	Contains(lat, lng float64) bool
}

// bboxRegion is a plain bounding box region.
type bboxRegion struct {
	box rules.BBox
}

func (r bboxRegion) Contains(lat, lng float64) bool {
	return lat >= r.box.MinLat && lat <= r.box.MaxLat &&
		lng >= r.box.MinLng && lng <= r.box.MaxLng
}

// polygonRegion tests points against polygon rings loaded from a shapefile.
// Shapefile coordinates are X=lng, Y=lat.
type polygonRegion struct {
	rings [][]float64
}

func (r polygonRegion) Contains(lat, lng float64) bool {
	pt := geom.Coord{lng, lat}
	for _, ring := range r.rings {
		if xy.IsPointInRing(geom.XY, pt, ring) {
			return true
		}
	}
	return false
}

// LoadRegion builds a Region from the rule file's region config. A
// shapefile takes precedence over a bounding box when both are set.
func LoadRegion(cfg *rules.RegionConfig) (Region, error) {
	if cfg == nil {
		return nil, nil
	}
	if cfg.Shapefile != "" {
		return loadShapefileRegion(cfg.Shapefile)
	}
	if cfg.BBox != nil {
		b := *cfg.BBox
		if b.MinLat > b.MaxLat || b.MinLng > b.MaxLng {
			return nil, eris.Wrapf(rules.ErrConfiguration,
				"validate: inverted region bbox [%v,%v]x[%v,%v]", b.MinLat, b.MaxLat, b.MinLng, b.MaxLng)
		}
		return bboxRegion{box: b}, nil
	}
	return nil, eris.Wrap(rules.ErrConfiguration, "validate: region configured with neither bbox nor shapefile")
}

func loadShapefileRegion(path string) (Region, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "validate: open shapefile %s", path)
	}
	defer reader.Close()

	var region polygonRegion
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || len(poly.Points) == 0 {
			continue
		}
		region.rings = append(region.rings, polygonRings(poly)...)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "validate: read shapefile %s", path)
	}
	if len(region.rings) == 0 {
		return nil, eris.Wrapf(rules.ErrConfiguration, "validate: shapefile %s contains no polygons", path)
	}

	zap.L().Debug("loaded region shapefile",
		zap.String("path", path),
		zap.Int("rings", len(region.rings)),
	)
	return region, nil
}

// polygonRings splits a shapefile polygon into flat XY coordinate rings.
func polygonRings(poly *shp.Polygon) [][]float64 {
	rings := make([][]float64, 0, len(poly.Parts))
	for i, start := range poly.Parts {
		end := int32(len(poly.Points))
		if i+1 < len(poly.Parts) {
			end = poly.Parts[i+1]
		}
		ring := make([]float64, 0, 2*(end-start))
		for _, p := range poly.Points[start:end] {
			ring = append(ring, p.X, p.Y)
		}
		if len(ring) >= 6 {
			rings = append(rings, ring)
		}
	}
	return rings
}
