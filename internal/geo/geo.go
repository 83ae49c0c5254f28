// Package geo wraps the spatial predicates the tracker needs. All
// geometry uses orb conventions: Point[0] is longitude, Point[1] is
// latitude, WGS84.
package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// metersPerDegree is the rough WGS84 conversion used for violation
// distance estimates. Precision beyond this is not needed for severity
// bucketing.
const metersPerDegree = 111000

// ValidPoint reports whether p is a finite coordinate pair inside the
// WGS84 range.
func ValidPoint(p orb.Point) bool {
	lon, lat := p.Lon(), p.Lat()
	if math.IsNaN(lon) || math.IsInf(lon, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return false
	}
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}

// ValidRing reports an error unless r is a closed ring with at least
// three distinct vertices, all valid coordinates.
func ValidRing(r orb.Ring) error {
	if len(r) < 4 {
		return fmt.Errorf("ring needs at least 3 vertices plus closure, got %d points", len(r))
	}
	if r[0] != r[len(r)-1] {
		return fmt.Errorf("ring is not closed: first %v != last %v", r[0], r[len(r)-1])
	}
	for i, p := range r {
		if !ValidPoint(p) {
			return fmt.Errorf("ring vertex %d is not a valid coordinate: %v", i, p)
		}
	}
	return nil
}

// Contains reports whether point lies inside ring. A point exactly on
// the ring edge classifies as inside; the rule is deterministic for
// identical inputs, so repeated samples at the edge never flap.
func Contains(ring orb.Ring, point orb.Point) bool {
	return planar.RingContains(ring, point)
}

// DistanceOutsideMeters estimates how far point is from ring, in
// meters. Returns 0 for points inside.
func DistanceOutsideMeters(ring orb.Ring, point orb.Point) float64 {
	if Contains(ring, point) {
		return 0
	}
	return planar.DistanceFrom(ring, point) * metersPerDegree
}
