package geometry

import (
	"fmt"
	"math"
)

// IssueKind identifies a class of geometry validation failure.
type IssueKind string

const (
	IssueShortRing   IssueKind = "short_ring"    // ring has fewer than 4 positions
	IssueOpenRing    IssueKind = "open_ring"     // first and last positions differ
	IssueOutOfBounds IssueKind = "out_of_bounds" // coordinate outside WGS84 range
)

// Issue is one itemized validation failure, addressable down to the
// offending point so requesters can correct their geometry.
type Issue struct {
	Kind         IssueKind `json:"kind"`
	PolygonIndex int       `json:"polygonIndex"`
	RingIndex    int       `json:"ringIndex"`
	PointIndex   int       `json:"pointIndex"` // -1 when the issue is ring-level
	Detail       string    `json:"detail"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s at polygon %d ring %d point %d: %s",
		i.Kind, i.PolygonIndex, i.RingIndex, i.PointIndex, i.Detail)
}

// closureEpsilon tolerates float drift between a ring's first and last
// positions when checking closure.
const closureEpsilon = 1e-9

// Validate checks every ring and coordinate of the corridor and returns
// all violations found, or nil when the geometry is usable. An empty
// result is the gate every fetch waits behind.
//
// The WGS84 bounds check doubles as the projected-CRS heuristic:
// corridor geometry submitted in projected meters produces coordinate
// magnitudes far outside [-180,180]x[-90,90] and is rejected here
// before it can poison every per-square-mile computation downstream.
func (c *Corridor) Validate() []Issue {
	var issues []Issue

	for pi, poly := range c.rings() {
		for ri, ring := range poly {
			if len(ring) < 4 {
				issues = append(issues, Issue{
					Kind:         IssueShortRing,
					PolygonIndex: pi,
					RingIndex:    ri,
					PointIndex:   -1,
					Detail:       fmt.Sprintf("ring has %d positions, need at least 4", len(ring)),
				})
			} else {
				first, last := ring[0], ring[len(ring)-1]
				if math.Abs(first[0]-last[0]) > closureEpsilon || math.Abs(first[1]-last[1]) > closureEpsilon {
					issues = append(issues, Issue{
						Kind:         IssueOpenRing,
						PolygonIndex: pi,
						RingIndex:    ri,
						PointIndex:   -1,
						Detail:       "ring is not closed (first and last positions differ)",
					})
				}
			}

			for ci, coord := range ring {
				if len(coord) < 2 {
					issues = append(issues, Issue{
						Kind:         IssueOutOfBounds,
						PolygonIndex: pi,
						RingIndex:    ri,
						PointIndex:   ci,
						Detail:       "position is missing a coordinate pair",
					})
					continue
				}
				lon, lat := coord[0], coord[1]
				if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
					issues = append(issues, Issue{
						Kind:         IssueOutOfBounds,
						PolygonIndex: pi,
						RingIndex:    ri,
						PointIndex:   ci,
						Detail: fmt.Sprintf("coordinate (%g, %g) outside WGS84 bounds; is the geometry in a projected CRS?",
							lon, lat),
					})
				}
			}
		}
	}

	return issues
}
