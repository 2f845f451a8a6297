package analysis

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/openplan/corridor-cli/internal/geometry"
)

// feature is one GeoJSON feature in the result collection.
type feature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

// buildResultGeoJSON packages the corridor and its centroid as a
// feature collection tagged with the run ID, the map layer the UI
// renders for a persisted run.
func buildResultGeoJSON(corridor *geometry.Corridor, runID string) (json.RawMessage, error) {
	corridorGeom, err := corridor.MarshalGeoJSON()
	if err != nil {
		return nil, err
	}

	lon, lat := corridor.Centroid()
	centroidGeom, err := json.Marshal(map[string]any{
		"type":        "Point",
		"coordinates": []float64{lon, lat},
	})
	if err != nil {
		return nil, eris.Wrap(err, "analysis: marshal centroid")
	}

	fc := featureCollection{
		Type: "FeatureCollection",
		Features: []feature{
			{
				Type:       "Feature",
				Geometry:   corridorGeom,
				Properties: map[string]any{"kind": "analysis_corridor", "runId": runID},
			},
			{
				Type:       "Feature",
				Geometry:   centroidGeom,
				Properties: map[string]any{"kind": "corridor_centroid"},
			},
		},
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: marshal feature collection")
	}
	return data, nil
}
