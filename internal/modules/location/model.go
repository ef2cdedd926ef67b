// README: Last-known location record and the report that updates it.
package location

import (
	"strings"
	"time"
)

// Record is the current position of a unit. One record exists per UnitID.
type Record struct {
	UnitID    string    `json:"unit_id" bson:"_id"`
	Latitude  float64   `json:"latitud" bson:"latitud"`
	Longitude float64   `json:"longitud" bson:"longitud"`
	Route     *string   `json:"ruta" bson:"ruta,omitempty"`
	UpdatedAt time.Time `json:"actualizado" bson:"actualizado"`
}

// Report is a position report for a unit. Lat and Lon are pointers so a
// missing coordinate can be told apart from zero.
type Report struct {
	UnitID string
	Lat    *float64
	Lon    *float64
	Route  *string
}

// Validate checks the required fields and normalizes Route: an empty route
// means "leave the stored route alone".
func (r *Report) Validate() error {
	if r.UnitID == "" || r.Lat == nil || r.Lon == nil {
		return ErrBadRequest
	}
	if r.Route != nil && strings.TrimSpace(*r.Route) == "" {
		r.Route = nil
	}
	return nil
}

// NearbyUnit is a record returned by a radius search, with its distance from
// the search origin.
type NearbyUnit struct {
	Record
	DistanceKm float64 `json:"distancia_km"`
}
