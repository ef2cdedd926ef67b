// README: Location handlers: report a position, read last-known positions.
package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ubicaciones/internal/modules/location"
)

type LocationHandler struct {
	location *location.Service
	log      logrus.FieldLogger
}

func NewLocationHandler(svc *location.Service, log logrus.FieldLogger) *LocationHandler {
	return &LocationHandler{location: svc, log: log}
}

// ReportRequest is the body of POST /ubicacion. unidad_id is accepted from
// older clients when unit_id is absent.
type ReportRequest struct {
	UnitID   string   `json:"unit_id"`
	UnidadID string   `json:"unidad_id"`
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	Route    *string  `json:"route"`
}

func (r ReportRequest) ToReport() location.Report {
	unitID := r.UnitID
	if unitID == "" {
		unitID = r.UnidadID
	}
	return location.Report{UnitID: unitID, Lat: r.Lat, Lon: r.Lon, Route: r.Route}
}

// Report handles POST /ubicacion.
func (h *LocationHandler) Report(c *gin.Context) {
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeText(c, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	if err := h.location.Report(c.Request.Context(), req.ToReport()); err != nil {
		writeLocationError(c, h.log, err, msgUpdateFailed)
		return
	}
	writeText(c, http.StatusOK, msgUpdated)
}

// Get handles GET /ubicacion/:unit_id.
func (h *LocationHandler) Get(c *gin.Context) {
	rec, err := h.location.Get(c.Request.Context(), c.Param("unit_id"))
	if err != nil {
		writeLocationError(c, h.log, err, msgQueryFailed)
		return
	}
	writeJSON(c, http.StatusOK, rec)
}

// List handles GET /ubicaciones.
func (h *LocationHandler) List(c *gin.Context) {
	recs, err := h.location.List(c.Request.Context())
	if err != nil {
		writeLocationError(c, h.log, err, msgQueryFailed)
		return
	}
	writeJSON(c, http.StatusOK, recs)
}

// Nearby handles GET /ubicaciones/cercanas?lat=&lon=&radio_km=.
func (h *LocationHandler) Nearby(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lon, errLon := strconv.ParseFloat(c.Query("lon"), 64)
	radius, errRadius := strconv.ParseFloat(c.Query("radio_km"), 64)
	if errLat != nil || errLon != nil || errRadius != nil {
		writeJSON(c, http.StatusBadRequest, errorResponse{Error: msgBadNearby})
		return
	}

	units, err := h.location.Nearby(c.Request.Context(), lat, lon, radius)
	switch {
	case err == nil:
		writeJSON(c, http.StatusOK, units)
	case errors.Is(err, location.ErrBadRequest):
		writeJSON(c, http.StatusBadRequest, errorResponse{Error: msgBadNearby})
	case errors.Is(err, location.ErrGeoUnavailable):
		writeJSON(c, http.StatusServiceUnavailable, errorResponse{Error: msgGeoUnavailable})
	default:
		h.log.WithError(err).Error("nearby search failed")
		writeJSON(c, http.StatusInternalServerError, errorResponse{Error: msgQueryFailed})
	}
}

// Health handles GET /.
func Health(c *gin.Context) {
	writeText(c, http.StatusOK, msgHealthy)
}
