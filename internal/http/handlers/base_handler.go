// README: Base handler utilities (response helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ubicaciones/internal/modules/location"
)

const (
	msgUpdated        = "Coordenadas actualizadas"
	msgMissingFields  = "Faltan datos: unit_id, lat o lon"
	msgInvalidJSON    = "JSON inválido"
	msgNotFound       = "Unidad no encontrada"
	msgUpdateFailed   = "Error al actualizar"
	msgQueryFailed    = "Error al consultar"
	msgBadNearby      = "Parámetros inválidos: lat, lon y radio_km"
	msgGeoUnavailable = "Búsqueda por cercanía no disponible"
	msgHealthy        = "Servidor de ubicaciones activo"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

// writeText answers with plain text, the format clients of the report and
// lookup endpoints expect.
func writeText(c *gin.Context, status int, msg string) {
	c.String(status, msg)
}

// writeLocationError maps service errors to responses. Store failures are
// logged with their cause and answered with fallback only.
func writeLocationError(c *gin.Context, log logrus.FieldLogger, err error, fallback string) {
	switch {
	case errors.Is(err, location.ErrBadRequest):
		writeText(c, http.StatusBadRequest, msgMissingFields)
	case errors.Is(err, location.ErrNotFound):
		writeText(c, http.StatusNotFound, msgNotFound)
	default:
		log.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).Error("location store failure")
		writeText(c, http.StatusInternalServerError, fallback)
	}
}
