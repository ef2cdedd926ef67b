// README: API gateway; registers HTTP routes and delegates to the location service.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ubicaciones/internal/http/handlers"
	"ubicaciones/internal/http/middleware"
	"ubicaciones/internal/modules/location"
)

type ServerDeps struct {
	Location    *location.Service
	Logger      logrus.FieldLogger
	CORSOrigins []string
}

type Server struct {
	location    *location.Service
	log         logrus.FieldLogger
	corsOrigins []string
}

func NewServer(deps ServerDeps) *Server {
	log := deps.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		location:    deps.Location,
		log:         log,
		corsOrigins: deps.CORSOrigins,
	}
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(middleware.Recovery(s.log), middleware.Logging(s.log), middleware.CORS(s.corsOrigins))

	locationHandler := handlers.NewLocationHandler(s.location, s.log)
	r.GET("/", handlers.Health)
	r.POST("/ubicacion", locationHandler.Report)
	r.GET("/ubicacion/:unit_id", locationHandler.Get)
	r.GET("/ubicaciones", locationHandler.List)
	r.GET("/ubicaciones/cercanas", locationHandler.Nearby)
	return r
}
