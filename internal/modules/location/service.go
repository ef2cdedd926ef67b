// README: Location service applies position reports and serves last-known positions.
package location

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrBadRequest     = errors.New("missing unit_id, lat or lon")
	ErrNotFound       = errors.New("unit not found")
	ErrStore          = errors.New("location store failure")
	ErrGeoUnavailable = errors.New("geo index not configured")
)

const defaultStoreTimeout = 5 * time.Second

// Repository is the durable current-state store. Upsert must be a single
// atomic insert-or-merge: lat/lon always overwritten, route kept when nil,
// updated_at assigned by the store.
type Repository interface {
	Upsert(ctx context.Context, unitID string, lat, lon float64, route *string) error
	Get(ctx context.Context, unitID string) (*Record, error)
	List(ctx context.Context) ([]Record, error)
}

// GeoIndex is a secondary index of last positions used for radius search.
type GeoIndex interface {
	Add(ctx context.Context, unitID string, lat, lon float64) error
	Search(ctx context.Context, lat, lon, radiusKm float64) ([]string, error)
}

type Option func(*Service)

func WithGeoIndex(g GeoIndex) Option {
	return func(s *Service) { s.geo = g }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.log = l }
}

type Service struct {
	store   Repository
	geo     GeoIndex
	timeout time.Duration
	log     logrus.FieldLogger
}

func NewService(store Repository, opts ...Option) *Service {
	s := &Service{
		store:   store,
		timeout: defaultStoreTimeout,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Report validates r and applies it to the store. Nothing is written when
// validation fails.
func (s *Service) Report(ctx context.Context, r Report) error {
	if err := r.Validate(); err != nil {
		return err
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.Upsert(sctx, r.UnitID, *r.Lat, *r.Lon, r.Route); err != nil {
		return storeError(err)
	}

	// The geo index trails the committed record and is written even if the
	// caller has gone away; losing an entry only hides the unit from radius
	// search until its next report.
	if s.geo != nil {
		gctx, gcancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer gcancel()
		if err := s.geo.Add(gctx, r.UnitID, *r.Lat, *r.Lon); err != nil {
			s.log.WithError(err).WithField("unit_id", r.UnitID).Warn("geo index update failed")
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, unitID string) (*Record, error) {
	if unitID == "" {
		return nil, ErrBadRequest
	}
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rec, err := s.store.Get(sctx, unitID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeError(err)
	}
	return rec, nil
}

func (s *Service) List(ctx context.Context) ([]Record, error) {
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	recs, err := s.store.List(sctx)
	if err != nil {
		return nil, storeError(err)
	}
	return recs, nil
}

// Nearby returns units whose last position is within radiusKm of (lat, lon),
// closest first. Candidates come from the geo index; the returned records are
// read from the store.
func (s *Service) Nearby(ctx context.Context, lat, lon, radiusKm float64) ([]NearbyUnit, error) {
	if !validCoordinates(lat, lon) || !(radiusKm > 0) || math.IsInf(radiusKm, 0) {
		return nil, ErrBadRequest
	}
	if s.geo == nil {
		return nil, ErrGeoUnavailable
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ids, err := s.geo.Search(sctx, lat, lon, radiusKm)
	if err != nil {
		return nil, storeError(err)
	}

	result := make([]NearbyUnit, 0, len(ids))
	for _, id := range ids {
		rec, err := s.store.Get(sctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, storeError(err)
		}
		result = append(result, NearbyUnit{
			Record:     *rec,
			DistanceKm: distanceKm(lat, lon, rec.Latitude, rec.Longitude),
		})
	}

	sortByDistance(result, func(u NearbyUnit) float64 { return u.DistanceKm })
	return result, nil
}

// validCoordinates is false for NaN as well as out-of-range values.
func validCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func storeError(err error) error {
	return fmt.Errorf("%w: %w", ErrStore, err)
}
