package location

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Upsert(ctx context.Context, unitID string, lat, lon float64, route *string) error {
	args := m.Called(ctx, unitID, lat, lon, route)
	return args.Error(0)
}

func (m *MockRepository) Get(ctx context.Context, unitID string) (*Record, error) {
	args := m.Called(ctx, unitID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Record), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context) ([]Record, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Record), args.Error(1)
}

type MockGeoIndex struct {
	mock.Mock
}

func (m *MockGeoIndex) Add(ctx context.Context, unitID string, lat, lon float64) error {
	args := m.Called(ctx, unitID, lat, lon)
	return args.Error(0)
}

func (m *MockGeoIndex) Search(ctx context.Context, lat, lon, radiusKm float64) ([]string, error) {
	args := m.Called(ctx, lat, lon, radiusKm)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func f64(v float64) *float64 { return &v }
func str(v string) *string   { return &v }

func TestReport_ValidationGate(t *testing.T) {
	cases := []struct {
		name   string
		report Report
	}{
		{"missing unit_id", Report{Lat: f64(10.5), Lon: f64(-20.1)}},
		{"missing lat", Report{UnitID: "bus1", Lon: f64(-20.1)}},
		{"missing lon", Report{UnitID: "bus1", Lat: f64(10.5)}},
		{"missing everything", Report{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(MockRepository)
			svc := NewService(repo)

			err := svc.Report(context.Background(), tc.report)

			assert.ErrorIs(t, err, ErrBadRequest)
			repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestReport_ZeroCoordinatesAccepted(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Upsert", mock.Anything, "bus0", 0.0, 0.0, (*string)(nil)).Return(nil)
	svc := NewService(repo)

	err := svc.Report(context.Background(), Report{UnitID: "bus0", Lat: f64(0), Lon: f64(0)})

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestReport_EmptyRouteMeansNoChange(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Upsert", mock.Anything, "bus1", 10.5, -20.1, (*string)(nil)).Return(nil)
	svc := NewService(repo)

	err := svc.Report(context.Background(), Report{UnitID: "bus1", Lat: f64(10.5), Lon: f64(-20.1), Route: str("  ")})

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestReport_RoutePassedThrough(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Upsert", mock.Anything, "bus1", 11.0, -20.2, mock.MatchedBy(func(r *string) bool {
		return r != nil && *r == "Line5"
	})).Return(nil)
	svc := NewService(repo)

	err := svc.Report(context.Background(), Report{UnitID: "bus1", Lat: f64(11.0), Lon: f64(-20.2), Route: str("Line5")})

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestReport_StoreFailure(t *testing.T) {
	cause := errors.New("connection refused")
	repo := new(MockRepository)
	repo.On("Upsert", mock.Anything, "bus1", 10.5, -20.1, (*string)(nil)).Return(cause)
	geo := new(MockGeoIndex)
	svc := NewService(repo, WithGeoIndex(geo))

	err := svc.Report(context.Background(), Report{UnitID: "bus1", Lat: f64(10.5), Lon: f64(-20.1)})

	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, cause)
	geo.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReport_StoreTimeoutIsStoreFailure(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Upsert", mock.Anything, "bus1", 10.5, -20.1, (*string)(nil)).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(context.DeadlineExceeded)
	svc := NewService(repo, WithTimeout(10*time.Millisecond))

	err := svc.Report(context.Background(), Report{UnitID: "bus1", Lat: f64(10.5), Lon: f64(-20.1)})

	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReport_GeoFailureIsLoggedNotReturned(t *testing.T) {
	logger, hook := test.NewNullLogger()
	repo := new(MockRepository)
	repo.On("Upsert", mock.Anything, "bus1", 10.5, -20.1, (*string)(nil)).Return(nil)
	geo := new(MockGeoIndex)
	geo.On("Add", mock.Anything, "bus1", 10.5, -20.1).Return(errors.New("redis down"))
	svc := NewService(repo, WithGeoIndex(geo), WithLogger(logger))

	err := svc.Report(context.Background(), Report{UnitID: "bus1", Lat: f64(10.5), Lon: f64(-20.1)})

	require.NoError(t, err)
	geo.AssertExpectations(t)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "bus1", hook.LastEntry().Data["unit_id"])
}

func TestReport_GeoUpdateSurvivesCallerCancel(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Upsert", mock.Anything, "bus1", 10.5, -20.1, (*string)(nil)).Return(nil)
	geo := new(MockGeoIndex)
	geo.On("Add", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), "bus1", 10.5, -20.1).Return(nil)
	svc := NewService(repo, WithGeoIndex(geo))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := svc.Report(ctx, Report{UnitID: "bus1", Lat: f64(10.5), Lon: f64(-20.1)})

	require.NoError(t, err)
	geo.AssertExpectations(t)
}

func TestGet(t *testing.T) {
	now := time.Now().UTC()
	want := &Record{UnitID: "bus1", Latitude: 10.5, Longitude: -20.1, UpdatedAt: now}

	repo := new(MockRepository)
	repo.On("Get", mock.Anything, "bus1").Return(want, nil)
	repo.On("Get", mock.Anything, "ghost").Return(nil, ErrNotFound)
	repo.On("Get", mock.Anything, "broken").Return(nil, errors.New("timeout"))
	svc := NewService(repo)

	got, err := svc.Get(context.Background(), "bus1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = svc.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrStore)

	_, err = svc.Get(context.Background(), "broken")
	assert.ErrorIs(t, err, ErrStore)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestList_StoreFailure(t *testing.T) {
	repo := new(MockRepository)
	repo.On("List", mock.Anything).Return(nil, errors.New("boom"))
	svc := NewService(repo)

	_, err := svc.List(context.Background())
	assert.ErrorIs(t, err, ErrStore)
}

func TestNearby_Unavailable(t *testing.T) {
	svc := NewService(new(MockRepository))

	_, err := svc.Nearby(context.Background(), 19.43, -99.13, 2)
	assert.ErrorIs(t, err, ErrGeoUnavailable)
}

func TestNearby_InvalidParams(t *testing.T) {
	svc := NewService(new(MockRepository), WithGeoIndex(new(MockGeoIndex)))

	_, err := svc.Nearby(context.Background(), 19.43, -99.13, 0)
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = svc.Nearby(context.Background(), 91, -99.13, 1)
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = svc.Nearby(context.Background(), 19.43, 181, 1)
	assert.ErrorIs(t, err, ErrBadRequest)

	nan, inf := math.NaN(), math.Inf(1)
	for _, args := range [][3]float64{
		{nan, -99.13, 1},
		{19.43, nan, 1},
		{19.43, -99.13, nan},
		{19.43, -99.13, inf},
		{inf, -99.13, 1},
		{19.43, math.Inf(-1), 1},
	} {
		_, err = svc.Nearby(context.Background(), args[0], args[1], args[2])
		assert.ErrorIs(t, err, ErrBadRequest, "%v", args)
	}
}

func TestNearby_SortedAndSkipsStaleEntries(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Get", mock.Anything, "far").Return(&Record{UnitID: "far", Latitude: 19.4204, Longitude: -99.1819}, nil)
	repo.On("Get", mock.Anything, "near").Return(&Record{UnitID: "near", Latitude: 19.4330, Longitude: -99.1340}, nil)
	repo.On("Get", mock.Anything, "gone").Return(nil, ErrNotFound)
	geo := new(MockGeoIndex)
	geo.On("Search", mock.Anything, 19.4326, -99.1332, 10.0).Return([]string{"far", "gone", "near"}, nil)
	svc := NewService(repo, WithGeoIndex(geo))

	units, err := svc.Nearby(context.Background(), 19.4326, -99.1332, 10)

	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "near", units[0].UnitID)
	assert.Equal(t, "far", units[1].UnitID)
	assert.Less(t, units[0].DistanceKm, units[1].DistanceKm)
}

func TestNearby_SearchFailure(t *testing.T) {
	geo := new(MockGeoIndex)
	geo.On("Search", mock.Anything, 1.0, 2.0, 3.0).Return(nil, errors.New("redis down"))
	svc := NewService(new(MockRepository), WithGeoIndex(geo))

	_, err := svc.Nearby(context.Background(), 1, 2, 3)
	assert.ErrorIs(t, err, ErrStore)
}
