package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqdesk/aqdesk/internal/airquality"
	"github.com/aqdesk/aqdesk/internal/api"
	"github.com/aqdesk/aqdesk/internal/api/middleware"
	"github.com/aqdesk/aqdesk/internal/auth"
	"github.com/aqdesk/aqdesk/internal/worker"
)

type stubService struct{}

func (stubService) Stations(context.Context) (airquality.Result[[]airquality.Station], error) {
	return airquality.Result[[]airquality.Station]{
		Value: []airquality.Station{
			{ID: 14, StationName: "Działoszyn", GegrLat: 50.972167, GegrLon: 14.941319, City: airquality.City{ID: 192, Name: "Działoszyn"}},
		},
		Source: airquality.SourceNetwork,
	}, nil
}

func (stubService) Sensors(_ context.Context, id int) (airquality.Result[[]airquality.Sensor], error) {
	return airquality.Result[[]airquality.Sensor]{
		Value:  []airquality.Sensor{{ID: 92, StationID: id}},
		Source: airquality.SourceNetwork,
	}, nil
}

func (stubService) SensorData(context.Context, int) (airquality.Result[airquality.SensorData], error) {
	return airquality.Result[airquality.SensorData]{Value: airquality.SensorData{Key: "PM10"}, Source: airquality.SourceNetwork}, nil
}

func (stubService) AirQualityIndex(_ context.Context, id int) (airquality.Result[airquality.AirQualityIndex], error) {
	index := airquality.EmptyIndex()
	index.StationID = id
	return airquality.Result[airquality.AirQualityIndex]{Value: index, Source: airquality.SourceNetwork}, nil
}

func (stubService) Analyze(_ context.Context, id int, _ *airquality.TimeRange) (airquality.Result[airquality.SeriesAnalysis], error) {
	return airquality.Result[airquality.SeriesAnalysis]{
		Value:  airquality.SeriesAnalysis{SensorID: id, AnalysisResult: airquality.AnalysisResult{Trend: airquality.TrendUnknown}},
		Source: airquality.SourceNetwork,
	}, nil
}

type stubRefresher struct{}

func (stubRefresher) Run(context.Context) worker.RefreshResult {
	return worker.RefreshResult{Stations: 1, Successful: 1}
}

func (stubRefresher) RunStations(_ context.Context, ids []int) worker.RefreshResult {
	return worker.RefreshResult{Stations: len(ids), Successful: len(ids)}
}

func testTokens() *auth.TokenService {
	return auth.NewTokenService(auth.TokenConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "aqdesk",
		Audience:   "aqdesk-admin",
	})
}

func newTestRouter(tokens *auth.TokenService) http.Handler {
	return api.NewRouter(api.RouterConfig{
		Version:   "test",
		Logger:    zerolog.Nop(),
		Service:   stubService{},
		Refresher: stubRefresher{},
		Tokens:    tokens,
	})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_PublicRoutes(t *testing.T) {
	router := newTestRouter(nil)

	for _, target := range []string{
		"/v1/ops/health",
		"/v1/stations",
		"/v1/stations?city=dzia",
		"/v1/stations/nearby?lat=51&lon=15",
		"/v1/stations/14/sensors",
		"/v1/stations/14/index",
		"/v1/sensors/92/data",
		"/v1/sensors/92/analysis",
	} {
		t.Run(target, func(t *testing.T) {
			rec := serve(router, httptest.NewRequest(http.MethodGet, target, nil))

			assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestRouter_NearbyIsNotAStationID(t *testing.T) {
	rec := serve(newTestRouter(nil), httptest.NewRequest(http.MethodGet, "/v1/stations/nearby?lat=51&lon=15", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"distanceKm"`)
}

func TestRouter_PropagatesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/stations/abc/sensors", nil)
	req.Header.Set(middleware.RequestIDHeader, "req_client")

	rec := serve(newTestRouter(nil), req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "req_client", rec.Header().Get(middleware.RequestIDHeader))
	assert.Contains(t, rec.Body.String(), `"traceId":"req_client"`)
}

func TestRouter_UnknownRoute(t *testing.T) {
	rec := serve(newTestRouter(nil), httptest.NewRequest(http.MethodGet, "/v1/commutes", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_AdminRefresh(t *testing.T) {
	tokens := testTokens()
	router := newTestRouter(tokens)

	adminToken, _, err := tokens.GenerateToken("ops", auth.AdminScope, 0)
	require.NoError(t, err)
	readToken, _, err := tokens.GenerateToken("viewer", "read", 0)
	require.NoError(t, err)

	tests := []struct {
		name        string
		token       string
		contentType string
		body        string
		wantStatus  int
	}{
		{"no token", "", "application/json", `{}`, http.StatusUnauthorized},
		{"wrong scope", readToken, "application/json", `{}`, http.StatusForbidden},
		{"wrong content type", adminToken, "text/plain", `{}`, http.StatusUnsupportedMediaType},
		{"configured stations", adminToken, "application/json", `{}`, http.StatusOK},
		{"explicit stations", adminToken, "application/json; charset=utf-8", `{"stationIds":[14,16]}`, http.StatusOK},
		{"invalid body", adminToken, "application/json", `{"stationIds":[-1]}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/admin/refresh", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}

			rec := serve(router, req)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestRouter_AdminDisabledWithoutTokens(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/refresh", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer anything")

	rec := serve(newTestRouter(nil), req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_AdminMethodNotAllowed(t *testing.T) {
	tokens := testTokens()
	token, _, err := tokens.GenerateToken("ops", auth.AdminScope, 0)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := serve(newTestRouter(tokens), req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
