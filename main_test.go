package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ztkent/lux-engine/als"
	"github.com/ztkent/lux-engine/internal/config"
	slm "github.com/ztkent/lux-engine/internal/sunlightmeter"
	"github.com/ztkent/lux-engine/tsl2591"
)

func newRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(handleServerPanic)
	defineRoutes(r, &slm.SLMeter{})
	return r
}

func TestServiceID(t *testing.T) {
	rr := httptest.NewRecorder()
	newRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/id", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"service_name":"Sunlight Meter"}`, rr.Body.String())
}

func TestControlsInNetworkOnly(t *testing.T) {
	r := newRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/start", nil)
	req.RemoteAddr = "8.8.8.8:1234"
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// in network, but no sensor attached
	req = httptest.NewRequest(http.MethodGet, "/api/v1/start", nil)
	req.RemoteAddr = "192.168.1.20:1234"
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatusWithoutSensor(t *testing.T) {
	rr := httptest.NewRecorder()
	newRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"connected":false,"enabled":false,"dynamicResolution":false,"resolutionIndex":0,"resolution":0,"maxRange":0,"calibrating":false,"thresholdsValid":false,"hwThreshLo":0,"hwThreshHi":0,"lastLux":0,"pollDelayMs":0}`, rr.Body.String())
}

func TestPanicRecovered(t *testing.T) {
	r := chi.NewRouter()
	r.Use(handleServerPanic)
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) { panic("boom") })

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "boom")
}

func TestSensorOptions(t *testing.T) {
	s := config.SensorConfig{
		Name:          "light",
		Gain:          "high",
		IntegrationMs: 200,
		Properties: map[string]uint32{
			"light_dynamic_resolution_index_limit_low":  2,
			"light_dynamic_resolution_index_limit_high": 20,
		},
	}
	opts, err := sensorOptions(s, nil)
	require.NoError(t, err)
	assert.Equal(t, tsl2591.TSL2591_GAIN_HIGH, opts.Gain)
	assert.Equal(t, tsl2591.TSL2591_INTEGRATIONTIME_200MS, opts.Timing)
	require.NotNil(t, opts.Limits)
	assert.Equal(t, als.IndexLimits{Lo: 2, Hi: 20}, *opts.Limits)

	// broken limits start the sensor in static mode
	s.Properties["light_dynamic_resolution_index_limit_high"] = 1
	cfg := &config.Config{Sensor: s}
	require.NoError(t, config.Validate(cfg))
	opts, err = sensorOptions(s, nil)
	require.NoError(t, err)
	assert.Nil(t, opts.Limits)

	delete(s.Properties, "light_dynamic_resolution_index_limit_high")
	opts, err = sensorOptions(s, nil)
	require.NoError(t, err)
	assert.Nil(t, opts.Limits)

	s.Gain = "ultra"
	_, err = sensorOptions(s, nil)
	assert.Error(t, err)
}
