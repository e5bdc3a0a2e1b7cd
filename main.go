package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ztkent/lux-engine/als"
	"github.com/ztkent/lux-engine/internal/config"
	slm "github.com/ztkent/lux-engine/internal/sunlightmeter"
	"github.com/ztkent/lux-engine/internal/tools"
	"github.com/ztkent/lux-engine/tsl2591"
)

/*
	Entry point for the Sunlight Meter.
	It should be running at startup, on a Raspberry Pi, with the TSL2591 sensor connected.
	The sensor is sampled at the rate the lux engine asks for, reports are recorded in sqlite.
*/

func main() {
	pid := os.Getpid()
	log.Println("SunlightMeter [" + fmt.Sprintf("%d", pid) + "]")

	logFile, err := tools.SetupLogFile("slm.log")
	if err != nil {
		log.Fatalf("Failed to setup the log file: %v", err)
	}
	defer logFile.Close()

	configPath := config.DEFAULT_PATH
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	config.Normalize(cfg)

	location, err := time.LoadLocation(cfg.Server.Timezone)
	if err != nil {
		log.Fatalf("Failed to load timezone: %v", err)
	}
	meter := &slm.SLMeter{
		LuxResultsChan: make(chan slm.LuxResults, 64),
		DBPath:         cfg.Database.Path,
		Clock:          clock.New(),
		Location:       location,
		DelayUS:        cfg.Sensor.DelayUS,
		MaxJobDuration: time.Duration(cfg.Job.MaxDurationMinutes) * time.Minute,
		Pid:            pid,
	}

	// connect to the lux sensor
	meter.TSL2591, err = connectSensor(cfg.Sensor, meter.Report)
	if err != nil {
		log.Fatalf("Failed to connect to the TSL2591 sensor: %v", err)
	}
	defer meter.TSL2591.Close()

	// connect to the sqlite database
	meter.ResultsDB, err = tools.ConnectSqlite(cfg.Database.Path, cfg.Database.Retries)
	if err != nil {
		// Unlike connecting to the sensor, this should always work.
		log.Fatalf("Failed to connect to the sqlite database: %v", err)
	}
	defer meter.ResultsDB.Close()

	// Listen for any result messages from our jobs, record them in sqlite
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go meter.MonitorAndRecordResults(ctx)

	// Initialize router
	r := chi.NewRouter()
	// Log requests and recover from panics
	r.Use(middleware.Logger)
	r.Use(handleServerPanic)
	defineRoutes(r, meter)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}
	if cfg.Server.SSL {
		// Generate a self-signed certificate if one doesn't exist
		cert, err := tools.EnsureCertificate(cfg.Server.CertPath, cfg.Server.KeyPath)
		if err != nil {
			log.Fatalf("Failed to load the certificate: %v", err)
		}
		server.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}

		log.Printf("Starting HTTPS server on port %d", cfg.Server.Port)
		err = server.ListenAndServeTLS("", "")
		if err != nil {
			log.Fatalf("Failed to start HTTPS server: %v", err)
		}
	} else {
		log.Printf("Starting HTTP server on port %d", cfg.Server.Port)
		err = server.ListenAndServe()
		if err != nil {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}
}

// Open the sensor
func connectSensor(s config.SensorConfig, handler als.ReportFunc) (*tsl2591.TSL2591, error) {
	opts, err := sensorOptions(s, handler)
	if err != nil {
		return nil, err
	}
	return tsl2591.NewTSL2591(s.Bus, s.ALSConfig(), opts)
}

// Dynamic resolution is used when the device properties carry a valid index
// range, otherwise the configured gain/integration time.
func sensorOptions(s config.SensorConfig, handler als.ReportFunc) (tsl2591.Options, error) {
	gain, err := tsl2591.ParseGain(s.Gain)
	if err != nil {
		return tsl2591.Options{}, err
	}
	timing, err := tsl2591.ParseIntegrationTime(s.IntegrationMs)
	if err != nil {
		return tsl2591.Options{}, err
	}
	opts := tsl2591.Options{
		Gain:    gain,
		Timing:  timing,
		Handler: handler,
	}
	if limits, err := s.IndexLimits(); err != nil {
		log.Printf("Dynamic resolution disabled: %v", err)
	} else {
		opts.Limits = &limits
	}
	return opts, nil
}

func defineRoutes(r *chi.Mux, meter *slm.SLMeter) {
	r.Get("/", meter.ServeResultsGraph())

	// Sunlight Meter API, these serve a JSON response
	r.Route("/api/v1", func(r chi.Router) {
		// Sensor controls are only available in network
		r.Group(func(r chi.Router) {
			r.Use(tools.CheckInNetwork)
			r.Get("/start", meter.Start())
			r.Get("/stop", meter.Stop())
		})
		r.Get("/status", meter.ServeSensorStatus())
		r.Get("/current-conditions", meter.CurrentConditions())
		r.Get("/results", meter.ServeResults())
		r.Get("/export", meter.ServeResultsDB())
		r.Get("/graph", meter.ServeResultsGraph())
		r.Post("/graph", meter.ServeResultsGraph())
	})

	// Route for service identification
	r.Get("/id", func(w http.ResponseWriter, r *http.Request) {
		response := struct {
			ServiceName string `json:"service_name"`
		}{
			ServiceName: "Sunlight Meter",
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	})
}

func handleServerPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slm.ServeResponse(w, r, (fmt.Sprintf("%v", err)), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
