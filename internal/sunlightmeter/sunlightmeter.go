package sunlightmeter

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/ztkent/lux-engine/als"
	"github.com/ztkent/lux-engine/tsl2591"
)

type SLMeter struct {
	*tsl2591.TSL2591
	LuxResultsChan chan LuxResults
	ResultsDB      *sql.DB
	DBPath         string
	Clock          clock.Clock
	Location       *time.Location
	DelayUS        uint32 // requested sampling interval
	MaxJobDuration time.Duration
	Pid            int
	jobMu          sync.Mutex // serializes Start/Stop
	job            *job
	jobID          string // guarded by the sensor lock, read by Report
}

// A running sampling job, done is closed once the sensor is disabled
type job struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

func (j *job) running() bool {
	if j == nil {
		return false
	}
	select {
	case <-j.done:
		return false
	default:
		return true
	}
}

type LuxResults struct {
	Lux             float64
	Infrared        float64
	Visible         float64
	FullSpectrum    float64
	Channel0        uint16
	Channel1        uint16
	ResolutionIndex int
	RecordedAt      time.Time
	JobID           string
}

type Conditions struct {
	JobID                 string  `json:"jobID"`
	Lux                   float64 `json:"lux"`
	FullSpectrum          float64 `json:"fullSpectrum"`
	Visible               float64 `json:"visible"`
	Infrared              float64 `json:"infrared"`
	DateRange             string  `json:"dateRange"`
	RecordedHoursInRange  float64 `json:"recordedHoursInRange"`
	FullSunlightInRange   float64 `json:"fullSunlightInRange"`
	LightConditionInRange string  `json:"lightConditionInRange"`
	AverageLuxInRange     float64 `json:"averageLuxInRange"`
}

// Engine state of the sensor, served by the status endpoint
type SensorStatus struct {
	Connected       bool             `json:"connected"`
	Enabled         bool             `json:"enabled"`
	JobID           string           `json:"jobID,omitempty"`
	Gain            string           `json:"gain,omitempty"`
	IntegrationTime string           `json:"integrationTime,omitempty"`
	Dynamic         bool             `json:"dynamicResolution"`
	Modes           int              `json:"modes,omitempty"`
	IndexLimits     *als.IndexLimits `json:"indexLimits,omitempty"`
	ResolutionIndex int              `json:"resolutionIndex"`
	Resolution      float64          `json:"resolution"`
	MaxRange        float64          `json:"maxRange"`
	Calibrating     bool             `json:"calibrating"`
	ThresholdsValid bool             `json:"thresholdsValid"`
	HWThreshLo      uint32           `json:"hwThreshLo"`
	HWThreshHi      uint32           `json:"hwThreshHi"`
	LastLux         float64          `json:"lastLux"`
	PollDelayMs     int64            `json:"pollDelayMs"`
}

const (
	MAX_JOB_DURATION = 8 * time.Hour
	MIN_POLL_DELAY   = 100 * time.Millisecond
	ERROR_BACKOFF    = 5 * time.Second
	DB_PATH          = "sunlightmeter.db"
)

var ErrNotConnected = errors.New("the sensor is not connected")

// Start the sensor, and collect data until stopped or the job times out
func (m *SLMeter) Start() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Println("It's going to be a bright day!")
		if m.TSL2591 == nil {
			ServeResponse(w, r, ErrNotConnected.Error(), http.StatusBadRequest)
			return
		}
		m.jobMu.Lock()
		defer m.jobMu.Unlock()
		if m.job.running() {
			ServeResponse(w, r, "The sensor is already started", http.StatusBadRequest)
			return
		}

		maxDuration := m.MaxJobDuration
		if maxDuration <= 0 {
			maxDuration = MAX_JOB_DURATION
		}
		jobID := uuid.New().String()
		m.Lock()
		m.jobID = jobID
		m.Unlock()
		if err := m.Enable(m.DelayUS); err != nil {
			ServeResponse(w, r, fmt.Sprintf("The sensor failed to start: %s", err), http.StatusInternalServerError)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), maxDuration)
		j := &job{id: jobID, cancel: cancel, done: make(chan struct{})}
		m.job = j
		go m.runJob(ctx, j)
		ServeResponse(w, r, "Sunlight Reading Started", http.StatusOK)
	}
}

// Stop the sensor, and wait for the job to finish
func (m *SLMeter) Stop() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.TSL2591 == nil {
			ServeResponse(w, r, ErrNotConnected.Error(), http.StatusBadRequest)
			return
		}
		m.jobMu.Lock()
		defer m.jobMu.Unlock()
		if !m.job.running() {
			m.job = nil
			ServeResponse(w, r, "The sensor is already stopped", http.StatusBadRequest)
			return
		}

		m.job.cancel()
		<-m.job.done
		m.job = nil
		ServeResponse(w, r, "Sunlight Reading Stopped", http.StatusOK)
	}
}

// Sample the sensor at whatever rate the engine asks for.
// The sensor is disabled before done is closed.
func (m *SLMeter) runJob(ctx context.Context, j *job) {
	defer close(j.done)
	defer j.cancel()
	defer func() {
		if err := m.Disable(); err != nil {
			log.Println(err)
		}
	}()
	log.Printf("Job %s started", j.id)
	for {
		delay := m.sample()
		timer := m.Clock.Timer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Println("Job Cancelled, stopping sensor")
			return
		case <-timer.C:
		}
	}
}

// sample runs one engine cycle and returns the delay until the next one
func (m *SLMeter) sample() time.Duration {
	res, err := m.Cycle(m.Clock.Now().UnixNano())
	if err != nil {
		log.Println(fmt.Sprintf("The sensor failed to get luminosity: %s", err.Error()))
		return ERROR_BACKOFF
	}
	delay := m.Light.PollDelay()
	switch res {
	case als.HWUpdate:
		log.Println(fmt.Sprintf("New thresholds: %d - %d", m.Light.HWThreshLo, m.Light.HWThreshHi))
	case als.PollNext:
		if m.Light.IndexChanged() {
			s := tsl2591.SettingAt(m.Light.Index)
			log.Println(fmt.Sprintf("Resolution changed: %s, %s", tsl2591.GainToString(s.Gain), tsl2591.IntegrationTimeToString(s.Timing)))
		}
	}
	if delay < MIN_POLL_DELAY {
		delay = MIN_POLL_DELAY
	}
	return delay
}

// Report is the engine's report callback, it runs inside a Cycle with the
// sensor locked. Results are dropped when the recorder falls behind.
func (m *SLMeter) Report(lux uint32, timestamp int64) {
	ch0, ch1 := m.Channel0, m.Channel1
	result := LuxResults{
		Lux:             ScaledLux(m.Light.Cfg, lux),
		Visible:         tsl2591.GetNormalizedOutput(tsl2591.TSL2591_VISIBLE, ch0, ch1),
		Infrared:        tsl2591.GetNormalizedOutput(tsl2591.TSL2591_INFRARED, ch0, ch1),
		FullSpectrum:    tsl2591.GetNormalizedOutput(tsl2591.TSL2591_FULLSPECTRUM, ch0, ch1),
		Channel0:        ch0,
		Channel1:        ch1,
		ResolutionIndex: m.Light.Index,
		RecordedAt:      time.Unix(0, timestamp).UTC(),
		JobID:           m.jobID,
	}
	select {
	case m.LuxResultsChan <- result:
	default:
		log.Println(fmt.Sprintf("Results channel full, dropped Lux: %.5f", result.Lux))
	}
}

// ScaledLux applies scale and offset to a reported value: (data * scale) + offset.
// A zero scale disables scaling.
func ScaledLux(cfg *als.Config, lux uint32) float64 {
	scale := 1.0
	if !cfg.Scale.IsZero() {
		scale = cfg.Scale.Float64()
	}
	return float64(lux)*scale + cfg.Offset.Float64()
}

// Serve data about the most recent entry saved to the db
func (m *SLMeter) CurrentConditions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conditions, err := m.getCurrentConditions()
		if errors.Is(err, sql.ErrNoRows) {
			ServeResponse(w, r, "No results recorded yet", http.StatusNotFound)
			return
		} else if err != nil {
			log.Println(err)
			ServeResponse(w, r, err.Error(), http.StatusInternalServerError)
			return
		}
		serveJSON(w, conditions, http.StatusOK)
	}
}

// Return the most recent entry saved to the db
func (m *SLMeter) getCurrentConditions() (Conditions, error) {
	conditions := Conditions{}
	if m.ResultsDB == nil {
		return conditions, sql.ErrNoRows
	}
	row := m.ResultsDB.QueryRow("SELECT job_id, lux, full_spectrum, visible, infrared FROM sunlight ORDER BY id DESC LIMIT 1")
	err := row.Scan(&conditions.JobID, &conditions.Lux, &conditions.FullSpectrum, &conditions.Visible, &conditions.Infrared)
	if err != nil {
		return Conditions{}, err
	}
	return conditions, nil
}

// Serve the engine state of the sensor
func (m *SLMeter) ServeSensorStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveJSON(w, m.Status(), http.StatusOK)
	}
}

func (m *SLMeter) Status() SensorStatus {
	if m.TSL2591 == nil {
		return SensorStatus{}
	}
	m.Lock()
	defer m.Unlock()
	lt := m.Light
	status := SensorStatus{
		Connected:       true,
		Enabled:         m.Enabled,
		Gain:            tsl2591.GainToString(m.Gain),
		IntegrationTime: tsl2591.IntegrationTimeToString(m.Timing),
		Dynamic:         lt.Dynamic(),
		ResolutionIndex: lt.Index,
		Resolution:      lt.Cfg.Resolution.Float64(),
		MaxRange:        lt.Cfg.MaxRange.Float64(),
		Calibrating:     lt.Calibrating(),
		ThresholdsValid: lt.ThresholdsValid,
		HWThreshLo:      lt.HWThreshLo,
		HWThreshHi:      lt.HWThreshHi,
		LastLux:         ScaledLux(lt.Cfg, lt.Lux),
		PollDelayMs:     lt.PollDelay().Milliseconds(),
	}
	if lt.Dynamic() {
		limits := lt.Limits()
		status.Modes = len(lt.Modes())
		status.IndexLimits = &limits
	}
	if m.Enabled {
		status.JobID = m.jobID
	}
	return status
}

// Reply with a JSON message
func ServeResponse(w http.ResponseWriter, r *http.Request, message string, status int) {
	serveJSON(w, map[string]string{"message": message}, status)
}

func serveJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println(err)
	}
}

// Read from LuxResultsChan, write the results to sqlite
func (m *SLMeter) MonitorAndRecordResults(ctx context.Context) {
	log.Println("Monitoring for new Sunlight Messages...")
	for {
		select {
		case <-ctx.Done():
			return
		case result := <-m.LuxResultsChan:
			if err := m.recordResult(result); err != nil {
				log.Println(err)
			}
		}
	}
}

func (m *SLMeter) recordResult(result LuxResults) error {
	log.Println(fmt.Sprintf("- JobID: %s, Lux: %.5f", result.JobID, result.Lux))
	if math.IsInf(result.Lux, 0) || math.IsNaN(result.Lux) {
		return fmt.Errorf("lux is invalid, skipping record")
	}
	_, err := m.ResultsDB.Exec(
		`INSERT INTO sunlight (job_id, lux, full_spectrum, visible, infrared, channel0, channel1, resolution_index, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.JobID,
		result.Lux,
		result.FullSpectrum,
		result.Visible,
		result.Infrared,
		result.Channel0,
		result.Channel1,
		result.ResolutionIndex,
		result.RecordedAt.UTC().Format("2006-01-02 15:04:05"),
	)
	return err
}
