package tsl2591

/*
 * tsl2591 - Package for interacting with TSL2591 lux sensors.
 *
 * The driver only talks to the HW. Lux conversion, reporting, the interrupt
 * threshold window and gain/integration switching are decided by the als
 * engine on every Cycle.
 *
 * Ref:
 * https://github.com/adafruit/Adafruit_TSL2591_Library
 * https://github.com/mstahl/tsl2591
 *
 */

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/ztkent/lux-engine/als"
	"golang.org/x/exp/io/i2c"
)

var l *logrus.Logger

func init() {
	l = logrus.New()
	// Setup the logger, so it can be parsed by datadog
	l.Formatter = &logrus.JSONFormatter{}
	l.SetOutput(os.Stdout)
	// Set the log level
	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))
	switch logLevel {
	case "debug":
		l.SetLevel(logrus.DebugLevel)
	case "info":
		l.SetLevel(logrus.InfoLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}
}

var (
	ErrNotEnabled = errors.New("sensor must be enabled")
	ErrDynamic    = errors.New("gain and timing are managed by dynamic resolution")
)

// Bus is the register access the driver needs, *i2c.Device satisfies it
type Bus interface {
	ReadReg(reg byte, buf []byte) error
	WriteReg(reg byte, buf []byte) error
	Close() error
}

// Options for a new TSL2591
type Options struct {
	// Gain and Timing are used when dynamic resolution is disabled
	Gain   byte
	Timing byte
	// Limits enables dynamic resolution over Modes(), nil keeps Gain/Timing
	Limits  *als.IndexLimits
	Handler als.ReportFunc
}

type TSL2591 struct {
	Enabled  bool
	Timing   byte
	Gain     byte
	Device   Bus
	Light    *als.Light
	Channel0 uint16 // full spectrum, drives the engine and the HW thresholds
	Channel1 uint16 // infrared

	// configured poll delay floor, static modes never go below it
	delayUSMin uint32
	*sync.Mutex
}

// Connect to a TSL2591 via I2C protocol
func NewTSL2591(path string, cfg *als.Config, opts Options) (*TSL2591, error) {
	if path == "" {
		// i2c-1 is the default I2C bus for the Raspberry Pi
		path = "/dev/i2c-1"
	}
	device, err := i2c.Open(&i2c.Devfs{Dev: path}, int(TSL2591_ADDR))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	tsl, err := NewWithBus(device, cfg, opts)
	if err != nil {
		device.Close()
		return nil, err
	}
	return tsl, nil
}

// Setup a TSL2591 on an already open bus
func NewWithBus(bus Bus, cfg *als.Config, opts Options) (*TSL2591, error) {
	if cfg == nil {
		cfg = &als.Config{}
	}
	tsl := &TSL2591{
		Device:  bus,
		Mutex:   &sync.Mutex{},
		Enabled: true,
		Gain:    opts.Gain,
		Timing:  opts.Timing,

		delayUSMin: cfg.DelayUSMin,
	}

	// Read the device ID from the TSL2591
	buf := make([]byte, 1)
	err := tsl.Device.ReadReg(TSL2591_COMMAND_BIT|TSL2591_REGISTER_DEVICE_ID, buf)
	if err != nil {
		return nil, fmt.Errorf("failed to read device id: %w", err)
	}
	if buf[0] != TSL2591_DEVICE_ID {
		return nil, fmt.Errorf("can't find a TSL2591 on the bus, device id 0x%02x", buf[0])
	}

	tsl.Light = als.New(cfg, MaxCount(opts.Timing), opts.Handler)
	if opts.Limits != nil {
		if err := tsl.Light.SetModes(Modes(), *opts.Limits); err != nil {
			// fall back to the static gain/timing
			l.Warnf("Dynamic resolution disabled: %v", err)
		}
	}
	if !tsl.Light.Dynamic() {
		useMode(cfg, ModeFor(opts.Gain, opts.Timing), tsl.delayUSMin)
	}

	if err := tsl.writeControl(opts.Gain, opts.Timing); err != nil {
		return nil, err
	}
	if err := tsl.Disable(); err != nil {
		return nil, err
	}
	return tsl, nil
}

// Read from the light sensor's channels
func (tsl *TSL2591) GetFullLuminosity() (uint16, uint16, error) {
	if !tsl.Enabled {
		return 0, 0, ErrNotEnabled
	}

	// Reading from TSL2591_REGISTER_CHAN0_LOW, and TSL2591_REGISTER_CHAN1_LOW
	// They are 2 bytes each, so we read 4 bytes in total
	bytes := make([]byte, 4)
	err := tsl.Device.ReadReg(TSL2591_COMMAND_BIT|TSL2591_REGISTER_CHAN0_LOW, bytes)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read channels: %w", err)
	}
	l.Debugf("Bytes read: %v\n", bytes)

	channel0 := binary.LittleEndian.Uint16(bytes[0:])
	channel1 := binary.LittleEndian.Uint16(bytes[2:])

	l.Debugf("Channel 0: %v, Channel 1: %v\n", channel0, channel1)
	return channel0, channel1, nil
}

// Cycle reads the HW, runs the engine on channel 0 at timestamp (ns) and
// applies what the engine decided: new gain/timing after a resolution change
// and new interrupt thresholds on HWUpdate. Reports go to the Handler.
func (tsl *TSL2591) Cycle(timestamp int64) (als.Result, error) {
	tsl.Lock()
	defer tsl.Unlock()

	ch0, ch1, err := tsl.GetFullLuminosity()
	if err != nil {
		return als.PollNext, err
	}
	tsl.Channel0, tsl.Channel1 = ch0, ch1
	tsl.Light.HW = uint32(ch0)
	tsl.Light.Timestamp = timestamp

	res := tsl.Light.Read()
	if tsl.Light.IndexChanged() {
		if err := tsl.applyMode(); err != nil {
			return als.PollNext, err
		}
	}
	if res == als.HWUpdate {
		if err := tsl.writeThresholds(tsl.Light.HWThreshLo, tsl.Light.HWThreshHi); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Returns the normalized output for a given spectrum type
func GetNormalizedOutput(spectrumType byte, ch0, ch1 uint16) float64 {
	switch spectrumType {
	case TSL2591_VISIBLE:
		visible := float64(ch0) - float64(ch1)
		if visible < 0 {
			visible = 0
		}
		return visible / 0xFFFF
	case TSL2591_INFRARED:
		return float64(ch1) / 0xFFFF
	case TSL2591_FULLSPECTRUM:
		return float64(ch0) / 0xFFFF
	default:
		return 0
	}
}

// Enable the sensor, sampling every delayUS when nothing else is required
func (tsl *TSL2591) Enable(delayUS uint32) error {
	tsl.Lock()
	defer tsl.Unlock()

	if tsl.Enabled {
		return nil
	}
	var write []byte = []byte{
		TSL2591_ENABLE_POWERON | TSL2591_ENABLE_AEN | TSL2591_ENABLE_AIEN | TSL2591_ENABLE_NPIEN,
	}
	if err := tsl.Device.WriteReg(TSL2591_COMMAND_BIT|TSL2591_REGISTER_ENABLE, write); err != nil {
		return err
	}
	tsl.Enabled = true

	tsl.Light.DelayUS = delayUS
	tsl.Light.Enable()
	if tsl.Light.IndexChanged() {
		if err := tsl.applyMode(); err != nil {
			return err
		}
	}
	return tsl.writeThresholds(tsl.Light.HWThreshLo, tsl.Light.HWThreshHi)
}

// Disable the sensor
func (tsl *TSL2591) Disable() error {
	tsl.Lock()
	defer tsl.Unlock()

	if !tsl.Enabled {
		return nil
	}
	var write []byte = []byte{
		TSL2591_ENABLE_POWEROFF,
	}
	if err := tsl.Device.WriteReg(TSL2591_COMMAND_BIT|TSL2591_REGISTER_ENABLE, write); err != nil {
		return err
	}
	tsl.Enabled = false
	return nil
}

// Power off and release the bus
func (tsl *TSL2591) Close() error {
	err := tsl.Disable()
	if cerr := tsl.Device.Close(); err == nil {
		err = cerr
	}
	return err
}

// Set the gain for the sensor
func (tsl *TSL2591) SetGain(gain byte) error {
	tsl.Lock()
	defer tsl.Unlock()
	return tsl.setStatic(gain, tsl.Timing)
}

// Set the integration timing for the sensor
func (tsl *TSL2591) SetTiming(timing byte) error {
	tsl.Lock()
	defer tsl.Unlock()
	return tsl.setStatic(tsl.Gain, timing)
}

// Switch the static mode, the engine follows the new resolution
func (tsl *TSL2591) setStatic(gain, timing byte) error {
	if !tsl.Enabled {
		return ErrNotEnabled
	}
	if tsl.Light.Dynamic() {
		return ErrDynamic
	}
	if err := tsl.writeControl(gain, timing); err != nil {
		return err
	}
	useMode(tsl.Light.Cfg, ModeFor(gain, timing), tsl.delayUSMin)
	tsl.Light.HWMask = MaxCount(timing)
	// old thresholds are in the previous mode's counts
	tsl.Light.Report = tsl.Light.Cfg.ReportN
	return nil
}

// Mirror a static mode into the engine config. The poll delay floor is the
// integration time, or delayUSMin when that is longer.
func useMode(cfg *als.Config, m als.Mode, delayUSMin uint32) {
	cfg.Resolution = m.Resolution
	cfg.MaxRange = m.MaxRange
	cfg.MilliAmp = m.MilliAmp
	cfg.DelayUSMin = m.DelayMinMS * 1000
	if cfg.DelayUSMin < delayUSMin {
		cfg.DelayUSMin = delayUSMin
	}
}

// Program the gain/integration time of the engine's active table entry
func (tsl *TSL2591) applyMode() error {
	s := SettingAt(tsl.Light.Index)
	l.Debugf("Set - Gain: %v, Integration Time: %v", GainToString(s.Gain), IntegrationTimeToString(s.Timing))
	if err := tsl.writeControl(s.Gain, s.Timing); err != nil {
		return err
	}
	tsl.Light.HWMask = MaxCount(s.Timing)
	return nil
}

func (tsl *TSL2591) writeControl(gain, timing byte) error {
	write := []byte{
		timing | gain,
	}
	if err := tsl.Device.WriteReg(TSL2591_COMMAND_BIT|TSL2591_REGISTER_CONTROL, write); err != nil {
		return fmt.Errorf("failed to write control: %w", err)
	}
	tsl.Gain = gain
	tsl.Timing = timing
	return nil
}

// Program the ALS interrupt thresholds, channel 0 is compared against them
func (tsl *TSL2591) writeThresholds(lo, hi uint32) error {
	if lo > TSL2591_MAX_COUNT {
		lo = TSL2591_MAX_COUNT
	}
	if hi > TSL2591_MAX_COUNT {
		hi = TSL2591_MAX_COUNT
	}
	write := make([]byte, 4)
	binary.LittleEndian.PutUint16(write[0:], uint16(lo))
	binary.LittleEndian.PutUint16(write[2:], uint16(hi))
	if err := tsl.Device.WriteReg(TSL2591_COMMAND_BIT|TSL2591_REGISTER_THRESHOLD_AILTL, write); err != nil {
		return fmt.Errorf("failed to write thresholds: %w", err)
	}
	l.Debugf("Thresholds: low %d, high %d", lo, hi)
	return nil
}
