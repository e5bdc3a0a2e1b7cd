package tsl2591

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ztkent/lux-engine/als"
)

type busWrite struct {
	reg  byte
	data []byte
}

// fakeBus is a register file behind the Bus interface
type fakeBus struct {
	regs    map[byte]byte
	writes  []busWrite
	readErr error
	closed  bool
}

func newFakeBus() *fakeBus {
	b := &fakeBus{regs: map[byte]byte{}}
	b.regs[TSL2591_COMMAND_BIT|TSL2591_REGISTER_DEVICE_ID] = TSL2591_DEVICE_ID
	return b
}

func (b *fakeBus) ReadReg(reg byte, buf []byte) error {
	if b.readErr != nil {
		return b.readErr
	}
	for i := range buf {
		buf[i] = b.regs[reg+byte(i)]
	}
	return nil
}

func (b *fakeBus) WriteReg(reg byte, buf []byte) error {
	data := append([]byte(nil), buf...)
	b.writes = append(b.writes, busWrite{reg: reg, data: data})
	for i, v := range data {
		b.regs[reg+byte(i)] = v
	}
	return nil
}

func (b *fakeBus) Close() error {
	b.closed = true
	return nil
}

func (b *fakeBus) setChannels(ch0, ch1 uint16) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint16(buf[0:], ch0)
	binary.LittleEndian.PutUint16(buf[2:], ch1)
	for i, v := range buf {
		b.regs[TSL2591_COMMAND_BIT|TSL2591_REGISTER_CHAN0_LOW+byte(i)] = v
	}
}

func (b *fakeBus) lastWrite(reg byte) []byte {
	for i := len(b.writes) - 1; i >= 0; i-- {
		if b.writes[i].reg == TSL2591_COMMAND_BIT|reg {
			return b.writes[i].data
		}
	}
	return nil
}

func TestNewWithBusWrongDevice(t *testing.T) {
	bus := newFakeBus()
	bus.regs[TSL2591_COMMAND_BIT|TSL2591_REGISTER_DEVICE_ID] = 0x00
	_, err := NewWithBus(bus, &als.Config{}, Options{})
	assert.Error(t, err)

	bus = newFakeBus()
	bus.readErr = errors.New("nack")
	_, err = NewWithBus(bus, &als.Config{}, Options{})
	assert.Error(t, err)
}

func TestModesOrdered(t *testing.T) {
	table := Modes()
	require.Len(t, table, 24)
	for i := 1; i < len(table); i++ {
		assert.Less(t, table[i-1].Resolution.Nanos(), table[i].Resolution.Nanos())
	}
	assert.Equal(t, Setting{Gain: TSL2591_GAIN_MAX, Timing: TSL2591_INTEGRATIONTIME_600MS}, SettingAt(0))
	assert.Equal(t, Setting{Gain: TSL2591_GAIN_LOW, Timing: TSL2591_INTEGRATIONTIME_100MS}, SettingAt(23))
	assert.Equal(t, Setting{Gain: TSL2591_GAIN_LOW, Timing: TSL2591_INTEGRATIONTIME_200MS}, SettingAt(22))
	assert.Equal(t, Setting{Gain: TSL2591_GAIN_MED, Timing: TSL2591_INTEGRATIONTIME_100MS}, SettingAt(17))
	assert.Equal(t, uint32(100), table[23].DelayMinMS)
	assert.Equal(t, uint32(600), table[0].DelayMinMS)
	assert.InDelta(t, 4.08*37887, table[23].MaxRange.Float64(), 1e-3)
}

func staticConfig() *als.Config {
	return &als.Config{
		Scale:    als.Fixed{Frac: 1000000},
		ThreshLo: 100,
		ThreshHi: 100,
	}
}

func TestCycleStatic(t *testing.T) {
	bus := newFakeBus()
	var reported []uint32
	tsl, err := NewWithBus(bus, staticConfig(), Options{
		Gain:    TSL2591_GAIN_MED,
		Timing:  TSL2591_INTEGRATIONTIME_300MS,
		Handler: func(lux uint32, timestamp int64) { reported = append(reported, lux) },
	})
	require.NoError(t, err)
	assert.False(t, tsl.Light.Dynamic())
	assert.Equal(t, []byte{TSL2591_ENABLE_POWEROFF}, bus.lastWrite(TSL2591_REGISTER_ENABLE))
	assert.Equal(t, []byte{TSL2591_INTEGRATIONTIME_300MS | TSL2591_GAIN_MED}, bus.lastWrite(TSL2591_REGISTER_CONTROL))

	_, err = tsl.Cycle(1)
	assert.True(t, errors.Is(err, ErrNotEnabled))

	require.NoError(t, tsl.Enable(1000000))
	assert.Equal(t, uint32(300000), tsl.Light.Cfg.DelayUSMin)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x00, 0x00}, bus.lastWrite(TSL2591_REGISTER_THRESHOLD_AILTL))

	bus.setChannels(1000, 200)
	res, err := tsl.Cycle(1)
	require.NoError(t, err)
	assert.Equal(t, als.HWUpdate, res)
	assert.Equal(t, uint16(200), tsl.Channel1)
	// 1000 counts at 0.0544 lux per count, in milli lux
	assert.Equal(t, []uint32{54400}, reported)
	// 900 and 1100
	assert.Equal(t, []byte{0x84, 0x03, 0x4C, 0x04}, bus.lastWrite(TSL2591_REGISTER_THRESHOLD_AILTL))

	res, err = tsl.Cycle(2)
	require.NoError(t, err)
	assert.Equal(t, als.NoChange, res)
	assert.Len(t, reported, 1)
}

func TestCycleDynamicResolution(t *testing.T) {
	bus := newFakeBus()
	tsl, err := NewWithBus(bus, staticConfig(), Options{
		Limits: &als.IndexLimits{Lo: 0, Hi: 23},
	})
	require.NoError(t, err)
	require.True(t, tsl.Light.Dynamic())

	require.NoError(t, tsl.Enable(1000000))
	assert.Equal(t, 23, tsl.Light.Index)
	assert.Equal(t, TSL2591_MAX_COUNT_100MS, tsl.Light.HWMask)
	assert.Equal(t, []byte{TSL2591_INTEGRATIONTIME_100MS | TSL2591_GAIN_LOW}, bus.lastWrite(TSL2591_REGISTER_CONTROL))

	// dark, step to the next more sensitive mode
	bus.setChannels(0, 0)
	res, err := tsl.Cycle(1)
	require.NoError(t, err)
	assert.Equal(t, als.PollNext, res)
	assert.Equal(t, 22, tsl.Light.Index)
	assert.Equal(t, TSL2591_INTEGRATIONTIME_200MS, tsl.Timing)
	assert.Equal(t, TSL2591_GAIN_LOW, tsl.Gain)
	assert.Equal(t, TSL2591_MAX_COUNT, tsl.Light.HWMask)
	assert.Equal(t, []byte{TSL2591_INTEGRATIONTIME_200MS | TSL2591_GAIN_LOW}, bus.lastWrite(TSL2591_REGISTER_CONTROL))
	assert.Equal(t, uint32(200000), tsl.Light.PollDelayUS)
}

func TestStaticFallbackOnBadLimits(t *testing.T) {
	cfg := staticConfig()
	tsl, err := NewWithBus(newFakeBus(), cfg, Options{
		Gain:   TSL2591_GAIN_HIGH,
		Timing: TSL2591_INTEGRATIONTIME_100MS,
		Limits: &als.IndexLimits{Lo: 5, Hi: 2},
	})
	require.NoError(t, err)
	assert.False(t, tsl.Light.Dynamic())
	assert.Equal(t, ModeFor(TSL2591_GAIN_HIGH, TSL2591_INTEGRATIONTIME_100MS).Resolution, cfg.Resolution)
}

func TestClose(t *testing.T) {
	bus := newFakeBus()
	tsl, err := NewWithBus(bus, nil, Options{})
	require.NoError(t, err)
	require.NoError(t, tsl.Enable(0))
	require.NoError(t, tsl.Close())
	assert.True(t, bus.closed)
	assert.False(t, tsl.Enabled)
	assert.Equal(t, []byte{TSL2591_ENABLE_POWEROFF}, bus.lastWrite(TSL2591_REGISTER_ENABLE))
}

func TestParseSettings(t *testing.T) {
	g, err := ParseGain("High")
	require.NoError(t, err)
	assert.Equal(t, TSL2591_GAIN_HIGH, g)
	_, err = ParseGain("huge")
	assert.Error(t, err)

	it, err := ParseIntegrationTime(400)
	require.NoError(t, err)
	assert.Equal(t, TSL2591_INTEGRATIONTIME_400MS, it)
	assert.Equal(t, uint32(400), IntegrationTimeMS(it))
	_, err = ParseIntegrationTime(250)
	assert.Error(t, err)
}

func TestSetStaticMode(t *testing.T) {
	bus := newFakeBus()
	cfg := staticConfig()
	tsl, err := NewWithBus(bus, cfg, Options{
		Gain:   TSL2591_GAIN_LOW,
		Timing: TSL2591_INTEGRATIONTIME_100MS,
	})
	require.NoError(t, err)
	assert.True(t, errors.Is(tsl.SetGain(TSL2591_GAIN_HIGH), ErrNotEnabled))

	require.NoError(t, tsl.Enable(0))
	require.NoError(t, tsl.SetGain(TSL2591_GAIN_HIGH))
	require.NoError(t, tsl.SetTiming(TSL2591_INTEGRATIONTIME_400MS))
	assert.Equal(t, []byte{TSL2591_INTEGRATIONTIME_400MS | TSL2591_GAIN_HIGH}, bus.lastWrite(TSL2591_REGISTER_CONTROL))
	assert.Equal(t, ModeFor(TSL2591_GAIN_HIGH, TSL2591_INTEGRATIONTIME_400MS).Resolution, cfg.Resolution)
	assert.Equal(t, uint32(400000), cfg.DelayUSMin)
	assert.Equal(t, TSL2591_MAX_COUNT, tsl.Light.HWMask)

	// a shorter integration time polls faster again
	require.NoError(t, tsl.SetTiming(TSL2591_INTEGRATIONTIME_100MS))
	assert.Equal(t, uint32(100000), cfg.DelayUSMin)
	assert.Equal(t, TSL2591_MAX_COUNT_100MS, tsl.Light.HWMask)

	dyn, err := NewWithBus(newFakeBus(), staticConfig(), Options{
		Limits: &als.IndexLimits{Lo: 0, Hi: 23},
	})
	require.NoError(t, err)
	require.NoError(t, dyn.Enable(0))
	assert.True(t, errors.Is(dyn.SetTiming(TSL2591_INTEGRATIONTIME_600MS), ErrDynamic))
}

func TestSetStaticModeKeepsConfiguredMinimum(t *testing.T) {
	cfg := staticConfig()
	cfg.DelayUSMin = 250000
	tsl, err := NewWithBus(newFakeBus(), cfg, Options{
		Gain:   TSL2591_GAIN_LOW,
		Timing: TSL2591_INTEGRATIONTIME_100MS,
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(250000), cfg.DelayUSMin)

	require.NoError(t, tsl.Enable(0))
	require.NoError(t, tsl.SetTiming(TSL2591_INTEGRATIONTIME_400MS))
	assert.Equal(t, uint32(400000), cfg.DelayUSMin)
	require.NoError(t, tsl.SetTiming(TSL2591_INTEGRATIONTIME_200MS))
	assert.Equal(t, uint32(250000), cfg.DelayUSMin)
}
