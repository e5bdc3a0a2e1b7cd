package tsl2591

import (
	"sort"

	"github.com/ztkent/lux-engine/als"
)

// Setting is the gain/integration pair behind a resolution table entry
type Setting struct {
	Gain   byte
	Timing byte
}

var (
	settings []Setting
	modes    []als.Mode
)

// Every gain x integration time combination, ordered from the most sensitive
// (max gain, 600ms) to the least sensitive (low gain, 100ms)
func init() {
	gains := []byte{TSL2591_GAIN_LOW, TSL2591_GAIN_MED, TSL2591_GAIN_HIGH, TSL2591_GAIN_MAX}
	timings := []byte{
		TSL2591_INTEGRATIONTIME_100MS, TSL2591_INTEGRATIONTIME_200MS, TSL2591_INTEGRATIONTIME_300MS,
		TSL2591_INTEGRATIONTIME_400MS, TSL2591_INTEGRATIONTIME_500MS, TSL2591_INTEGRATIONTIME_600MS,
	}
	for _, g := range gains {
		for _, t := range timings {
			settings = append(settings, Setting{Gain: g, Timing: t})
		}
	}
	sort.SliceStable(settings, func(i, j int) bool {
		return Resolution(settings[i].Gain, settings[i].Timing) < Resolution(settings[j].Gain, settings[j].Timing)
	})
	for _, s := range settings {
		modes = append(modes, ModeFor(s.Gain, s.Timing))
	}
}

// Lux per count of channel 0 for a gain and integration time
func Resolution(gain, timing byte) float64 {
	cpl := float64(IntegrationTimeMS(timing)) * GainMultiplier(gain) / TSL2591_LUX_DF
	return 1.0 / cpl
}

// ModeFor describes a single gain/integration pair as a resolution table entry
func ModeFor(gain, timing byte) als.Mode {
	res := Resolution(gain, timing)
	return als.Mode{
		Resolution: als.FixedFromFloat(res),
		MaxRange:   als.FixedFromFloat(res * float64(MaxCount(timing))),
		MilliAmp:   als.FixedFromFloat(TSL2591_MILLIAMP_ACTIVE),
		DelayMinMS: IntegrationTimeMS(timing),
	}
}

// Modes returns the resolution table used for dynamic resolution
func Modes() []als.Mode {
	return append([]als.Mode(nil), modes...)
}

// SettingAt returns the gain/integration pair of a table index
func SettingAt(i int) Setting {
	if i < 0 || i >= len(settings) {
		return Setting{Gain: TSL2591_GAIN_LOW, Timing: TSL2591_INTEGRATIONTIME_100MS}
	}
	return settings[i]
}
