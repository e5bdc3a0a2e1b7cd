package als

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModes() []Mode {
	return []Mode{
		{Resolution: Fixed{Frac: 10000000}, MaxRange: Fixed{Int: 655}, MilliAmp: Fixed{Frac: 325000000}, DelayMinMS: 10},
		{Resolution: Fixed{Frac: 100000000}, MaxRange: Fixed{Int: 6553}, MilliAmp: Fixed{Frac: 325000000}, DelayMinMS: 20},
		{Resolution: Fixed{Int: 1}, MaxRange: Fixed{Int: 65535}, MilliAmp: Fixed{Frac: 325000000}, DelayMinMS: 30},
	}
}

func dynamicLight(t *testing.T, rec *recorder) *Light {
	cfg := passThroughConfig()
	cfg.ThreshLo = 50
	cfg.ThreshHi = 50
	var h ReportFunc
	if rec != nil {
		h = rec.handler()
	}
	lt := New(cfg, testMask, h)
	require.NoError(t, lt.SetModes(testModes(), IndexLimits{Lo: 0, Hi: 2}))
	return lt
}

func TestEnableSelectsHighestMode(t *testing.T) {
	lt := dynamicLight(t, nil)
	lt.Enable()

	assert.Equal(t, 2, lt.Index)
	assert.True(t, lt.IndexChanged())
	assert.Equal(t, Fixed{Int: 1}, lt.Cfg.Resolution)
	assert.Equal(t, Fixed{Int: 65535}, lt.Cfg.MaxRange)
	assert.Equal(t, Fixed{Frac: 325000000}, lt.Cfg.MilliAmp)
	assert.Equal(t, uint32(30000), lt.Cfg.DelayUSMin)
}

func TestDynamicResolutionSteps(t *testing.T) {
	rec := &recorder{}
	lt := dynamicLight(t, rec)
	lt.Enable()

	// dark: one step more sensitive, and poll right away
	assert.Equal(t, PollNext, cycle(lt, 0, 1))
	assert.Equal(t, 1, lt.Index)
	assert.True(t, lt.IndexChanged())
	assert.Equal(t, Fixed{Frac: 100000000}, lt.Cfg.Resolution)
	assert.Equal(t, uint32(20000), lt.PollDelayUS)

	// saturated: exactly one step back
	assert.Equal(t, PollNext, cycle(lt, testMask, 2))
	assert.Equal(t, 2, lt.Index)
	assert.Equal(t, uint32(30000), lt.PollDelayUS)

	// already at the top, stays
	cycle(lt, testMask, 3)
	assert.Equal(t, 2, lt.Index)
	assert.False(t, lt.IndexChanged())
	assert.Len(t, rec.reports, 3)
}

func TestDynamicResolutionOneStepPerCycle(t *testing.T) {
	lt := dynamicLight(t, nil)
	lt.Enable()

	cycle(lt, 0, 1)
	assert.Equal(t, 1, lt.Index)
	cycle(lt, 0, 2)
	assert.Equal(t, 0, lt.Index)
	cycle(lt, 0, 3)
	assert.Equal(t, 0, lt.Index, "low limit holds")
	assert.False(t, lt.IndexChanged())
}

func TestDynamicResolutionForcesReportAfterChange(t *testing.T) {
	rec := &recorder{}
	lt := dynamicLight(t, rec)
	lt.Enable()

	cycle(lt, 0, 1)
	require.Equal(t, 1, lt.Index)
	// inside any window, but the mode changed so it must report and rearm
	assert.Equal(t, HWUpdate, cycle(lt, 1000, 2))
	assert.Len(t, rec.reports, 2)
	assert.Equal(t, uint32(950), lt.HWThreshLo)
	assert.Equal(t, uint32(1050), lt.HWThreshHi)
	// 1000 counts at 0.1 lux per count
	assert.Equal(t, uint32(100000), rec.reports[1].lux)
}

func TestSelectModeClamps(t *testing.T) {
	lt := dynamicLight(t, nil)
	require.NoError(t, lt.SetModes(testModes(), IndexLimits{Lo: 1, Hi: 1}))

	assert.Equal(t, PollNext, lt.SelectMode(0))
	assert.Equal(t, 1, lt.Index)
	assert.Equal(t, PollNext, lt.SelectMode(5))
	assert.Equal(t, 1, lt.Index)
}

func TestSelectModeWithoutTable(t *testing.T) {
	cfg := passThroughConfig()
	lt := New(cfg, testMask, nil)
	assert.Equal(t, NoChange, lt.SelectMode(1))
	assert.False(t, lt.IndexChanged())
	assert.Equal(t, Fixed{Frac: 1000000}, cfg.Resolution)
}

func TestSetModes(t *testing.T) {
	lt := New(passThroughConfig(), testMask, nil)

	err := lt.SetModes(nil, IndexLimits{})
	assert.True(t, errors.Is(err, ErrNoModes))

	err = lt.SetModes(testModes(), IndexLimits{Lo: 2, Hi: 1})
	assert.True(t, errors.Is(err, ErrIndexRange))

	err = lt.SetModes(testModes(), IndexLimits{Lo: 0, Hi: 3})
	assert.True(t, errors.Is(err, ErrIndexRange))
	assert.False(t, lt.Dynamic())

	require.NoError(t, lt.SetModes(testModes(), IndexLimits{Lo: 0, Hi: 2}))
	assert.True(t, lt.Dynamic())
	lt.DisableModes()
	assert.False(t, lt.Dynamic())
}

func TestParseIndexLimits(t *testing.T) {
	il, err := ParseIndexLimits(map[string]uint32{
		"light_dynamic_resolution_index_limit_low":  1,
		"light_dynamic_resolution_index_limit_high": 4,
	}, "")
	require.NoError(t, err)
	assert.Equal(t, IndexLimits{Lo: 1, Hi: 4}, il)

	il, err = ParseIndexLimits(map[string]uint32{
		"als_dynamic_resolution_index_limit_low":  0,
		"als_dynamic_resolution_index_limit_high": 0,
	}, "als")
	require.NoError(t, err)
	assert.Equal(t, IndexLimits{}, il)

	_, err = ParseIndexLimits(map[string]uint32{
		"light_dynamic_resolution_index_limit_low": 1,
	}, "light")
	assert.True(t, errors.Is(err, ErrMissingProperty))

	_, err = ParseIndexLimits(nil, "light")
	assert.True(t, errors.Is(err, ErrMissingProperty))

	_, err = ParseIndexLimits(map[string]uint32{
		"light_dynamic_resolution_index_limit_low":  5,
		"light_dynamic_resolution_index_limit_high": 2,
	}, "light")
	assert.True(t, errors.Is(err, ErrIndexRange))
}
