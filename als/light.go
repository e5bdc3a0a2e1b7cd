package als

/*
 * als - decision engine shared by ambient light sensor drivers.
 *
 * A driver reads the HW, places the raw value and its timestamp in the
 * Light and calls Read. Depending on the Result:
 *   - PollNext: poll the HW again after PollDelay.
 *   - NoChange: nothing to do if interrupt driven, otherwise poll after PollDelay.
 *   - HWUpdate: program HWThreshLo/HWThreshHi into the HW interrupt thresholds.
 * Lux reporting is done by the engine through the ReportFunc.
 *
 * The threshold configuration is in HW units: the armed window is simply the
 * raw value -/+ the configured deltas. This scales with the HW resolution when
 * dynamic resolution switches modes.
 */

import (
	"time"
)

// ReportFunc receives every lux value actually reported, with its timestamp.
// It is called synchronously from Read and must not call back into the Light.
type ReportFunc func(lux uint32, timestamp int64)

// Config is owned by the driver. Resolution, MaxRange, MilliAmp and
// DelayUSMin are overwritten by the active resolution table entry when
// dynamic resolution is enabled.
type Config struct {
	Resolution Fixed
	MaxRange   Fixed
	MilliAmp   Fixed
	// Scale of exactly 1 enables calibration mode, 0 disables scaling
	Scale  Fixed
	Offset Fixed

	// Two point calibration: raw (uncal) -> calibrated (cal)
	UncalLo int32
	UncalHi int32
	CalLo   int32
	CalHi   int32

	// Threshold deltas in HW units, >= the HW mask disables the bound
	ThreshLo uint32
	ThreshHi uint32

	ReportN    uint32
	DelayUSMin uint32
}

// Light is the per sensor runtime state. It is not safe for concurrent use;
// the driver serializes Enable and Read.
type Light struct {
	Cfg     *Config
	Handler ReportFunc

	HW              uint32 // latest raw HW value
	HWMask          uint32 // max raw value, the HW saturates here
	HWThreshLo      uint32 // armed low threshold
	HWThreshHi      uint32 // armed high threshold
	Report          uint32 // reports still owed
	Timestamp       int64  // ns, time of HW
	TimestampReport int64  // ns, time of the last report
	Lux             uint32 // last reported value
	DelayUS         uint32 // requested sampling interval
	PollDelayUS     uint32 // next poll delay decided by Read

	ThreshValidLo   bool
	ThreshValidHi   bool
	ThresholdsValid bool
	HWLimitLo       bool
	HWLimitHi       bool

	Index        int // active resolution table entry
	modes        []Mode
	limits       IndexLimits
	indexChanged bool
	scaleMode    ScaleMode
}

// Create the engine for a sensor with a static resolution
func New(cfg *Config, hwMask uint32, handler ReportFunc) *Light {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Light{
		Cfg:     cfg,
		HWMask:  hwMask,
		Handler: handler,
	}
}

// Enable initializes the runtime state, call it whenever the sensor is enabled
func (lt *Light) Enable() {
	if lt.Cfg.ReportN == 0 {
		lt.Cfg.ReportN = DEFAULT_REPORT_N
	}
	lt.Report = lt.Cfg.ReportN
	lt.TimestampReport = 0
	lt.HWThreshHi = THRESH_HI_DISARMED
	lt.HWThreshLo = THRESH_LO_DISARMED
	if lt.Dynamic() {
		lt.SelectMode(lt.limits.Hi)
	}
	lt.PollDelayUS = lt.Cfg.DelayUSMin
	if lt.Cfg.Scale.IsOne() {
		if lt.scaleMode != ScaleCalibration {
			l.Info("Calibration mode enabled, reporting every sample")
		}
		lt.scaleMode = ScaleCalibration
	} else {
		lt.scaleMode = ScaleNormal
	}
}

// Read runs one cycle on the HW value and Timestamp already placed in the
// Light: reports lux when due, recalculates the HW thresholds, steps the
// dynamic resolution and decides the next poll delay.
func (lt *Light) Read() Result {
	reportDelayMin := true
	var pollDelay uint32

	if lt.scaleMode == ScaleCalibration {
		// always report, ignoring the report rate
		lt.Report = lt.Cfg.ReportN
	}
	if lt.Report < lt.Cfg.ReportN {
		// first sample of a burst is always reported
		if remaining, ok := lt.rateLimit(); !ok {
			// data is changing faster than it may be reported, poll at the
			// allowed rate instead
			pollDelay = remaining
			reportDelayMin = false
		}
	}

	threshLo, threshHi := lt.evalThresholds()

	if lt.indexChanged {
		// new HW resolution, report and rearm thresholds on the new settings
		lt.Report = lt.Cfg.ReportN
	} else if lt.ThresholdsValid {
		if lt.HW < lt.HWThreshLo || lt.HW > lt.HWThreshHi {
			lt.Report = lt.Cfg.ReportN
		}
	} else {
		// no thresholds, report everything
		lt.Report = lt.Cfg.ReportN
	}

	ret := NoChange
	if lt.Report > 0 && reportDelayMin {
		lt.Report--
		lt.TimestampReport = lt.Timestamp
		lt.Lux = lt.calibrate()
		if lt.Handler != nil {
			lt.Handler(lt.Lux, lt.TimestampReport)
		}
		if lt.ThresholdsValid && lt.Report == 0 {
			lt.armThresholds(threshLo, threshHi)
			ret = HWUpdate
		}
	}

	lt.indexChanged = false
	lt.step()

	if lt.indexChanged {
		// thresholds armed above belong to the old mode, the next cycle
		// rearms them after the forced report
		ret = PollNext
		lt.PollDelayUS = lt.Cfg.DelayUSMin
	} else {
		if reportDelayMin {
			pollDelay = lt.DelayUS
		}
		if pollDelay < lt.Cfg.DelayUSMin || lt.scaleMode == ScaleCalibration {
			pollDelay = lt.Cfg.DelayUSMin
		}
		lt.PollDelayUS = pollDelay
	}

	if ret == HWUpdate {
		return ret
	}
	if lt.Report > 0 || lt.scaleMode == ScaleCalibration {
		return PollNext
	}
	return ret
}

// rateLimit returns the us left before another report is allowed
func (lt *Light) rateLimit() (uint32, bool) {
	elapsed := lt.Timestamp - lt.TimestampReport
	delay := int64(lt.DelayUS) * 1000
	if elapsed >= delay {
		return 0, true
	}
	return clampU32((delay - elapsed) / 1000), false
}

// calibrate converts HW to lux: HW * resolution / scale, then through the
// two point calibration curve
func (lt *Light) calibrate() uint32 {
	calc := MulDiv(lt.HW, lt.Cfg.Resolution, lt.Cfg.Scale)
	return Interpolate(lt.Cfg.UncalLo, calc, lt.Cfg.UncalHi, lt.Cfg.CalLo, lt.Cfg.CalHi)
}

func (lt *Light) PollDelay() time.Duration {
	return time.Duration(lt.PollDelayUS) * time.Microsecond
}

// IndexChanged reports a resolution switch during the last Read (or Enable),
// the driver must apply the new mode to the HW
func (lt *Light) IndexChanged() bool {
	return lt.indexChanged
}

func (lt *Light) ScaleMode() ScaleMode {
	return lt.scaleMode
}

func (lt *Light) Calibrating() bool {
	return lt.scaleMode == ScaleCalibration
}
