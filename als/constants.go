package als

import "math"

// Fixed point significance, Frac is stored in billionths
const SCALE_SIGNIFICANCE int64 = 1000000000

const (
	DEFAULT_DEV_NAME   = "light"
	INDEX_LIMIT_LOW    = "_dynamic_resolution_index_limit_low"
	INDEX_LIMIT_HIGH   = "_dynamic_resolution_index_limit_high"
	DEFAULT_REPORT_N   = 1
	THRESH_LO_DISARMED = math.MaxUint32 // nothing can trip before the first computation
	THRESH_HI_DISARMED = 0
)

// Result of a read cycle, tells the driver what to do next
type Result int

const (
	NoChange Result = iota // lux has not changed, rely on interrupts or the configured poll rate
	PollNext               // poll the HW for the next sample using PollDelay
	HWUpdate               // program HWThreshLo/HWThreshHi into the HW
)

func (r Result) String() string {
	switch r {
	case NoChange:
		return "no-change"
	case PollNext:
		return "poll-next"
	case HWUpdate:
		return "hw-update"
	default:
		return "unknown"
	}
}

// ScaleMode is decided once at Enable from the configured scale
type ScaleMode int

const (
	ScaleNormal ScaleMode = iota
	// A scale of exactly 1 puts the engine in calibration mode: every sample
	// is reported at the minimum delay so scale/offset can be tuned live.
	ScaleCalibration
)

func (m ScaleMode) String() string {
	if m == ScaleCalibration {
		return "calibration"
	}
	return "normal"
}
