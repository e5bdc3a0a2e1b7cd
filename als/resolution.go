package als

import (
	"errors"
	"fmt"
)

var (
	ErrIndexRange      = errors.New("invalid dynamic resolution index range")
	ErrMissingProperty = errors.New("missing property")
	ErrNoModes         = errors.New("resolution table is empty")
)

// Mode is one entry of a resolution table
type Mode struct {
	Resolution Fixed  `yaml:"resolution" json:"resolution"`
	MaxRange   Fixed  `yaml:"max_range" json:"maxRange"`
	MilliAmp   Fixed  `yaml:"milliamp" json:"milliamp"`
	DelayMinMS uint32 `yaml:"delay_min_ms" json:"delayMinMs"`
}

// IndexLimits bounds the table indexes dynamic resolution may use, inclusive
type IndexLimits struct {
	Lo int `json:"lo"`
	Hi int `json:"hi"`
}

// Validate the limits against a table of n entries
func (il IndexLimits) Validate(n int) error {
	if il.Hi < il.Lo {
		return fmt.Errorf("%w: high %d < low %d", ErrIndexRange, il.Hi, il.Lo)
	}
	if il.Lo < 0 || il.Hi >= n {
		return fmt.Errorf("%w: [%d, %d] outside table of %d", ErrIndexRange, il.Lo, il.Hi, n)
	}
	return nil
}

// ParseIndexLimits reads the dynamic resolution index limits out of a device
// description. Both <devName>_dynamic_resolution_index_limit_low and _high
// must be present.
func ParseIndexLimits(props map[string]uint32, devName string) (IndexLimits, error) {
	if props == nil {
		return IndexLimits{}, fmt.Errorf("%w: no device properties", ErrMissingProperty)
	}
	if devName == "" {
		devName = DEFAULT_DEV_NAME
	}
	lo, ok := props[devName+INDEX_LIMIT_LOW]
	if !ok {
		return IndexLimits{}, fmt.Errorf("%w: %s", ErrMissingProperty, devName+INDEX_LIMIT_LOW)
	}
	hi, ok := props[devName+INDEX_LIMIT_HIGH]
	if !ok {
		return IndexLimits{}, fmt.Errorf("%w: %s", ErrMissingProperty, devName+INDEX_LIMIT_HIGH)
	}
	il := IndexLimits{Lo: int(lo), Hi: int(hi)}
	if il.Hi < il.Lo {
		return il, fmt.Errorf("%w: high %d < low %d", ErrIndexRange, il.Hi, il.Lo)
	}
	return il, nil
}

// SetModes enables dynamic resolution with the given table.
// The table is copied; an error leaves the engine in static resolution.
func (lt *Light) SetModes(modes []Mode, limits IndexLimits) error {
	if len(modes) == 0 {
		return ErrNoModes
	}
	if err := limits.Validate(len(modes)); err != nil {
		return err
	}
	lt.modes = append([]Mode(nil), modes...)
	lt.limits = limits
	lt.Index = limits.Hi
	return nil
}

// DisableModes falls back to the static resolution in the Config
func (lt *Light) DisableModes() {
	lt.modes = nil
	lt.limits = IndexLimits{}
	lt.Index = 0
	lt.indexChanged = false
}

func (lt *Light) Modes() []Mode {
	return lt.modes
}

func (lt *Light) Limits() IndexLimits {
	return lt.limits
}

func (lt *Light) Dynamic() bool {
	return len(lt.modes) > 0
}

// SelectMode makes table entry i the active resolution and mirrors it into
// the Config. i is clamped into the index limits. A resolution change
// invalidates any settled thresholds so the next sample must be polled.
func (lt *Light) SelectMode(i int) Result {
	if len(lt.modes) == 0 {
		return NoChange
	}
	if i < lt.limits.Lo {
		i = lt.limits.Lo
	} else if i > lt.limits.Hi {
		i = lt.limits.Hi
	}
	m := lt.modes[i]
	lt.Index = i
	lt.indexChanged = true
	lt.Cfg.Resolution = m.Resolution
	lt.Cfg.MaxRange = m.MaxRange
	lt.Cfg.MilliAmp = m.MilliAmp
	lt.Cfg.DelayUSMin = m.DelayMinMS * 1000
	l.Debugf("Resolution index %d: resolution %s, max range %s", i, m.Resolution, m.MaxRange)
	return PollNext
}

// step moves at most one table entry per cycle when the raw value sits at
// either end of the HW range
func (lt *Light) step() {
	if len(lt.modes) == 0 {
		return
	}
	if lt.HWLimitHi && lt.Index < lt.limits.Hi {
		// too many photons, less sensitive mode
		lt.SelectMode(lt.Index + 1)
	} else if lt.HWLimitLo && lt.Index > lt.limits.Lo {
		// not enough photons, more sensitive mode
		lt.SelectMode(lt.Index - 1)
	}
}
