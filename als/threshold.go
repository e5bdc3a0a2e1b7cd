package als

// evalThresholds derives the threshold and saturation flags for the current
// HW value and returns the usable deltas. A delta at or above the HW mask
// can't produce a bound, it's treated as 0 and the bound is disabled.
func (lt *Light) evalThresholds() (uint32, uint32) {
	threshLo := lt.Cfg.ThreshLo
	threshHi := lt.Cfg.ThreshHi
	lt.ThreshValidLo = threshLo < lt.HWMask
	if !lt.ThreshValidLo {
		threshLo = 0
	}
	lt.ThreshValidHi = threshHi < lt.HWMask
	if !lt.ThreshValidHi {
		threshHi = 0
	}
	lt.ThresholdsValid = lt.ThreshValidLo && lt.ThreshValidHi

	lt.HWLimitLo = lt.HW < threshLo || lt.HW == 0
	lt.HWLimitHi = lt.HW == lt.HWMask || lt.HW > lt.HWMask-threshHi
	return threshLo, threshHi
}

// armThresholds centers the HW threshold window on the current value.
// 0 disables the low threshold, HWMask disables the high one.
func (lt *Light) armThresholds(threshLo, threshHi uint32) {
	if lt.HW < threshLo {
		lt.HWThreshLo = 0
	} else {
		lt.HWThreshLo = lt.HW - threshLo
	}
	if uint64(lt.HW)+uint64(threshHi) > uint64(lt.HWMask) {
		lt.HWThreshHi = lt.HWMask
	} else {
		lt.HWThreshHi = lt.HW + threshHi
	}
}
