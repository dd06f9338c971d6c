package dialer

import "outbound-dialer/internal/telephony"

// Governor converts the provider's concurrency view into a batch size.
type Governor struct {
	// Fallback is used when the status could not be read.
	Fallback int
}

// AvailableSlots returns max(limit-current, 0), or Fallback when err is non-nil.
func (g Governor) AvailableSlots(st telephony.ConcurrencyStatus, err error) int {
	if err != nil {
		return g.Fallback
	}
	free := st.ConcurrencyLimit - st.CurrentConcurrency
	if free < 0 {
		return 0
	}
	return free
}
