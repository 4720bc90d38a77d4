package http

// SetSample replaces the cache-probability draw so tests can force the
// gate open or closed deterministically.
func (h *Handler) SetSample(sample func() float64) {
	h.sample = sample
}
