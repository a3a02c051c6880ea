package status

import "sync/atomic"

// Indicator reflects whether the bridge is currently connected.
type Indicator interface {
	SetActive(bool)
}

// SetActiveFunc is func type of Indicator.
type SetActiveFunc func(bool)

// SetActive implements Indicator.
func (f SetActiveFunc) SetActive(active bool) {
	f(active)
}

// Indicators drives multiple indicators together.
type Indicators []Indicator

// SetActive implements Indicator.
func (s Indicators) SetActive(active bool) {
	for _, ind := range s {
		if ind != nil {
			ind.SetActive(active)
		}
	}
}

// Flag is an Indicator holding the last state, readable from any goroutine.
type Flag struct {
	active atomic.Bool
}

// SetActive implements Indicator.
func (f *Flag) SetActive(active bool) {
	f.active.Store(active)
}

// Active returns the last state.
func (f *Flag) Active() bool {
	return f.active.Load()
}
