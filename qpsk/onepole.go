package qpsk

import "math"

// OnePoleLowpass is a first-order IIR lowpass. The cutoff is given as a
// fraction of the sample rate.
type OnePoleLowpass struct {
	factor  float32
	history float32
}

// Configure sets the normalized cutoff frequency and clears state.
func (f *OnePoleLowpass) Configure(normalizedFreq float32) {
	f.factor = float32(1 - math.Exp(-2*math.Pi*float64(normalizedFreq)))
	f.history = 0
}

// Reset clears the filter state without touching the cutoff.
func (f *OnePoleLowpass) Reset() {
	f.history = 0
}

// Process filters one sample.
func (f *OnePoleLowpass) Process(in float32) float32 {
	f.history += f.factor * (in - f.history)
	return f.history
}

// Output returns the last filtered value.
func (f *OnePoleLowpass) Output() float32 {
	return f.history
}

// OnePoleHighpass is the complement of OnePoleLowpass: input minus the
// lowpassed input.
type OnePoleHighpass struct {
	lp OnePoleLowpass
}

// Configure sets the normalized cutoff frequency and clears state.
func (f *OnePoleHighpass) Configure(normalizedFreq float32) {
	f.lp.Configure(normalizedFreq)
}

// Reset clears the filter state.
func (f *OnePoleHighpass) Reset() {
	f.lp.Reset()
}

// Process filters one sample.
func (f *OnePoleHighpass) Process(in float32) float32 {
	return in - f.lp.Process(in)
}
