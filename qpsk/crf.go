package qpsk

import "fmt"

// Carrier-rejection kernels: length-7 equi-ripple lowpass per
// samples-per-symbol ratio, passband [0, 1/D], stopband [2/D, 0.5].
// These remove the 2·f_carrier image left by the I/Q mixer. The taps
// are an interop constant; do not regenerate.
const crfKernelLength = 7

var crfKernels = map[int][crfKernelLength]float32{
	6: {
		-7.61504431e-02, 4.23661388e-05, 3.04728871e-01, 5.00042366e-01,
		3.04728871e-01, 4.23661388e-05, -7.61504431e-02,
	},
	8: {
		-4.62606751e-02, 1.25000000e-01, 2.96260675e-01, 3.82800831e-01,
		2.96260675e-01, 1.25000000e-01, -4.62606751e-02,
	},
	12: {
		4.06822339e-02, 2.09317766e-01, 2.09317766e-01, 2.54748848e-01,
		2.09317766e-01, 2.09317766e-01, 4.06822339e-02,
	},
	16: {
		1.56977082e-01, 1.37855092e-01, 1.68060009e-01, 1.79345186e-01,
		1.68060009e-01, 1.37855092e-01, 1.56977082e-01,
	},
}

// CarrierRejectionFilter is the post-mixer FIR lowpass, one instance per
// rail (I and Q).
type CarrierRejectionFilter struct {
	kernel [crfKernelLength]float32
	window *Window
}

// NewCarrierRejectionFilter creates a filter for the given
// samples-per-symbol ratio. Only 6, 8, 12 and 16 have kernels.
func NewCarrierRejectionFilter(samplesPerSymbol int) (*CarrierRejectionFilter, error) {
	kernel, ok := crfKernels[samplesPerSymbol]
	if !ok {
		return nil, fmt.Errorf("unsupported samples per symbol: %d (want 6, 8, 12 or 16)", samplesPerSymbol)
	}
	return &CarrierRejectionFilter{
		kernel: kernel,
		window: NewWindow(crfKernelLength),
	}, nil
}

// Reset clears the filter history.
func (f *CarrierRejectionFilter) Reset() {
	f.window.Reset()
}

// Process filters one sample.
func (f *CarrierRejectionFilter) Process(in float32) float32 {
	f.window.Write(in)

	var sum float32
	for i := 0; i < crfKernelLength; i++ {
		sum += f.window.Tap(i) * f.kernel[i]
	}
	return sum
}
