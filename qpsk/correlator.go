package qpsk

// alignmentPattern is the symbol pair the transmitter repeats ahead of
// every marker: constellation points (+1,-1) then (-1,+1). Both marker
// prefixes are orthogonal to it (symbols 3 and 0 add nothing to the
// correlation), so the detection function collapses as soon as the
// marker starts.
var alignmentPattern = [2]uint8{2, 1}

// AlignmentPatternLength is the pattern length in symbols, which is
// also the width of the I/Q history bays the demodulator feeds in.
const AlignmentPatternLength = len(alignmentPattern)

// Correlator detects the alignment pattern in the per-symbol I/Q window
// sums and estimates where, to a fraction of a sample, each pattern
// period ends. The demodulator turns those estimates into its decision
// phase.
type Correlator struct {
	samplesPerSymbol int
	history          *Window
	age              int
	maximum          float32
}

// NewCorrelator creates a correlator for the given samples-per-symbol
// ratio.
func NewCorrelator(samplesPerSymbol int) *Correlator {
	return &Correlator{
		samplesPerSymbol: samplesPerSymbol,
		history:          NewWindow(3),
	}
}

// Reset clears detection state ahead of a new alignment run.
func (c *Correlator) Reset() {
	c.history.Reset()
	c.age = 0
	c.maximum = 0
}

// Process evaluates the correlation against the freshly written I/Q
// bays and reports whether the previous sample was a correlation peak.
// On a peak, tilt is the sub-sample offset of the true maximum in
// [-0.5, 0.5], negative meaning the peak center lies before the
// detected sample.
func (c *Correlator) Process(iHistory, qHistory *Bay) (peak bool, tilt float32) {
	var correlation float32

	for i := 0; i < AlignmentPatternLength; i++ {
		// Window 0 holds the most recent symbol period, so it lines
		// up with the last pattern symbol.
		symbol := alignmentPattern[AlignmentPatternLength-1-i]

		iSum := iHistory.Window(i).Sum()
		qSum := qHistory.Window(i).Sum()

		if symbol&2 != 0 {
			correlation += iSum
		} else {
			correlation -= iSum
		}
		if symbol&1 != 0 {
			correlation += qSum
		} else {
			correlation -= qSum
		}
	}

	if correlation < 0 {
		// Re-arm at every valley so consecutive pattern periods each
		// produce their own peak.
		c.maximum = 0
	} else if correlation > c.maximum {
		c.maximum = correlation
	}

	c.history.Write(correlation)
	c.age++

	// An ideal hit adds four window sums of about 0.7 per sample after
	// AGC, nearly three times the symbol length; anything below one
	// symbol length is noise.
	threshold := float32(c.samplesPerSymbol)

	if c.age < c.samplesPerSymbol {
		return false, 0
	}
	prev := c.history.Tap(1)
	if prev != c.maximum || c.history.Tap(0) >= prev || c.maximum < threshold {
		return false, 0
	}

	left := prev - c.history.Tap(2)
	right := prev - c.history.Tap(0)
	tilt = 0.5 * (left - right) / (left + right)
	return true, tilt
}
