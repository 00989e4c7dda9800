package qpsk

import (
	"fmt"
	"math"
)

// DemodulatorState represents the acquisition state machine.
type DemodulatorState int

const (
	DemodWaitToSettle DemodulatorState = iota
	DemodSenseGain
	DemodCarrierSync
	DemodAlign
	DemodOk
	DemodError
)

// String returns the string representation of the state.
func (s DemodulatorState) String() string {
	switch s {
	case DemodWaitToSettle:
		return "WaitToSettle"
	case DemodSenseGain:
		return "SenseGain"
	case DemodCarrierSync:
		return "CarrierSync"
	case DemodAlign:
		return "Align"
	case DemodOk:
		return "Ok"
	case DemodError:
		return "Error"
	default:
		return "Unknown"
	}
}

const (
	// Envelope level below which there is no usable carrier.
	levelThreshold = 0.05

	// AGC scales the envelope to this level before mixing.
	agcTargetLevel = 0.64

	// A shifted symbol window must beat the on-time window by this
	// ratio before the timing gate takes it.
	timingGateRatio = 1.25

	// Correlation peaks averaged before symbol timing is trusted.
	numCorrelationPeaks = 8

	// Phase detector output scaling into the PLL.
	demodErrorGain = 1.0 / 16

	dcBlockCutoff  = 0.001
	envelopeCutoff = 0.0001
)

// Demodulator recovers 2-bit QPSK symbols from a real-valued sample
// stream. One call to Process consumes one sample and yields at most
// one symbol per symbol period once timing is locked.
type Demodulator struct {
	samplesPerSymbol  int
	settlingTime      int
	carrierSyncLength int

	state    DemodulatorState
	hpf      OnePoleHighpass
	follower OnePoleLowpass
	agcGain  float32

	pll        *PhaseLockedLoop
	crfI, crfQ *CarrierRejectionFilter
	correlator *Correlator
	iHistory   *Bay
	qHistory   *Bay

	decisionPhase  float32
	skipDecision   bool
	skippedSamples int
	zeroSymbols    int

	peakCount int
	phaseSumI float64
	phaseSumQ float64
}

// NewDemodulator creates a demodulator for the given rates. The sample
// rate must be an integer multiple of the symbol rate with a supported
// ratio.
func NewDemodulator(sampleRate, symbolRate int) (*Demodulator, error) {
	if symbolRate <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid rates: %d/%d", sampleRate, symbolRate)
	}
	if sampleRate%symbolRate != 0 {
		return nil, fmt.Errorf("sample rate %d is not a multiple of symbol rate %d", sampleRate, symbolRate)
	}
	sps := sampleRate / symbolRate

	crfI, err := NewCarrierRejectionFilter(sps)
	if err != nil {
		return nil, err
	}
	crfQ, _ := NewCarrierRejectionFilter(sps)

	d := &Demodulator{
		samplesPerSymbol:  sps,
		settlingTime:      sampleRate / 4,
		carrierSyncLength: (symbolRate + 39) / 40,
		pll:               NewPhaseLockedLoop(1 / float32(sps)),
		crfI:              crfI,
		crfQ:              crfQ,
		correlator:        NewCorrelator(sps),
		iHistory:          NewBay(sps, AlignmentPatternLength),
		qHistory:          NewBay(sps, AlignmentPatternLength),
	}
	d.hpf.Configure(dcBlockCutoff)
	d.follower.Configure(envelopeCutoff)
	d.Reset()
	return d, nil
}

// Reset restores power-on state: gain is re-sensed from scratch and all
// loop state is discarded.
func (d *Demodulator) Reset() {
	d.state = DemodWaitToSettle
	d.hpf.Reset()
	d.follower.Reset()
	d.agcGain = 1

	d.pll.Reset()
	d.crfI.Reset()
	d.crfQ.Reset()
	d.correlator.Reset()
	d.iHistory.Reset()
	d.qHistory.Reset()

	d.decisionPhase = 0
	d.skipDecision = false
	d.skippedSamples = 0
	d.zeroSymbols = 0
	d.peakCount = 0
	d.phaseSumI = 0
	d.phaseSumQ = 0
}

// BeginCarrierSync re-acquires the carrier after a pause in the
// transmission, keeping the learned AGC gain and PLL rate.
func (d *Demodulator) BeginCarrierSync() {
	d.state = DemodCarrierSync
	d.skippedSamples = 0
	d.zeroSymbols = 0
	d.pll.Sync()
}

// State returns the current acquisition state.
func (d *Demodulator) State() DemodulatorState {
	return d.state
}

// Failed reports whether the carrier was lost.
func (d *Demodulator) Failed() bool {
	return d.state == DemodError
}

// SignalPower returns the tracked input envelope.
func (d *Demodulator) SignalPower() float32 {
	return d.follower.Output()
}

// PllPhase returns the oscillator phase, for diagnostics.
func (d *Demodulator) PllPhase() float32 {
	return d.pll.Phase()
}

// PllPhaseIncrement returns the learned per-sample phase step.
func (d *Demodulator) PllPhaseIncrement() float32 {
	return d.pll.PhaseIncrement()
}

// DecisionPhase returns the locked symbol sampling phase.
func (d *Demodulator) DecisionPhase() float32 {
	return d.decisionPhase
}

// Process consumes one sample. ok is true when a symbol was decided,
// at most once per symbol period and only after timing lock.
func (d *Demodulator) Process(sample float32) (symbol uint8, ok bool) {
	sample = d.hpf.Process(sample)
	d.follower.Process(abs32(sample))
	level := d.follower.Output()
	sample *= d.agcGain

	switch d.state {
	case DemodWaitToSettle:
		if d.skippedSamples < d.settlingTime {
			d.skippedSamples++
		} else if level > levelThreshold {
			d.skippedSamples = 0
			d.state = DemodSenseGain
		}
		return 0, false

	case DemodSenseGain:
		if d.skippedSamples < d.settlingTime {
			d.skippedSamples++
		} else if level > levelThreshold {
			d.agcGain = agcTargetLevel / level
			d.state = DemodCarrierSync
			d.zeroSymbols = 0
		} else {
			d.skippedSamples = 0
			d.state = DemodWaitToSettle
		}
		return 0, false

	case DemodError:
		return 0, false
	}

	if level < levelThreshold {
		d.state = DemodError
		return 0, false
	}

	return d.demodulate(sample)
}

func (d *Demodulator) demodulate(sample float32) (uint8, bool) {
	phase := d.pll.Phase()

	i := d.crfI.Process(2 * sample * cosineNorm(phase))
	q := d.crfQ.Process(-2 * sample * sineNorm(phase))

	var phaseError float32
	if d.state == DemodCarrierSync {
		// Lock onto the zero-symbol leader at constellation (-1,-1).
		phaseError = q - i
	} else {
		// Decision-directed Costas detector.
		if q > 0 {
			phaseError = i
		} else {
			phaseError = -i
		}
		if i > 0 {
			phaseError -= q
		} else {
			phaseError += q
		}
	}
	d.pll.Process(phaseError * demodErrorGain)

	d.qHistory.Write(q)
	d.iHistory.Write(i)

	prevPhase := phase
	phase = d.pll.Phase()
	wrapped := prevPhase > phase

	var decide bool
	if !wrapped {
		decide = prevPhase < d.decisionPhase && phase >= d.decisionPhase
	} else {
		decide = prevPhase < d.decisionPhase || phase >= d.decisionPhase
	}
	if decide && d.skipDecision {
		d.skipDecision = false
		decide = false
	}

	var symbol uint8
	var valid bool

	if decide {
		switch d.state {
		case DemodCarrierSync:
			// Ride the zero-symbol leader until the loop has clearly
			// settled, then hand over to the correlator. It sees only
			// more leader at first, which cannot correlate, so it is
			// primed well before the alignment pattern arrives.
			if d.decideSymbol(false) == 0 {
				d.zeroSymbols++
				if d.zeroSymbols >= d.carrierSyncLength {
					d.beginAlign()
				}
			} else {
				d.zeroSymbols = 0
			}

		case DemodOk:
			symbol = d.decideSymbol(true)
			valid = true
		}
	}

	if d.state == DemodAlign {
		if peak, tilt := d.correlator.Process(d.iHistory, d.qHistory); peak {
			// The peak is flagged one sample after the true maximum:
			// roll the phase back one step and apply the tilt.
			inc := d.pll.PhaseIncrement()
			est := fractionalPart(phase - (1-tilt)*inc + 2)

			d.phaseSumI += math.Cos(2 * math.Pi * float64(est))
			d.phaseSumQ += math.Sin(2 * math.Pi * float64(est))
			d.peakCount++

			if d.peakCount == numCorrelationPeaks {
				dp := float32(math.Atan2(d.phaseSumQ, d.phaseSumI) / (2 * math.Pi))
				if dp < 0 {
					dp++
				}
				d.decisionPhase = dp
				if fractionalPart(dp-phase+1) <= 0.5 {
					// The next crossing would still sample the
					// alignment tail; sit out one symbol.
					d.skipDecision = true
				}
				d.state = DemodOk
			}
		}
	}

	return symbol, valid
}

func (d *Demodulator) beginAlign() {
	d.state = DemodAlign
	d.decisionPhase = 0
	d.skipDecision = false
	d.correlator.Reset()
	d.peakCount = 0
	d.phaseSumI = 0
	d.phaseSumQ = 0
}

// decideSymbol slices the accumulated I/Q window sums into a symbol.
// With adjustTiming set, windows shifted one sample early and late are
// considered too, compensating for sample clock drift against the
// transmitter.
func (d *Demodulator) decideSymbol(adjustTiming bool) uint8 {
	iWin := d.iHistory.Window(0)
	qWin := d.qHistory.Window(0)

	iSum := iWin.Sum()
	qSum := qWin.Sum()

	latest, late := 0, 1
	early, earliest := d.samplesPerSymbol-2, d.samplesPerSymbol-1

	iOnTime := iSum - iWin.Tap(latest) - iWin.Tap(earliest)
	qOnTime := qSum - qWin.Tap(latest) - qWin.Tap(earliest)

	if adjustTiming {
		iLate := iSum - iWin.Tap(early) - iWin.Tap(earliest)
		qLate := qSum - qWin.Tap(early) - qWin.Tap(earliest)
		iEarly := iSum - iWin.Tap(late) - iWin.Tap(latest)
		qEarly := qSum - qWin.Tap(late) - qWin.Tap(latest)

		lateStrength := abs32(qLate) + abs32(iLate)
		onTimeStrength := abs32(qOnTime) + abs32(iOnTime)
		earlyStrength := abs32(qEarly) + abs32(iEarly)

		threshold := timingGateRatio * onTimeStrength

		switch {
		case lateStrength > threshold:
			iSum, qSum = iLate, qLate
		case earlyStrength > threshold:
			iSum, qSum = iEarly, qEarly
		}
	} else {
		iSum, qSum = iOnTime, qOnTime
	}

	var symbol uint8
	if iSum >= 0 {
		symbol += 2
	}
	if qSum >= 0 {
		symbol++
	}
	return symbol
}
