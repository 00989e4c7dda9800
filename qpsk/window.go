package qpsk

// delayLine is a circular buffer with power-of-two physical size so tap
// lookups reduce to a mask.
type delayLine struct {
	buf  []float32
	mask int
	head int
}

func newDelayLine(minLength int) *delayLine {
	size := 1
	for size < minLength {
		size <<= 1
	}
	return &delayLine{
		buf:  make([]float32, size),
		mask: size - 1,
	}
}

func (d *delayLine) Reset() {
	for i := range d.buf {
		d.buf[i] = 0
	}
	d.head = 0
}

// Tap returns the i-th most recent sample; Tap(0) is the newest.
// Undefined for i >= physical size.
func (d *delayLine) Tap(i int) float32 {
	return d.buf[(d.head+len(d.buf)-1-i)&d.mask]
}

func (d *delayLine) Write(in float32) {
	d.buf[d.head] = in
	d.head = (d.head + 1) & d.mask
}

// Window is a delay line of logical length L with an O(1) running sum.
// Floating-point running sums accumulate rounding error, so a second
// accumulator is built in parallel and swapped in every L writes,
// bounding the drift to one window's worth of rounding.
type Window struct {
	line    *delayLine
	length  int
	sum     float32
	refresh float32
	count   int
}

// NewWindow creates a window of logical length length.
func NewWindow(length int) *Window {
	return &Window{
		line:   newDelayLine(length),
		length: length,
	}
}

// Reset clears contents and both accumulators.
func (w *Window) Reset() {
	w.line.Reset()
	w.sum = 0
	w.refresh = 0
	w.count = 0
}

// Write shifts in a sample and updates the running sum.
func (w *Window) Write(in float32) {
	w.sum += in - w.line.Tap(w.length-1)
	w.line.Write(in)

	w.refresh += in
	w.count++
	if w.count == w.length {
		w.sum = w.refresh
		w.refresh = 0
		w.count = 0
	}
}

// Tap returns the i-th most recent sample.
func (w *Window) Tap(i int) float32 {
	return w.line.Tap(i)
}

// Sum returns the running sum of the last L samples.
func (w *Window) Sum() float32 {
	return w.sum
}

// Length returns the logical window length.
func (w *Window) Length() int {
	return w.length
}

// Bay is a cascade of width windows of equal length. A write pushes the
// oldest sample of window i into window i+1, so window 0 holds the most
// recent length samples, window 1 the length before that, and so on.
type Bay struct {
	windows []*Window
	sum     float32
}

// NewBay creates a bay of width windows, each of the given length.
func NewBay(length, width int) *Bay {
	windows := make([]*Window, width)
	for i := range windows {
		windows[i] = NewWindow(length)
	}
	return &Bay{windows: windows}
}

// Reset clears every stage.
func (b *Bay) Reset() {
	for _, w := range b.windows {
		w.Reset()
	}
	b.sum = 0
}

// Write shifts a sample through the cascade.
func (b *Bay) Write(in float32) {
	b.sum += in
	var out float32
	for _, w := range b.windows {
		out = w.Tap(w.length - 1)
		w.Write(in)
		in = out
	}
	b.sum -= out
}

// Window returns stage i; stage 0 is the most recent.
func (b *Bay) Window(i int) *Window {
	return b.windows[i]
}

// Sum returns the grand total across all stages.
func (b *Bay) Sum() float32 {
	return b.sum
}
