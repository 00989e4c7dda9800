package qpsk

// Stats counts decode activity since the decoder was created. Consumer
// context only; callers reading these (see cmd/qpskrx) snapshot them
// between Process calls.
type Stats struct {
	Samples       uint64
	Packets       uint64
	Blocks        uint64
	Transmissions uint64
	Errors        uint64
}
