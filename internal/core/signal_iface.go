package core

//go:generate mockgen -source=signal_iface.go -destination=../mocks/mock_signal.go -package=mocks

// Frame is a raw encoded outbound message.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend enqueues without blocking; a full queue returns an error.
	TrySend(Frame) error
	Close()
}
