package buffer

// Kind tells whether a stage produced its own output or handed its input
// back after working in place.
type Kind uint8

const (
	// KindOwned means the result lives in the producing stage's storage.
	KindOwned Kind = iota + 1

	// KindAlias means the result is the input buffer itself.
	KindAlias
)

func (k Kind) String() string {
	switch k {
	case KindOwned:
		return "owned"
	case KindAlias:
		return "alias"
	default:
		return "invalid"
	}
}

// Result is what every stage call returns.
type Result[T Sample] struct {
	Kind Kind
	Buf  *Buffer[T]
}

// Owned wraps a buffer written by the stage that owns it.
func Owned[T Sample](b *Buffer[T]) Result[T] {
	return Result[T]{Kind: KindOwned, Buf: b}
}

// Alias wraps an input buffer returned after in-place work or passthrough.
func Alias[T Sample](b *Buffer[T]) Result[T] {
	return Result[T]{Kind: KindAlias, Buf: b}
}

// IsOwned reports whether the result lives in the producer's storage.
func (r Result[T]) IsOwned() bool {
	return r.Kind == KindOwned
}
