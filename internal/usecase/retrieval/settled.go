package retrieval

import "context"

// settled carries one concurrent call's outcome without letting its failure
// abort the sibling call.
type settled[T any] struct {
	Value T
	Err   error
}

// joinSettled runs both functions concurrently and waits for both to finish,
// regardless of either one's error. This is the Engine's "join all settled"
// primitive: a dead Embedder must not take the variant expansion down with
// it, and vice versa.
func joinSettled[A, B any](ctx context.Context, fa func(context.Context) (A, error), fb func(context.Context) (B, error)) (settled[A], settled[B]) {
	var (
		ra settled[A]
		rb settled[B]
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ra.Value, ra.Err = fa(ctx)
	}()
	rb.Value, rb.Err = fb(ctx)
	<-done
	return ra, rb
}
