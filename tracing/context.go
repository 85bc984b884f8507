package tracing

import "context"

type timerContextKey struct{}

// ContextWithTimer returns a context that carries t as the currently
// active timer. The dispatcher establishes this for the dynamic extent of
// an invocation; the value crosses worker-pool handoffs because it rides
// on the context passed to Submit.
func ContextWithTimer(ctx context.Context, t *Timer) context.Context {
	return context.WithValue(ctx, timerContextKey{}, t)
}

// TimerFromContext returns the currently active timer, or nil when the
// context is outside any instrumented invocation.
func TimerFromContext(ctx context.Context) *Timer {
	t, _ := ctx.Value(timerContextKey{}).(*Timer)
	return t
}
