package risk

import "context"

// noCtx is used for the best-effort notifier calls the Guard makes from
// non-request-scoped code paths (balance updates, ban transitions).
func noCtx() context.Context { return context.Background() }
