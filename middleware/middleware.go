package middleware

import (
	"context"
	"net/http"

	"github.com/pborman/uuid"
)

// type to create context.Context key
type CtxTransactionKeyType string

// context.Context key to get the transaction ID from the request context
const CtxTransactionKey CtxTransactionKeyType = "ctxTransaction"

// NewTransactionID adds a transaction ID to the request context and echoes it
// back on the response so control-plane calls can be correlated with audit
// entries.
func NewTransactionID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tid := uuid.New()
		r = r.WithContext(context.WithValue(r.Context(), CtxTransactionKey, tid))
		w.Header().Set("X-Transaction-Id", tid)
		next.ServeHTTP(w, r)
	})
}

// TransactionID returns the transaction ID stored on the context, if any.
func TransactionID(ctx context.Context) string {
	if tid, ok := ctx.Value(CtxTransactionKey).(string); ok {
		return tid
	}
	return ""
}
