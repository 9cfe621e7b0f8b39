package httpx

import "context"

type ctxKey string

const CtxKeySubject ctxKey = "subject"

// SubjectFromContext returns the signed-in subject RequireSession stored.
func SubjectFromContext(ctx context.Context) string {
	v, _ := ctx.Value(CtxKeySubject).(string)
	return v
}
