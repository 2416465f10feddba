package context

import "context"

type contextKey string

const (
	requestIDKey  contextKey = "request_id"
	clientInfoKey contextKey = "client_info"
)

// WithRequestID injects ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID extracts ID
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ClientInfo describes the caller of the current request for audit records.
type ClientInfo struct {
	IP        string
	UserAgent string
}

func WithClientInfo(ctx context.Context, ci ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey, ci)
}

func GetClientInfo(ctx context.Context) ClientInfo {
	if ctx == nil {
		return ClientInfo{}
	}
	ci, _ := ctx.Value(clientInfoKey).(ClientInfo)
	return ci
}
