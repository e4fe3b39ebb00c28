package logging

import (
	"context"
	"log/slog"
)

// RequestAttrs is the request context attached to every log line. It never
// holds the query string, which may carry a token.
type RequestAttrs struct {
	Method string
	Path   string
	IP     string
	UserID int64
	ConnID string
}

type contextKey struct{}

func WithRequestAttrs(ctx context.Context, attrs *RequestAttrs) context.Context {
	return context.WithValue(ctx, contextKey{}, attrs)
}

// GetRequestAttrs returns the attributes stored in ctx, or nil.
func GetRequestAttrs(ctx context.Context) *RequestAttrs {
	attrs, _ := ctx.Value(contextKey{}).(*RequestAttrs)
	return attrs
}

// derive stores a modified copy so that contexts handed out earlier keep
// their attributes.
func derive(ctx context.Context, edit func(*RequestAttrs)) context.Context {
	var next RequestAttrs
	if cur := GetRequestAttrs(ctx); cur != nil {
		next = *cur
	}
	edit(&next)
	return WithRequestAttrs(ctx, &next)
}

// UpdateRequestAttrs tags ctx with the authenticated user.
func UpdateRequestAttrs(ctx context.Context, userID int64) context.Context {
	return derive(ctx, func(a *RequestAttrs) { a.UserID = userID })
}

// WithConnID tags ctx with a socket connection id.
func WithConnID(ctx context.Context, connID string) context.Context {
	return derive(ctx, func(a *RequestAttrs) { a.ConnID = connID })
}

// RequestFields returns ctx's attributes as slog args, or nil.
func RequestFields(ctx context.Context) []any {
	attrs := GetRequestAttrs(ctx)
	if attrs == nil {
		return nil
	}

	fields := []any{
		slog.String("method", attrs.Method),
		slog.String("path", attrs.Path),
		slog.String("ip", attrs.IP),
	}
	if attrs.UserID != 0 {
		fields = append(fields, slog.Int64("user_id", attrs.UserID))
	}
	if attrs.ConnID != "" {
		fields = append(fields, slog.String("conn_id", attrs.ConnID))
	}
	return fields
}
