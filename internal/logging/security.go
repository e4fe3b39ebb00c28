package logging

import (
	"context"
	"log/slog"
	"net"
	"net/http"
)

// SecurityEvent names a rejected or suspicious request in the logs.
type SecurityEvent string

const (
	SecurityEventMissingAuth     SecurityEvent = "missing_auth"
	SecurityEventInvalidAuthFmt  SecurityEvent = "invalid_auth_format"
	SecurityEventInvalidJWT      SecurityEvent = "invalid_jwt"
	SecurityEventSocketRejected  SecurityEvent = "socket_rejected"
	SecurityEventNotParticipant  SecurityEvent = "not_participant"
	SecurityEventRateLimited     SecurityEvent = "rate_limited"
	SecurityEventSocketThrottled SecurityEvent = "socket_throttled"
)

// LogSecurityEvent logs at WARN with the request fields from ctx.
func LogSecurityEvent(ctx context.Context, event SecurityEvent, msg string, extra ...any) {
	fields := append(RequestFields(ctx), slog.String("security_event", string(event)))
	slog.WarnContext(ctx, msg, append(fields, extra...)...)
}

// LogDeliveryFailure logs a push that one connection did not accept.
func LogDeliveryFailure(ctx context.Context, channel, connID string, err error) {
	slog.WarnContext(ctx, "delivery failed",
		slog.String("channel", channel),
		slog.String("conn_id", connID),
		slog.Any("error", err),
	)
}

func LogErrorWithStatus(ctx context.Context, status int, msg string, err error) {
	fields := append(RequestFields(ctx), slog.Int("status", status))
	if err != nil {
		fields = append(fields, slog.Any("error", err))
	}
	slog.ErrorContext(ctx, msg, fields...)
}

// ExtractClientIP returns the client address resolved by the RealIP
// middleware, or the direct peer when that middleware is not installed.
func ExtractClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
