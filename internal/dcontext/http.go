package dcontext

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// WithRequest returns a context carrying a request id and a logger tagged
// with the request's method, path, store and remote address.
func WithRequest(ctx context.Context, r *http.Request) context.Context {
	ctx = WithRequestID(ctx)
	logger := GetLoggerWithFields(ctx, map[any]any{
		"http.request.method":     r.Method,
		"http.request.uri":        r.RequestURI,
		"http.request.remoteaddr": RemoteAddr(r),
	})
	return WithLogger(ctx, logger)
}

// RemoteAddr extracts the remote address of the request, preferring the
// first well formed X-Forwarded-For entry, then X-Real-Ip.
func RemoteAddr(r *http.Request) string {
	if prior := r.Header.Get("X-Forwarded-For"); prior != "" {
		addr, _, _ := strings.Cut(prior, ",")
		addr = strings.TrimSpace(addr)
		if net.ParseIP(addr) != nil {
			return addr
		}
		GetLogger(r.Context()).Warnf("invalid X-Forwarded-For address: %q", addr)
	}
	if realIP := r.Header.Get("X-Real-Ip"); realIP != "" && net.ParseIP(realIP) != nil {
		return realIP
	}
	return r.RemoteAddr
}
