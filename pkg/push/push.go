package push

import (
	"context"
	"strings"
)

type tokenKey struct{}

// WithToken attaches the caller's device push token to ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, strings.TrimSpace(token))
}

// Registrar yields the device push token of the current caller, if any.
type Registrar struct {
	fallback string
}

func NewRegistrar(fallback string) *Registrar {
	return &Registrar{fallback: strings.TrimSpace(fallback)}
}

// DeviceToken never fails; a missing token is reported with ok=false.
func (r *Registrar) DeviceToken(ctx context.Context) (string, bool) {
	if token, _ := ctx.Value(tokenKey{}).(string); token != "" {
		return token, true
	}
	if r == nil || r.fallback == "" {
		return "", false
	}
	return r.fallback, true
}
