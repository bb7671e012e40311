package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mpilhlt/docinator/internal/models"

	"github.com/danielgtaylor/huma/v2"
)

const (
	AuthUserKey = "authUser"

	// SchemeName is the security scheme document operations declare.
	SchemeName = "serviceAuth"
)

// Config is the security scheme configuration for the API.
var Config = map[string]*huma.SecurityScheme{
	SchemeName: {
		Type:   "http",
		Scheme: "bearer",
	},
}

// Security is attached to operations that need the service key.
var Security = []map[string][]string{{SchemeName: {}}}

// AuthTermination returns a middleware function that evaluates if any of the preceding
// authentication middleware functions were successful. If not, it rejects the request,
// otherwise it calls the next middleware (or the final handler) function.
// This is supposed to be called as the last auth middleware function in
// the chain.
func AuthTermination(api huma.API, log *slog.Logger) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if !requiresAuth(ctx.Operation(), "") {
			next(ctx)
			return
		}
		if _, ok := ctx.Context().Value(AuthUserKey).(string); ok {
			next(ctx)
			return
		}
		log.WarnContext(ctx.Context(), "Authentication failed",
			"operation", ctx.Operation().OperationID)
		_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "Authentication failed. Perhaps a missing or incorrect API key?")
	}
}

// ServiceKeyAuth checks the bearer token against the configured service key.
// Without a configured key every request is accepted as "anonymous".
func ServiceKeyAuth(api huma.API, options *models.Options) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if !requiresAuth(ctx.Operation(), SchemeName) {
			next(ctx)
			return
		}
		if options.APIKey == "" {
			next(huma.WithValue(ctx, AuthUserKey, "anonymous"))
			return
		}

		header := ctx.Header("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if found && KeyIsValid(token, options.APIKey) {
			next(huma.WithValue(ctx, AuthUserKey, "service"))
			return
		}
		next(ctx)
	}
}

// requiresAuth reports whether op declares the given scheme, or any scheme
// when scheme is empty.
func requiresAuth(op *huma.Operation, scheme string) bool {
	if op == nil {
		return false
	}
	for _, opScheme := range op.Security {
		if scheme == "" && len(opScheme) > 0 {
			return true
		}
		if _, ok := opScheme[scheme]; ok && scheme != "" {
			return true
		}
	}
	return false
}

// KeyIsValid compares both keys in constant time.
func KeyIsValid(rawKey string, expected string) bool {
	if rawKey == "" || expected == "" {
		return false
	}
	a := sha256.Sum256([]byte(rawKey))
	b := sha256.Sum256([]byte(expected))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

// CORSMiddleware handles CORS for the API
func CORSMiddleware(api huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		for key, value := range map[string]string{
			"Access-Control-Allow-Origin":   "*",
			"Access-Control-Allow-Methods":  "GET, POST, OPTIONS",
			"Access-Control-Allow-Headers":  "Accept, Authorization, Content-Type, Content-Disposition, Origin, X-Requested-With",
			"Access-Control-Expose-Headers": "X-Request-ID",
		} {
			ctx.SetHeader(key, value)
		}

		// Preflight requests end here
		if ctx.Method() == http.MethodOptions {
			ctx.SetStatus(http.StatusNoContent)
			return
		}

		next(ctx)
	}
}
