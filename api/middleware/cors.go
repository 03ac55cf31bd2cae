package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/cors"
)

const devOrigin = "http://localhost:3000"

// corsOptions builds the policy for COMMERCE_CORS_ORIGINS. With no origins
// configured only the local storefront is allowed. A "*" entry opens the API
// to any origin but then never sends credentials.
func corsOptions(origins []string) cors.Options {
	clean := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			clean = append(clean, strings.TrimRight(o, "/"))
		}
	}
	if len(clean) == 0 {
		clean = []string{devOrigin}
	}
	wildcard := slices.Contains(clean, "*")
	if wildcard {
		clean = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins: clean,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type",
			idempotencyHeader, tenantHeader, guestTokenHeader, "X-Request-Id",
		},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After", replayedHeader},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	}
}

func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(corsOptions(origins))
}
