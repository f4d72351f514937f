package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ordersvc/internal/dto"
)

// Principal is the authenticated caller extracted from a Keycloak access token.
type Principal struct {
	Subject  string
	Username string
	Roles    []string
}

func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

type KeySource interface {
	Keyfunc(ctx context.Context) jwt.Keyfunc
}

// Middleware rejects requests without a valid bearer token (401) or without the required realm role (403).
type Middleware struct {
	keys         KeySource
	issuer       string
	requiredRole string
	logger       *zap.Logger
}

func NewMiddleware(keys KeySource, issuer, requiredRole string, logger *zap.Logger) *Middleware {
	return &Middleware{
		keys:         keys,
		issuer:       issuer,
		requiredRole: requiredRole,
		logger:       logger,
	}
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		tokenStr, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			m.reject(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}

		claims := jwt.MapClaims{}
		parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
		if _, err := parser.ParseWithClaims(tokenStr, claims, m.keys.Keyfunc(ctx)); err != nil {
			m.logger.Warn("token verification failed", zap.Error(err))
			if errors.Is(err, ErrJWKSFetchFailed) {
				m.reject(w, http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "token verification unavailable")
				return
			}
			m.reject(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			return
		}

		if m.issuer != "" && !claims.VerifyIssuer(m.issuer, true) {
			m.logger.Warn("token issuer mismatch", zap.Any("issuer", claims["iss"]))
			m.reject(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token issuer")
			return
		}

		principal := principalFromClaims(claims)
		if m.requiredRole != "" && !principal.HasRole(m.requiredRole) {
			m.logger.Warn("missing required role", zap.String("subject", principal.Subject), zap.String("requiredRole", m.requiredRole))
			m.reject(w, http.StatusForbidden, "FORBIDDEN", "missing required role")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
	})
}

func (m *Middleware) reject(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := dto.ErrorResponse{
		TraceID:   uuid.New().String(),
		Status:    status,
		Message:   message,
		Code:      code,
		Timestamp: time.Now().UTC(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		m.logger.Error("failed to encode response", zap.Error(err))
	}
}

// principalFromClaims reads Keycloak's realm_access.roles claim.
func principalFromClaims(claims jwt.MapClaims) *Principal {
	p := &Principal{}
	p.Subject, _ = claims["sub"].(string)
	p.Username, _ = claims["preferred_username"].(string)

	realm, _ := claims["realm_access"].(map[string]any)
	roles, _ := realm["roles"].([]any)
	for _, r := range roles {
		if s, ok := r.(string); ok {
			p.Roles = append(p.Roles, s)
		}
	}
	return p
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
