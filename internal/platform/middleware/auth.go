package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTValidator defines the interface for validating bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator. NavIdent
// identifies the caseworker performing the change; Enhetsnummer their office.
type JWTClaims struct {
	NavIdent     string
	Enhetsnummer string
}

type contextKeyNavIdent struct{}
type contextKeyEnhetsnummer struct{}

var (
	ContextKeyNavIdent     = contextKeyNavIdent{}
	ContextKeyEnhetsnummer = contextKeyEnhetsnummer{}
)

// GetNavIdent retrieves the authenticated caseworker ident from the context.
func GetNavIdent(ctx context.Context) string {
	ident, ok := ctx.Value(ContextKeyNavIdent).(string)
	if !ok {
		return ""
	}
	return ident
}

// GetEnhetsnummer retrieves the caseworker's office number from the context.
func GetEnhetsnummer(ctx context.Context) string {
	enhet, ok := ctx.Value(ContextKeyEnhetsnummer).(string)
	if !ok {
		return ""
	}
	return enhet
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller identity in context for handlers.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				unauthorized(w)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyNavIdent, claims.NavIdent)
			ctx = context.WithValue(ctx, ContextKeyEnhetsnummer, claims.Enhetsnummer)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Invalid or expired token"}`))
}

// HMACValidator validates HS256 tokens signed with a shared key.
type HMACValidator struct {
	signingKey []byte
}

func NewHMACValidator(signingKey string) *HMACValidator {
	return &HMACValidator{signingKey: []byte(signingKey)}
}

func (v *HMACValidator) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	out := &JWTClaims{}
	if ident, ok := claims["NAVident"].(string); ok {
		out.NavIdent = ident
	}
	if enhet, ok := claims["enhetsnummer"].(string); ok {
		out.Enhetsnummer = enhet
	}
	if out.NavIdent == "" {
		return nil, fmt.Errorf("token missing NAVident claim")
	}
	return out, nil
}
