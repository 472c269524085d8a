package auth

import (
	"context"
	"fmt"
	"net/http"

	"ms-booking/internal/booking"
	"ms-booking/internal/logger"

	"github.com/coreos/go-oidc/v3/oidc"
)

type contextKey string

const actorKey contextKey = "actor"

// Claims are the token fields the booking service relies on
type Claims struct {
	Sub      string `json:"sub"`
	TenantID string `json:"tenant_id"`
}

// Verifier turns a raw bearer token into claims
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (Claims, error)
}

// OIDCVerifier checks signatures against the issuer's published keys
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(ctx context.Context, issuer string) (*OIDCVerifier, error) {
	if issuer == "" {
		return nil, fmt.Errorf("OIDC issuer not set")
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	// SkipClientIDCheck → no client ID required
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{SkipClientIDCheck: true})}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (Claims, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return Claims{}, err
	}
	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return Claims{}, fmt.Errorf("failed to parse claims: %w", err)
	}
	return claims, nil
}

// Middleware authenticates the request and stores the booking.Actor in its context
func Middleware(v Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Discard()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			claims, err := v.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("TOKEN_REJECTED", err.Error())
				http.Error(w, fmt.Sprintf("invalid token: %v", err), http.StatusUnauthorized)
				return
			}
			if claims.Sub == "" || claims.TenantID == "" {
				log.LogSecurity("CLAIMS_MISSING", "token without sub or tenant_id")
				http.Error(w, "token must carry sub and tenant_id", http.StatusForbidden)
				return
			}

			ctx := WithActor(r.Context(), booking.Actor{TenantID: claims.TenantID, ActorID: claims.Sub})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithActor(ctx context.Context, actor booking.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the authenticated actor, ok is false on unauthenticated requests
func ActorFromContext(ctx context.Context) (booking.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(booking.Actor)
	return actor, ok && actor.TenantID != ""
}
