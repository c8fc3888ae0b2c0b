package daemon

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"triage/internal/assessment"
	"triage/internal/services"
	"triage/internal/supabase"
)

// operatorID identifies requests authenticated with the static API token.
const operatorID = "operator"

type identityKey struct{}

// requestIdentity is the caller resolved by authMiddleware. User is nil for
// anonymous and operator requests.
type requestIdentity struct {
	User     *assessment.User
	Operator bool
}

func identityFromContext(ctx context.Context) requestIdentity {
	if id, ok := ctx.Value(identityKey{}).(requestIdentity); ok {
		return id
	}
	return requestIdentity{}
}

// userID returns the authenticated user id, or "" for operator and anonymous
// callers.
func (id requestIdentity) userID() string {
	if id.User == nil {
		return ""
	}
	return id.User.ID
}

// authMiddleware validates bearer tokens.
// The static token, when set, authenticates an operator. Any other token is
// resolved through identity. Requests without a token pass through only when
// neither auth.required nor a static token is configured. A presented token
// that cannot be resolved is always rejected.
func (s *apiServer) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	staticToken := s.apiToken
	identity := s.identity
	required := s.authRequired || staticToken != ""

	return func(w http.ResponseWriter, r *http.Request) {
		token, present := bearerToken(r)
		if !present {
			if required {
				s.writeError(w, r, services.Wrap(services.ErrUnauthorized, "api-server", "authenticate", "bearer token required", nil))
				return
			}
			next(w, r)
			return
		}

		ctx := r.Context()
		switch {
		case staticToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(staticToken)) == 1:
			ctx = context.WithValue(ctx, identityKey{}, requestIdentity{Operator: true})
			ctx = services.WithUserID(ctx, operatorID)
		case identity != nil:
			user, err := identity.Lookup(ctx, token)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			ctx = context.WithValue(ctx, identityKey{}, requestIdentity{User: user})
			ctx = services.WithUserID(ctx, user.ID)
			ctx = supabase.WithAccessToken(ctx, token)
		default:
			s.writeError(w, r, services.Wrap(services.ErrUnauthorized, "api-server", "authenticate", "invalid token", nil))
			return
		}
		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		// EventSource cannot set headers.
		if token := strings.TrimSpace(r.URL.Query().Get("access_token")); token != "" {
			return token, true
		}
		return "", false
	}
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", true
	}
	return strings.TrimSpace(token), true
}
