package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hackgods/provider-scheduling/internal/identity"
)

const tokenIssuer = "provider-scheduling"

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
)

type actorClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Authenticator turns a bearer token into the acting identity. In dev it
// also accepts X-User-ID and X-User-Role headers so the API can be driven
// without a token issuer.
type Authenticator struct {
	secret []byte
	dev    bool
}

func NewAuthenticator(secret string, dev bool) *Authenticator {
	return &Authenticator{secret: []byte(secret), dev: dev}
}

// IssueToken signs an HS256 token for actor.
func (a *Authenticator) IssueToken(actor identity.Actor, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("no signing secret configured")
	}

	now := time.Now()
	claims := actorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   actor.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: string(actor.Role),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) Verify(tokenString string) (identity.Actor, error) {
	if len(a.secret) == 0 {
		return identity.Actor{}, ErrTokenInvalid
	}

	var claims actorClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return a.secret, nil
		},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return identity.Actor{}, ErrTokenExpired
		}
		return identity.Actor{}, ErrTokenInvalid
	}

	return parseActor(claims.Subject, claims.Role)
}

func parseActor(userID, role string) (identity.Actor, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return identity.Actor{}, ErrTokenInvalid
	}
	r, err := identity.ParseRole(role)
	if err != nil {
		return identity.Actor{}, ErrTokenInvalid
	}
	return identity.Actor{UserID: id, Role: r}, nil
}

// Middleware rejects requests without a valid identity and stores the
// actor in the request context otherwise.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := a.authenticate(r)
		if err != nil {
			code := "unauthorized"
			if errors.Is(err, ErrTokenExpired) {
				code = "token_expired"
			}
			writeError(w, http.StatusUnauthorized, code, err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(identity.WithActor(r.Context(), actor)))
	})
}

func (a *Authenticator) authenticate(r *http.Request) (identity.Actor, error) {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return a.Verify(strings.TrimSpace(token))
	}

	if a.dev {
		if uid := r.Header.Get("X-User-ID"); uid != "" {
			return parseActor(uid, r.Header.Get("X-User-Role"))
		}
	}

	return identity.Actor{}, errors.New("missing bearer token")
}
