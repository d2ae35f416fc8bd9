package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"

	"live-quiz-service/internal/domain"
)

// organizerNamespace seeds the name-based UUIDs that identify organizers.
var organizerNamespace = uuid.MustParse("8f0e6d2c-58a4-4c63-9f43-2b1f3e7f9a10")

// Auth issues and verifies organizer tokens (HS256 JWT, subject = organizer id).
type Auth struct {
	tokens     *jwtauth.JWTAuth
	ttl        time.Duration
	organizers map[string]string
	now        func() time.Time
}

// NewAuth builds the organizer authenticator. When organizers is empty any non-empty
// username and password pair is accepted.
func NewAuth(secret string, ttl time.Duration, organizers map[string]string) *Auth {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Auth{
		tokens:     jwtauth.New("HS256", []byte(secret), nil),
		ttl:        ttl,
		organizers: organizers,
		now:        time.Now,
	}
}

// OrganizerID derives the stable organizer id for a username.
func OrganizerID(username string) string {
	return uuid.NewSHA1(organizerNamespace, []byte(strings.ToLower(username))).String()
}

// Login checks the credentials and returns the organizer id and a signed token.
func (a *Auth) Login(username, password string) (string, string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", "", domain.Validationf("username and password are required")
	}
	if len(a.organizers) > 0 {
		want, ok := a.organizers[username]
		if !ok || subtle.ConstantTimeCompare([]byte(want), []byte(password)) != 1 {
			return "", "", domain.ErrUnauthorized
		}
	}
	id := OrganizerID(username)
	token, err := a.Issue(id, username)
	if err != nil {
		return "", "", err
	}
	return id, token, nil
}

// Issue signs a token for organizerID.
func (a *Auth) Issue(organizerID, username string) (string, error) {
	_, token, err := a.tokens.Encode(map[string]interface{}{
		"sub":      organizerID,
		"username": username,
		"exp":      a.now().Add(a.ttl).Unix(),
	})
	return token, err
}

// Verifier extracts and validates a token from the Authorization header or the "token"
// query parameter (browsers cannot set headers on websocket upgrades).
func (a *Auth) Verifier() func(http.Handler) http.Handler {
	return jwtauth.Verify(a.tokens, jwtauth.TokenFromHeader, tokenFromQuery)
}

func tokenFromQuery(r *http.Request) string {
	return r.URL.Query().Get("token")
}

// RequireOrganizer rejects requests without a valid organizer token.
func (a *Auth) RequireOrganizer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if organizerFrom(r.Context()) == "" {
			unauthorized(w, "organizer token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// organizerFrom returns the organizer id of a verified token, or "" when the request
// carries none.
func organizerFrom(ctx context.Context) string {
	token, claims, err := jwtauth.FromContext(ctx)
	if err != nil || token == nil {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}
