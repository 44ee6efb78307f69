package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/hlog"
)

const SessionCookieName = "pokeplan_session"

type contextKey string

const sessionIDKey contextKey = "session_id"

var ErrInvalidSession = errors.New("invalid session token")

// Sessions hands every browser a signed cookie naming an opaque session id.
// Identities are stored per session id, so the cookie plays the part of the
// browser's local storage.
type Sessions struct {
	secret       []byte
	secure       bool
	cookieDomain string
	maxAge       time.Duration
	clock        clockwork.Clock
}

func NewSessions(secret string, secure bool, cookieDomain string, clock clockwork.Clock) *Sessions {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sessions{
		secret:       []byte(secret),
		secure:       secure,
		cookieDomain: cookieDomain,
		maxAge:       365 * 24 * time.Hour,
		clock:        clock,
	}
}

func (s *Sessions) Issue(sessionID string) (string, error) {
	now := s.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.maxAge)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse returns the session id carried by a token.
func (s *Sessions) Parse(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", fmt.Errorf("%w: bad subject", ErrInvalidSession)
	}
	return claims.Subject, nil
}

// Middleware puts the session id in the request context, starting a new
// session when the cookie is missing or does not verify.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sessionID string
		if cookie, err := r.Cookie(SessionCookieName); err == nil {
			sessionID, err = s.Parse(cookie.Value)
			if err != nil {
				hlog.FromRequest(r).Debug().Err(err).Msg("discarding session cookie")
			}
		}

		if sessionID == "" {
			sessionID = uuid.NewString()
			token, err := s.Issue(sessionID)
			if err != nil {
				hlog.FromRequest(r).Error().Err(err).Msg("failed to sign session")
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			s.setCookie(w, token)
		}

		ctx := context.WithValue(r.Context(), sessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Sessions) setCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   s.cookieDomain,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.maxAge.Seconds()),
	})
}

func SessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok && id != ""
}
