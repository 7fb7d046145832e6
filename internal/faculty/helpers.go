package faculty

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"ClassRoutineTracker/internal/config"
	"ClassRoutineTracker/internal/core"
)

const (
	contextKey = "user"
	// resetAudience marks tokens that may only reset a password.
	resetAudience = "password-reset"
)

// Claims identify the caller; Subject holds the faculty id.
type Claims struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`       // needed for RBAC in protected endpoints
	Department string `json:"department"` // needed for department-scoped HOD views
	jwt.RegisteredClaims
}

// Actor returns the caller described by the claims.
func (c *Claims) Actor() core.Actor {
	return core.Actor{ID: c.Subject, Name: c.Name, Role: c.Role, Department: c.Department}
}

// TokenIssuer signs and verifies session tokens.
type TokenIssuer struct {
	key []byte
	ttl time.Duration
}

// NewTokenIssuer creates a new issuer from the JWT settings.
func NewTokenIssuer(s *config.Settings) *TokenIssuer {
	return &TokenIssuer{key: s.JWTKey, ttl: s.JWTTTL}
}

// Issue signs a session token for f. A ttl of zero uses the configured one.
func (i *TokenIssuer) Issue(f *Faculty, ttl time.Duration) (string, error) {
	return i.issue(f, ttl, nil)
}

// IssueReset signs a token that only ResetPassword accepts.
func (i *TokenIssuer) IssueReset(f *Faculty, ttl time.Duration) (string, error) {
	return i.issue(f, ttl, jwt.ClaimStrings{resetAudience})
}

func (i *TokenIssuer) issue(f *Faculty, ttl time.Duration, audience jwt.ClaimStrings) (string, error) {
	if ttl <= 0 {
		ttl = i.ttl
	}
	claims := &Claims{
		Name:       f.Name,
		Email:      f.Email,
		Role:       f.Role,
		Department: f.Department,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   f.IDHex(),
			Audience:  audience,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.key)
}

// Parse validates a session token: signature, expiry and the absence of an
// audience. Reset tokens are rejected.
func (i *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	claims, err := i.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if len(claims.Audience) > 0 {
		return nil, errors.New("not a session token")
	}
	return claims, nil
}

// ParseReset validates a token issued by IssueReset.
func (i *TokenIssuer) ParseReset(tokenString string) (*Claims, error) {
	return i.parse(tokenString, jwt.WithAudience(resetAudience))
}

func (i *TokenIssuer) parse(tokenString string, opts ...jwt.ParserOption) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.key, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Identify implements live.Authenticator.
func (i *TokenIssuer) Identify(tokenString string) (string, string, error) {
	claims, err := i.Parse(tokenString)
	if err != nil {
		return "", "", err
	}
	return claims.Subject, claims.Role, nil
}

// SetClaims stores verified claims on the request.
func SetClaims(c echo.Context, claims *Claims) {
	c.Set(contextKey, claims)
}

// ClaimsFrom returns the claims stored by SetClaims.
func ClaimsFrom(c echo.Context) (*Claims, bool) {
	claims, ok := c.Get(contextKey).(*Claims)
	return claims, ok && claims != nil
}

// ActorFrom returns the authenticated caller or a 401.
func ActorFrom(c echo.Context) (core.Actor, error) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		return core.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "Invalid or missing token")
	}
	return claims.Actor(), nil
}

// HashPassword hashes a password with bcrypt.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hashed), err
}

// CheckPasswordHash reports whether password matches hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
