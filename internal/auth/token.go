package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"farmtrace/marketplace-backend/internal/viewer"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
)

// Claims are the viewer claims carried in access tokens; the subject is the user id
type Claims struct {
	Name         string `json:"name"`
	Role         string `json:"role"`
	AdminLevel   string `json:"admin_level,omitempty"`
	AssignedArea string `json:"assigned_area,omitempty"`
	jwt.RegisteredClaims
}

// TokenService signs and validates HS256 viewer tokens
type TokenService struct {
	signingKey []byte
	issuer     string
}

func NewTokenService(signingKey, issuer string) *TokenService {
	return &TokenService{signingKey: []byte(signingKey), issuer: issuer}
}

// Issue signs a token for v valid for ttl
func (s *TokenService) Issue(v viewer.Viewer, ttl time.Duration) (string, error) {
	vc := viewer.ToClaims(v)
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Name:         vc.Name,
		Role:         vc.Role,
		AdminLevel:   vc.AdminLevel,
		AssignedArea: vc.AssignedArea,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   vc.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// Validate parses a token and returns the viewer it describes
func (s *TokenService) Validate(tokenString string) (viewer.Viewer, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}

	v, err := viewer.FromClaims(viewer.Claims{
		ID:           claims.Subject,
		Name:         claims.Name,
		Role:         claims.Role,
		AdminLevel:   claims.AdminLevel,
		AssignedArea: claims.AssignedArea,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return v, nil
}
