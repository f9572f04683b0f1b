package auth

import (
	"context"
	"fmt"
)

type AuthService struct {
	config *Config
}

func NewAuthService(config *Config) *AuthService {
	return &AuthService{config: config}
}

func (s *AuthService) IsEnabled() bool {
	return s.config.Enabled
}

// IssueToken mints an access token for subject with the configured expiry.
func (s *AuthService) IssueToken(subject string, scope Scope) (string, error) {
	if !s.IsEnabled() {
		return "", fmt.Errorf("auth is disabled")
	}
	if _, err := ParseScope(string(scope)); err != nil {
		return "", err
	}
	return NewToken(subject, s.config.TokenIssuer, s.config.AccessTokenSecret, s.config.AccessTokenExpiry, scope)
}

func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*Claims, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	claims, err := ParseClaims(accessToken, s.config.AccessTokenSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Issuer != s.config.TokenIssuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
	}

	if _, err := ParseScope(string(claims.Scope)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	return claims, nil
}
