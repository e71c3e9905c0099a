package flow

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// StateClaims is the payload of an OAuth state token.
type StateClaims struct {
	jwt.RegisteredClaims
	FlowID string `json:"flow_id"`
	Domain string `json:"domain"`
}

// StateSigner issues and verifies the correlation tokens that tie an
// external callback back to its suspended flow.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateSigner creates a signer using HS256 with secret. Tokens expire
// after ttl.
func NewStateSigner(secret string, ttl time.Duration) *StateSigner {
	return &StateSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL returns how long issued tokens stay valid.
func (s *StateSigner) TTL() time.Duration {
	return s.ttl
}

// Sign returns a state token for flowID and its expiry.
func (s *StateSigner) Sign(flowID, domain string) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := StateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   flowID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
		FlowID: flowID,
		Domain: domain,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing state: %w", err)
	}
	return signed, expires, nil
}

// Verify checks the signature and expiry of a state token. An expired
// token returns ErrFlowExpired, anything else invalid ErrInvalidState.
func (s *StateSigner) Verify(state string) (*StateClaims, error) {
	token, err := jwt.ParseWithClaims(state, &StateClaims{}, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrFlowExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	claims, ok := token.Claims.(*StateClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidState
	}
	if claims.FlowID == "" {
		return nil, fmt.Errorf("%w: missing flow id", ErrInvalidState)
	}
	return claims, nil
}
