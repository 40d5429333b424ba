// Package token issues and verifies the signed credential that binds a participant
// identity and display name to one poll.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pollranking/pkg/interfaces"
)

// MinKeyLength is the shortest HMAC key accepted for signing.
const MinKeyLength = 32

// Credential is the verified content of an access token.
type Credential struct {
	PollID        string
	ParticipantID string
	Name          string
	ExpiresAt     time.Time
}

// Claims is the JWT payload. The participant identity travels as the subject.
type Claims struct {
	PollID string `json:"pollID"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 credentials with a process-wide key.
type Signer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner creates a signer. The key is copied and never re-read.
func NewSigner(key []byte, issuer string, ttl time.Duration) (*Signer, error) {
	if len(key) < MinKeyLength {
		return nil, ErrKeyTooShort
	}
	if issuer == "" {
		return nil, ErrMissingIssuer
	}
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}

	k := make([]byte, len(key))
	copy(k, key)

	return &Signer{
		key:    k,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue mints a credential for participantID in pollID.
func (s *Signer) Issue(pollID, participantID, name string) (string, error) {
	if pollID == "" || participantID == "" {
		return "", ErrMissingBinding
	}

	now := s.now()
	claims := Claims{
		PollID: pollID,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   participantID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("signing credential: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm, issuer and expiry and returns the bound identity.
// Every failure matches interfaces.ErrInvalidCredential.
func (s *Signer) Verify(tokenString string) (*Credential, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty token", interfaces.ErrInvalidCredential)
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", interfaces.ErrInvalidCredential, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: token not valid", interfaces.ErrInvalidCredential)
	}
	if claims.PollID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("%w: %w", interfaces.ErrInvalidCredential, ErrMissingBinding)
	}

	return &Credential{
		PollID:        claims.PollID,
		ParticipantID: claims.Subject,
		Name:          claims.Name,
		ExpiresAt:     claims.ExpiresAt.Time,
	}, nil
}

// IsExpired reports whether err came from an expired credential.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
