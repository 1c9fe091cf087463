package credential

import (
	"errors"
	"fmt"

	"parceltoken/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Signer produces and verifies the tamper-evident signed form of a
// credential's claim set.
type Signer struct {
	issuer string
	secret []byte
}

// NewSigner builds an HS256 signer for the given issuer.
func NewSigner(issuer, secret string) *Signer {
	return &Signer{issuer: issuer, secret: []byte(secret)}
}

// Sign serializes the credential's claim set into a signed token.
func (s *Signer) Sign(credential *models.Credential) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("signing secret not configured")
	}

	claims := models.CredentialClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   credential.ID,
			IssuedAt:  jwt.NewNumericDate(credential.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(credential.ExpiresAt),
		},
		CredentialID:    credential.ID,
		UserID:          credential.UserID,
		MerchantID:      credential.MerchantID,
		Tier:            credential.Tier,
		MaxAmount:       credential.Limits.MaxAmount,
		MaxInstallments: credential.Limits.MaxInstallments,
		DailyLimit:      credential.Limits.DailyLimit,
		MonthlyLimit:    credential.Limits.MonthlyLimit,
		MaxTransactions: credential.Limits.MaxTransactions,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign credential: %w", err)
	}
	return signed, nil
}

// Verify checks signature and issuer and returns the embedded claim
// set. Expiry is deliberately not validated here: the stored record is
// authoritative for lifecycle state, and an expired credential must
// surface as the EXPIRED validation code rather than a signature error.
func (s *Signer) Verify(tokenStr string) (*models.CredentialClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &models.CredentialClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	claims, ok := token.Claims.(*models.CredentialClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSignature
	}
	if claims.Issuer != s.issuer {
		return nil, ErrInvalidSignature
	}
	return claims, nil
}
