package credential

import (
	"testing"
	"time"

	"parceltoken/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCredential() *models.Credential {
	now := time.Now()
	return &models.Credential{
		ID:        "cred-1",
		LineageID: "lineage-1",
		UserID:    42,
		Tier:      models.TierGold,
		Status:    models.CredentialStatusActive,
		Limits: models.CredentialLimits{
			MaxAmount:       5_000_000,
			MaxInstallments: 12,
			DailyLimit:      1_500_000,
			MonthlyLimit:    5_000_000,
			MaxTransactions: 60,
		},
		IssuedAt:  now,
		ExpiresAt: now.AddDate(0, 0, 90),
	}
}

func TestSigner_RoundTrip(t *testing.T) {
	signer := NewSigner("parceltoken", "secret")

	signed, err := signer.Sign(testCredential())
	require.NoError(t, err)

	claims, err := signer.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "cred-1", claims.CredentialID)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, models.TierGold, claims.Tier)
	assert.Equal(t, int64(5_000_000), claims.MaxAmount)
	assert.Equal(t, 12, claims.MaxInstallments)
}

func TestSigner_RejectsTampering(t *testing.T) {
	signer := NewSigner("parceltoken", "secret")
	signed, err := signer.Sign(testCredential())
	require.NoError(t, err)

	_, err = signer.Verify(signed[:len(signed)-2] + "xx")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestSigner_RejectsWrongSecret(t *testing.T) {
	signed, err := NewSigner("parceltoken", "secret-a").Sign(testCredential())
	require.NoError(t, err)

	_, err = NewSigner("parceltoken", "secret-b").Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestSigner_RejectsWrongIssuer(t *testing.T) {
	signed, err := NewSigner("someone-else", "secret").Sign(testCredential())
	require.NoError(t, err)

	_, err = NewSigner("parceltoken", "secret").Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestSigner_ExpiredClaimStillParses(t *testing.T) {
	// Lifecycle state lives on the stored record; an expired claim set
	// must parse so validation can report EXPIRED instead of erroring.
	cred := testCredential()
	cred.IssuedAt = time.Now().AddDate(0, -6, 0)
	cred.ExpiresAt = time.Now().AddDate(0, -3, 0)

	signer := NewSigner("parceltoken", "secret")
	signed, err := signer.Sign(cred)
	require.NoError(t, err)

	claims, err := signer.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "cred-1", claims.CredentialID)
}

func TestSigner_EmptySecret(t *testing.T) {
	_, err := NewSigner("parceltoken", "").Sign(testCredential())
	assert.Error(t, err)
}
