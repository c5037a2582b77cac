package auth

import (
	"strings"
	"testing"
	"time"
	"whisper/errors"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "MySuperS3cret!Password"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("WrongPassword1!", hash)
	req.NoError(err)
	req.False(match)
}

func TestComparePassword_RejectsMalformedHash(t *testing.T) {
	req := require.New(t)

	_, err := ComparePassword("whatever", "not-a-hash")
	req.Error(err)
}

func TestSignupValidation(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		req     SignupRequest
		wantErr bool
	}{
		{"Valid request", SignupRequest{"test@example.com", "ComplexPass123!"}, false},
		{"Invalid email", SignupRequest{"notanemail", "ComplexPass123!"}, true},
		{"Password too short", SignupRequest{"test@example.com", "Short1!"}, true},
		{"Missing digit", SignupRequest{"test@example.com", "NoDigitPassword!"}, true},
		{"Missing special char", SignupRequest{"test@example.com", "NoSpecialChar123"}, true},
		{"Missing uppercase", SignupRequest{"test@example.com", "nouppercase123!!"}, true},
		{"Password too long", SignupRequest{"test@example.com", strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSignup(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestTokenManager_RoundTrip(t *testing.T) {
	req := require.New(t)
	tm := NewTokenManager("test-secret-key", "whisper", time.Hour)

	token, err := tm.Generate("user-123")
	req.NoError(err)

	claims, err := tm.Validate(token)
	req.NoError(err)
	req.Equal("user-123", claims.UserID)
	req.Equal("whisper", claims.Issuer)
}

func TestTokenManager_RejectsExpiredAndForeign(t *testing.T) {
	req := require.New(t)

	expired := NewTokenManager("test-secret-key", "whisper", -time.Minute)
	token, err := expired.Generate("user-123")
	req.NoError(err)

	_, err = expired.Validate(token)
	req.ErrorIs(err, errors.ErrInvalidToken)

	// Token signed with another secret
	other := NewTokenManager("another-secret", "whisper", time.Hour)
	foreign, err := other.Generate("user-123")
	req.NoError(err)

	tm := NewTokenManager("test-secret-key", "whisper", time.Hour)
	_, err = tm.Validate(foreign)
	req.ErrorIs(err, errors.ErrInvalidToken)

	_, err = tm.Validate("garbage")
	req.ErrorIs(err, errors.ErrInvalidToken)
}

func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}
