package jwt

import (
	"errors"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"project-selector/backend/config"
)

const testSecret = "test-secret-key-for-unit-testing-2026"

func newTestManager(issuer string) *Manager {
	return NewManager(&config.AuthConfig{JWTSecret: testSecret, Issuer: issuer})
}

// signToken 模拟身份平台签发令牌
func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("签发测试令牌失败: %v", err)
	}
	return s
}

func validClaims() Claims {
	now := time.Now()
	return Claims{
		UserID:    "user-1",
		Role:      "admin",
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        "jti-1",
			Issuer:    "campus-idp",
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(15 * time.Minute)),
		},
	}
}

func TestParseToken_Valid(t *testing.T) {
	m := newTestManager("campus-idp")

	claims, err := m.ParseToken(signToken(t, testSecret, validClaims()))
	if err != nil {
		t.Fatalf("ParseToken 失败: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("期望 UserID=user-1，实际=%s", claims.UserID)
	}
	if claims.Role != "admin" {
		t.Errorf("期望 Role=admin，实际=%s", claims.Role)
	}
}

func TestParseToken_Expired(t *testing.T) {
	m := newTestManager("")

	c := validClaims()
	c.ExpiresAt = jwtv5.NewNumericDate(time.Now().Add(-time.Minute))

	_, err := m.ParseToken(signToken(t, testSecret, c))
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("期望 ErrTokenExpired，实际: %v", err)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	m := newTestManager("")

	_, err := m.ParseToken(signToken(t, "another-secret-key-0000000000", validClaims()))
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("期望 ErrTokenInvalid，实际: %v", err)
	}
}

func TestParseToken_WrongIssuer(t *testing.T) {
	m := newTestManager("campus-idp")

	c := validClaims()
	c.Issuer = "someone-else"

	_, err := m.ParseToken(signToken(t, testSecret, c))
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("期望 ErrTokenInvalid，实际: %v", err)
	}
}

func TestParseToken_RefreshTokenRejected(t *testing.T) {
	m := newTestManager("")

	c := validClaims()
	c.TokenType = "refresh"

	_, err := m.ParseToken(signToken(t, testSecret, c))
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("refresh token 不应通过校验，实际: %v", err)
	}
}

func TestParseToken_Garbage(t *testing.T) {
	m := newTestManager("")

	if _, err := m.ParseToken("not-a-jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("期望 ErrTokenInvalid，实际: %v", err)
	}
}
