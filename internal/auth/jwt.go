package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/ndassist/internal/model"
)

const (
	tokenIssuer   = "nd-assistant"
	tokenAudience = "nd-assistant-users"
	tokenLifetime = 7 * 24 * time.Hour
)

// Claims はアクセストークンに含まれるクレーム。
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer はユーザーに対するJWTの発行と検証を行う。
// 署名にはHMAC-SHA256を使い、鍵はプロセス設定から与えられる。
type TokenIssuer struct {
	secret   []byte
	lifetime time.Duration
}

// NewTokenIssuer はTokenIssuerを生成する。
func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), lifetime: tokenLifetime}
}

// WithLifetime はトークンの有効期間を変更したTokenIssuerを返す。
// 0以下の場合はデフォルトの7日間を維持する。
func (t *TokenIssuer) WithLifetime(lifetime time.Duration) *TokenIssuer {
	if lifetime > 0 {
		t.lifetime = lifetime
	}
	return t
}

// Issue はユーザーのアクセストークンを発行する。
func (t *TokenIssuer) Issue(u *model.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.lifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証し、クレームを返す。
// 発行者・オーディエンス・署名方式・有効期限のすべてを検証する。
func (t *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(token *jwt.Token) (any, error) {
			return t.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return &claims, nil
}
