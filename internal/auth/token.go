package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL はアクセストークンのデフォルト有効期間。
const DefaultAccessTokenTTL = 24 * time.Hour

// accessTokenType はアクセストークンのtoken_typeクレームの値。
const accessTokenType = "access"

// ErrInvalidToken はトークンが不正または期限切れであることを示す。
var ErrInvalidToken = errors.New("invalid access token")

// accessClaims はアクセストークンのクレーム。
type accessClaims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenIssuer はHS256署名のアクセストークンを発行・検証する。
// subクレームにユーザーIDの10進文字列を入れる。
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer はTokenIssuerを生成する。ttlが0以下の場合はDefaultAccessTokenTTL。
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue はユーザーIDに対するアクセストークンを発行する。
func (i *TokenIssuer) Issue(userID int64) (string, error) {
	now := i.now()
	claims := accessClaims{
		TokenType: accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証し、subクレームのユーザーIDを返す。
// 署名方式はHS256のみ受け付け、expクレームは必須。
func (i *TokenIssuer) Verify(tokenString string) (int64, error) {
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.TokenType != accessTokenType {
		return 0, fmt.Errorf("%w: unexpected token_type %q", ErrInvalidToken, claims.TokenType)
	}
	if claims.Subject == "" {
		return 0, fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: malformed sub claim", ErrInvalidToken)
	}
	return userID, nil
}
