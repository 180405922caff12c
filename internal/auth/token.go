package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken は検証に失敗したヘルパートークンを表す。
var ErrInvalidToken = errors.New("invalid helper token")

// HelperClaims はデスクトップ音声ヘルパー用トークンのクレーム。
// 標準クレームにユーザーIDを加えたもの。
type HelperClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// GenerateHelperToken はHS256署名の短命トークンを発行する。
func GenerateHelperToken(userID string, secret []byte, ttl time.Duration) (string, time.Time, error) {
	expiresAt := time.Now().UTC().Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, HelperClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: userID,
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseHelperToken はトークンを検証してユーザーIDを返す。
// 署名方式はHS256に固定する。
func ParseHelperToken(tokenString string, secret []byte) (string, error) {
	claims := &HelperClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}
