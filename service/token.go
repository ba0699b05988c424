package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 自定义JWT声明结构。RegisteredClaims.ID 为会话 ID
type Claims struct {
	UserID int64 `json:"uid"`
	jwt.RegisteredClaims
}

type tokenSigner struct {
	secret []byte
	now    func() time.Time
}

// 生成JWT token
func (t tokenSigner) sign(sessionID string, userID int64, issuedAt, expiresAt time.Time) (string, error) {
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// 验证JWT token
func (t tokenSigner) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.ID != "" {
		return claims, nil
	}
	return nil, errors.New("无效的token")
}
