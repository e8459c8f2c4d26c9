package server

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// GenerateToken mints a JWT carrying the anonymous user identity and
// nickname.
func GenerateToken(secret []byte, userID, nickname string) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  userID,
		"nickname": nickname,
		"exp":      time.Now().Add(time.Hour * 72).Unix(),
		"iss":      "streamroom-service",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseToken validates a token and extracts the user identity.
func ParseToken(secret []byte, tokenString string) (userID, nickname string, err error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", errors.New("invalid token")
	}
	userID, _ = claims["user_id"].(string)
	nickname, _ = claims["nickname"].(string)
	if userID == "" {
		return "", "", errors.New("token missing user_id")
	}
	return userID, nickname, nil
}
