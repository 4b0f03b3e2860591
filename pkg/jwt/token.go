package jwtPkg

import (
	"LayoutGolang/internal/entity"
	"errors"
	"fmt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"os"
	"strings"
	"time"
)

func Sign(Data map[string]interface{}, ExpiredAt time.Duration) (string, int64, error) {
	expiredAt := time.Now().Add(ExpiredAt).Unix()

	JWTSecretKey := os.Getenv("JWT_ACCESS_TOKEN_SECRET")
	if JWTSecretKey == "" {
		return "", 0, fmt.Errorf("JWT_ACCESS_TOKEN_SECRET not set")
	}

	claims := jwt.MapClaims{}
	claims["exp"] = expiredAt
	claims["authorization"] = true

	for i, v := range Data {
		claims[i] = v
	}

	logrus.WithField("claims", claims).Debug("Creating token with claims")

	to := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := to.SignedString([]byte(JWTSecretKey))
	if err != nil {
		logrus.WithError(err).Error("Failed to sign token")
		return "", 0, err
	}

	return accessToken, expiredAt, nil
}

func VerifyTokenHeader(c *fiber.Ctx, secretEnvKey string) (*jwt.Token, error) {
	log := logrus.WithField("func", "VerifyTokenHeader")

	header := c.Get("Authorization")
	if header == "" {
		log.Error("Empty Authorization header")
		return nil, errors.New("empty Authorization header")
	}

	parts := strings.Split(header, "Bearer ")
	if len(parts) != 2 {
		log.WithField("header_parts", len(parts)).Error("Invalid Authorization format")
		return nil, errors.New("invalid Authorization format")
	}

	accessToken := strings.TrimSpace(parts[1])
	if accessToken == "" {
		log.Error("Empty token after Bearer")
		return nil, errors.New("empty token")
	}

	log.Debug("Token format valid, attempting to parse")

	JWTSecretKey := os.Getenv(secretEnvKey)
	if JWTSecretKey == "" {
		log.Error("JWT_ACCESS_TOKEN_SECRET environment variable not set")
		return nil, errors.New("JWT secret not configured")
	}

	token, err := jwt.Parse(accessToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			log.WithField("method", token.Header["alg"]).Error("Unexpected signing method")
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(JWTSecretKey), nil
	})

	if err != nil {
		log.WithError(err).Error("Failed to parse JWT token")
		return nil, err
	}

	log.Debug("Token successfully verified")
	return token, nil
}

func GetOperatorData(c *fiber.Ctx) (entity.OperatorData, error) {
	operatorData := c.Locals("operator")

	operator, ok := operatorData.(entity.OperatorData)
	if !ok {
		return entity.OperatorData{}, fiber.ErrUnauthorized
	}

	return operator, nil
}

// OperatorFromRequest resolves the operator from Locals when the token
// middleware ran, or from the Authorization header on open routes where
// attribution is optional.
func OperatorFromRequest(c *fiber.Ctx) (entity.OperatorData, error) {
	if operator, err := GetOperatorData(c); err == nil {
		return operator, nil
	}

	if c.Get("Authorization") == "" {
		return entity.OperatorData{}, fiber.ErrUnauthorized
	}

	token, err := VerifyTokenHeader(c, "JWT_ACCESS_TOKEN_SECRET")
	if err != nil {
		return entity.OperatorData{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return entity.OperatorData{}, errors.New("invalid token claims")
	}

	id, _ := claims["id"].(string)
	name, _ := claims["name"].(string)
	if id == "" || name == "" {
		return entity.OperatorData{}, errors.New("token claims are missing required fields")
	}

	return entity.OperatorData{ID: id, Name: name}, nil
}
