package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "workoutmap/backend/internal/errors"
)

// DeviceService hands out anonymous device identities. Each device keeps its
// own workout history, the way a browser keeps its own local storage.
type DeviceService struct {
	jwtSecret []byte
	tokenTTL  time.Duration
}

type DeviceResult struct {
	Token    string `json:"token"`
	DeviceID string `json:"deviceId"`
}

func NewDeviceService(jwtSecret string, tokenTTL time.Duration) *DeviceService {
	return &DeviceService{
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

func (s *DeviceService) Register() (*DeviceResult, *apperrors.APIError) {
	deviceID := uuid.NewString()
	token, apiErr := s.issueToken(deviceID)
	if apiErr != nil {
		return nil, apiErr
	}
	return &DeviceResult{Token: token, DeviceID: deviceID}, nil
}

func (s *DeviceService) ParseToken(tokenString string) (string, *apperrors.APIError) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", apperrors.Unauthorized("invalid token")
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return "", apperrors.Unauthorized("invalid token")
	}

	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", apperrors.Unauthorized("invalid token subject")
	}

	return claims.Subject, nil
}

func (s *DeviceService) issueToken(deviceID string) (string, *apperrors.APIError) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   deviceID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", apperrors.Internal("failed to sign token")
	}
	return signed, nil
}
