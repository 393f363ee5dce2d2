package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"mafserver/models"

	jwt "github.com/dgrijalva/jwt-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrInvalidToken covers malformed, mis-signed and expired credentials.
	ErrInvalidToken = errors.New("invalid token")
	// ErrBadCredentials means the token parsed but its login or password
	// does not match a stored profile.
	ErrBadCredentials = errors.New("bad credentials")
)

// Provider authenticates a presented credential and resolves it to a login.
type Provider interface {
	Verify(ctx context.Context, credential string) (string, error)
}

// Service issues and verifies JWT session tokens backed by the profile table.
type Service struct {
	db     *gorm.DB
	key    []byte
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a token service. ttl bounds how long issued tokens stay valid.
func New(db *gorm.DB, secret string, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{db: db, key: []byte(secret), ttl: ttl, logger: logger}
}

// PasswordHash digests a clear-text password the way the profile table
// stores it.
func PasswordHash(clear string) string {
	sum := sha256.Sum256([]byte(clear))
	return hex.EncodeToString(sum[:])
}

// GenerateToken signs a session token for the given login. passwordHash must
// already be the stored digest.
func (s *Service) GenerateToken(login, passwordHash string) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.ttl)
	claims := &models.MyClaims{
		Login:    login,
		Password: passwordHash,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: expiresAt.Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify parses the credential and checks its claims against the profile
// table. On success it returns the authenticated login.
func (s *Service) Verify(ctx context.Context, credential string) (string, error) {
	claims := &models.MyClaims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.key, nil
	})
	if err != nil || !token.Valid {
		s.logger.Debug("token rejected", zap.Error(err))
		return "", ErrInvalidToken
	}

	var profile models.Profile
	if err := s.db.WithContext(ctx).Where("login = ?", claims.Login).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrBadCredentials
		}
		return "", err
	}
	if profile.Password != claims.Password {
		return "", ErrBadCredentials
	}
	return claims.Login, nil
}
