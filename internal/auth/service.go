package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Aidin1998/catalogue/common/dbutil"
	"github.com/Aidin1998/catalogue/pkg/errors"
	"github.com/Aidin1998/catalogue/pkg/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrInvalidCredentials is returned for an unknown username or a wrong password.
var ErrInvalidCredentials = errors.Unauthorized.Explain("invalid credentials")

// Service authenticates users and answers permission questions
type Service struct {
	logger     *zap.Logger
	db         *gorm.DB
	jwtSecret  []byte
	expiration time.Duration
	issuer     string
}

// NewService creates a new auth Service
func NewService(logger *zap.Logger, db *gorm.DB, secret string, expiration time.Duration, issuer string) *Service {
	return &Service{
		logger:     logger,
		db:         db,
		jwtSecret:  []byte(secret),
		expiration: expiration,
		issuer:     issuer,
	}
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// CreateUser registers a user with the given password.
func (s *Service) CreateUser(ctx context.Context, username, password string, superuser bool) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.Invalid.WithField("required", "username", "username is required")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		IsSuperuser:  superuser,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", dbutil.WrapError(err))
	}
	return user, nil
}

// GrantPermission gives user the named permission.
func (s *Service) GrantPermission(ctx context.Context, userID uuid.UUID, codename string) error {
	perm := &models.UserPermission{ID: uuid.New(), UserID: userID, Codename: codename}
	if err := s.db.WithContext(ctx).Create(perm).Error; err != nil {
		return fmt.Errorf("failed to grant %s: %w", codename, dbutil.WrapError(err))
	}
	return nil
}

// HasPerm reports whether user holds the named permission. Superusers hold all permissions.
func (s *Service) HasPerm(ctx context.Context, user *models.User, codename string) (bool, error) {
	if user == nil {
		return false, nil
	}
	if user.IsSuperuser {
		return true, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.UserPermission{}).
		Where("user_id = ? AND codename = ?", user.ID, codename).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}
	return count > 0, nil
}

// Authenticate checks the password and returns the user with a signed token.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, string, error) {
	user, err := s.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, errors.NotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("User logged in", zap.String("username", user.Username))
	return user, token, nil
}

// IssueToken signs a token whose subject is the user id.
func (s *Service) IssueToken(user *models.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
	})

	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses a signed token and returns the user id it names.
func (s *Service) ValidateToken(tokenString string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil || !token.Valid {
		return uuid.Nil, errors.Unauthorized.Explain("invalid token").Wrap(err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, errors.Unauthorized.Explain("invalid token subject")
	}
	return userID, nil
}

// UserByID loads a user.
func (s *Service) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return dbutil.FindOne[models.User](s.db.WithContext(ctx).Where("id = ?", id))
}

// UserByUsername loads a user.
func (s *Service) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	return dbutil.FindOne[models.User](s.db.WithContext(ctx).Where("username = ?", username))
}
