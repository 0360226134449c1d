package services

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caretide/provider-admin/internal/config"
	"github.com/caretide/provider-admin/internal/dto"
	"github.com/caretide/provider-admin/internal/models"
	"github.com/caretide/provider-admin/internal/password"
	"github.com/caretide/provider-admin/internal/scope"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInactiveAccount    = errors.New("account is deactivated")
	ErrSessionInvalid     = errors.New("session is invalid or expired")
	ErrWeakPassword       = password.ErrTooWeak
)

type AuthService struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewAuthService(db *gorm.DB, cfg *config.Config) *AuthService {
	return &AuthService{db: db, cfg: cfg}
}

// Login verifies credentials (username or email, case-insensitive) and
// issues a JWT bound to a server-side session row. Revoking the row
// invalidates the token immediately, regardless of its expiry claim.
func (s *AuthService) Login(req *dto.LoginRequest) (*dto.LoginResponse, error) {
	login := strings.ToLower(strings.TrimSpace(req.Login))
	if login == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}

	var user models.User
	if err := s.db.Where("username = ? OR email = ?", login, login).First(&user).Error; err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrInactiveAccount
	}

	token, err := s.issueSession(&user)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		Token:              token,
		MustChangePassword: user.MustChangePassword,
		User:               UserToResponse(&user),
	}, nil
}

func (s *AuthService) issueSession(user *models.User) (string, error) {
	sessionID := uuid.New()
	expiresAt := time.Now().Add(s.cfg.SessionExpiry)

	claims := jwt.MapClaims{
		"sub": user.ID.String(),
		"sid": sessionID.String(),
		"iat": time.Now().Unix(),
		"exp": expiresAt.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	session := models.Session{
		ID:        sessionID,
		UserID:    user.ID,
		TokenHash: HashToken(signed),
		ExpiresAt: expiresAt,
	}
	if err := s.db.Create(&session).Error; err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return signed, nil
}

// Authenticate resolves a raw bearer token to its user and session. The
// JWT signature is checked by the middleware before this runs; here the
// session row is the source of truth.
func (s *AuthService) Authenticate(rawToken string) (*models.User, *models.Session, error) {
	var session models.Session
	if err := s.db.Where("token_hash = ?", HashToken(rawToken)).First(&session).Error; err != nil {
		return nil, nil, ErrSessionInvalid
	}
	if time.Now().After(session.ExpiresAt) {
		s.db.Delete(&session)
		return nil, nil, ErrSessionInvalid
	}

	var user models.User
	if err := s.db.First(&user, "id = ?", session.UserID).Error; err != nil {
		return nil, nil, ErrSessionInvalid
	}
	if !user.Active {
		return nil, nil, ErrInactiveAccount
	}
	return &user, &session, nil
}

// Logout revokes the presented session only.
func (s *AuthService) Logout(rawToken string) error {
	return s.db.Where("token_hash = ?", HashToken(rawToken)).Delete(&models.Session{}).Error
}

// ChangePassword is the self-service path. It clears MustChangePassword
// and revokes every other session the user holds, keeping the current one.
func (s *AuthService) ChangePassword(userID, currentSessionID uuid.UUID, req *dto.ChangePasswordRequest) error {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		return ErrSessionInvalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return ErrInvalidCredentials
	}
	if err := password.Validate(req.NewPassword); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Updates(map[string]interface{}{
			"password_hash":        string(hash),
			"must_change_password": false,
		}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ? AND id <> ?", userID, currentSessionID).
			Delete(&models.Session{}).Error
	})
}

// CallerFor builds the scope caller for a resolved user.
func CallerFor(user *models.User) scope.Caller {
	return scope.Caller{
		UserID:          user.ID,
		CustomerID:      user.CustomerID,
		ProviderGroupID: user.ProviderGroupID,
		Role:            scope.Role(user.Role),
	}
}

func UserToResponse(user *models.User) dto.UserResponse {
	return dto.UserResponse{
		ID:              user.ID,
		CustomerID:      user.CustomerID,
		ProviderGroupID: user.ProviderGroupID,
		Name:            user.Name,
		Email:           user.Email,
		Username:        user.Username,
		Role:            user.Role,
		Active:          user.Active,
	}
}

// HashToken stores only the SHA-256 of session tokens.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}
