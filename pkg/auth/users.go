package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arnavshah/staff-scheduler-api/pkg/database"
	"gorm.io/gorm"
)

var (
	ErrUserExists         = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("role must be ADMIN, MANAGER or STAFF")
	ErrKeyNotFound        = errors.New("api key not found")
	ErrWeakCredentials    = errors.New("username and a password of at least 6 characters are required")
)

// ValidRole reports whether role is one of the user roles
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleStaff:
		return true
	}
	return false
}

// Registration is the input for creating a user account
type Registration struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
	StaffID   string `json:"staffId"`
}

// Register creates a user. An empty role means STAFF.
func Register(ctx context.Context, db *gorm.DB, reg Registration) (database.User, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Role = strings.ToUpper(strings.TrimSpace(reg.Role))
	if reg.Role == "" {
		reg.Role = RoleStaff
	}
	if !ValidRole(reg.Role) {
		return database.User{}, ErrInvalidRole
	}
	if reg.Username == "" || len(reg.Password) < 6 {
		return database.User{}, ErrWeakCredentials
	}

	var count int64
	if err := db.WithContext(ctx).Model(&database.User{}).Where("username = ?", reg.Username).Count(&count).Error; err != nil {
		return database.User{}, fmt.Errorf("check username: %w", err)
	}
	if count > 0 {
		return database.User{}, ErrUserExists
	}

	hash, err := HashPassword(reg.Password)
	if err != nil {
		return database.User{}, fmt.Errorf("hash password: %w", err)
	}
	user := database.User{
		Username:     reg.Username,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(reg.FirstName),
		LastName:     strings.TrimSpace(reg.LastName),
		Role:         reg.Role,
	}
	if id := strings.TrimSpace(reg.StaffID); id != "" {
		user.StaffID = &id
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return database.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate checks a username and password pair
func Authenticate(ctx context.Context, db *gorm.DB, username, password string) (database.User, error) {
	var user database.User
	err := db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return database.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return database.User{}, fmt.Errorf("load user: %w", err)
	}
	if !CheckPasswordHash(password, user.PasswordHash) {
		return database.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// FindUser loads a user by username
func FindUser(ctx context.Context, db *gorm.DB, username string) (database.User, error) {
	var user database.User
	if err := db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return database.User{}, err
	}
	return user, nil
}

// EnsureAdminExists creates the initial admin user if no admin is present
func EnsureAdminExists(ctx context.Context, db *gorm.DB, username, password string) error {
	var count int64
	if err := db.WithContext(ctx).Model(&database.User{}).Where("role = ?", RoleAdmin).Count(&count).Error; err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	admin := database.User{
		Username:     username,
		PasswordHash: hash,
		Role:         RoleAdmin,
	}
	return db.WithContext(ctx).Create(&admin).Error
}

// CreateAPIKey mints a signed key for name and stores it
func CreateAPIKey(ctx context.Context, db *gorm.DB, secret, name string, rateLimit int) (database.APIKey, error) {
	key := GenerateHMACKey(secret, name)
	apiKey := database.APIKey{
		Key:        key,
		Name:       name,
		KeyPreview: KeyPreview(key),
		RateLimit:  rateLimit,
	}
	if err := db.WithContext(ctx).Create(&apiKey).Error; err != nil {
		return database.APIKey{}, fmt.Errorf("create api key: %w", err)
	}
	return apiKey, nil
}

// LookupAPIKey verifies the signature of key and loads its record. Keys
// that verify but were revoked are rejected. A failure to stamp last_used is
// logged to logger (slog.Default when nil) and does not reject the key.
func LookupAPIKey(ctx context.Context, db *gorm.DB, logger *slog.Logger, secret, key string) (database.APIKey, error) {
	if _, err := VerifyHMACKey(secret, key); err != nil {
		return database.APIKey{}, err
	}
	var apiKey database.APIKey
	err := db.WithContext(ctx).Where(&database.APIKey{Key: key}).First(&apiKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return database.APIKey{}, ErrKeyNotFound
	}
	if err != nil {
		return database.APIKey{}, fmt.Errorf("load api key: %w", err)
	}

	now := time.Now().UTC()
	if err := db.WithContext(ctx).Model(&apiKey).Update("last_used", now).Error; err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("api key last_used update failed", "key_id", apiKey.ID, "error", err.Error())
		return apiKey, nil
	}
	apiKey.LastUsed = &now
	return apiKey, nil
}
