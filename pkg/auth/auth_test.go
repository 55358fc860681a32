package auth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/arnavshah/staff-scheduler-api/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.InitDB("", filepath.Join(t.TempDir(), "auth.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func TestTokensRoundTrip(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	token, err := tokens.Create("ada", RoleManager, "staff-1")
	require.NoError(t, err)

	claims, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ada", claims.Username)
	assert.Equal(t, RoleManager, claims.Role)
	assert.Equal(t, "staff-1", claims.StaffID)

	_, err = NewTokens("other", time.Hour).Verify(token)
	assert.Error(t, err)
}

func TestTokensExpire(t *testing.T) {
	tokens := NewTokens("secret", time.Minute)
	tokens.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := tokens.Create("ada", RoleStaff, "")
	require.NoError(t, err)

	_, err = tokens.Verify(token)
	assert.Error(t, err)
}

func TestHMACKeys(t *testing.T) {
	key := GenerateHMACKey("master", "ward-app")
	name, err := VerifyHMACKey("master", key)
	require.NoError(t, err)
	assert.Equal(t, "ward-app", name)

	_, err = VerifyHMACKey("other", key)
	assert.Error(t, err)
	_, err = VerifyHMACKey("master", "no-dot")
	assert.Error(t, err)
	_, err = VerifyHMACKey("master", "trailing.")
	assert.Error(t, err)

	assert.Equal(t, "war..."+key[len(key)-4:], KeyPreview(key))
	assert.Equal(t, "****", KeyPreview("short"))
}

func TestRegisterAndAuthenticate(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	user, err := Register(ctx, db, Registration{Username: " nina ", Password: "hunter22", Role: "manager", StaffID: "s-1"})
	require.NoError(t, err)
	assert.Equal(t, "nina", user.Username)
	assert.Equal(t, RoleManager, user.Role)
	require.NotNil(t, user.StaffID)
	assert.Equal(t, "s-1", *user.StaffID)
	assert.NotEqual(t, "hunter22", user.PasswordHash)

	_, err = Register(ctx, db, Registration{Username: "nina", Password: "another1"})
	assert.ErrorIs(t, err, ErrUserExists)
	_, err = Register(ctx, db, Registration{Username: "x", Password: "short"})
	assert.ErrorIs(t, err, ErrWeakCredentials)
	_, err = Register(ctx, db, Registration{Username: "y", Password: "longenough", Role: "ROOT"})
	assert.ErrorIs(t, err, ErrInvalidRole)

	got, err := Authenticate(ctx, db, "nina", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = Authenticate(ctx, db, "nina", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = Authenticate(ctx, db, "ghost", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestEnsureAdminExists(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	require.NoError(t, EnsureAdminExists(ctx, db, "admin", "admin123"))
	require.NoError(t, EnsureAdminExists(ctx, db, "admin2", "admin123"))

	var count int64
	require.NoError(t, db.Model(&database.User{}).Where("role = ?", RoleAdmin).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	admin, err := FindUser(ctx, db, "admin")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("admin123", admin.PasswordHash))
}

func TestAPIKeys(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	created, err := CreateAPIKey(ctx, db, "master", "ward-app", 120)
	require.NoError(t, err)
	assert.Equal(t, 120, created.RateLimit)

	_, err = CreateAPIKey(ctx, db, "master", "ward-app", 120)
	assert.Error(t, err, "same name yields the same key")

	found, err := LookupAPIKey(ctx, db, nil, "master", created.Key)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.NotNil(t, found.LastUsed)

	_, err = LookupAPIKey(ctx, db, nil, "master", GenerateHMACKey("master", "revoked"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
	_, err = LookupAPIKey(ctx, db, nil, "master", "ward-app.forged")
	assert.Error(t, err)
}

func TestLookupAPIKeyLogsFailedTouch(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	created, err := CreateAPIKey(ctx, db, "master", "ward-app", 60)
	require.NoError(t, err)

	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("fail_update", func(tx *gorm.DB) {
		_ = tx.AddError(errors.New("database is locked"))
	}))

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	found, err := LookupAPIKey(ctx, db, logger, "master", created.Key)
	require.NoError(t, err, "a failed touch does not reject the key")
	assert.Equal(t, created.ID, found.ID)
	assert.Nil(t, found.LastUsed)
	assert.Contains(t, buf.String(), "api key last_used update failed")
	assert.Contains(t, buf.String(), "database is locked")
}
