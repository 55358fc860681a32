package database

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Shift represents the shifts table
type Shift struct {
	ID            string    `gorm:"primaryKey;size:36"`
	Date          string    `gorm:"size:10;not null;index:idx_shifts_date_slot"`
	TimeSlot      string    `gorm:"size:16;not null;index:idx_shifts_date_slot"`
	Ward          string    `gorm:"size:64;index"`
	Capacity      int       `gorm:"not null"`
	AssignedCount int       `gorm:"not null;default:0"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (Shift) TableName() string { return "shifts" }

// Staff represents the staff table
type Staff struct {
	ID            string    `gorm:"primaryKey;size:36"`
	Code          string    `gorm:"size:32;not null;index"`
	Name          string    `gorm:"size:128;not null"`
	Role          string    `gorm:"size:16;not null;index"`
	Contact       string    `gorm:"size:32"`
	Email         string    `gorm:"size:255"`
	Department    string    `gorm:"size:64"`
	PreferredSlot string    `gorm:"size:16"`
	Active        bool      `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (Staff) TableName() string { return "staff" }

// Assignment represents the assignments table. The unique index on
// (shift_id, staff_id) backs the no-double-booking rule.
type Assignment struct {
	ID        string    `gorm:"primaryKey;size:36"`
	ShiftID   string    `gorm:"size:36;not null;uniqueIndex:idx_assignments_shift_staff"`
	StaffID   string    `gorm:"size:36;not null;uniqueIndex:idx_assignments_shift_staff;index"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Assignment) TableName() string { return "assignments" }

// Attendance represents the attendance table, one row per (shift, staff)
type Attendance struct {
	ID         string    `gorm:"primaryKey;size:36"`
	ShiftID    string    `gorm:"size:36;not null;uniqueIndex:idx_attendance_shift_staff"`
	StaffID    string    `gorm:"size:36;not null;uniqueIndex:idx_attendance_shift_staff"`
	Status     string    `gorm:"size:16;not null"`
	Comment    string    `gorm:"size:500"`
	RecordedAt time.Time `gorm:"not null"`
	RecordedBy string    `gorm:"size:64"`
}

func (Attendance) TableName() string { return "attendance" }

// User represents the users table
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"unique;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Role         string    `gorm:"size:16;not null" json:"role"`
	StaffID      *string   `gorm:"size:36" json:"staffId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// APIKey represents the api_keys table
type APIKey struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Key        string     `gorm:"unique;not null" json:"-"`
	Name       string     `gorm:"not null" json:"name"`
	KeyPreview string     `json:"keyPreview"`
	RateLimit  int        `gorm:"default:0" json:"rateLimit"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsed   *time.Time `json:"lastUsed"`
}

// APIUsage counts requests and placements per key per day
type APIUsage struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	KeyID        uint   `gorm:"not null;uniqueIndex:idx_usage_key_date" json:"keyId"`
	Date         string `gorm:"size:10;not null;uniqueIndex:idx_usage_key_date" json:"date"`
	RequestCount int    `gorm:"not null;default:0" json:"requestCount"`
	Assignments  int    `gorm:"not null;default:0" json:"assignments"`
}

func (APIUsage) TableName() string { return "api_usage" }

// InitDB opens Postgres when databaseURL is set and a SQLite file at
// dataPath otherwise, then migrates the schema.
func InitDB(databaseURL, dataPath string, log *slog.Logger) (*gorm.DB, error) {
	if log == nil {
		log = slog.Default()
	}
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	var (
		db  *gorm.DB
		err error
	)
	if databaseURL != "" {
		cfg.PrepareStmt = false
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  databaseURL,
			PreferSimpleProtocol: true,
		}), cfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		log.Info("database connected", "driver", "postgres")
	} else {
		if dataPath == "" {
			dataPath = "scheduler.db"
		}
		db, err = gorm.Open(sqlite.Open(dataPath), cfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", dataPath, err)
		}
		// SQLite allows one writer; a single connection turns lock
		// contention into queueing instead of SQLITE_BUSY.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("resolve sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
		log.Info("database connected", "driver", "sqlite", "path", dataPath)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Shift{}, &Staff{}, &Assignment{}, &Attendance{}, &User{}, &APIKey{}, &APIUsage{}); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
