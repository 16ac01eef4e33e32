package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/anlik-eleman/backend/internal/models"
	"github.com/anlik-eleman/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	ErrMissingDSN        = errors.New("database: dsn is required")
	ErrUnsupportedDriver = errors.New("database: unsupported driver")
)

// Options selects the database backend.
type Options struct {
	Driver string
	DSN    string
}

// Open establishes a connection and performs schema migrations.
// Constraint violations are translated to gorm's portable errors such as gorm.ErrDuplicatedKey.
func Open(options Options, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn := strings.TrimSpace(options.DSN)
	if dsn == "" {
		return nil, ErrMissingDSN
	}

	driver := strings.ToLower(strings.TrimSpace(options.Driver))
	if driver == "" {
		driver = DriverSQLite
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, options.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db, logger); err != nil {
		return nil, err
	}

	logger.Info("database initialized", zap.String("driver", driver))
	return db, nil
}

// Migrate creates or updates every table and applies the named one-shot migrations.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	return applyMigrations(db, logger)
}

// Models lists every persisted type.
func Models() []any {
	return []any{
		&users.Account{},
		&users.RefreshToken{},
		&models.Profile{},
		&models.Company{},
		&models.JobCategory{},
		&models.JobPosting{},
		&models.SavedJob{},
		&models.Application{},
		&models.Review{},
		&models.Notification{},
		&migrationRecord{},
	}
}
