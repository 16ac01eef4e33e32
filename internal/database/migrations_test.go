package database

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/anlik-eleman/backend/internal/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func TestOpenMigratesAndSeedsCategoriesOnce(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "migration.db")
	core, logs := observer.New(zapcore.InfoLevel)

	database, err := Open(Options{Driver: DriverSQLite, DSN: databasePath}, zap.New(core))
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}

	var categories []models.JobCategory
	if err := database.Order("sort_order asc").Find(&categories).Error; err != nil {
		testContext.Fatalf("failed to load categories: %v", err)
	}
	if len(categories) != len(defaultJobCategories) {
		testContext.Fatalf("expected %d categories, got %d", len(defaultJobCategories), len(categories))
	}
	if categories[0].Name != "Garson" || !categories[0].IsActive || categories[0].SortOrder != 1 {
		testContext.Fatalf("unexpected first category %+v", categories[0])
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationSeedJobCategories).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
	if len(logs.FilterMessage("database migration applied").All()) != 1 {
		testContext.Fatalf("expected one applied migration log entry")
	}

	sqlDB, err := database.DB()
	if err != nil {
		testContext.Fatalf("failed to access sql db: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		testContext.Fatalf("failed to close database: %v", err)
	}

	reopened, err := Open(Options{Driver: DriverSQLite, DSN: databasePath}, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to reopen database: %v", err)
	}
	var count int64
	if err := reopened.Model(&models.JobCategory{}).Count(&count).Error; err != nil {
		testContext.Fatalf("failed to count categories: %v", err)
	}
	if count != int64(len(defaultJobCategories)) {
		testContext.Fatalf("expected seeding to run once, got %d categories", count)
	}
}

func TestOpenTranslatesDuplicateKeys(testContext *testing.T) {
	database, err := Open(Options{DSN: filepath.Join(testContext.TempDir(), "dup.db")}, nil)
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	first := models.SavedJob{UserID: "u1", JobID: "j1"}
	if err := database.Create(&first).Error; err != nil {
		testContext.Fatalf("failed to insert saved job: %v", err)
	}
	second := models.SavedJob{UserID: "u1", JobID: "j1"}
	if err := database.Create(&second).Error; !errors.Is(err, gorm.ErrDuplicatedKey) {
		testContext.Fatalf("expected duplicated key error, got %v", err)
	}
}

func TestOpenRejectsBadOptions(testContext *testing.T) {
	if _, err := Open(Options{Driver: DriverSQLite}, nil); !errors.Is(err, ErrMissingDSN) {
		testContext.Fatalf("expected missing dsn error, got %v", err)
	}
	if _, err := Open(Options{Driver: "mysql", DSN: "x"}, nil); !errors.Is(err, ErrUnsupportedDriver) {
		testContext.Fatalf("expected unsupported driver error, got %v", err)
	}
}

func TestApplicationsCountTowardsTheirPosting(testContext *testing.T) {
	database, err := Open(Options{DSN: filepath.Join(testContext.TempDir(), "applications.db")}, nil)
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	posting := models.JobPosting{EmployerID: "e1", Title: "Garson", Description: "Akşam", City: "İzmir"}
	if err := database.Create(&posting).Error; err != nil {
		testContext.Fatalf("failed to insert posting: %v", err)
	}

	application := models.Application{JobID: posting.ID, ApplicantID: "u1"}
	if err := database.Create(&application).Error; err != nil {
		testContext.Fatalf("failed to insert application: %v", err)
	}
	var stored models.JobPosting
	if err := database.Where("id = ?", posting.ID).Take(&stored).Error; err != nil {
		testContext.Fatalf("failed to reload posting: %v", err)
	}
	if stored.ApplicationCount != 1 {
		testContext.Fatalf("expected one counted application, got %d", stored.ApplicationCount)
	}

	orphan := models.Application{JobID: "missing", ApplicantID: "u1"}
	if err := database.Create(&orphan).Error; !errors.Is(err, gorm.ErrForeignKeyViolated) {
		testContext.Fatalf("expected foreign key error, got %v", err)
	}
	var count int64
	database.Model(&models.Application{}).Count(&count)
	if count != 1 {
		testContext.Fatalf("expected the orphan application to be rolled back, got %d rows", count)
	}
}
