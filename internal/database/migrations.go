package database

import (
	"errors"
	"time"

	"github.com/anlik-eleman/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationSeedJobCategories = "2024-06-01_seed_job_categories"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationSeedJobCategories, apply: seedJobCategories},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

type categorySeed struct {
	name string
	icon string
}

var defaultJobCategories = []categorySeed{
	{name: "Garson", icon: "utensils"},
	{name: "Kurye", icon: "bike"},
	{name: "Temizlik", icon: "sparkles"},
	{name: "Satış Danışmanı", icon: "shopping-bag"},
	{name: "Depo ve Lojistik", icon: "package"},
	{name: "Etkinlik Personeli", icon: "calendar"},
	{name: "Çağrı Merkezi", icon: "headphones"},
	{name: "Özel Ders", icon: "book-open"},
}

// seedJobCategories inserts the default categories, skipping names that already exist.
func seedJobCategories(db *gorm.DB) error {
	for index, seed := range defaultJobCategories {
		icon := seed.icon
		category := models.JobCategory{
			Name:      seed.name,
			Icon:      &icon,
			IsActive:  true,
			SortOrder: index + 1,
		}
		err := db.Where("name = ?", seed.name).FirstOrCreate(&category).Error
		if err != nil {
			return err
		}
	}
	return nil
}
