package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Company is an employer's business record.
type Company struct {
	ID            string    `json:"id" gorm:"column:id;primaryKey;size:36"`
	OwnerID       string    `json:"owner_id" gorm:"column:owner_id;size:36;not null;index"`
	Name          string    `json:"name" gorm:"column:name;size:200;not null"`
	City          string    `json:"city" gorm:"column:city;size:120;not null"`
	Description   *string   `json:"description" gorm:"column:description"`
	Website       *string   `json:"website" gorm:"column:website;size:512"`
	LogoURL       *string   `json:"logo_url" gorm:"column:logo_url;size:512"`
	Address       *string   `json:"address" gorm:"column:address"`
	Phone         *string   `json:"phone" gorm:"column:phone;size:32"`
	Email         *string   `json:"email" gorm:"column:email;size:320"`
	TaxNumber     *string   `json:"tax_number" gorm:"column:tax_number;size:32"`
	EmployeeCount *string   `json:"employee_count" gorm:"column:employee_count;size:32"`
	IsVerified    bool      `json:"is_verified" gorm:"column:is_verified;not null"`
	CreatedAt     time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing companies.
func (Company) TableName() string {
	return "companies"
}

func (c *Company) BeforeCreate(_ *gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// CompanyInsert is the row written when a company is created.
type CompanyInsert struct {
	OwnerID       string  `json:"owner_id"`
	Name          string  `json:"name"`
	City          string  `json:"city"`
	Description   *string `json:"description"`
	Website       *string `json:"website"`
	Phone         *string `json:"phone"`
	Email         *string `json:"email"`
	EmployeeCount *string `json:"employee_count"`
	IsVerified    bool    `json:"is_verified"`
}

// NewCompanyInsert builds the auto-provisioned company of an employer.
// The city prefers the profile's city, then the sign-up metadata, then empty.
func NewCompanyInsert(profile Profile, email string, metadata Metadata) CompanyInsert {
	city := ""
	if profile.City != nil && strings.TrimSpace(*profile.City) != "" {
		city = strings.TrimSpace(*profile.City)
	} else {
		city = strings.TrimSpace(metadata.String("city"))
	}
	return CompanyInsert{
		OwnerID:       profile.ID,
		Name:          strings.TrimSpace(metadata.String("company_name")),
		City:          city,
		Description:   optionalString(strings.TrimSpace(metadata.String("company_description"))),
		Website:       optionalString(strings.TrimSpace(metadata.String("company_website"))),
		Phone:         optionalString(strings.TrimSpace(metadata.String("phone"))),
		Email:         optionalString(strings.TrimSpace(email)),
		EmployeeCount: optionalString(strings.TrimSpace(metadata.String("employee_count"))),
		IsVerified:    false,
	}
}

// CompanyUpdate is a partial company change.
type CompanyUpdate struct {
	Name          *string `json:"name,omitempty"`
	City          *string `json:"city,omitempty"`
	Description   *string `json:"description,omitempty"`
	Website       *string `json:"website,omitempty"`
	LogoURL       *string `json:"logo_url,omitempty"`
	Address       *string `json:"address,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	Email         *string `json:"email,omitempty"`
	TaxNumber     *string `json:"tax_number,omitempty"`
	EmployeeCount *string `json:"employee_count,omitempty"`
}
