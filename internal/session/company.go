package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/anlik-eleman/backend/internal/models"
)

const (
	companyStepExistsCheck = "exists_check"
	companyStepInsert      = "insert"

	skipCompanyExists = "company_exists"
	skipCompanyNoName = "company_name_missing"
	skipNotEmployer   = "not_employer"
)

// NonFatalError is a failure that is logged but never surfaced in State.
type NonFatalError struct {
	Step string
	Err  error
}

func (e *NonFatalError) Error() string {
	return fmt.Sprintf("non-fatal %s failure: %v", e.Step, e.Err)
}

func (e *NonFatalError) Unwrap() error {
	return e.Err
}

// CompanyOutcome describes what company provisioning did for one employer.
type CompanyOutcome struct {
	Company *models.Company
	Skipped bool
	Reason  string
	Err     *NonFatalError
}

// provisionCompany creates the employer's company from sign-up metadata unless one exists or
// no company name was given. It never changes the store's state.
func (s *Store) provisionCompany(ctx context.Context, profile models.Profile, identity models.Identity) CompanyOutcome {
	if profile.UserType != models.UserTypeEmployer {
		return CompanyOutcome{Skipped: true, Reason: skipNotEmployer}
	}

	exists, err := s.profiles.CompanyExistsForOwner(ctx, profile.ID)
	if err != nil {
		return CompanyOutcome{Err: &NonFatalError{Step: companyStepExistsCheck, Err: err}}
	}
	if exists {
		return CompanyOutcome{Skipped: true, Reason: skipCompanyExists}
	}

	if strings.TrimSpace(identity.UserMetadata.String("company_name")) == "" {
		return CompanyOutcome{Skipped: true, Reason: skipCompanyNoName}
	}

	company, err := s.profiles.InsertCompany(ctx, models.NewCompanyInsert(profile, identity.Email, identity.UserMetadata))
	if err != nil {
		return CompanyOutcome{Err: &NonFatalError{Step: companyStepInsert, Err: err}}
	}
	return CompanyOutcome{Company: company}
}
