package server

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/anlik-eleman/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

const unknownTableLabel = "unknown"

// tableDef describes one table exposed through the row API and the rules guarding it.
type tableDef struct {
	name  string
	model any
	// ownerColumn holds the id of the user allowed to write the row.
	ownerColumn string
	// privateRows limits reads to the row owner and the rows matched by sharedWith.
	privateRows bool
	// sharedWith selects the rows a second party may read without owning them.
	sharedWith func(caller rowCaller) clause.Expression
	// sharedColumns are changed only by the second party, never by the owner.
	sharedColumns map[string]bool
	// openInserts lets any signed-in caller insert rows addressed to another user.
	openInserts bool
	// adminWrites limits every write to administrators.
	adminWrites bool
	// textColumns are stripped of markup before they are stored.
	textColumns []string
	schema      *schema.Schema
}

func (t tableDef) newRow() reflect.Value {
	return reflect.New(t.schema.ModelType)
}

func (t tableDef) newRows() reflect.Value {
	return reflect.New(reflect.SliceOf(t.schema.ModelType))
}

func (t tableDef) column(name string) (*schema.Field, bool) {
	field, ok := t.schema.FieldsByDBName[name]
	return field, ok
}

func (t tableDef) ownedBy(caller rowCaller) clause.Expression {
	return clause.Eq{Column: clause.Column{Name: t.ownerColumn}, Value: caller.id}
}

// visibleTo scopes a private table's reads for a non-admin caller.
func (t tableDef) visibleTo(caller rowCaller) clause.Expression {
	if t.sharedWith == nil {
		return t.ownedBy(caller)
	}
	return clause.Or(t.ownedBy(caller), t.sharedWith(caller))
}

// writableBy scopes the rows a non-admin caller may change; change is nil for deletes.
func (t tableDef) writableBy(caller rowCaller, change map[string]any) clause.Expression {
	if t.sharedWith != nil && t.touchesShared(change) {
		return t.sharedWith(caller)
	}
	return t.ownedBy(caller)
}

func (t tableDef) touchesShared(row map[string]any) bool {
	for column := range row {
		if t.sharedColumns[column] {
			return true
		}
	}
	return false
}

type tableRegistry map[string]tableDef

func (r tableRegistry) label(name string) string {
	if _, ok := r[name]; ok {
		return name
	}
	return unknownTableLabel
}

// adminColumns may only be set to a non-zero value by administrators.
var adminColumns = map[string]bool{
	"is_verified":        true,
	"is_premium":         true,
	"is_approved":        true,
	"premium_expires_at": true,
}

func exposedTables() []tableDef {
	return []tableDef{
		{
			name:        "profiles",
			model:       &models.Profile{},
			ownerColumn: "id",
			textColumns: []string{"first_name", "last_name", "city", "bio"},
		},
		{
			name:        "companies",
			model:       &models.Company{},
			ownerColumn: "owner_id",
			textColumns: []string{"name", "city", "description", "address"},
		},
		{
			name:        "job_categories",
			model:       &models.JobCategory{},
			adminWrites: true,
			textColumns: []string{"name", "description"},
		},
		{
			name:        "job_postings",
			model:       &models.JobPosting{},
			ownerColumn: "employer_id",
			textColumns: []string{"title", "description", "city", "address"},
		},
		{
			name:        "saved_jobs",
			model:       &models.SavedJob{},
			ownerColumn: "user_id",
			privateRows: true,
		},
		{
			name:        "applications",
			model:       &models.Application{},
			ownerColumn: "applicant_id",
			privateRows: true,
			sharedWith:  postedBy,
			sharedColumns: map[string]bool{
				"status":         true,
				"employer_notes": true,
				"reviewed_at":    true,
			},
			textColumns: []string{"cover_letter", "employer_notes"},
		},
		{
			name:        "reviews",
			model:       &models.Review{},
			ownerColumn: "reviewer_id",
			privateRows: true,
			sharedWith:  publicOrAbout,
			textColumns: []string{"comment"},
		},
		{
			name:        "notifications",
			model:       &models.Notification{},
			ownerColumn: "user_id",
			privateRows: true,
			openInserts: true,
			textColumns: []string{"title", "message"},
		},
	}
}

// postedBy matches applications to postings the caller published.
func postedBy(caller rowCaller) clause.Expression {
	return clause.Expr{
		SQL:  "job_id IN (SELECT id FROM job_postings WHERE employer_id = ?)",
		Vars: []any{caller.id},
	}
}

// publicOrAbout matches public reviews and every review of the caller.
func publicOrAbout(caller rowCaller) clause.Expression {
	return clause.Or(
		clause.Eq{Column: clause.Column{Name: "is_public"}, Value: true},
		clause.Eq{Column: clause.Column{Name: "reviewee_id"}, Value: caller.id},
	)
}

func newTableRegistry(db *gorm.DB) (tableRegistry, error) {
	cache := &sync.Map{}
	registry := tableRegistry{}
	for _, def := range exposedTables() {
		parsed, err := schema.Parse(def.model, cache, db.NamingStrategy)
		if err != nil {
			return nil, fmt.Errorf("parse %s schema: %w", def.name, err)
		}
		def.schema = parsed
		registry[def.name] = def
	}
	return registry, nil
}
