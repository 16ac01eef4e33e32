package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/anlik-eleman/backend/internal/models"
)

var (
	singleRow      = map[string]string{"Accept": singleObjectMIMEType, "Prefer": preferRepresentation}
	representation = map[string]string{"Prefer": preferRepresentation}
)

func (p *testPlatform) provisionProfile(t *testing.T, session models.Session) models.Profile {
	t.Helper()
	recorder := p.serve(t, testRequest{
		method:  http.MethodPost,
		target:  "/rest/v1/profiles",
		body:    models.NewProfileInsert(session.User.ID, session.User.UserMetadata),
		bearer:  session.AccessToken,
		headers: singleRow,
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("profile insert failed %d: %s", recorder.Code, recorder.Body.String())
	}
	var profile models.Profile
	decodeBody(t, recorder, &profile)
	return profile
}

func (p *testPlatform) promoteToAdmin(t *testing.T, id string) {
	t.Helper()
	if err := p.db.Model(&models.Profile{}).Where("id = ?", id).Update("user_type", models.UserTypeAdmin).Error; err != nil {
		t.Fatalf("failed to promote %s: %v", id, err)
	}
}

func assertRowError(t *testing.T, gotStatus int, body string, status int, code string) {
	t.Helper()
	if gotStatus != status {
		t.Fatalf("expected status %d, got %d: %s", status, gotStatus, body)
	}
	if !strings.Contains(body, `"code":"`+code+`"`) {
		t.Fatalf("expected code %q in %s", code, body)
	}
}

func TestProfileProvisioningAndSingleRead(t *testing.T) {
	platform := newTestPlatform(t, platformOptions{})
	session := platform.signUp(t, "ayse@example.com", models.Metadata{
		"first_name": "<b>Ayşe</b>",
		"last_name":  "Yılmaz & Co",
		"city":       "İzmir",
	})

	missing := platform.serve(t, testRequest{
		method:  http.MethodGet,
		target:  "/rest/v1/profiles?id=eq." + session.User.ID,
		bearer:  session.AccessToken,
		headers: map[string]string{"Accept": singleObjectMIMEType},
	})
	assertRowError(t, missing.Code, missing.Body.String(), http.StatusNotAcceptable, codeNoRows)
	if !strings.Contains(missing.Body.String(), "The result contains 0 rows") {
		t.Fatalf("expected row count details, got %s", missing.Body.String())
	}

	profile := platform.provisionProfile(t, session)
	if profile.ID != session.User.ID || profile.UserType != models.UserTypeJobSeeker {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if profile.FirstName != "Ayşe" || profile.LastName != "Yılmaz & Co" {
		t.Fatalf("expected markup stripped and text preserved, got %q %q", profile.FirstName, profile.LastName)
	}
	if profile.CreatedAt.IsZero() || !profile.IsActive {
		t.Fatalf("expected stored defaults, got %+v", profile)
	}

	found := platform.serve(t, testRequest{
		method:  http.MethodGet,
		target:  "/rest/v1/profiles?id=eq." + session.User.ID,
		bearer:  session.AccessToken,
		headers: map[string]string{"Accept": singleObjectMIMEType},
	})
	if found.Code != http.StatusOK {
		t.Fatalf("single read failed %d: %s", found.Code, found.Body.String())
	}
	var loaded models.Profile
	decodeBody(t, found, &loaded)
	if loaded.City == nil || *loaded.City != "İzmir" {
		t.Fatalf("unexpected loaded profile %+v", loaded)
	}

	duplicate := platform.serve(t, testRequest{
		method: http.MethodPost,
		target: "/rest/v1/profiles",
		body:   models.NewProfileInsert(session.User.ID, nil),
		bearer: session.AccessToken,
	})
	assertRowError(t, duplicate.Code, duplicate.Body.String(), http.StatusConflict, codeUniqueViolation)
}

func TestRowWritesEnforceOwnership(t *testing.T) {
	platform := newTestPlatform(t, platformOptions{})
	owner := platform.signUp(t, "owner@example.com", nil)
	other := platform.signUp(t, "other@example.com", nil)
	platform.provisionProfile(t, owner)

	anonymous := platform.serve(t, testRequest{
		method: http.MethodPost,
		target: "/rest/v1/profiles",
		body:   models.NewProfileInsert(other.User.ID, nil),
	})
	assertRowError(t, anonymous.Code, anonymous.Body.String(), http.StatusUnauthorized, codeInsufficientPrivilege)

	foreign := platform.serve(t, testRequest{
		method: http.MethodPost,
		target: "/rest/v1/profiles",
		body:   models.NewProfileInsert(owner.User.ID+"x", nil),
		bearer: other.AccessToken,
	})
	assertRowError(t, foreign.Code, foreign.Body.String(), http.StatusForbidden, codeInsufficientPrivilege)

	update := platform.serve(t, testRequest{
		method:  http.MethodPatch,
		target:  "/rest/v1/profiles?id=eq." + owner.User.ID,
		body:    map[string]any{"first_name": "Mallory"},
		bearer:  other.AccessToken,
		headers: singleRow,
	})
	assertRowError(t, update.Code, update.Body.String(), http.StatusNotAcceptable, codeNoRows)

	var stored models.Profile
	if err := platform.db.Where("id = ?", owner.User.ID).Take(&stored).Error; err != nil {
		t.Fatalf("failed to load profile: %v", err)
	}
	if stored.FirstName == "Mallory" {
		t.Fatalf("expected the foreign update to be rolled back")
	}
}

func TestAdminColumnsRequireAdministrator(t *testing.T) {
	platform := newTestPlatform(t, platformOptions{})
	employer := platform.signUp(t, "employer@example.com", models.Metadata{"user_type": "employer"})
	admin := platform.signUp(t, "admin@example.com", nil)
	platform.provisionProfile(t, employer)
	platform.provisionProfile(t, admin)

	selfApproval := platform.serve(t, testRequest{
		method:  http.MethodPatch,
		target:  "/rest/v1/profiles?id=eq." + employer.User.ID,
		body:    map[string]any{"is_approved": true},
		bearer:  employer.AccessToken,
		headers: singleRow,
	})
	assertRowError(t, selfApproval.Code, selfApproval.Body.String(), http.StatusForbidden, codeInsufficientPrivilege)

	escalation := platform.serve(t, testRequest{
		method: http.MethodPatch,
		target: "/rest/v1/profiles?id=eq." + employer.User.ID,
		body:   map[string]any{"user_type": "admin"},
		bearer: employer.AccessToken,
	})
	assertRowError(t, escalation.Code, escalation.Body.String(), http.StatusForbidden, codeInsufficientPrivilege)

	platform.promoteToAdmin(t, admin.User.ID)
	approval := platform.serve(t, testRequest{
		method:  http.MethodPatch,
		target:  "/rest/v1/profiles?id=eq." + employer.User.ID,
		body:    map[string]any{"is_approved": true},
		bearer:  admin.AccessToken,
		headers: singleRow,
	})
	if approval.Code != http.StatusOK {
		t.Fatalf("admin approval failed %d: %s", approval.Code, approval.Body.String())
	}
	var approved models.Profile
	decodeBody(t, approval, &approved)
	if !approved.IsApproved || approved.UserType != models.UserTypeEmployer || approved.FirstName != employer.User.UserMetadata.String("first_name") {
		t.Fatalf("expected only is_approved to change, got %+v", approved)
	}
}

func TestJobCategoriesArePublicAndAdminWritten(t *testing.T) {
	platform := newTestPlatform(t, platformOptions{})

	listing := platform.serve(t, testRequest{
		method: http.MethodGet,
		target: "/rest/v1/job_categories?is_active=eq.true&order=sort_order.asc&limit=3&offset=1",
	})
	if listing.Code != http.StatusOK {
		t.Fatalf("listing failed %d: %s", listing.Code, listing.Body.String())
	}
	var categories []models.JobCategory
	decodeBody(t, listing, &categories)
	if len(categories) != 3 || categories[0].SortOrder != 2 || categories[2].SortOrder != 4 {
		t.Fatalf("unexpected window %+v", categories)
	}

	user := platform.signUp(t, "user@example.com", nil)
	platform.provisionProfile(t, user)
	insert := platform.serve(t, testRequest{
		method: http.MethodPost,
		target: "/rest/v1/job_categories",
		body:   map[string]any{"name": "Barista", "is_active": true, "sort_order": 99},
		bearer: user.AccessToken,
	})
	assertRowError(t, insert.Code, insert.Body.String(), http.StatusForbidden, codeInsufficientPrivilege)

	platform.promoteToAdmin(t, user.User.ID)
	allowed := platform.serve(t, testRequest{
		method: http.MethodPost,
		target: "/rest/v1/job_categories",
		body:   map[string]any{"name": "Barista", "is_active": true, "sort_order": 99},
		bearer: user.AccessToken,
	})
	if allowed.Code != http.StatusCreated || allowed.Body.Len() != 0 {
		t.Fatalf("expected minimal 201, got %d: %s", allowed.Code, allowed.Body.String())
	}
}

func TestCompanyExistenceProjection(t *testing.T) {
	platform := newTestPlatform(t, platformOptions{})
	employer := platform.signUp(t, "acme@example.com", models.Metadata{"user_type": "employer"})
	platform.provisionProfile(t, employer)

	insert := platform.serve(t, testRequest{
		method:  http.MethodPost,
		target:  "/rest/v1/companies",
		body:    models.CompanyInsert{OwnerID: employer.User.ID, Name: "Acme", City: "Ankara"},
		bearer:  employer.AccessToken,
		headers: singleRow,
	})
	if insert.Code != http.StatusCreated {
		t.Fatalf("company insert failed %d: %s", insert.Code, insert.Body.String())
	}

	query := url.Values{}
	query.Set("select", "id")
	query.Set("owner_id", "eq."+employer.User.ID)
	query.Set("limit", "1")
	exists := platform.serve(t, testRequest{method: http.MethodGet, target: "/rest/v1/companies?" + query.Encode()})
	if exists.Code != http.StatusOK {
		t.Fatalf("exists check failed %d: %s", exists.Code, exists.Body.String())
	}
	var rows []map[string]any
	decodeBody(t, exists, &rows)
	if len(rows) != 1 || len(rows[0]) != 1 || rows[0]["id"] == "" {
		t.Fatalf("expected a single projected id, got %v", rows)
	}

	verified := platform.serve(t, testRequest{
		method: http.MethodPost,
		target: "/rest/v1/companies",
		body:   models.CompanyInsert{OwnerID: employer.User.ID, Name: "Fake", City: "Ankara", IsVerified: true},
		bearer: employer.AccessToken,
	})
	assertRowError(t, verified.Code, verified.Body.String(), http.StatusForbidden, codeInsufficientPrivilege)
}

func TestNotificationsArePrivateAndMarkedRead(t *testing.T) {
	platform := newTestPlatform(t, platformOptions{})
	reader := platform.signUp(t, "reader@example.com", nil)
	snoop := platform.signUp(t, "snoop@example.com", nil)

	ids := make([]string, 0, 3)
	for index := 0; index < 3; index++ {
		recorder := platform.serve(t, testRequest{
			method:  http.MethodPost,
			target:  "/rest/v1/notifications",
			body:    map[string]any{"user_id": reader.User.ID, "title": fmt.Sprintf("Başvuru %d", index), "message": "Yeni başvuru"},
			bearer:  reader.AccessToken,
			headers: singleRow,
		})
		if recorder.Code != http.StatusCreated {
			t.Fatalf("notification insert failed %d: %s", recorder.Code, recorder.Body.String())
		}
		var stored models.Notification
		decodeBody(t, recorder, &stored)
		ids = append(ids, stored.ID)
	}

	hidden := platform.serve(t, testRequest{
		method: http.MethodGet,
		target: "/rest/v1/notifications?user_id=eq." + reader.User.ID,
		bearer: snoop.AccessToken,
	})
	if hidden.Code != http.StatusOK || strings.TrimSpace(hidden.Body.String()) != "[]" {
		t.Fatalf("expected notifications hidden from other users, got %d %s", hidden.Code, hidden.Body.String())
	}

	mark := platform.serve(t, testRequest{
		method: http.MethodPatch,
		target: "/rest/v1/notifications?user_id=eq." + reader.User.ID + "&id=in.(" + ids[0] + "," + ids[1] + ")",
		body:   map[string]any{"is_read": true},
		bearer: reader.AccessToken,
	})
	if mark.Code != http.StatusNoContent {
		t.Fatalf("mark read failed %d: %s", mark.Code, mark.Body.String())
	}

	unread := platform.serve(t, testRequest{
		method: http.MethodGet,
		target: "/rest/v1/notifications?select=id&user_id=eq." + reader.User.ID + "&is_read=is.false",
		bearer: reader.AccessToken,
	})
	var rows []map[string]any
	decodeBody(t, unread, &rows)
	if len(rows) != 1 || rows[0]["id"] != ids[2] {
		t.Fatalf("expected only the third notification unread, got %v", rows)
	}
}

func TestSavedJobDeleteIsScopedToOwner(t *testing.T) {
	platform := newTestPlatform(t, platformOptions{})
	owner := platform.signUp(t, "saver@example.com", nil)
	other := platform.signUp(t, "intruder@example.com", nil)

	saved := platform.serve(t, testRequest{
		method:  http.MethodPost,
		target:  "/rest/v1/saved_jobs",
		body:    models.SavedJob{UserID: owner.User.ID, JobID: "job-1"},
		bearer:  owner.AccessToken,
		headers: representation,
	})
	if saved.Code != http.StatusCreated {
		t.Fatalf("save failed %d: %s", saved.Code, saved.Body.String())
	}

	target := "/rest/v1/saved_jobs?user_id=eq." + owner.User.ID + "&job_id=eq.job-1"
	intrusion := platform.serve(t, testRequest{method: http.MethodDelete, target: target, bearer: other.AccessToken})
	if intrusion.Code != http.StatusNoContent {
		t.Fatalf("expected a silent no-op, got %d", intrusion.Code)
	}
	var count int64
	platform.db.Model(&models.SavedJob{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected the bookmark to survive, got %d rows", count)
	}

	removed := platform.serve(t, testRequest{method: http.MethodDelete, target: target, bearer: owner.AccessToken})
	if removed.Code != http.StatusNoContent {
		t.Fatalf("delete failed %d: %s", removed.Code, removed.Body.String())
	}
	platform.db.Model(&models.SavedJob{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected the bookmark to be deleted, got %d rows", count)
	}
}

func TestJobPostingFilters(t *testing.T) {
	platform := newTestPlatform(t, platformOptions{})
	employer := platform.signUp(t, "jobs@example.com", models.Metadata{"user_type": "employer"})

	salaries := []float64{15000, 25000, 40000}
	for index, salary := range salaries {
		minimum := salary
		recorder := platform.serve(t, testRequest{
			method: http.MethodPost,
			target: "/rest/v1/job_postings",
			body: models.JobPosting{
				EmployerID:  employer.User.ID,
				Title:       fmt.Sprintf("İlan %d", index),
				Description: "Hafta sonu",
				City:        "İstanbul",
				SalaryMin:   &minimum,
				Status:      models.JobStatusActive,
			},
			bearer: employer.AccessToken,
		})
		if recorder.Code != http.StatusCreated {
			t.Fatalf("posting insert failed %d: %s", recorder.Code, recorder.Body.String())
		}
	}

	query := url.Values{}
	query.Set("status", "eq.active")
	query.Set("city", "eq.İstanbul")
	query.Set("salary_min", "gte.20000")
	query.Set("order", "salary_min.desc")
	listing := platform.serve(t, testRequest{method: http.MethodGet, target: "/rest/v1/job_postings?" + query.Encode()})
	if listing.Code != http.StatusOK {
		t.Fatalf("listing failed %d: %s", listing.Code, listing.Body.String())
	}
	var postings []models.JobPosting
	decodeBody(t, listing, &postings)
	if len(postings) != 2 || *postings[0].SalaryMin != 40000 || postings[1].JobType != models.JobTypePartTime {
		t.Fatalf("unexpected postings %+v", postings)
	}
}

func TestRowRequestValidation(t *testing.T) {
	platform := newTestPlatform(t, platformOptions{})
	user := platform.signUp(t, "validate@example.com", nil)

	cases := []struct {
		name    string
		request testRequest
		status  int
		code    string
	}{
		{"unknown table", testRequest{method: http.MethodGet, target: "/rest/v1/secrets"}, http.StatusNotFound, codeUndefinedTable},
		{"unknown column", testRequest{method: http.MethodGet, target: "/rest/v1/profiles?password=eq.x"}, http.StatusBadRequest, codeUndefinedColumn},
		{"bad operator", testRequest{method: http.MethodGet, target: "/rest/v1/profiles?id=like.x"}, http.StatusBadRequest, codeParseFailure},
		{"bad value", testRequest{method: http.MethodGet, target: "/rest/v1/profiles?is_active=eq.maybe"}, http.StatusBadRequest, codeInvalidText},
		{"missing where", testRequest{method: http.MethodPatch, target: "/rest/v1/notifications", body: map[string]any{"is_read": true}, bearer: user.AccessToken}, http.StatusBadRequest, codeMissingWhere},
		{"unknown body column", testRequest{method: http.MethodPost, target: "/rest/v1/saved_jobs", body: map[string]any{"user_id": user.User.ID, "color": "red"}, bearer: user.AccessToken}, http.StatusBadRequest, codeUnknownBodyColumn},
		{"primary key update", testRequest{method: http.MethodPatch, target: "/rest/v1/profiles?id=eq." + user.User.ID, body: map[string]any{"id": "other"}, bearer: user.AccessToken}, http.StatusBadRequest, codeInvalidBody},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := platform.serve(t, tc.request)
			assertRowError(t, recorder.Code, recorder.Body.String(), tc.status, tc.code)
		})
	}
}

func (p *testPlatform) postJob(t *testing.T, employer models.Session, title string) models.JobPosting {
	t.Helper()
	recorder := p.serve(t, testRequest{
		method:  http.MethodPost,
		target:  "/rest/v1/job_postings",
		body:    models.JobPosting{EmployerID: employer.User.ID, Title: title, Description: "Hafta sonu", City: "İzmir", Status: models.JobStatusActive},
		bearer:  employer.AccessToken,
		headers: singleRow,
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("posting insert failed %d: %s", recorder.Code, recorder.Body.String())
	}
	var posting models.JobPosting
	decodeBody(t, recorder, &posting)
	return posting
}

func TestApplicationsAreSharedWithThePostingEmployer(t *testing.T) {
	platform := newTestPlatform(t, platformOptions{})
	employer := platform.signUp(t, "kafe@example.com", models.Metadata{"user_type": "employer"})
	rival := platform.signUp(t, "rakip@example.com", models.Metadata{"user_type": "employer"})
	seeker := platform.signUp(t, "garson@example.com", nil)
	posting := platform.postJob(t, employer, "Garson")

	letter := "Hafta sonları <script>x</script>müsaitim"
	applied := platform.serve(t, testRequest{
		method:  http.MethodPost,
		target:  "/rest/v1/applications",
		body:    models.ApplicationInsert{JobID: posting.ID, ApplicantID: seeker.User.ID, CoverLetter: &letter},
		bearer:  seeker.AccessToken,
		headers: singleRow,
	})
	if applied.Code != http.StatusCreated {
		t.Fatalf("application insert failed %d: %s", applied.Code, applied.Body.String())
	}
	var application models.Application
	decodeBody(t, applied, &application)
	if application.Status != models.ApplicationPending || application.CoverLetter == nil || strings.Contains(*application.CoverLetter, "<") {
		t.Fatalf("unexpected stored application %+v", application)
	}

	selfAccepted := platform.serve(t, testRequest{
		method: http.MethodPost,
		target: "/rest/v1/applications",
		body:   map[string]any{"job_id": posting.ID, "applicant_id": seeker.User.ID, "status": "accepted"},
		bearer: seeker.AccessToken,
	})
	assertRowError(t, selfAccepted.Code, selfAccepted.Body.String(), http.StatusForbidden, codeInsufficientPrivilege)

	duplicate := platform.serve(t, testRequest{
		method: http.MethodPost,
		target: "/rest/v1/applications",
		body:   models.ApplicationInsert{JobID: posting.ID, ApplicantID: seeker.User.ID},
		bearer: seeker.AccessToken,
	})
	assertRowError(t, duplicate.Code, duplicate.Body.String(), http.StatusConflict, codeUniqueViolation)

	orphan := platform.serve(t, testRequest{
		method: http.MethodPost,
		target: "/rest/v1/applications",
		body:   models.ApplicationInsert{JobID: "missing", ApplicantID: seeker.User.ID},
		bearer: seeker.AccessToken,
	})
	assertRowError(t, orphan.Code, orphan.Body.String(), http.StatusConflict, codeForeignKeyViolation)

	listing := "/rest/v1/applications?job_id=eq." + posting.ID
	for _, tc := range []struct {
		name   string
		bearer string
		want   int
	}{
		{"applicant", seeker.AccessToken, 1},
		{"employer", employer.AccessToken, 1},
		{"other employer", rival.AccessToken, 0},
		{"anonymous", "", 0},
	} {
		recorder := platform.serve(t, testRequest{method: http.MethodGet, target: listing, bearer: tc.bearer})
		var rows []models.Application
		decodeBody(t, recorder, &rows)
		if len(rows) != tc.want {
			t.Fatalf("%s: expected %d applications, got %d", tc.name, tc.want, len(rows))
		}
	}

	target := "/rest/v1/applications?id=eq." + application.ID
	selfReview := platform.serve(t, testRequest{
		method:  http.MethodPatch,
		target:  target,
		body:    map[string]any{"status": "accepted"},
		bearer:  seeker.AccessToken,
		headers: singleRow,
	})
	assertRowError(t, selfReview.Code, selfReview.Body.String(), http.StatusNotAcceptable, codeNoRows)

	mixed := platform.serve(t, testRequest{
		method: http.MethodPatch,
		target: target,
		body:   map[string]any{"status": "rejected", "cover_letter": "rewritten"},
		bearer: employer.AccessToken,
	})
	assertRowError(t, mixed.Code, mixed.Body.String(), http.StatusForbidden, codeInsufficientPrivilege)

	rivalReview := platform.serve(t, testRequest{
		method:  http.MethodPatch,
		target:  target,
		body:    map[string]any{"status": "rejected"},
		bearer:  rival.AccessToken,
		headers: singleRow,
	})
	assertRowError(t, rivalReview.Code, rivalReview.Body.String(), http.StatusNotAcceptable, codeNoRows)

	reviewed := platform.serve(t, testRequest{
		method:  http.MethodPatch,
		target:  target,
		body:    map[string]any{"status": "shortlisted", "employer_notes": "Deneyimli"},
		bearer:  employer.AccessToken,
		headers: singleRow,
	})
	if reviewed.Code != http.StatusOK {
		t.Fatalf("employer review failed %d: %s", reviewed.Code, reviewed.Body.String())
	}
	decodeBody(t, reviewed, &application)
	if application.Status != models.ApplicationShortlisted || application.EmployerNotes == nil || *application.EmployerNotes != "Deneyimli" {
		t.Fatalf("unexpected reviewed application %+v", application)
	}

	var stored models.JobPosting
	if err := platform.db.Where("id = ?", posting.ID).Take(&stored).Error; err != nil {
		t.Fatalf("failed to load posting: %v", err)
	}
	if stored.ApplicationCount != 1 {
		t.Fatalf("expected one counted application, got %d", stored.ApplicationCount)
	}
}

func TestReviewVisibilityAndChecks(t *testing.T) {
	platform := newTestPlatform(t, platformOptions{})
	employer := platform.signUp(t, "patron@example.com", models.Metadata{"user_type": "employer"})
	worker := platform.signUp(t, "kurye@example.com", nil)
	stranger := platform.signUp(t, "yabanci@example.com", nil)

	for _, review := range []models.ReviewInsert{
		{ReviewerID: employer.User.ID, RevieweeID: worker.User.ID, Rating: 5, IsPublic: true},
		{ReviewerID: employer.User.ID, RevieweeID: worker.User.ID, Rating: 3, IsPublic: false},
	} {
		recorder := platform.serve(t, testRequest{method: http.MethodPost, target: "/rest/v1/reviews", body: review, bearer: employer.AccessToken})
		if recorder.Code != http.StatusCreated {
			t.Fatalf("review insert failed %d: %s", recorder.Code, recorder.Body.String())
		}
	}

	outOfRange := platform.serve(t, testRequest{
		method: http.MethodPost,
		target: "/rest/v1/reviews",
		body:   models.ReviewInsert{ReviewerID: employer.User.ID, RevieweeID: worker.User.ID, Rating: 9},
		bearer: employer.AccessToken,
	})
	assertRowError(t, outOfRange.Code, outOfRange.Body.String(), http.StatusBadRequest, codeCheckViolation)

	forged := platform.serve(t, testRequest{
		method: http.MethodPost,
		target: "/rest/v1/reviews",
		body:   models.ReviewInsert{ReviewerID: employer.User.ID, RevieweeID: stranger.User.ID, Rating: 1},
		bearer: worker.AccessToken,
	})
	assertRowError(t, forged.Code, forged.Body.String(), http.StatusForbidden, codeInsufficientPrivilege)

	target := "/rest/v1/reviews?reviewee_id=eq." + worker.User.ID
	for _, tc := range []struct {
		name   string
		bearer string
		want   int
	}{
		{"reviewee", worker.AccessToken, 2},
		{"reviewer", employer.AccessToken, 2},
		{"stranger", stranger.AccessToken, 1},
		{"anonymous", "", 1},
	} {
		recorder := platform.serve(t, testRequest{method: http.MethodGet, target: target, bearer: tc.bearer})
		var rows []models.Review
		decodeBody(t, recorder, &rows)
		if len(rows) != tc.want {
			t.Fatalf("%s: expected %d reviews, got %d", tc.name, tc.want, len(rows))
		}
	}
}

func TestNotificationsMayBeAddressedToOtherUsers(t *testing.T) {
	platform := newTestPlatform(t, platformOptions{})
	employer := platform.signUp(t, "bildiren@example.com", models.Metadata{"user_type": "employer"})
	seeker := platform.signUp(t, "alici@example.com", nil)

	sent := platform.serve(t, testRequest{
		method: http.MethodPost,
		target: "/rest/v1/notifications",
		body:   models.NotificationInsert{UserID: seeker.User.ID, Type: models.NotificationApplication, Title: "Başvurunuz güncellendi", Message: "Kısa listeye alındınız"},
		bearer: employer.AccessToken,
	})
	if sent.Code != http.StatusCreated {
		t.Fatalf("notification insert failed %d: %s", sent.Code, sent.Body.String())
	}

	anonymous := platform.serve(t, testRequest{
		method: http.MethodPost,
		target: "/rest/v1/notifications",
		body:   models.NotificationInsert{UserID: seeker.User.ID, Title: "Spam", Message: "Spam"},
	})
	assertRowError(t, anonymous.Code, anonymous.Body.String(), http.StatusUnauthorized, codeInsufficientPrivilege)

	hidden := platform.serve(t, testRequest{method: http.MethodGet, target: "/rest/v1/notifications?user_id=eq." + seeker.User.ID, bearer: employer.AccessToken})
	if strings.TrimSpace(hidden.Body.String()) != "[]" {
		t.Fatalf("expected the sender not to read the notification, got %s", hidden.Body.String())
	}
	retract := platform.serve(t, testRequest{method: http.MethodDelete, target: "/rest/v1/notifications?user_id=eq." + seeker.User.ID, bearer: employer.AccessToken})
	if retract.Code != http.StatusNoContent {
		t.Fatalf("expected a silent no-op delete, got %d", retract.Code)
	}

	inbox := platform.serve(t, testRequest{method: http.MethodGet, target: "/rest/v1/notifications?user_id=eq." + seeker.User.ID, bearer: seeker.AccessToken})
	var rows []models.Notification
	decodeBody(t, inbox, &rows)
	if len(rows) != 1 || rows[0].Type != models.NotificationApplication || rows[0].IsRead {
		t.Fatalf("unexpected inbox %+v", rows)
	}
}
