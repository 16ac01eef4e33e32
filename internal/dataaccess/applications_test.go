package dataaccess

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anlik-eleman/backend/internal/client"
	"github.com/anlik-eleman/backend/internal/i18n"
	"github.com/anlik-eleman/backend/internal/models"
)

func TestApplyToJobReportsDuplicateApplication(t *testing.T) {
	duplicate := false
	var request capturedRequest
	facade, _ := newTestFacade(t, i18n.Turkish, func(w http.ResponseWriter, r *http.Request) {
		request = capture(r)
		if duplicate {
			writeJSON(w, http.StatusConflict, map[string]string{"code": "23505", "message": "duplicate key value violates unique constraint on applications"})
			return
		}
		writeJSON(w, http.StatusCreated, models.Application{ID: "a1", JobID: "j1", ApplicantID: "u1", Status: models.ApplicationPending})
	})

	letter := "Akşamları müsaitim"
	application, err := facade.ApplyToJob(context.Background(), models.ApplicationInsert{JobID: "j1", ApplicantID: "u1", CoverLetter: &letter})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if application.Status != models.ApplicationPending {
		t.Fatalf("unexpected application %+v", application)
	}
	if request.body["cover_letter"] != letter || request.body["applicant_id"] != "u1" {
		t.Fatalf("unexpected body %+v", request.body)
	}
	if _, present := request.body["resume_url"]; present {
		t.Fatalf("expected unset resume to be omitted, got %+v", request.body)
	}

	duplicate = true
	_, err = facade.ApplyToJob(context.Background(), models.ApplicationInsert{JobID: "j1", ApplicantID: "u1"})
	if dataErr := asDataError(t, err); dataErr.Message != "Bu ilana zaten başvurdunuz" || dataErr.Code != "23505" {
		t.Fatalf("unexpected duplicate failure %+v", dataErr)
	}
}

func TestListApplicationsAppliesFilters(t *testing.T) {
	var query string
	facade, _ := newTestFacade(t, i18n.Turkish, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		writeJSON(w, http.StatusOK, []models.Application{{ID: "a1"}})
	})
	applications, err := facade.ListApplications(context.Background(), models.ApplicationFilter{
		JobID:  "j1",
		Status: models.ApplicationShortlisted,
		Limit:  5,
	})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(applications) != 1 {
		t.Fatalf("unexpected applications %+v", applications)
	}
	if query != "job_id=eq.j1&limit=5&order=applied_at.desc&status=eq.shortlisted" {
		t.Fatalf("unexpected query %q", query)
	}
}

func TestUpdateApplicationStampsReviewTime(t *testing.T) {
	var request capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		request = capture(r)
		writeJSON(w, http.StatusOK, models.Application{ID: "a1", Status: models.ApplicationAccepted})
	}))
	t.Cleanup(server.Close)
	platformClient, err := client.New(client.Config{URL: server.URL, AnonKey: "anon"})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	reviewedAt := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	facade, err := New(Config{Client: platformClient, Clock: func() time.Time { return reviewedAt }})
	if err != nil {
		t.Fatalf("failed to create facade: %v", err)
	}

	status := models.ApplicationAccepted
	if _, err := facade.UpdateApplication(context.Background(), "a1", models.ApplicationUpdate{Status: &status}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if request.query != "id=eq.a1" || request.body["status"] != "accepted" || request.body["reviewed_at"] != "2024-06-01T09:30:00Z" {
		t.Fatalf("unexpected review request %+v", request)
	}

	letter := "Güncel özgeçmiş ektedir"
	if _, err := facade.UpdateApplication(context.Background(), "a1", models.ApplicationUpdate{CoverLetter: &letter}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if _, stamped := request.body["reviewed_at"]; stamped || len(request.body) != 1 {
		t.Fatalf("expected a letter-only change, got %+v", request.body)
	}
}

func TestReviewQueries(t *testing.T) {
	var queries []string
	facade, _ := newTestFacade(t, i18n.Turkish, func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.RawQuery)
		writeJSON(w, http.StatusOK, []models.Review{{ID: "r1", Rating: 5, IsPublic: true}})
	})
	if _, err := facade.ListReviews(context.Background(), "u1"); err != nil {
		t.Fatalf("list reviews failed: %v", err)
	}
	if _, err := facade.ListTestimonials(context.Background(), 0); err != nil {
		t.Fatalf("list testimonials failed: %v", err)
	}
	want := []string{
		"is_public=eq.true&order=created_at.desc&reviewee_id=eq.u1",
		"is_public=eq.true&limit=3&order=rating.desc%2Ccreated_at.desc",
	}
	for index, query := range want {
		if queries[index] != query {
			t.Fatalf("query %d = %q, want %q", index, queries[index], query)
		}
	}
}

func TestCreateReviewValidatesRatingLocally(t *testing.T) {
	var calls int32
	facade, _ := newTestFacade(t, i18n.English, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusCreated, models.Review{ID: "r1", Rating: 4})
	})
	_, err := facade.CreateReview(context.Background(), models.ReviewInsert{ReviewerID: "e1", RevieweeID: "u1", Rating: 0})
	if dataErr := asDataError(t, err); dataErr.Kind != KindValidation || dataErr.Message != "Rating must be between 1 and 5" {
		t.Fatalf("unexpected validation error %+v", dataErr)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no platform call for an invalid rating")
	}
	review, err := facade.CreateReview(context.Background(), models.ReviewInsert{ReviewerID: "e1", RevieweeID: "u1", Rating: 4})
	if err != nil || review.ID != "r1" {
		t.Fatalf("expected stored review, got %+v, %v", review, err)
	}
}

func TestCreateNotificationDefaultsTypeAndSkipsRepresentation(t *testing.T) {
	var request capturedRequest
	facade, _ := newTestFacade(t, i18n.Turkish, func(w http.ResponseWriter, r *http.Request) {
		request = capture(r)
		w.WriteHeader(http.StatusCreated)
	})
	err := facade.CreateNotification(context.Background(), models.NotificationInsert{UserID: "u2", Title: "Merhaba", Message: "Hoş geldiniz"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if request.prefer != "return=minimal" || request.body["type"] != "system" || request.body["user_id"] != "u2" {
		t.Fatalf("unexpected notification request %+v", request)
	}
}

func TestPlatformStatsCountsEachTable(t *testing.T) {
	facade, _ := newTestFacade(t, i18n.Turkish, func(w http.ResponseWriter, r *http.Request) {
		rows := map[string]int{
			"/rest/v1/profiles":     4,
			"/rest/v1/job_postings": 2,
			"/rest/v1/companies":    1,
		}[r.URL.Path]
		if strings.Contains(r.URL.RawQuery, "user_type=eq.employer") {
			rows = 1
		}
		payload := make([]map[string]string, rows)
		for index := range payload {
			payload[index] = map[string]string{"id": "x"}
		}
		writeJSON(w, http.StatusOK, payload)
	})
	stats, err := facade.PlatformStats(context.Background())
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	want := models.PlatformStats{TotalUsers: 4, TotalEmployers: 1, ActiveJobs: 2, TotalCompanies: 1}
	if *stats != want {
		t.Fatalf("stats = %+v, want %+v", *stats, want)
	}
}

func TestEmployerDashboardCountsApplications(t *testing.T) {
	var applicationQuery string
	facade, _ := newTestFacade(t, i18n.Turkish, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/v1/job_postings":
			writeJSON(w, http.StatusOK, []models.JobPosting{
				{ID: "j1", Status: models.JobStatusActive},
				{ID: "j2", Status: models.JobStatusPending},
				{ID: "j3", Status: models.JobStatusActive},
			})
		case "/rest/v1/applications":
			applicationQuery = r.URL.RawQuery
			writeJSON(w, http.StatusOK, []map[string]string{{"id": "a1"}, {"id": "a2"}})
		}
	})
	dashboard, err := facade.EmployerDashboard(context.Background(), "e1")
	if err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}
	if dashboard.TotalJobs != 3 || dashboard.ActiveJobs != 2 || dashboard.TotalApplications != 2 {
		t.Fatalf("unexpected dashboard %+v", dashboard)
	}
	if applicationQuery != "job_id=in.%28j1%2Cj2%2Cj3%29&select=id" {
		t.Fatalf("unexpected application query %q", applicationQuery)
	}
}

func TestEmployerDashboardWithoutPostingsSkipsApplications(t *testing.T) {
	var calls int32
	facade, _ := newTestFacade(t, i18n.Turkish, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusOK, []models.JobPosting{})
	})
	dashboard, err := facade.EmployerDashboard(context.Background(), "e1")
	if err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}
	if dashboard.TotalJobs != 0 || dashboard.JobPostings == nil || atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("unexpected dashboard %+v after %d calls", dashboard, calls)
	}
}

func TestAdminDashboardFailureIsLocalized(t *testing.T) {
	facade, _ := newTestFacade(t, i18n.Turkish, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest/v1/profiles" {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"code": "XX000", "message": "internal server error"})
			return
		}
		writeJSON(w, http.StatusOK, []models.JobPosting{{ID: "j1", Status: models.JobStatusPending}})
	})
	_, err := facade.AdminDashboard(context.Background())
	if dataErr := asDataError(t, err); dataErr.Message != "Admin paneli verileri alınamadı" {
		t.Fatalf("unexpected message %q", dataErr.Message)
	}
}

func TestAdminDashboardCollectsModerationQueues(t *testing.T) {
	var queries []string
	facade, _ := newTestFacade(t, i18n.Turkish, func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Path+"?"+r.URL.RawQuery)
		if r.URL.Path == "/rest/v1/job_postings" {
			writeJSON(w, http.StatusOK, []models.JobPosting{{ID: "j1", Status: models.JobStatusPending}})
			return
		}
		writeJSON(w, http.StatusOK, []models.Profile{{ID: "e1", UserType: models.UserTypeEmployer}})
	})
	dashboard, err := facade.AdminDashboard(context.Background())
	if err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}
	if len(dashboard.PendingJobs) != 1 || len(dashboard.RecentUsers) != 1 || len(dashboard.PendingEmployers) != 1 {
		t.Fatalf("unexpected dashboard %+v", dashboard)
	}
	want := []string{
		"/rest/v1/job_postings?order=created_at.desc&status=eq.pending",
		"/rest/v1/profiles?limit=10&order=created_at.desc",
		"/rest/v1/profiles?is_approved=eq.false&order=created_at.asc&user_type=eq.employer",
	}
	for index, query := range want {
		if queries[index] != query {
			t.Fatalf("query %d = %q, want %q", index, queries[index], query)
		}
	}
}

func TestReviewApplicationNotifiesApplicant(t *testing.T) {
	var notice capturedRequest
	rejectNotices := false
	facade, _ := newTestFacade(t, i18n.English, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/v1/applications":
			writeJSON(w, http.StatusOK, models.Application{ID: "a1", JobID: "j1", ApplicantID: "u1", Status: models.ApplicationAccepted})
		case "/rest/v1/job_postings":
			writeJSON(w, http.StatusOK, models.JobPosting{ID: "j1", Title: "Garson"})
		case "/rest/v1/notifications":
			notice = capture(r)
			if rejectNotices {
				writeJSON(w, http.StatusForbidden, map[string]string{"code": "42501", "message": "permission denied"})
				return
			}
			w.WriteHeader(http.StatusCreated)
		}
	})

	notes := "Pazartesi başlayabilir"
	application, err := facade.ReviewApplication(context.Background(), "a1", models.ApplicationAccepted, &notes)
	if err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if application.Status != models.ApplicationAccepted {
		t.Fatalf("unexpected application %+v", application)
	}
	if notice.body["user_id"] != "u1" || notice.body["type"] != "application" {
		t.Fatalf("unexpected notice %+v", notice.body)
	}
	if notice.body["title"] != "Your application was updated" {
		t.Fatalf("unexpected title %v", notice.body["title"])
	}
	if notice.body["message"] != `The status of your application to "Garson" is now: accepted` {
		t.Fatalf("unexpected message %v", notice.body["message"])
	}

	rejectNotices = true
	if _, err := facade.ReviewApplication(context.Background(), "a1", models.ApplicationAccepted, nil); err != nil {
		t.Fatalf("expected the decision to stand without a notice, got %v", err)
	}
}
