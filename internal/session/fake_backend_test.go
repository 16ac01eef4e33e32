package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anlik-eleman/backend/internal/dataaccess"
	"github.com/anlik-eleman/backend/internal/i18n"
	"github.com/anlik-eleman/backend/internal/models"
	"go.uber.org/zap"
)

// fakeBackend implements both façade interfaces in memory and counts every call.
type fakeBackend struct {
	mu sync.Mutex

	session     *models.Session
	sessionErr  error
	identity    *models.Identity
	identityErr error

	profiles         map[string]models.Profile
	profileErr       error
	insertProfileErr error
	updateErr        error
	staleUpdate      bool

	companies        map[string][]models.Company
	existsErr        error
	insertCompanyErr error

	signUpIdentity *models.Identity
	signUpErr      error
	signInErr      error
	signOutErr     error
	publishOnAuth  bool

	profileGate    chan struct{}
	profileStarted chan struct{}

	events       chan models.AuthEvent
	unsubscribed int32
	calls        map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		profiles:  make(map[string]models.Profile),
		companies: make(map[string][]models.Company),
		events:    make(chan models.AuthEvent, 16),
		calls:     make(map[string]int),
	}
}

func (b *fakeBackend) count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[name]
}

func (b *fakeBackend) record(name string) {
	b.mu.Lock()
	b.calls[name]++
	b.mu.Unlock()
}

func (b *fakeBackend) emit(event models.AuthEvent) {
	b.events <- event
}

func (b *fakeBackend) GetSession(context.Context) (*models.Session, error) {
	b.record("GetSession")
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sessionErr != nil {
		return nil, b.sessionErr
	}
	if b.session == nil {
		return nil, nil
	}
	copied := *b.session
	return &copied, nil
}

func (b *fakeBackend) GetCurrentIdentity(context.Context) (*models.Identity, error) {
	b.record("GetCurrentIdentity")
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.identityErr != nil {
		return nil, b.identityErr
	}
	if b.identity == nil {
		return nil, nil
	}
	copied := *b.identity
	return &copied, nil
}

func (b *fakeBackend) OnAuthStateChange(context.Context) (<-chan models.AuthEvent, func()) {
	b.record("OnAuthStateChange")
	return b.events, func() { atomic.AddInt32(&b.unsubscribed, 1) }
}

func (b *fakeBackend) SignUpIdentity(_ context.Context, email, password string, attrs models.SignUpAttributes) (*models.Identity, error) {
	b.record("SignUpIdentity")
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.signUpErr != nil {
		return nil, b.signUpErr
	}
	identity := *b.signUpIdentity
	identity.UserMetadata = attrs.Metadata()
	identity.Email = email
	b.identity = &identity
	return &identity, nil
}

func (b *fakeBackend) SignInIdentity(_ context.Context, email, password string) (*models.Identity, error) {
	b.record("SignInIdentity")
	b.mu.Lock()
	if b.signInErr != nil {
		b.mu.Unlock()
		return nil, b.signInErr
	}
	session := b.session
	publish := b.publishOnAuth
	b.mu.Unlock()
	if session == nil {
		return nil, errors.New("fake backend has no session to sign into")
	}
	if publish {
		b.emit(models.AuthEvent{Type: models.AuthEventSignedIn, Session: session})
	}
	identity := session.User
	return &identity, nil
}

func (b *fakeBackend) SignOutIdentity(context.Context) error {
	b.record("SignOutIdentity")
	b.mu.Lock()
	if b.signOutErr != nil {
		b.mu.Unlock()
		return b.signOutErr
	}
	b.session = nil
	publish := b.publishOnAuth
	b.mu.Unlock()
	if publish {
		b.emit(models.AuthEvent{Type: models.AuthEventSignedOut})
	}
	return nil
}

func (b *fakeBackend) GetProfileByID(_ context.Context, id string) (*models.Profile, error) {
	b.record("GetProfileByID")
	b.mu.Lock()
	gate, started := b.profileGate, b.profileStarted
	b.mu.Unlock()
	if started != nil {
		close(started)
		b.mu.Lock()
		b.profileStarted = nil
		b.mu.Unlock()
	}
	if gate != nil {
		<-gate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.profileErr != nil {
		return nil, b.profileErr
	}
	profile, ok := b.profiles[id]
	if !ok {
		return nil, &dataaccess.Error{Kind: dataaccess.KindNotFound, Code: dataaccess.CodeNoRows, Message: "Profil bilgileri yüklenemedi"}
	}
	return &profile, nil
}

func (b *fakeBackend) InsertProfile(_ context.Context, row models.ProfileInsert) (*models.Profile, error) {
	b.record("InsertProfile")
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.insertProfileErr != nil {
		return nil, b.insertProfileErr
	}
	profile := models.Profile{
		ID:         row.ID,
		UserType:   row.UserType,
		FirstName:  row.FirstName,
		LastName:   row.LastName,
		Phone:      row.Phone,
		City:       row.City,
		IsActive:   row.IsActive,
		IsVerified: row.IsVerified,
		IsPremium:  row.IsPremium,
		IsApproved: row.IsApproved,
	}
	b.profiles[row.ID] = profile
	return &profile, nil
}

func (b *fakeBackend) UpdateProfile(_ context.Context, id string, update models.ProfileUpdate) (*models.Profile, error) {
	b.record("UpdateProfile")
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.updateErr != nil {
		return nil, b.updateErr
	}
	profile := b.profiles[id]
	if update.FirstName != nil {
		profile.FirstName = *update.FirstName
	}
	if update.City != nil {
		profile.City = update.City
	}
	b.profiles[id] = profile
	if b.staleUpdate {
		return &models.Profile{ID: id, FirstName: "stale"}, nil
	}
	return &profile, nil
}

func (b *fakeBackend) CompanyExistsForOwner(_ context.Context, ownerID string) (bool, error) {
	b.record("CompanyExistsForOwner")
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.existsErr != nil {
		return false, b.existsErr
	}
	return len(b.companies[ownerID]) > 0, nil
}

func (b *fakeBackend) InsertCompany(_ context.Context, row models.CompanyInsert) (*models.Company, error) {
	b.record("InsertCompany")
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.insertCompanyErr != nil {
		return nil, b.insertCompanyErr
	}
	company := models.Company{ID: "company-" + row.OwnerID, OwnerID: row.OwnerID, Name: row.Name, City: row.City}
	b.companies[row.OwnerID] = append(b.companies[row.OwnerID], company)
	return &company, nil
}

func (b *fakeBackend) companyNames(ownerID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.companies[ownerID]))
	for _, company := range b.companies[ownerID] {
		names = append(names, company.Name)
	}
	return names
}

type offlineMonitor struct{}

func (offlineMonitor) Online(context.Context) bool { return false }

func confirmedIdentity(id string, metadata models.Metadata) models.Identity {
	confirmedAt := time.Unix(1_700_000_000, 0)
	return models.Identity{ID: id, Email: id + "@example.com", EmailConfirmedAt: &confirmedAt, UserMetadata: metadata}
}

func sessionFor(identity models.Identity) *models.Session {
	return &models.Session{AccessToken: "token-" + identity.ID, TokenType: "bearer", User: identity}
}

func newTestStore(t *testing.T, backend *fakeBackend, logger *zap.Logger) *Store {
	t.Helper()
	if logger == nil {
		logger = zap.NewNop()
	}
	store, err := NewStore(Config{
		Auth:       backend,
		Profiles:   backend,
		Network:    AlwaysOnline{},
		Translator: i18n.NewTranslator(i18n.Turkish),
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		store.Dispose()
		store.Wait()
	})
	return store
}

func mustInit(t *testing.T, store *Store) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	state, err := store.Init(ctx)
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	return state
}

func mustSettle(t *testing.T, store *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Settle(ctx); err != nil {
		t.Fatalf("settle failed: %v", err)
	}
}
