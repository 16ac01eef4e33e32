package session

import (
	"context"

	"github.com/anlik-eleman/backend/internal/dataaccess"
	"github.com/anlik-eleman/backend/internal/i18n"
	"github.com/anlik-eleman/backend/internal/models"
	"go.uber.org/zap"
)

const (
	opInitialize       = "session.initialize"
	opAuthEvent        = "session.auth_event"
	opLoadProfile      = "session.load_profile"
	opProvision        = "session.provision_profile"
	opProvisionCompany = "session.provision_company"
	opSignUp           = "session.sign_up"
	opSignIn           = "session.sign_in"
	opSignOut          = "session.sign_out"
	opUpdateProfile    = "session.update_profile"
	reasonNoIdentity   = "identity_missing"
)

func (s *Store) initialize(ctx context.Context) {
	if !s.step(opInitialize, PhaseInitializing, nil) {
		return
	}
	session, err := s.auth.GetSession(ctx)
	if err != nil {
		s.logError(opInitialize, "get_session_failed", err)
		s.step(opInitialize, PhaseErrored, func(state *State) {
			state.User = nil
			state.Profile = nil
			state.Session = nil
			state.Error = s.messageOf(err, i18n.MsgSessionLoadFailed)
		})
		return
	}
	if session == nil {
		s.step(opInitialize, PhaseAnonymous, clearIdentity)
		return
	}
	s.loadProfile(ctx, session.User, session)
}

func (s *Store) handleAuthEvent(ctx context.Context, event models.AuthEvent) {
	s.logger.Debug("auth state changed", zap.String("event", string(event.Type)))
	if event.Session == nil {
		s.step(opAuthEvent, PhaseAnonymous, clearIdentity)
		return
	}
	s.loadProfile(ctx, event.Session.User, event.Session)
}

// loadProfile fetches the profile of user, provisioning one when the row does not exist.
// session is recorded when non-nil.
func (s *Store) loadProfile(ctx context.Context, user models.Identity, session *models.Session) {
	entered := s.step(opLoadProfile, PhaseLoadingProfile, func(state *State) {
		identity := user
		state.User = &identity
		if session != nil {
			copied := *session
			state.Session = &copied
		}
	})
	if !entered {
		return
	}

	profile, err := s.profiles.GetProfileByID(ctx, user.ID)
	switch {
	case err == nil:
		s.step(opLoadProfile, PhaseReady, func(state *State) {
			state.Profile = profile
		})
	case dataaccess.IsNotFound(err):
		s.provision(ctx, user)
	default:
		s.logError(opLoadProfile, "get_profile_failed", err, zap.String("user_id", user.ID))
		s.step(opLoadProfile, PhaseErrored, func(state *State) {
			state.Profile = nil
			state.Error = s.messageOf(err, i18n.MsgProfileLoadFailed)
		})
	}
}

// provision creates the missing profile from the identity's sign-up metadata.
func (s *Store) provision(ctx context.Context, user models.Identity) {
	if !s.step(opProvision, PhaseProvisioning, nil) {
		return
	}

	identity, err := s.auth.GetCurrentIdentity(ctx)
	if err != nil || identity == nil {
		reason := "get_identity_failed"
		if err == nil {
			reason = reasonNoIdentity
		}
		s.logError(opProvision, reason, err, zap.String("user_id", user.ID))
		s.step(opProvision, PhaseErrored, func(state *State) {
			state.Error = s.messageOf(err, i18n.MsgProfileCreateError)
		})
		return
	}

	profile, err := s.profiles.InsertProfile(ctx, models.NewProfileInsert(user.ID, identity.UserMetadata))
	if err != nil {
		s.logError(opProvision, "insert_profile_failed", err, zap.String("user_id", user.ID))
		s.step(opProvision, PhaseErrored, func(state *State) {
			state.Error = s.messageOf(err, i18n.MsgProfileCreateError)
		})
		return
	}
	s.logger.Info("profile provisioned",
		zap.String("user_id", profile.ID),
		zap.String("user_type", string(profile.UserType)))
	if !s.step(opProvision, PhaseReady, func(state *State) {
		state.Profile = profile
	}) {
		return
	}

	if profile.UserType != models.UserTypeEmployer {
		return
	}
	outcome := s.provisionCompany(ctx, *profile, *identity)
	switch {
	case outcome.Err != nil:
		s.logger.Warn("company provisioning failed",
			zap.String("operation", opProvisionCompany),
			zap.String("reason", outcome.Err.Step),
			zap.String("owner_id", profile.ID),
			zap.Error(outcome.Err))
	case outcome.Skipped:
		s.logger.Debug("company provisioning skipped",
			zap.String("owner_id", profile.ID),
			zap.String("reason", outcome.Reason))
	default:
		s.logger.Info("company provisioned",
			zap.String("owner_id", profile.ID),
			zap.String("company_id", outcome.Company.ID))
	}
}

func clearIdentity(state *State) {
	state.User = nil
	state.Profile = nil
	state.Session = nil
}
