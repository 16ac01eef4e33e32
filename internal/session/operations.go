package session

import (
	"context"
	"strings"

	"github.com/anlik-eleman/backend/internal/dataaccess"
	"github.com/anlik-eleman/backend/internal/i18n"
	"github.com/anlik-eleman/backend/internal/models"
	"go.uber.org/zap"
)

// SignUp registers a new identity. Names and connectivity are checked before any remote call.
// When the identity comes back already confirmed, the profile is loaded (and provisioned) right away.
func (s *Store) SignUp(ctx context.Context, email, password string, attrs models.SignUpAttributes) (*models.Identity, error) {
	var (
		identity *models.Identity
		result   error
	)
	err := s.submit(ctx, func(ctx context.Context) {
		s.setError("")
		if validation := s.validateSignUp(ctx, attrs); validation != nil {
			s.setError(validation.Message)
			result = validation
			return
		}
		created, err := s.auth.SignUpIdentity(ctx, email, password, attrs)
		if err != nil {
			s.logError(opSignUp, "sign_up_failed", err)
			result = s.asResult(err, i18n.MsgSignUpFailed)
			s.setError(s.messageOf(err, i18n.MsgSignUpFailed))
			return
		}
		identity = created
		if created.Confirmed() {
			s.loadProfile(ctx, *created, nil)
		}
	})
	if err != nil {
		return nil, err
	}
	return identity, result
}

// SignIn authenticates with email and password. The profile is loaded by the SIGNED_IN event
// that follows, not by SignIn itself.
func (s *Store) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	var (
		identity *models.Identity
		result   error
	)
	err := s.submit(ctx, func(ctx context.Context) {
		s.setError("")
		if validation := s.validateSignIn(ctx, email, password); validation != nil {
			s.setError(validation.Message)
			result = validation
			return
		}
		signedIn, err := s.auth.SignInIdentity(ctx, strings.TrimSpace(email), password)
		if err != nil {
			s.logger.Info("sign in rejected", zap.String("operation", opSignIn), zap.Error(err))
			result = s.asResult(err, i18n.MsgSignInFailed)
			s.setError(s.messageOf(err, i18n.MsgSignInFailed))
			return
		}
		identity = signedIn
	})
	if err != nil {
		return nil, err
	}
	return identity, result
}

// SignOut ends the session. On success the local state is cleared right away; on failure the
// state is kept and only the error message is set.
func (s *Store) SignOut(ctx context.Context) error {
	var result error
	err := s.submit(ctx, func(ctx context.Context) {
		s.setError("")
		if err := s.auth.SignOutIdentity(ctx); err != nil {
			s.logError(opSignOut, "sign_out_failed", err)
			result = s.asResult(err, i18n.MsgSignOutFailed)
			s.setError(s.messageOf(err, i18n.MsgSignOutFailed))
			return
		}
		s.step(opSignOut, PhaseAnonymous, clearIdentity)
	})
	if err != nil {
		return err
	}
	return result
}

// UpdateProfile writes update for the current user and then re-reads the whole profile.
func (s *Store) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.Profile, error) {
	var (
		profile *models.Profile
		result  error
	)
	err := s.submit(ctx, func(ctx context.Context) {
		current := s.snapshot()
		if current.User == nil {
			result = dataaccess.NewValidationError(s.translator.T(i18n.MsgUserSessionMissing))
			return
		}
		if _, err := s.profiles.UpdateProfile(ctx, current.User.ID, update); err != nil {
			s.logError(opUpdateProfile, "update_failed", err, zap.String("user_id", current.User.ID))
			result = s.asResult(err, i18n.MsgProfileUpdateFailed)
			s.setError(s.messageOf(err, i18n.MsgProfileUpdateFailed))
			return
		}
		s.loadProfile(ctx, *current.User, nil)
		reloaded := s.snapshot()
		if reloaded.Profile == nil {
			result = &dataaccess.Error{Kind: dataaccess.KindService, Message: s.translator.T(i18n.MsgProfileLoadFailed)}
			return
		}
		profile = reloaded.Profile
	})
	if err != nil {
		return nil, err
	}
	return profile, result
}

func (s *Store) validateSignUp(ctx context.Context, attrs models.SignUpAttributes) *dataaccess.Error {
	if strings.TrimSpace(attrs.FirstName) == "" {
		return dataaccess.NewValidationError(s.translator.T(i18n.MsgFirstNameRequired))
	}
	if strings.TrimSpace(attrs.LastName) == "" {
		return dataaccess.NewValidationError(s.translator.T(i18n.MsgLastNameRequired))
	}
	if !s.network.Online(ctx) {
		return dataaccess.NewValidationError(s.translator.T(i18n.MsgOffline))
	}
	return nil
}

func (s *Store) validateSignIn(ctx context.Context, email, password string) *dataaccess.Error {
	if strings.TrimSpace(email) == "" {
		return dataaccess.NewValidationError(s.translator.T(i18n.MsgEmailRequired))
	}
	if password == "" {
		return dataaccess.NewValidationError(s.translator.T(i18n.MsgPasswordRequired))
	}
	if !s.network.Online(ctx) {
		return dataaccess.NewValidationError(s.translator.T(i18n.MsgOffline))
	}
	return nil
}
