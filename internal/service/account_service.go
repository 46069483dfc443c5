package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"mainq/internal/models"
	"mainq/internal/repository"
	"mainq/internal/session"
	"mainq/internal/validation"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	verifyKeyPrefix = "email_verify:"
	// VerificationTTL is how long an emailed verification link stays valid.
	VerificationTTL = 24 * time.Hour
)

// AccountService owns sign-up, sign-in and email verification.
type AccountService struct {
	userRepo repository.UserRepository
	rdb      *redis.Client
}

type SignupInput struct {
	Email       string
	Password    string
	DisplayName string
}

// GoogleIdentity is the subset of the Google userinfo response we keep.
type GoogleIdentity struct {
	Email         string
	Name          string
	Picture       string
	EmailVerified bool
}

func NewAccountService(userRepo repository.UserRepository, rdb *redis.Client) *AccountService {
	return &AccountService{userRepo: userRepo, rdb: rdb}
}

// Signup creates a password account and its profile.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.TrimSpace(in.DisplayName)

	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateDisplayName(name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		ID:          uuid.NewString(),
		Email:       email,
		Password:    string(hashed),
		Provider:    models.ProviderPassword,
		DisplayName: name,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	if _, err := s.userRepo.EnsureProfile(ctx, &models.Profile{UserID: user.ID, DisplayName: name}); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks an email and password pair. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (*models.User, error) {
	invalid := models.NewUnauthorizedError("Invalid credentials")

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, invalid
		}
		return nil, err
	}
	if user.Password == "" {
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, invalid
	}
	return user, nil
}

// GoogleSignIn finds or creates the account behind a Google identity. An
// existing account with the same email is linked only when Google has
// verified the address. Linking into an account whose email was never
// verified drops its password.
func (s *AccountService) GoogleSignIn(ctx context.Context, id GoogleIdentity) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(id.Email))
	if email == "" {
		return nil, models.NewUnauthorizedError("Google account has no email")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if !id.EmailVerified {
			return nil, models.NewUnauthorizedError("Google has not verified this email")
		}
		changed := false
		if !user.EmailVerified {
			user.EmailVerified = true
			user.Password = ""
			user.Provider = models.ProviderGoogle
			changed = true
		}
		if user.DisplayName == "" && id.Name != "" {
			user.DisplayName = id.Name
			changed = true
		}
		if user.PhotoURL == "" && id.Picture != "" {
			user.PhotoURL = id.Picture
			changed = true
		}
		if changed {
			if err := s.userRepo.Update(ctx, user); err != nil {
				return nil, err
			}
		}
	case isNotFound(err):
		user = &models.User{
			ID:            uuid.NewString(),
			Email:         email,
			Provider:      models.ProviderGoogle,
			DisplayName:   strings.TrimSpace(id.Name),
			PhotoURL:      id.Picture,
			EmailVerified: id.EmailVerified,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if _, err := s.userRepo.EnsureProfile(ctx, &models.Profile{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		PhotoURL:    user.PhotoURL,
	}); err != nil {
		return nil, err
	}
	return user, nil
}

// IssueVerification stores a single-use verification token for userID.
func (s *AccountService) IssueVerification(ctx context.Context, userID string) (string, error) {
	if s.rdb == nil {
		return "", models.NewInternalError(errors.New("verification store unavailable"))
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.EmailVerified {
		return "", models.NewValidationError("email is already verified")
	}
	token := uuid.NewString()
	if err := s.rdb.Set(ctx, verifyKeyPrefix+token, user.ID, VerificationTTL).Err(); err != nil {
		return "", models.NewInternalError(err)
	}
	return token, nil
}

// ConfirmVerification consumes token and marks its user verified.
func (s *AccountService) ConfirmVerification(ctx context.Context, token string) (*models.User, error) {
	if s.rdb == nil {
		return nil, models.NewInternalError(errors.New("verification store unavailable"))
	}
	userID, err := s.rdb.GetDel(ctx, verifyKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return nil, models.NewValidationError("invalid or expired verification token")
	}
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := s.userRepo.SetEmailVerified(ctx, userID); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, userID)
}

// Session rebuilds the caller's session from the stored account, so the
// admin flag and verification status are always current.
func (s *AccountService) Session(ctx context.Context, userID string) (*session.Session, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	sess := SessionFor(user)
	if p, err := s.userRepo.GetProfile(ctx, userID); err == nil {
		if p.DisplayName != "" {
			sess.DisplayName = p.DisplayName
		}
		if p.PhotoURL != "" {
			sess.PhotoURL = p.PhotoURL
		}
	}
	return sess, nil
}

// SessionFor builds a session from an account record.
func SessionFor(user *models.User) *session.Session {
	return &session.Session{
		UserID:        user.ID,
		Email:         user.Email,
		DisplayName:   user.DisplayName,
		PhotoURL:      user.PhotoURL,
		EmailVerified: user.EmailVerified,
		IsAdmin:       user.IsAdmin,
	}
}
