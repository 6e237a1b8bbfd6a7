package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"clubsite/internal/metrics"
	"clubsite/internal/models"
	"clubsite/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores input past 72 bytes; longer passwords are rejected instead.
const maxPasswordBytes = 72

const defaultStorageTimeout = 5 * time.Second

// EventPublisher publishes account events to a message broker.
type EventPublisher interface {
	PublishAccountEvent(ctx context.Context, event models.AccountEvent) error
}

// AuthOptions configures an AuthService. Zero values select defaults.
type AuthOptions struct {
	BcryptCost     int
	StorageTimeout time.Duration
	Logger         *logrus.Logger
	Publisher      EventPublisher   // optional
	Metrics        metrics.Recorder // optional
}

// RegisterInput is the raw registration form.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// registerFields and loginFields carry trimmed input through the validator.
type registerFields struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,max=255,email"`
	Password string `json:"password" validate:"required"`
}

type loginFields struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HealthStatus reports service liveness and store connectivity.
type HealthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Healthy reports whether the user store answered.
func (h HealthStatus) Healthy() bool {
	return h.Database == "up"
}

// AuthService handles registration and credential verification.
// It keeps no per-request state; uniqueness is enforced by the repository.
type AuthService struct {
	userRepo       repositories.UserRepository
	validate       *validator.Validate
	log            *logrus.Logger
	publisher      EventPublisher
	metrics        metrics.Recorder
	cost           int
	storageTimeout time.Duration
	dummyHash      []byte
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, opts AuthOptions) (*AuthService, error) {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = defaultStorageTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}

	// Unknown-email logins compare against this hash so they cost the same
	// time as wrong-password logins.
	dummyHash, err := bcrypt.GenerateFromPassword([]byte("clubsite-unknown-account"), opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare credential hasher: %w", err)
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})

	return &AuthService{
		userRepo:       userRepo,
		validate:       validate,
		log:            opts.Logger,
		publisher:      opts.Publisher,
		metrics:        opts.Metrics,
		cost:           opts.BcryptCost,
		storageTimeout: opts.StorageTimeout,
		dummyHash:      dummyHash,
	}, nil
}

// NormalizeEmail trims and lower-cases an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterUser validates the input, hashes the password and stores a new user.
func (s *AuthService) RegisterUser(ctx context.Context, in RegisterInput) (*models.User, error) {
	user, err := s.register(ctx, in)
	s.metrics.RecordRegistration(outcomeOf(err))
	return user, err
}

func (s *AuthService) register(ctx context.Context, in RegisterInput) (*models.User, error) {
	fields := registerFields{
		Name:     strings.TrimSpace(in.Name),
		Email:    NormalizeEmail(in.Email),
		Password: strings.TrimSpace(in.Password),
	}
	if err := s.check(fields); err != nil {
		return nil, err
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, &ValidationError{Field: "password", Reason: fmt.Sprintf("must be at most %d bytes", maxPasswordBytes)}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Name:               fields.Name,
		Email:              fields.Email,
		PasswordCredential: string(hashed),
	}

	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			s.log.WithField("email", user.Email).Info("registration rejected: email already registered")
			return nil, ErrDuplicateEmail
		}
		s.log.WithError(err).WithField("email", user.Email).Error("failed to store new user")
		return nil, storageError("create user", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "email": user.Email}).Info("registered user")
	s.publish(ctx, models.AccountEvent{
		Type:       models.EventUserRegistered,
		UserID:     user.ID,
		Email:      user.Email,
		Name:       user.Name,
		OccurredAt: time.Now().UTC(),
	})
	return user, nil
}

// LoginUser verifies the credentials and returns the matching user.
// Unknown email and wrong password both yield ErrInvalidCredentials.
func (s *AuthService) LoginUser(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.login(ctx, email, password)
	s.metrics.RecordLogin(outcomeOf(err))
	return user, err
}

func (s *AuthService) login(ctx context.Context, email, password string) (*models.User, error) {
	fields := loginFields{
		Email:    NormalizeEmail(email),
		Password: strings.TrimSpace(password),
	}
	if err := s.check(fields); err != nil {
		return nil, err
	}
	// bcrypt only reads the first 72 bytes, so a longer password can never
	// be the registered one.
	if len(password) > maxPasswordBytes {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password[:maxPasswordBytes]))
		s.log.WithField("email", fields.Email).Warn("invalid login attempt")
		return nil, ErrInvalidCredentials
	}

	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	user, err := s.userRepo.GetByEmail(ctx, fields.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			s.log.WithField("email", fields.Email).Warn("invalid login attempt")
			return nil, ErrInvalidCredentials
		}
		s.log.WithError(err).WithField("email", fields.Email).Error("failed to load user for login")
		return nil, storageError("get user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordCredential), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.log.WithError(err).WithField("user_id", user.ID).Error("stored credential is unreadable")
		}
		s.log.WithField("email", fields.Email).Warn("invalid login attempt")
		return nil, ErrInvalidCredentials
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "email": user.Email}).Info("user logged in")
	s.publish(ctx, models.AccountEvent{
		Type:       models.EventUserLoggedIn,
		UserID:     user.ID,
		Email:      user.Email,
		OccurredAt: time.Now().UTC(),
	})
	return user, nil
}

// Health pings the user store within the storage timeout.
func (s *AuthService) Health(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	if err := s.userRepo.Ping(ctx); err != nil {
		s.log.WithError(err).Error("health check: user store unreachable")
		return HealthStatus{Status: "OK", Database: "down"}
	}
	return HealthStatus{Status: "OK", Database: "up"}
}

// check runs the validator and converts the first failure into a ValidationError.
func (s *AuthService) check(fields any) error {
	err := s.validate.Struct(fields)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("failed to validate input: %w", err)
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: fe.Field(), Reason: "is required"}
	case "email":
		return &ValidationError{Field: fe.Field(), Reason: "must be a valid email address"}
	case "max":
		return &ValidationError{Field: fe.Field(), Reason: fmt.Sprintf("must be at most %s characters", fe.Param())}
	default:
		return &ValidationError{Field: fe.Field(), Reason: "is invalid"}
	}
}

func (s *AuthService) publish(ctx context.Context, event models.AccountEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishAccountEvent(ctx, event); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"event": event.Type, "user_id": event.UserID}).
			Warn("failed to publish account event")
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrValidation):
		return metrics.OutcomeValidationError
	case errors.Is(err, ErrDuplicateEmail):
		return metrics.OutcomeDuplicateEmail
	case errors.Is(err, ErrInvalidCredentials):
		return metrics.OutcomeInvalidCredentials
	case errors.Is(err, ErrStorage):
		return metrics.OutcomeStorageError
	default:
		return metrics.OutcomeInternalError
	}
}
