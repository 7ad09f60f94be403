package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/go-crm/internal/events"
	"github.com/diewo77/go-crm/internal/mailer"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/repository"
	"github.com/sirupsen/logrus"
)

// UserStore is the identity store the auth flow runs on.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Insert(ctx context.Context, u *models.User) error
	Update(ctx context.Context, id string, fields map[string]any) error
	UpdateIfOTP(ctx context.Context, id, otp string, fields map[string]any) (bool, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) bool
}

type TokenCodec interface {
	Issue(subject string) (string, error)
	Verify(token string) (string, error)
}

type OTPGenerator interface {
	Generate() (string, error)
}

// AuthMetrics counts state machine events. *metrics.Metrics satisfies it.
type AuthMetrics interface {
	AuthEvent(event string)
}

// RegisterInput is the self-registration payload.
type RegisterInput struct {
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=6"`
	FirstName string  `json:"first_name" validate:"required,max=100"`
	LastName  string  `json:"last_name" validate:"required,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=50"`
	// Role defaults to EMPLOYEE. ADMIN cannot be self-assigned.
	Role *models.Role `json:"role" validate:"omitempty,oneof=ADMIN MANAGER EMPLOYEE"`
}

// RegisterResult reports the pending user and whether the code was mailed.
type RegisterResult struct {
	User         *models.User `json:"user"`
	OTPDelivered bool         `json:"otp_delivered"`
}

// Session is an issued bearer token and the user it belongs to.
type Session struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *models.User `json:"user"`
}

// AuthService implements registration, email verification, login and
// token authentication.
//
// A user moves INACTIVE(unverified, otp set) -> ACTIVE(verified, otp cleared)
// exactly once. Only ACTIVE users may log in.
type AuthService struct {
	Users   UserStore
	Hasher  PasswordHasher
	Tokens  TokenCodec
	OTP     OTPGenerator
	Mailer  mailer.Mailer
	Events  events.Publisher
	Metrics AuthMetrics
	Log     logrus.FieldLogger

	now func() time.Time
}

func NewAuthService(users UserStore, hasher PasswordHasher, tokens TokenCodec, otp OTPGenerator, m mailer.Mailer) *AuthService {
	return &AuthService{
		Users:  users,
		Hasher: hasher,
		Tokens: tokens,
		OTP:    otp,
		Mailer: m,
		Events: events.Nop{},
		Log:    logrus.StandardLogger(),
		now:    time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) clock() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}

func (s *AuthService) count(event string) {
	if s.Metrics != nil {
		s.Metrics.AuthEvent(event)
	}
}

func (s *AuthService) publish(ctx context.Context, key string, data any) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Publish(ctx, key, data); err != nil {
		s.Log.WithError(err).WithField("event", key).Warn("auth: publish event failed")
	}
}

// Register creates a pending user and mails a verification code. A mail
// failure is not an error: the user row stays and OTPDelivered is false.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	role := models.RoleEmployee
	if in.Role != nil {
		role = *in.Role
	}
	if role == models.RoleAdmin {
		return nil, fmt.Errorf("%w: admin accounts cannot be self-registered", ErrForbidden)
	}
	email := normalizeEmail(in.Email)
	if _, err := s.Users.FindByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", ErrConflict)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	code, err := s.OTP.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	u := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
		Role:         role,
		Status:       models.UserInactive,
		IsVerified:   false,
		OTP:          &code,
	}
	if err := s.Users.Insert(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	s.count("register")
	s.publish(ctx, events.UserRegistered, map[string]string{"user_id": u.ID, "email": u.Email})

	return &RegisterResult{User: u, OTPDelivered: s.deliver(ctx, u.Email, code)}, nil
}

func (s *AuthService) deliver(ctx context.Context, email, code string) bool {
	if err := s.Mailer.SendOTP(ctx, email, code); err != nil {
		s.Log.WithError(err).WithField("email", email).Warn("auth: otp email not delivered")
		return false
	}
	return true
}

// ResendOTP replaces the pending code of an unverified user and mails it again.
func (s *AuthService) ResendOTP(ctx context.Context, email string) (*RegisterResult, error) {
	u, err := s.Users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if u.IsVerified {
		return nil, ErrAlreadyVerified
	}
	if u.Status != models.UserInactive {
		return nil, ErrAccountNotActive
	}
	code, err := s.OTP.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	if err := s.Users.Update(ctx, u.ID, map[string]any{"otp": code}); err != nil {
		return nil, fmt.Errorf("store otp: %w", err)
	}
	u.OTP = &code
	s.count("resend_otp")
	return &RegisterResult{User: u, OTPDelivered: s.deliver(ctx, u.Email, code)}, nil
}

// VerifyEmail activates the user holding otp and opens a session.
func (s *AuthService) VerifyEmail(ctx context.Context, email, otp string) (*Session, error) {
	u, err := s.Users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	// Only a pending account can be activated; a suspension is not undone here.
	if !u.IsVerified && u.Status != models.UserInactive {
		s.count("verify_failed")
		return nil, ErrAccountNotActive
	}
	if u.OTP == nil || otp == "" || *u.OTP != otp {
		s.count("verify_failed")
		return nil, fmt.Errorf("%w: invalid otp", ErrInvalidCredential)
	}

	fields := map[string]any{
		"is_verified": true,
		"status":      models.UserActive,
		"otp":         nil,
	}
	ok, err := s.Users.UpdateIfOTP(ctx, u.ID, otp, fields)
	if err != nil {
		return nil, fmt.Errorf("activate user: %w", err)
	}
	if !ok {
		// Someone else consumed the code first.
		s.count("verify_failed")
		return nil, fmt.Errorf("%w: invalid otp", ErrInvalidCredential)
	}
	u.IsVerified = true
	u.Status = models.UserActive
	u.OTP = nil

	sess, err := s.session(u)
	if err != nil {
		return nil, err
	}
	s.count("verify")
	s.publish(ctx, events.UserVerified, map[string]string{"user_id": u.ID, "email": u.Email})
	return sess, nil
}

// Login checks credentials and opens a session for an ACTIVE user.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.Users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.count("login_failed")
			return nil, ErrInvalidCredential
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !s.Hasher.Verify(u.PasswordHash, password) {
		s.count("login_failed")
		return nil, ErrInvalidCredential
	}
	if u.Status != models.UserActive {
		s.count("login_inactive")
		return nil, fmt.Errorf("%w: status %s", ErrAccountNotActive, u.Status)
	}

	now := s.clock()
	if err := s.Users.Update(ctx, u.ID, map[string]any{"last_seen": now, "is_online": true}); err != nil {
		return nil, fmt.Errorf("touch user: %w", err)
	}
	u.LastSeen = &now
	u.IsOnline = true

	sess, err := s.session(u)
	if err != nil {
		return nil, err
	}
	s.count("login")
	return sess, nil
}

// Authenticate resolves a bearer token to its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	id, err := s.Tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	u, err := s.Users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown subject", ErrUnauthenticated)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

// VerifyToken adapts Authenticate to the auth.UserVerifier shape.
func (s *AuthService) VerifyToken(ctx context.Context, token string) (string, bool) {
	u, err := s.Authenticate(ctx, token)
	if err != nil {
		return "", false
	}
	return u.ID, true
}

// Logout marks userID offline. Tokens stay valid until they expire.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	err := s.Users.Update(ctx, userID, map[string]any{"is_online": false, "last_seen": s.clock()})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: user", ErrNotFound)
		}
		return fmt.Errorf("logout: %w", err)
	}
	s.count("logout")
	return nil
}

func (s *AuthService) session(u *models.User) (*Session, error) {
	tok, err := s.Tokens.Issue(u.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{AccessToken: tok, TokenType: "bearer", User: u}, nil
}
