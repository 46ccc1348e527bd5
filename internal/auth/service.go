package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidToken = errors.New("auth: invalid token")

const (
	DefaultCost     = 10
	DefaultTokenTTL = 24 * time.Hour
	issuer          = "fitroom"
)

// Claims is the JWT payload issued at login.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Config configures a Service.
type Config struct {
	Secret   []byte
	TokenTTL time.Duration
	Cost     int
	Logger   *zap.Logger
}

// Service implements signup, login, and password maintenance on top of a
// FileStore.
type Service struct {
	store  *FileStore
	secret []byte
	ttl    time.Duration
	cost   int
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store *FileStore, cfg Config) (*Service, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: empty token secret")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.Cost == 0 {
		cfg.Cost = DefaultCost
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		secret: cfg.Secret,
		ttl:    cfg.TokenTTL,
		cost:   cfg.Cost,
		logger: cfg.Logger.With(zap.String("component", "auth")),
		now:    time.Now,
	}, nil
}

// Signup validates the form, hashes the password and stores a new user.
func (s *Service) Signup(username, email, password string) (PublicUser, error) {
	username, email = Sanitize(username), Sanitize(email)
	if err := ValidateSignup(username, email, password).err(); err != nil {
		return PublicUser{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return PublicUser{}, fmt.Errorf("auth: hash password: %w", err)
	}
	now := s.now().UTC()
	u := User{
		ID:           "user_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Username:     username,
		Email:        strings.ToLower(email),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(u); err != nil {
		return PublicUser{}, err
	}
	s.logger.Info("user created", zap.String("user_id", u.ID), zap.String("username", u.Username))
	return u.Public(), nil
}

// Login checks credentials and returns the user with a signed token. Unknown
// users and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Login(username, password string) (PublicUser, string, error) {
	username = Sanitize(username)
	if err := ValidateLogin(username, password).err(); err != nil {
		return PublicUser{}, "", err
	}
	u, err := s.store.ByUsername(username)
	if errors.Is(err, ErrUserNotFound) {
		return PublicUser{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return PublicUser{}, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.logger.Debug("login rejected", zap.String("username", username))
		return PublicUser{}, "", ErrInvalidCredentials
	}
	token, err := s.IssueToken(u)
	if err != nil {
		return PublicUser{}, "", err
	}
	return u.Public(), token, nil
}

// RequestReset validates the email and reports success whether or not an
// account exists.
func (s *Service) RequestReset(email string) error {
	email = Sanitize(email)
	if msg := ValidateEmail(email); msg != "" {
		return &ValidationError{Fields: FieldErrors{"email": msg}}
	}
	if _, err := s.store.ByEmail(email); err == nil {
		s.logger.Info("password reset requested", zap.String("email", email))
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}
	return nil
}

// UpdatePassword replaces the password of the account with the given email.
func (s *Service) UpdatePassword(email, password string) error {
	email = Sanitize(email)
	if msg := ValidatePassword(password); msg != "" {
		return &ValidationError{Fields: FieldErrors{"password": msg}}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	now := s.now().UTC()
	return s.store.Update(email, func(u *User) {
		u.PasswordHash = string(hash)
		u.UpdatedAt = now
	})
}

func (s *Service) User(id string) (PublicUser, error) {
	u, err := s.store.ByID(id)
	if err != nil {
		return PublicUser{}, err
	}
	return u.Public(), nil
}

// IssueToken signs an HS256 token for u.
func (s *Service) IssueToken(u User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:   u.ID,
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies a token issued by IssueToken.
func (s *Service) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
