package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sickleconnect/server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when email/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when registering with an existing email.
	ErrUserExists = errors.New("user already exists with this email")
	// ErrInvalidEmail is returned when the email doesn't look like one.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrInvalidPassword is returned when the password is too short.
	ErrInvalidPassword = errors.New("password must be at least 6 characters")
	// ErrInvalidName is returned when the full name is too short.
	ErrInvalidName = errors.New("full name must be at least 2 characters")
	// ErrInvalidRole is returned for roles other than patient/doctor.
	ErrInvalidRole = errors.New("role must be patient or doctor")
	// ErrGenotypeRequired is returned when a patient registers without one.
	ErrGenotypeRequired = errors.New("genotype is required for patients")
	// ErrInvalidGenotype is returned for unknown genotype values.
	ErrInvalidGenotype = errors.New("invalid genotype value")
)

// validGenotypes are sickle cell genotypes recognized at registration.
var validGenotypes = map[string]bool{
	"SS": true, "SC": true, "SE": true, "CC": true, "AS": true, "AC": true,
}

// Registration holds validated registration input.
type Registration struct {
	Email    string
	Password string
	FullName string
	Role     string
	Genotype string
}

// Service provides authentication operations.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// Register creates a new user with a hashed password and returns a JWT token
// together with the stored user.
func (s *Service) Register(ctx context.Context, reg Registration) (string, *store.User, error) {
	reg.Email = strings.ToLower(strings.TrimSpace(reg.Email))
	reg.FullName = strings.TrimSpace(reg.FullName)

	if !strings.Contains(reg.Email, "@") || strings.ContainsAny(reg.Email, " \t") {
		return "", nil, ErrInvalidEmail
	}
	if len(reg.Password) < 6 {
		return "", nil, ErrInvalidPassword
	}
	if len(reg.FullName) < 2 {
		return "", nil, ErrInvalidName
	}
	if reg.Role != "patient" && reg.Role != "doctor" {
		return "", nil, ErrInvalidRole
	}
	if reg.Role == "patient" && reg.Genotype == "" {
		return "", nil, ErrGenotypeRequired
	}
	if reg.Genotype != "" && !validGenotypes[reg.Genotype] {
		return "", nil, ErrInvalidGenotype
	}
	if reg.Role != "patient" {
		reg.Genotype = ""
	}

	if existing, err := s.store.GetUserByEmail(ctx, reg.Email); err == nil && existing != nil {
		return "", nil, ErrUserExists
	}

	hashedPassword, err := HashPassword(reg.Password)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}

	user := &store.User{
		ID:           uuid.NewString(),
		FullName:     reg.FullName,
		Email:        reg.Email,
		PasswordHash: hashedPassword,
		Role:         reg.Role,
		Genotype:     reg.Genotype,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return "", nil, fmt.Errorf("create user: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.FullName)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	return token, user, nil
}

// Login validates credentials and returns a JWT token with the user.
func (s *Service) Login(ctx context.Context, email, password string) (string, *store.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}

	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.FullName)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	return token, user, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}
