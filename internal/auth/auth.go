// Package auth authenticates feed operators. Operators log in with a
// configured username and bcrypt password hash and receive a JWT that
// unlocks the operator routes (status, cache purge, token invalidation).
package auth

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Operator roles
const (
	RoleAdmin  = "admin"  // Cache and token control
	RoleViewer = "viewer" // Status only
)

const issuer = "flightfeed"

var (
	// ErrInvalidCredentials is returned when authentication fails
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned when token validation fails
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrUnauthorized is returned when a role lacks the required permission
	ErrUnauthorized = errors.New("unauthorized access")
	// ErrLoginDisabled is returned when no operator account is configured
	ErrLoginDisabled = errors.New("operator login is not configured")
)

// Claims represents the JWT claims for an operator session
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Config holds authentication configuration
type Config struct {
	JWTSecret     string        // Secret key for signing JWTs
	TokenDuration time.Duration // How long tokens are valid
	BCryptCost    int           // BCrypt hashing cost

	// AdminUsername and AdminPasswordHash define the operator account
	AdminUsername     string
	AdminPasswordHash string
}

// Service provides authentication operations
type Service struct {
	config Config
	now    func() time.Time
}

// NewService creates a new authentication service
func NewService(cfg Config) *Service {
	if cfg.BCryptCost == 0 {
		cfg.BCryptCost = bcrypt.DefaultCost
	}
	if cfg.TokenDuration == 0 {
		cfg.TokenDuration = 12 * time.Hour
	}

	return &Service{
		config: cfg,
		now:    time.Now,
	}
}

// Enabled reports whether an operator account and signing secret are set.
func (s *Service) Enabled() bool {
	return s.config.JWTSecret != "" && s.config.AdminUsername != "" && s.config.AdminPasswordHash != ""
}

// Login checks operator credentials and returns a signed token.
func (s *Service) Login(username, password string) (string, time.Time, error) {
	if !s.Enabled() {
		return "", time.Time{}, ErrLoginDisabled
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.config.AdminUsername)) == 1
	// Always run bcrypt so timing does not reveal the username.
	passErr := s.ComparePassword(s.config.AdminPasswordHash, password)
	if !userOK || passErr != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	return s.GenerateToken(username, RoleAdmin)
}

// HashPassword hashes a plaintext password using bcrypt
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BCryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ComparePassword compares a plaintext password with a hashed password
func (s *Service) ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// GenerateToken generates a JWT for an operator and returns its expiry.
func (s *Service) GenerateToken(username, role string) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.config.TokenDuration)

	claims := &Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expires, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	if s.config.JWTSecret == "" {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// HasRole checks if a role has the required role or higher
// Role hierarchy: Admin > Viewer
func HasRole(userRole, requiredRole string) bool {
	roleLevel := map[string]int{
		RoleAdmin:  1,
		RoleViewer: 0,
	}

	userLevel, ok1 := roleLevel[userRole]
	requiredLevel, ok2 := roleLevel[requiredRole]
	if !ok1 || !ok2 {
		return false
	}

	return userLevel >= requiredLevel
}
