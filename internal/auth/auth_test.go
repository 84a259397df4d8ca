package auth

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := Config{
		JWTSecret:     "test-secret",
		TokenDuration: time.Hour,
		BCryptCost:    bcrypt.MinCost,
		AdminUsername: "ops",
	}
	hash, err := NewService(cfg).HashPassword("s3cret")
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	cfg.AdminPasswordHash = hash
	return NewService(cfg)
}

func TestLogin(t *testing.T) {
	s := newTestService(t)

	t.Run("Valid credentials", func(t *testing.T) {
		token, expires, err := s.Login("ops", "s3cret")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if token == "" {
			t.Fatal("Expected token")
		}
		if time.Until(expires) <= 0 {
			t.Errorf("Expected expiry in the future, got %v", expires)
		}

		claims, err := s.ValidateToken(token)
		if err != nil {
			t.Fatalf("Expected valid token, got: %v", err)
		}
		if claims.Username != "ops" || claims.Role != RoleAdmin {
			t.Errorf("Unexpected claims: %+v", claims)
		}
	})

	t.Run("Wrong password", func(t *testing.T) {
		if _, _, err := s.Login("ops", "nope"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("Wrong username", func(t *testing.T) {
		if _, _, err := s.Login("root", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("Disabled without account", func(t *testing.T) {
		s := NewService(Config{JWTSecret: "x"})
		if _, _, err := s.Login("ops", "s3cret"); !errors.Is(err, ErrLoginDisabled) {
			t.Errorf("Expected ErrLoginDisabled, got %v", err)
		}
	})
}

func TestValidateToken(t *testing.T) {
	s := newTestService(t)

	t.Run("Expired token", func(t *testing.T) {
		token, _, err := s.GenerateToken("ops", RoleAdmin)
		if err != nil {
			t.Fatalf("Failed to generate token: %v", err)
		}
		s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { s.now = time.Now }()

		if _, err := s.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("Wrong secret", func(t *testing.T) {
		other := NewService(Config{JWTSecret: "other"})
		token, _, _ := other.GenerateToken("ops", RoleAdmin)
		if _, err := s.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("Garbage", func(t *testing.T) {
		if _, err := s.ValidateToken("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})
}

func TestHasRole(t *testing.T) {
	tests := []struct {
		user, required string
		want           bool
	}{
		{RoleAdmin, RoleViewer, true},
		{RoleAdmin, RoleAdmin, true},
		{RoleViewer, RoleAdmin, false},
		{"guest", RoleViewer, false},
	}
	for _, tt := range tests {
		if got := HasRole(tt.user, tt.required); got != tt.want {
			t.Errorf("HasRole(%s, %s) = %v, want %v", tt.user, tt.required, got, tt.want)
		}
	}
}
