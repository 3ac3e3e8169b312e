package httpapi

import (
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"mesapos/backend/internal/domain"
)

func TestAuthManagerLoginRoles(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "482915", "731046")

	resp, err := manager.Login(domain.LoginRequest{PIN: "482915"})
	if err != nil {
		t.Fatalf("manager login failed: %v", err)
	}
	if resp.Role != domain.RoleManager {
		t.Fatalf("expected manager role, got %q", resp.Role)
	}
	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.Role != domain.RoleManager || actor.Username != "manager" {
		t.Fatalf("unexpected actor %+v", actor)
	}

	resp, err = manager.Login(domain.LoginRequest{PIN: " 731046 "})
	if err != nil {
		t.Fatalf("staff login failed: %v", err)
	}
	if resp.Role != domain.RoleStaff {
		t.Fatalf("expected staff role, got %q", resp.Role)
	}
}

func TestAuthManagerRejectsWrongOrUnsetPIN(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "482915", "")

	if _, err := manager.Login(domain.LoginRequest{PIN: "000000"}); err == nil {
		t.Fatalf("expected wrong pin to fail")
	}
	if _, err := manager.Login(domain.LoginRequest{PIN: ""}); err == nil {
		t.Fatalf("expected empty pin to fail while staff pin is unset")
	}
	if manager.ValidateManagerPIN("") {
		t.Fatalf("expected empty manager pin check to fail")
	}
	if !manager.ValidateManagerPIN("482915") {
		t.Fatalf("expected manager pin check to pass")
	}
}

func TestAuthManagerRejectsExpiredAndForeignTokens(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "482915", "")
	manager.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	resp, err := manager.Login(domain.LoginRequest{PIN: "482915"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := manager.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}

	foreign := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, posCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "manager",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: domain.RoleManager,
	})
	signed, err := foreign.SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("sign foreign token: %v", err)
	}
	if _, err := manager.ParseToken(signed); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}

	none := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, posCustomClaims{Role: domain.RoleManager})
	unsigned, err := none.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}
	if _, err := manager.ParseToken(unsigned); err == nil || !strings.Contains(err.Error(), "invalid") {
		t.Fatalf("expected alg=none token to be rejected, got %v", err)
	}
}
