package integration

import (
	"net/http"
	"testing"
)

func TestAccountLifecycle(t *testing.T) {
	tok := register(t, "lifecycle@example.com")

	// Authenticated profile reads back the registered identity.
	status, body := doJSON(t, "GET", "/api/auth/profile", tok, nil)
	if status != http.StatusOK {
		t.Fatalf("profile: status %d body %v", status, body)
	}
	if body["email"] != "lifecycle@example.com" || body["role"] != "STUDENT" {
		t.Errorf("profile = %v", body)
	}

	// Update the name, then confirm the change is visible.
	status, body = doJSON(t, "PATCH", "/api/auth/profile", tok, map[string]any{
		"firstName": "Giulia",
	})
	if status != http.StatusOK || body["firstName"] != "Giulia" {
		t.Fatalf("update: status %d body %v", status, body)
	}

	// Rotate the password and log in with the new one.
	status, _ = doJSON(t, "POST", "/api/auth/change-password", tok, map[string]any{
		"currentPassword": "password123", "newPassword": "rotated-pass-1",
	})
	if status != http.StatusOK {
		t.Fatalf("change-password: status %d", status)
	}
	status, body = doJSON(t, "POST", "/api/auth/login", "", map[string]any{
		"email": "lifecycle@example.com", "password": "rotated-pass-1",
	})
	if status != http.StatusOK {
		t.Fatalf("login with rotated password: status %d body %v", status, body)
	}

	// Delete the account; the old token must stop working immediately.
	status, _ = doJSON(t, "DELETE", "/api/auth/account", tok, nil)
	if status != http.StatusOK {
		t.Fatalf("delete: status %d", status)
	}
	status, _ = doJSON(t, "GET", "/api/auth/profile", tok, nil)
	if status != http.StatusUnauthorized {
		t.Errorf("profile after delete: status %d, want 401", status)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	register(t, "dup@example.com")

	status, body := doJSON(t, "POST", "/api/auth/register", "", map[string]any{
		"email": "dup@example.com", "password": "password123",
	})
	if status != http.StatusConflict {
		t.Fatalf("status %d, want 409", status)
	}
	if body["errorKind"] != "DuplicateCredential" {
		t.Errorf("errorKind = %v", body["errorKind"])
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	register(t, "uniform@example.com")

	// Unknown email and wrong password must be indistinguishable.
	status1, body1 := doJSON(t, "POST", "/api/auth/login", "", map[string]any{
		"email": "nobody@example.com", "password": "password123",
	})
	status2, body2 := doJSON(t, "POST", "/api/auth/login", "", map[string]any{
		"email": "uniform@example.com", "password": "wrong-password",
	})
	if status1 != http.StatusUnauthorized || status2 != http.StatusUnauthorized {
		t.Fatalf("statuses %d/%d, want 401/401", status1, status2)
	}
	if body1["message"] != body2["message"] || body1["errorKind"] != body2["errorKind"] {
		t.Errorf("login failures distinguishable: %v vs %v", body1, body2)
	}
}

func TestRoleGating(t *testing.T) {
	studentTok := register(t, "gated-student@example.com")

	status, body := doJSON(t, "GET", "/api/auth/admin/users", studentTok, nil)
	if status != http.StatusForbidden {
		t.Fatalf("student on admin route: status %d body %v", status, body)
	}

	adminTok := seedAdmin(t, "gate-admin@example.com")
	status, body = doJSON(t, "GET", "/api/auth/admin/users", adminTok, nil)
	if status != http.StatusOK {
		t.Fatalf("admin list: status %d body %v", status, body)
	}

	// Password hashes never appear in the listing.
	users, _ := body["users"].([]any)
	if len(users) == 0 {
		t.Fatal("admin list empty")
	}
	for _, u := range users {
		entry := u.(map[string]any)
		for key := range entry {
			if key == "password" || key == "passwordHash" || key == "PasswordHash" {
				t.Errorf("listing leaks %q", key)
			}
		}
	}
}

func TestVerifyEndpoint(t *testing.T) {
	tok := register(t, "verify@example.com")

	status, body := doJSON(t, "GET", "/api/auth/verify", tok, nil)
	if status != http.StatusOK || body["valid"] != true {
		t.Fatalf("verify: status %d body %v", status, body)
	}
	user, _ := body["user"].(map[string]any)
	if user["email"] != "verify@example.com" {
		t.Errorf("verify user = %v", user)
	}
}
