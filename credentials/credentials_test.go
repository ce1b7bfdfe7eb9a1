package credentials

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestStore(t *testing.T) *Store {
	return &Store{
		Path: filepath.Join(t.TempDir(), "users.json"),
		Cost: bcrypt.MinCost,
	}
}

func TestStore(t *testing.T) {
	s := newTestStore(t)

	if s.Exists() {
		t.Fatal("store exists before first Set")
	}

	recovered, err := s.Set("admin", "hunter2")
	if err != nil {
		t.Fatal("failed to set:", err)
	}
	if recovered {
		t.Error("fresh store reported as recovered")
	}

	tests := []struct {
		username string
		password string
		ok       bool
	}{
		{"admin", "hunter2", true},
		{"admin", "hunter3", false},
		{"admin", "", false},
		{"nobody", "hunter2", false},
	}

	for _, test := range tests {
		ok, err := s.Verify(test.username, test.password)
		if err != nil {
			t.Errorf("Verify(%q, %q) failed: %v", test.username, test.password, err)
			continue
		}
		if ok != test.ok {
			t.Errorf("Verify(%q, %q) = %v, want %v", test.username, test.password, ok, test.ok)
		}
	}
}

func TestStoreUpdate(t *testing.T) {
	s := newTestStore(t)

	for _, user := range []struct{ name, password string }{
		{"alice", "one"},
		{"bob", "two"},
		{"alice", "three"},
	} {
		if _, err := s.Set(user.name, user.password); err != nil {
			t.Fatal(err)
		}
	}

	b, err := os.ReadFile(s.Path)
	if err != nil {
		t.Fatal(err)
	}

	var users map[string]string
	if err := json.Unmarshal(b, &users); err != nil {
		t.Fatal("users file is not JSON:", err)
	}
	if len(users) != 2 {
		t.Errorf("expected 2 users, got %d", len(users))
	}
	for name, hash := range users {
		if hash == "one" || hash == "two" || hash == "three" {
			t.Errorf("password for %s stored in plain text", name)
		}
	}

	if ok, _ := s.Verify("alice", "one"); ok {
		t.Error("old password still accepted")
	}
	if ok, _ := s.Verify("alice", "three"); !ok {
		t.Error("new password rejected")
	}
}

func TestStoreRecoversInvalidFile(t *testing.T) {
	s := newTestStore(t)

	if err := os.WriteFile(s.Path, []byte("not json"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Verify("admin", "hunter2"); err == nil {
		t.Error("expected Verify to fail on an invalid file")
	}

	recovered, err := s.Set("admin", "hunter2")
	if err != nil {
		t.Fatal("failed to set:", err)
	}
	if !recovered {
		t.Error("invalid file not reported as recovered")
	}

	if ok, err := s.Verify("admin", "hunter2"); !ok || err != nil {
		t.Errorf("Verify after recovery = %v, %v", ok, err)
	}
}

func TestStoreEmptyPassword(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Set("admin", "")
	if !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
	if s.Exists() {
		t.Error("users file written for an empty password")
	}
}
