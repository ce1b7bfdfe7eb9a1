// Package credentials stores usernames and bcrypt password hashes in a JSON
// file.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned when setting an empty password.
var ErrEmptyPassword = errors.New("password is required")

// Store is a users file mapping each username to a bcrypt hash of its
// password. The zero Cost means bcrypt.DefaultCost.
type Store struct {
	Path string
	Cost int
}

// Set adds username or replaces its password. If the file exists but is not
// valid JSON, it is overwritten and recovered is true.
func (s *Store) Set(username, password string) (recovered bool, err error) {
	if username == "" {
		return false, errors.New("username is required")
	}
	if password == "" {
		return false, ErrEmptyPassword
	}

	users, err := s.load()
	if err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &syntaxErr) && !errors.As(err, &typeErr) {
			return false, err
		}
		users = make(map[string]string)
		recovered = true
	}

	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return recovered, fmt.Errorf("failed to hash password: %w", err)
	}
	users[username] = string(hash)

	b, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return recovered, err
	}

	if err := os.WriteFile(s.Path, append(b, '\n'), 0600); err != nil {
		return recovered, fmt.Errorf("failed to write users file: %w", err)
	}

	return recovered, nil
}

// Verify reports whether password matches the stored hash for username. An
// unknown user is not an error.
func (s *Store) Verify(username, password string) (bool, error) {
	users, err := s.load()
	if err != nil {
		return false, err
	}

	hash, ok := users[username]
	if !ok {
		return false, nil
	}

	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("bad hash for user %q: %w", username, err)
	}
}

// Exists reports whether the users file exists.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.Path)
	return err == nil
}

// load reads the users file. A missing file is an empty store.
func (s *Store) load() (map[string]string, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}

	users := make(map[string]string)
	if err := json.Unmarshal(b, &users); err != nil {
		return nil, fmt.Errorf("failed to parse users file %q: %w", s.Path, err)
	}

	return users, nil
}
