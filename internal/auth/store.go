package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	ErrUsernameTaken      = errors.New("auth: username already exists")
	ErrEmailTaken         = errors.New("auth: email already exists")
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrInvalidCredentials = errors.New("auth: invalid username or password")
)

// User is a stored account record.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PublicUser is a User without its password hash.
type PublicUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt}
}

type database struct {
	Users []User `json:"users"`
}

// FileStore keeps users in one JSON file. Every call re-reads the file so
// edits made by other tools are picked up; writes replace it atomically.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates the file with an empty user list if it is missing.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.write(database{Users: []User{}}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("auth: stat %s: %w", path, err)
	}
	return s, nil
}

func (s *FileStore) read() (database, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return database{}, fmt.Errorf("auth: read %s: %w", s.path, err)
	}
	var db database
	if len(strings.TrimSpace(string(data))) == 0 {
		return db, nil
	}
	if err := json.Unmarshal(data, &db); err != nil {
		return database{}, fmt.Errorf("auth: parse %s: %w", s.path, err)
	}
	return db, nil
}

func (s *FileStore) write(db database) error {
	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("auth: marshal users: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("auth: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("auth: replace %s: %w", s.path, err)
	}
	return nil
}

// Create stores u. Username and email must be unique, ignoring case.
func (s *FileStore) Create(u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.read()
	if err != nil {
		return err
	}
	for _, x := range db.Users {
		if strings.EqualFold(x.Username, u.Username) {
			return ErrUsernameTaken
		}
		if strings.EqualFold(x.Email, u.Email) {
			return ErrEmailTaken
		}
	}
	db.Users = append(db.Users, u)
	return s.write(db)
}

func (s *FileStore) find(match func(User) bool) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.read()
	if err != nil {
		return User{}, err
	}
	for _, u := range db.Users {
		if match(u) {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (s *FileStore) ByUsername(username string) (User, error) {
	return s.find(func(u User) bool { return strings.EqualFold(u.Username, username) })
}

func (s *FileStore) ByEmail(email string) (User, error) {
	return s.find(func(u User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *FileStore) ByID(id string) (User, error) {
	return s.find(func(u User) bool { return u.ID == id })
}

// Update applies fn to the user with the given email and saves the result.
func (s *FileStore) Update(email string, fn func(*User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.read()
	if err != nil {
		return err
	}
	for i := range db.Users {
		if strings.EqualFold(db.Users[i].Email, email) {
			fn(&db.Users[i])
			return s.write(db)
		}
	}
	return ErrUserNotFound
}
