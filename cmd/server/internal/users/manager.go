// Package users manages local accounts, their scopes, and the JWTs the
// API hands out. Accounts live in a users.json file.
package users

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Scope definitions
const (
	ScopeMeetingRead  = "meeting.read"
	ScopeMeetingWrite = "meeting.write"
	ScopeTaskRead     = "task.read"
	ScopeTaskWrite    = "task.write"
	ScopeUserManage   = "user.manage"
)

var allScopes = []string{
	ScopeMeetingRead, ScopeMeetingWrite,
	ScopeTaskRead, ScopeTaskWrite,
	ScopeUserManage,
}

// TokenTTL bounds token lifetime.
const TokenTTL = 24 * time.Hour

// User is a local account. Password holds the bcrypt hash and is blanked
// on every read path.
type User struct {
	Username  string    `json:"username"`
	Password  string    `json:"password_hash,omitempty"`
	Scopes    []string  `json:"scopes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Claims are the JWT claims the API issues.
type Claims struct {
	Username string   `json:"username"`
	Scopes   []string `json:"scopes"`
	jwt.RegisteredClaims
}

var (
	ErrUserExists         = errors.New("user exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Manager owns the account file and JWT signing.
type Manager struct {
	mu        sync.RWMutex
	users     map[string]*User
	secretKey []byte
	storePath string
}

// NewManager creates a manager persisting to storeDir/users.json. The
// secret signs tokens with HS256.
func NewManager(storeDir string, secret []byte) (*Manager, error) {
	if len(secret) == 0 {
		return nil, errors.New("secret key required")
	}
	m := &Manager{
		users:     map[string]*User{},
		secretKey: secret,
		storePath: filepath.Join(storeDir, "users.json"),
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func hashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func checkPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func (m *Manager) load() error {
	b, err := os.ReadFile(m.storePath)
	if err != nil {
		return nil // first run
	}
	var arr []*User
	if err := json.Unmarshal(b, &arr); err != nil {
		return fmt.Errorf("parse %s: %w", m.storePath, err)
	}
	for _, u := range arr {
		m.users[u.Username] = u
	}
	return nil
}

func (m *Manager) save() error {
	arr := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		arr = append(arr, u)
	}
	b, err := json.MarshalIndent(arr, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.storePath), 0o755); err != nil {
		return err
	}
	tmp := m.storePath + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, m.storePath)
}

// EnsureDefaultAdmin creates the admin account with all scopes when no
// users exist yet.
func (m *Manager) EnsureDefaultAdmin(defaultPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.users) > 0 {
		return nil
	}
	hash, err := hashPassword(defaultPassword)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	m.users["admin"] = &User{
		Username:  "admin",
		Password:  hash,
		Scopes:    allScopes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return m.save()
}

// CreateUser registers a new account.
func (m *Manager) CreateUser(username, password string, scopes []string) (*User, error) {
	if username == "" {
		return nil, errors.New("username required")
	}
	if password == "" {
		return nil, errors.New("password required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[username]; exists {
		return nil, ErrUserExists
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &User{
		Username:  username,
		Password:  hash,
		Scopes:    dedupScopes(scopes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.users[username] = u
	if err := m.save(); err != nil {
		delete(m.users, username)
		return nil, err
	}
	return sanitized(u), nil
}

// GetUser returns an account without its password hash.
func (m *Manager) GetUser(username string) (*User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return nil, false
	}
	return sanitized(u), true
}

// ListUsers returns every account without password hashes.
func (m *Manager) ListUsers() []*User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, sanitized(u))
	}
	return out
}

// UpdateScopes replaces an account's scopes.
func (m *Manager) UpdateScopes(username string, scopes []string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.Scopes = dedupScopes(scopes)
	u.UpdatedAt = time.Now().UTC()
	if err := m.save(); err != nil {
		return nil, err
	}
	return sanitized(u), nil
}

// DeleteUser removes an account.
func (m *Manager) DeleteUser(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[username]; !ok {
		return ErrUserNotFound
	}
	delete(m.users, username)
	return m.save()
}

// ChangePassword rotates an account's password after verifying the old
// one.
func (m *Manager) ChangePassword(username, oldPassword, newPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return ErrUserNotFound
	}
	if !checkPassword(u.Password, oldPassword) {
		return ErrInvalidCredentials
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	u.Password = hash
	u.UpdatedAt = time.Now().UTC()
	return m.save()
}

// Authenticate checks a username/password pair.
func (m *Manager) Authenticate(username, password string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if !checkPassword(u.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return sanitized(u), nil
}

// GenerateToken issues an HS256 JWT carrying the account's scopes.
func (m *Manager) GenerateToken(username string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return "", ErrUserNotFound
	}
	now := time.Now()
	claims := Claims{
		Username: u.Username,
		Scopes:   u.Scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(m.secretKey)
}

// ParseToken validates a token and returns its claims.
func (m *Manager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// HasScope reports whether scopes contains required.
func HasScope(scopes []string, required string) bool {
	for _, s := range scopes {
		if s == required {
			return true
		}
	}
	return false
}

func sanitized(u *User) *User {
	cpy := *u
	cpy.Password = ""
	return &cpy
}

// dedupScopes drops duplicates and unknown scopes.
func dedupScopes(in []string) []string {
	valid := map[string]struct{}{}
	for _, s := range allScopes {
		valid[s] = struct{}{}
	}
	seen := map[string]struct{}{}
	out := []string{}
	for _, s := range in {
		if _, ok := valid[s]; !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
