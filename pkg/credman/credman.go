// Package credman stores the addon-account credentials in the
// operating system keyring. The catalog fetcher sends them as an
// Authorization header when a saved account exists, which unlocks
// account-gated catalog entries; everything else works logged out.
package credman

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	serviceName = "stk-addonmgr"
	accountKey  = "addon-account"
)

// ErrNotLoggedIn is reported when no saved account exists.
var ErrNotLoggedIn = errors.New("no addon account saved, run login first")

var (
	keyringSet    = keyring.Set
	keyringGet    = keyring.Get
	keyringDelete = keyring.Delete
)

// Credentials identify one addon account.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Authorization renders the credentials as a basic Authorization
// header value.
func (c *Credentials) Authorization() string {
	raw := c.Username + ":" + c.Password
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

// Manager reads and writes the saved account.
type Manager struct{}

// NewManager returns a credential manager backed by the OS keyring.
func NewManager() *Manager {
	return &Manager{}
}

// Save stores the credentials, replacing any previous account.
func (m *Manager) Save(c Credentials) error {
	if c.Username == "" {
		return errors.New("username must not be empty")
	}
	blob, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := keyringSet(serviceName, accountKey, string(blob)); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// Load returns the saved credentials, or ErrNotLoggedIn when none
// exist.
func (m *Manager) Load() (*Credentials, error) {
	blob, err := keyringGet(serviceName, accountKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotLoggedIn
		}
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	var c Credentials
	if err := json.Unmarshal([]byte(blob), &c); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return &c, nil
}

// Delete forgets the saved account. Deleting when nothing is saved is
// not an error.
func (m *Manager) Delete() error {
	err := keyringDelete(serviceName, accountKey)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}
