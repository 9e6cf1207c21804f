package credman

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"
)

// stubKeyring replaces the keyring functions with a map-backed fake for
// the duration of one test.
func stubKeyring(t *testing.T) map[string]string {
	t.Helper()
	vault := make(map[string]string)
	origSet, origGet, origDelete := keyringSet, keyringGet, keyringDelete
	keyringSet = func(service, user, password string) error {
		vault[service+"/"+user] = password
		return nil
	}
	keyringGet = func(service, user string) (string, error) {
		v, ok := vault[service+"/"+user]
		if !ok {
			return "", keyring.ErrNotFound
		}
		return v, nil
	}
	keyringDelete = func(service, user string) error {
		key := service + "/" + user
		if _, ok := vault[key]; !ok {
			return keyring.ErrNotFound
		}
		delete(vault, key)
		return nil
	}
	t.Cleanup(func() {
		keyringSet, keyringGet, keyringDelete = origSet, origGet, origDelete
	})
	return vault
}

func TestSaveLoad(t *testing.T) {
	stubKeyring(t)
	m := NewManager()

	if _, err := m.Load(); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("Load() before Save() = %v, want ErrNotLoggedIn", err)
	}

	err := m.Save(Credentials{Username: "racer", Password: "s3cret"})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := m.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Username != "racer" || got.Password != "s3cret" {
		t.Errorf("Load() = %+v", got)
	}
}

func TestSaveReplaces(t *testing.T) {
	stubKeyring(t)
	m := NewManager()
	m.Save(Credentials{Username: "first", Password: "a"})
	m.Save(Credentials{Username: "second", Password: "b"})

	got, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.Username != "second" {
		t.Errorf("Load() = %q, want the replacement account", got.Username)
	}
}

func TestSaveEmptyUsername(t *testing.T) {
	stubKeyring(t)
	if err := NewManager().Save(Credentials{Password: "x"}); err == nil {
		t.Error("Save() with empty username should fail")
	}
}

func TestDelete(t *testing.T) {
	stubKeyring(t)
	m := NewManager()
	m.Save(Credentials{Username: "racer", Password: "x"})
	if err := m.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := m.Load(); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("Load() after Delete() = %v, want ErrNotLoggedIn", err)
	}
	// A second delete is a no-op, not an error.
	if err := m.Delete(); err != nil {
		t.Errorf("Delete() of absent account = %v, want nil", err)
	}
}

func TestAuthorization(t *testing.T) {
	c := Credentials{Username: "user", Password: "pass"}
	// base64("user:pass")
	if got := c.Authorization(); got != "Basic dXNlcjpwYXNz" {
		t.Errorf("Authorization() = %q", got)
	}
}
