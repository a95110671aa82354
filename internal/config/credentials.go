package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Credentials holds a saved Nextcloud connection: the server base URL, the
// account name, and an app password. Stored as JSON, readable only by the
// current user.
type Credentials struct {
	ServerURL string `json:"server"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// CredentialsPath returns the location of the saved credentials file,
// under the user's configuration directory.
func CredentialsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "nextcloud-sanitize", "credentials.json"), nil
}

// SaveCredentials writes creds to the default location.
func SaveCredentials(creds *Credentials) error {
	path, err := CredentialsPath()
	if err != nil {
		return err
	}
	return writeCredentials(path, creds)
}

// LoadCredentials reads the saved credentials file.
func LoadCredentials() (*Credentials, error) {
	path, err := CredentialsPath()
	if err != nil {
		return nil, err
	}
	return readCredentials(path)
}

// DeleteCredentials removes the saved credentials file. Removing a file
// that does not exist is not an error.
func DeleteCredentials() error {
	path, err := CredentialsPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func writeCredentials(path string, creds *Credentials) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func readCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &creds, nil
}
