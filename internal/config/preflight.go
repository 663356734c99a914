package config

import (
	"fmt"
	"os/exec"
)

// installHints are appended to the missing-executable message.
var installHints = map[string]string{
	"npx": "Please install it with `npm install -g npx`.",
}

// MissingCredentialError means the provider API key is absent.
type MissingCredentialError struct {
	EnvVar string
}

func (e *MissingCredentialError) Error() string {
	return e.EnvVar + " is not set"
}

// MissingExecutableError means a server command is not on PATH.
type MissingExecutableError struct {
	Name string
	Hint string
}

func (e *MissingExecutableError) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("%s is not installed.", e.Name)
	}
	return fmt.Sprintf("%s is not installed. %s", e.Name, e.Hint)
}

// CheckCredential verifies the selected provider's key is configured.
func CheckCredential(cfg *Config) error {
	if cfg.APIKey() == "" {
		return &MissingCredentialError{EnvVar: cfg.CredentialEnv()}
	}
	return nil
}

// CheckBinaries verifies every server command resolves on PATH, in server
// order. A nil lookPath uses exec.LookPath.
func CheckBinaries(cfg *Config, lookPath func(string) (string, error)) error {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	seen := make(map[string]bool)
	for _, s := range cfg.Servers {
		if seen[s.Command] {
			continue
		}
		seen[s.Command] = true
		if _, err := lookPath(s.Command); err != nil {
			return &MissingExecutableError{Name: s.Command, Hint: installHints[s.Command]}
		}
	}
	return nil
}
