package config

import (
	"fmt"
	"os"
	"strings"
)

// Secret names where a credential comes from. The value itself never
// lives in uckit.yaml: it is read from the environment variable Env, else
// from File, else it is prompted for at startup.
type Secret struct {
	Env  string `yaml:"env,omitempty"`
	File string `yaml:"file,omitempty"`

	value string
}

// Set stores a value obtained some other way, e.g. from a prompt or flag.
func (s *Secret) Set(v string) { s.value = v }

// IsSet reports whether Resolve can produce a value.
func (s Secret) IsSet() bool {
	if s.value != "" {
		return true
	}
	if s.Env != "" && os.Getenv(s.Env) != "" {
		return true
	}
	return s.File != ""
}

// Resolve returns the secret value. It returns "" and no error when no
// source is configured.
func (s Secret) Resolve() (string, error) {
	if s.value != "" {
		return s.value, nil
	}
	if s.Env != "" {
		if v := os.Getenv(s.Env); v != "" {
			return v, nil
		}
	}
	if s.File != "" {
		b, err := os.ReadFile(s.File)
		if err != nil {
			return "", fmt.Errorf("failed to read secret: %w", err)
		}
		return strings.TrimRight(string(b), "\r\n"), nil
	}
	return "", nil
}

func (s Secret) String() string {
	switch {
	case s.value != "":
		return "(set)"
	case s.Env != "":
		return "$" + s.Env
	case s.File != "":
		return s.File
	}
	return "(unset)"
}
