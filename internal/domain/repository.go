package domain

import (
	"fmt"
	"strings"
)

// Repository identifies a GitHub repository by owner and name
type Repository struct {
	Owner string
	Name  string
}

// ParseRepository parses an "owner/name" identifier
func ParseRepository(s string) (Repository, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Repository{}, fmt.Errorf("invalid repository %q: want owner/name", s)
	}
	return Repository{Owner: owner, Name: name}, nil
}

// String returns the "owner/name" form
func (r Repository) String() string {
	return r.Owner + "/" + r.Name
}

// IsZero reports whether the repository is unset
func (r Repository) IsZero() bool {
	return r.Owner == "" && r.Name == ""
}

// FileStem returns the base name used for per-repository files ("owner.name")
func (r Repository) FileStem() string {
	return r.Owner + "." + r.Name
}

// MarshalText encodes the repository as "owner/name"
func (r Repository) MarshalText() ([]byte, error) {
	if r.IsZero() {
		return []byte{}, nil
	}
	return []byte(r.String()), nil
}

// UnmarshalText decodes an "owner/name" identifier
func (r *Repository) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*r = Repository{}
		return nil
	}
	parsed, err := ParseRepository(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
