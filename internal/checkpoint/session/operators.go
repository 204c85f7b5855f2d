package session

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Operator is a checkpoint operator account.
type Operator struct {
	Username     string
	DisplayName  string
	PasswordHash string // bcrypt
	Grants       Grants
}

// Directory resolves operator accounts by username.
type Directory interface {
	Lookup(username string) (Operator, bool)
}

// StaticDirectory is an immutable in-memory Directory.
type StaticDirectory struct {
	byName map[string]Operator
}

func NewStaticDirectory(ops ...Operator) *StaticDirectory {
	d := &StaticDirectory{byName: make(map[string]Operator, len(ops))}
	for _, op := range ops {
		d.byName[strings.ToLower(strings.TrimSpace(op.Username))] = op
	}
	return d
}

func (d *StaticDirectory) Lookup(username string) (Operator, bool) {
	op, ok := d.byName[strings.ToLower(strings.TrimSpace(username))]
	return op, ok
}

func (d *StaticDirectory) Len() int { return len(d.byName) }

type operatorsFile struct {
	Operators []struct {
		Username     string              `yaml:"username"`
		DisplayName  string              `yaml:"display_name"`
		PasswordHash string              `yaml:"password_hash"`
		Grants       map[string][]string `yaml:"grants"`
	} `yaml:"operators"`
}

// ParseOperators decodes the YAML operators file format.
func ParseOperators(data []byte) (*StaticDirectory, error) {
	var f operatorsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse operators: %w", err)
	}

	ops := make([]Operator, 0, len(f.Operators))
	seen := make(map[string]struct{}, len(f.Operators))
	for i, o := range f.Operators {
		name := strings.TrimSpace(o.Username)
		if name == "" {
			return nil, fmt.Errorf("operator %d: username is required", i)
		}
		if o.PasswordHash == "" {
			return nil, fmt.Errorf("operator %s: password_hash is required", name)
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("operator %s: duplicate username", name)
		}
		seen[key] = struct{}{}

		ops = append(ops, Operator{
			Username:     name,
			DisplayName:  o.DisplayName,
			PasswordHash: o.PasswordHash,
			Grants:       NewGrants(o.Grants),
		})
	}
	return NewStaticDirectory(ops...), nil
}

// LoadOperatorsFile reads and parses an operators file from disk.
func LoadOperatorsFile(path string) (*StaticDirectory, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read operators file: %w", err)
	}
	return ParseOperators(b)
}
