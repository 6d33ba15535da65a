package control

import (
	"fmt"
	"strings"
)

// Op is a version constraint operator inside a dependency expression.
type Op string

const (
	OpAny     Op = ""
	OpEqual   Op = "="
	OpAtLeast Op = ">="
	OpAtMost  Op = "<="
	OpGreater Op = ">>"
	OpLess    Op = "<<"
)

// Dependency is one parsed element of a Depends field: a package name with
// an optional version constraint.
type Dependency struct {
	Name    string `json:"name"`
	Op      Op     `json:"op,omitempty"`
	Version string `json:"version,omitempty"`
}

// Satisfies reports whether a package at the given version meets the
// constraint. The name match is the caller's business.
func (d Dependency) Satisfies(version string) bool {
	switch d.Op {
	case OpAny:
		return true
	case OpEqual:
		return CompareVersions(version, d.Version) == 0
	case OpAtLeast:
		return CompareVersions(version, d.Version) >= 0
	case OpAtMost:
		return CompareVersions(version, d.Version) <= 0
	case OpGreater:
		return CompareVersions(version, d.Version) > 0
	case OpLess:
		return CompareVersions(version, d.Version) < 0
	}
	return false
}

func (d Dependency) String() string {
	if d.Op == OpAny {
		return d.Name
	}
	return fmt.Sprintf("%s (%s %s)", d.Name, d.Op, d.Version)
}

// ParseDepends parses a Depends field: a comma-separated list of package
// names, each optionally followed by a parenthesized constraint such as
// "libc (>= 1.0)". Alternative groups ("a | b") collapse to their first
// member. Legacy single '>' and '<' operators mean >= and <=.
func ParseDepends(s string) ([]Dependency, error) {
	var deps []Dependency
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i := strings.IndexByte(part, '|'); i >= 0 {
			part = strings.TrimSpace(part[:i])
			if part == "" {
				return nil, fmt.Errorf("empty alternative in dependency %q", s)
			}
		}
		dep, err := parseDependency(part)
		if err != nil {
			return nil, err
		}
		deps = append(deps, dep)
	}
	return deps, nil
}

func parseDependency(s string) (Dependency, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 {
		name := strings.TrimSpace(s)
		if name == "" || strings.ContainsAny(name, " \t") {
			return Dependency{}, fmt.Errorf("invalid dependency %q", s)
		}
		return Dependency{Name: name}, nil
	}

	name := strings.TrimSpace(s[:open])
	if name == "" {
		return Dependency{}, fmt.Errorf("invalid dependency %q", s)
	}
	close := strings.IndexByte(s[open:], ')')
	if close < 0 || strings.TrimSpace(s[open+close+1:]) != "" {
		return Dependency{}, fmt.Errorf("unbalanced constraint in dependency %q", s)
	}

	inner := strings.TrimSpace(s[open+1 : open+close])
	opEnd := 0
	for opEnd < len(inner) && (inner[opEnd] == '<' || inner[opEnd] == '>' || inner[opEnd] == '=') {
		opEnd++
	}
	op, err := parseOp(inner[:opEnd])
	if err != nil {
		return Dependency{}, fmt.Errorf("dependency %q: %w", s, err)
	}
	version := strings.TrimSpace(inner[opEnd:])
	if version == "" {
		return Dependency{}, fmt.Errorf("dependency %q: constraint without version", s)
	}
	return Dependency{Name: name, Op: op, Version: version}, nil
}

func parseOp(s string) (Op, error) {
	switch s {
	case "=", "==":
		return OpEqual, nil
	case ">=", ">":
		return OpAtLeast, nil
	case "<=", "<":
		return OpAtMost, nil
	case ">>":
		return OpGreater, nil
	case "<<":
		return OpLess, nil
	}
	return OpAny, fmt.Errorf("unknown constraint operator %q", s)
}
