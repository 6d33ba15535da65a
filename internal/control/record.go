// Package control implements the package record model: control stanzas as
// found in .ipk archives and Packages feed documents, the version total
// order, and dependency expressions.
package control

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Record is one package as described by a control stanza. Records are built
// by the parsers in this package and treated as immutable afterwards.
type Record struct {
	Name          string       `json:"name"`
	Version       string       `json:"version"`
	Architecture  string       `json:"architecture,omitempty"`
	Depends       []Dependency `json:"depends,omitempty"`
	Provides      []string     `json:"provides,omitempty"`
	Section       string       `json:"section,omitempty"`
	Description   string       `json:"description,omitempty"`
	Filename      string       `json:"filename,omitempty"`
	Size          int64        `json:"size,omitempty"`
	InstalledSize int64        `json:"installed_size,omitempty"`

	// Source names the feed the record came from. Empty for records read
	// out of a local archive.
	Source string `json:"source,omitempty"`

	// LocalPath is set only for records built from a local archive file.
	LocalPath string `json:"-"`
}

// ID returns the name_version identity used in logs and journal entries.
func (r *Record) ID() string {
	return r.Name + "_" + r.Version
}

// ParseStanza reads a single control stanza, as extracted from an archive's
// control member. Parsing stops at the first blank line.
func ParseStanza(r io.Reader) (*Record, error) {
	fields, _, err := scanStanza(bufio.NewScanner(r), 0)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, fmt.Errorf("empty control stanza")
	}
	return buildRecord(fields, "")
}

// ParseIndex reads a Packages feed document: control stanzas separated by
// blank lines. source is recorded on every returned record. A structurally
// broken stanza or a duplicate (name, version) pair fails the whole parse.
func ParseIndex(r io.Reader, source string) ([]*Record, error) {
	var (
		records []*Record
		seen    = make(map[string]int)
		scanner = bufio.NewScanner(r)
		line    = 0
	)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fields, n, err := scanStanza(scanner, line)
		if err != nil {
			return nil, err
		}
		if fields == nil {
			break
		}
		line = n

		rec, err := buildRecord(fields, source)
		if err != nil {
			return nil, fmt.Errorf("stanza ending at line %d: %w", line, err)
		}
		if prev, ok := seen[rec.ID()]; ok {
			return nil, fmt.Errorf("duplicate package %s %s (stanzas %d and %d)", rec.Name, rec.Version, prev+1, len(records)+1)
		}
		seen[rec.ID()] = len(records)
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	return records, nil
}

// scanStanza consumes one stanza from the scanner. It returns nil fields at
// end of input. Continuation lines (leading whitespace) are folded into the
// previous field, which is how multi-line descriptions arrive.
func scanStanza(scanner *bufio.Scanner, startLine int) (map[string]string, int, error) {
	var (
		fields  map[string]string
		lastKey string
		line    = startLine
	)
	for scanner.Scan() {
		line++
		raw := scanner.Text()
		text := strings.TrimRight(raw, " \t\r")

		if strings.TrimSpace(text) == "" {
			if fields != nil {
				return fields, line, nil
			}
			continue
		}

		if text[0] == ' ' || text[0] == '\t' {
			if lastKey == "" {
				return nil, line, fmt.Errorf("line %d: continuation line without a field", line)
			}
			fields[lastKey] += "\n" + strings.TrimSpace(text)
			continue
		}

		key, value, ok := strings.Cut(text, ":")
		if !ok {
			return nil, line, fmt.Errorf("line %d: malformed field %q", line, text)
		}
		if fields == nil {
			fields = make(map[string]string)
		}
		lastKey = key
		fields[key] = strings.TrimSpace(value)
	}
	return fields, line, nil
}

func buildRecord(fields map[string]string, source string) (*Record, error) {
	name := fields["Package"]
	if name == "" {
		return nil, fmt.Errorf("missing Package field")
	}
	if strings.ContainsAny(name, " \t/") {
		return nil, fmt.Errorf("invalid package name %q", name)
	}
	version := fields["Version"]
	if version == "" {
		return nil, fmt.Errorf("package %s: missing Version field", name)
	}

	rec := &Record{
		Name:         name,
		Version:      version,
		Architecture: fields["Architecture"],
		Section:      fields["Section"],
		Description:  fields["Description"],
		Filename:     fields["Filename"],
		Source:       source,
	}

	if deps := fields["Depends"]; deps != "" {
		parsed, err := ParseDepends(deps)
		if err != nil {
			return nil, fmt.Errorf("package %s: %w", name, err)
		}
		rec.Depends = parsed
	}
	if provides := fields["Provides"]; provides != "" {
		for _, p := range strings.Split(provides, ",") {
			if p = strings.TrimSpace(p); p != "" {
				rec.Provides = append(rec.Provides, p)
			}
		}
	}
	if size := fields["Size"]; size != "" {
		n, err := strconv.ParseInt(size, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("package %s: invalid Size %q", name, size)
		}
		rec.Size = n
	}
	if size := fields["Installed-Size"]; size != "" {
		// Installed-Size is advisory. A bad value is ignored rather than
		// failing the stanza, matching how feeds are generated in the wild.
		if n, err := strconv.ParseInt(size, 10, 64); err == nil {
			rec.InstalledSize = n
		}
	}
	return rec, nil
}
