package project

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"golang.org/x/xerrors"
)

// reservedTopLevelKeys must not appear as driver names (they are manifest
// structure, not driver bindings).
var reservedTopLevelKeys = map[string]bool{
	"id": true, "type": true, "value": true,
}

// rawManifest holds the reserved top-level members id, type and value; the
// members recognised within "value" are listed in knownValueKeys below.
type rawManifest struct {
	ID    string          `json:"id"`
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type rawValue struct {
	Public      *bool    `json:"public"`
	Author      *string  `json:"author"`
	Description *string  `json:"description"`
	Version     *string  `json:"version"`
	Repository  *string  `json:"repository"`
	Language    *string  `json:"language"`
	Use         []string `json:"use"`
	UsePrivate  []string `json:"use_private"`
	UseBuild    []string `json:"use_build"`
	UseRuntime  []string `json:"use_runtime"`
	Link        []string `json:"link"`
	Sources     []string `json:"sources"`
	Includes    []string `json:"includes"`
	KeepBinary  *bool    `json:"keep_binary"`
}

// knownValueKeys mirrors the rawValue json tags, used to detect unknown keys
// (encoding/json silently ignores unknown fields, but spec §6 requires they
// be fatal).
var knownValueKeys = map[string]bool{
	"public": true, "author": true, "description": true, "version": true,
	"repository": true, "language": true, "use": true, "use_private": true,
	"use_build": true, "use_runtime": true,
	"link": true, "sources": true, "includes": true, "keep_binary": true,
}

// ParseWarningFunc receives non-fatal diagnostics (e.g. deprecated type
// aliases).
type ParseWarningFunc func(msg string)

// Parse reads and parses <path>/project.json into a Project. warn, if
// non-nil, receives non-fatal diagnostics.
func Parse(path string, warn ParseWarningFunc) (*Project, error) {
	file := filepath.Join(path, "project.json")
	b, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, xerrors.Errorf("could not find file %q: %w", file, err)
		}
		return nil, xerrors.Errorf("reading %q: %w", file, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, xerrors.Errorf("failed to parse %q: %w", file, err)
	}

	var m rawManifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, xerrors.Errorf("failed to parse %q: %w", file, err)
	}
	if m.ID == "" {
		return nil, &MissingIDError{}
	}
	if m.Type == "" {
		m.Type = "package"
	}

	p := &Project{Path: path}
	if err := setIdentity(p, m.ID); err != nil {
		return nil, err
	}
	if err := setType(p, m.Type, warn); err != nil {
		return nil, err
	}

	if len(m.Value) > 0 {
		if err := parseValue(p, m.Value); err != nil {
			return nil, err
		}
	}

	// Unknown top-level members other than id/type/value are driver
	// bindings (spec §4.4), kept in manifest order. b already decoded into
	// raw above, so it is a well-formed JSON object.
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.Token() // opening '{'
	for dec.More() {
		tok, _ := dec.Token()
		var v json.RawMessage
		dec.Decode(&v)
		if key := tok.(string); !reservedTopLevelKeys[key] {
			p.Drivers = append(p.Drivers, DriverBinding{Driver: key, RawJSON: v})
		}
	}

	applyDefaults(p)
	return p, nil
}

func parseValue(p *Project, raw json.RawMessage) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return xerrors.Errorf("parsing project.json value: %w", err)
	}
	for key := range m {
		if !knownValueKeys[key] {
			return &UnknownValueKeyError{Key: key}
		}
	}
	var v rawValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return xerrors.Errorf("parsing project.json value: %w", err)
	}
	if v.Public != nil {
		p.Public = *v.Public
	}
	if v.Author != nil {
		p.Author = *v.Author
	}
	if v.Description != nil {
		p.Description = *v.Description
	}
	if v.Version != nil {
		p.Version = *v.Version
	}
	if v.Repository != nil {
		p.Repository = *v.Repository
	}
	if v.Language != nil {
		p.Language = *v.Language
	}
	p.Use = v.Use
	p.UsePrivate = v.UsePrivate
	p.UseBuild = v.UseBuild
	p.UseRuntime = v.UseRuntime
	p.Link = v.Link
	p.Sources = v.Sources
	p.Includes = v.Includes
	if v.KeepBinary != nil {
		p.KeepBinary = *v.KeepBinary
	}
	return nil
}

// reservedDependeeKeys mirrors the manifest's top-level reserved keys; per
// spec §6 a dependee.json must not declare id/type/value.
var reservedDependeeKeys = reservedTopLevelKeys

// ReservedDependeeKeyError is fatal per spec §4.5/§6/§7 (Dependency error).
type ReservedDependeeKeyError struct{ Key string }

func (e *ReservedDependeeKeyError) Error() string {
	return xerrors.Errorf("dependee config overrides reserved key %q", e.Key).Error()
}

// ParseDependee reads <installedDep>/dependee.json, if present, and returns
// its driver-keyed sections. A missing file is not an error (returns nil,
// nil); its presence is optional per spec §4.5.
func ParseDependee(installedDepPath string) (map[string]json.RawMessage, error) {
	file := filepath.Join(installedDepPath, "dependee.json")
	b, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, xerrors.Errorf("reading %q: %w", file, err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, xerrors.Errorf("failed to parse %q: %w", file, err)
	}
	for key := range raw {
		if reservedDependeeKeys[key] {
			return nil, &ReservedDependeeKeyError{Key: key}
		}
	}
	return raw, nil
}

// MergeDependee merges a dependee's driver-keyed sections into p's driver
// bindings (spec §4.5: "merges its driver-keyed sections into the
// corresponding driver binding of the current project").
func MergeDependee(p *Project, dependee map[string]json.RawMessage) error {
	for driverName, raw := range dependee {
		idx := -1
		for i, d := range p.Drivers {
			if d.Driver == driverName {
				idx = i
				break
			}
		}
		if idx == -1 {
			p.Drivers = append(p.Drivers, DriverBinding{Driver: driverName, RawJSON: raw})
			continue
		}
		merged, err := mergeJSONObjects(p.Drivers[idx].RawJSON, raw)
		if err != nil {
			return err
		}
		p.Drivers[idx].RawJSON = merged
	}
	return nil
}

// mergeJSONObjects merges b's top-level keys into a, with b winning on
// conflicts (dependee config contributes additively to driver bindings).
func mergeJSONObjects(a, b json.RawMessage) (json.RawMessage, error) {
	var am, bm map[string]json.RawMessage
	if len(a) > 0 {
		if err := json.Unmarshal(a, &am); err != nil {
			return nil, err
		}
	}
	if am == nil {
		am = make(map[string]json.RawMessage)
	}
	if err := json.Unmarshal(b, &bm); err != nil {
		return nil, err
	}
	for k, v := range bm {
		am[k] = v
	}
	return json.Marshal(am)
}
