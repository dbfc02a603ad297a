// Package project implements the project manifest (project.json) and
// dependee (dependee.json) parsing described in spec §4.4 and §6, generalised
// from bake's src/project.c struct-and-switch parser.
package project

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Type classifies a project per spec §3/§6.
type Type int

const (
	TypeApplication Type = iota
	TypePackage
	TypeTool
	TypeTemplate
)

func (t Type) String() string {
	switch t {
	case TypeApplication:
		return "application"
	case TypePackage:
		return "package"
	case TypeTool:
		return "tool"
	case TypeTemplate:
		return "template"
	default:
		return "unknown"
	}
}

// DriverBinding is a project's raw configuration for one driver, captured
// before attribute evaluation (spec §4.4: "the loader calls driver_get(member)
// and stores {driver, raw_json_object}").
type DriverBinding struct {
	Driver     string
	RawJSON    json.RawMessage
	Attributes map[string]json.RawMessage // populated by attribute evaluation, see project/attributes.go
}

// BuildState carries the mutable, engine/driver-written build flags of
// spec §3. Only the rule engine and drivers write these fields; only the
// (external) crawler writes UnresolvedDependencies/Dependents.
type BuildState struct {
	Error              bool
	FreshlyBaked       bool // synonym of Changed, per DESIGN.md Open Question decision
	Changed            bool
	ArtefactOutdated   bool
	SourcesOutdated    bool
	UnresolvedDependencies int
	Dependents         []string
	Built              bool
}

// Project is the parsed manifest plus computed identity and mutable build
// state (spec §3).
type Project struct {
	// Identity
	ID           string
	IDUnderscore string
	IDDash       string
	IDBase       string

	// Classification
	Type          Type
	Public        bool
	KeepBinary    bool
	BakeExtension string

	// value members
	Author      string
	Description string
	Version     string
	Repository  string
	Language    string
	Use         []string
	UsePrivate  []string
	UseBuild    []string
	UseRuntime  []string
	Link        []string
	Sources     []string
	Includes    []string

	// Driver bindings, in manifest order.
	Drivers []DriverBinding

	// Path is the on-disk project root directory.
	Path string

	// Computed paths (populated by the build pipeline, not the parser).
	Artefact     string
	ArtefactPath string
	ArtefactFile string
	BinPath      string
	CachePath    string

	State BuildState
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_/-]+$`)

// InvalidIDError is fatal per spec §7 (Manifest error).
type InvalidIDError struct{ ID string }

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("project id %q contains invalid characters", e.ID)
}

// UnknownTypeError is fatal per spec §7.
type UnknownTypeError struct{ Type string }

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("project type %q is not valid", e.Type)
}

// UnknownValueKeyError is fatal per spec §7/§6 ("Unknown keys within value
// are fatal").
type UnknownValueKeyError struct{ Key string }

func (e *UnknownValueKeyError) Error() string {
	return fmt.Sprintf("unknown member %q in project.json value", e.Key)
}

// MissingIDError is fatal per spec §6 ("id *(required, string)*").
type MissingIDError struct{}

func (e *MissingIDError) Error() string { return "missing 'id' in project.json" }

// setIdentity normalises id per spec §4.4/§8 (Identity normalisation).
func setIdentity(p *Project, id string) error {
	normalized := strings.ReplaceAll(id, ".", "/")
	if !idPattern.MatchString(normalized) {
		return &InvalidIDError{ID: id}
	}
	p.ID = normalized
	p.IDUnderscore = strings.ReplaceAll(id, ".", "_")
	p.IDDash = strings.ReplaceAll(id, ".", "-")
	segs := strings.Split(id, ".")
	p.IDBase = segs[len(segs)-1]
	return nil
}

// setType resolves type, including the deprecated aliases (spec §4.4).
func setType(p *Project, typ string, warn func(string)) error {
	switch typ {
	case "application":
		p.Type = TypeApplication
	case "package":
		p.Type = TypePackage
	case "tool":
		p.Type = TypeTool
	case "template":
		p.Type = TypeTemplate
	case "executable":
		p.Type = TypeApplication
		if warn != nil {
			warn("'executable' is deprecated, use 'application' instead")
		}
	case "library":
		p.Type = TypePackage
		if warn != nil {
			warn("'library' is deprecated, use 'package' instead")
		}
	default:
		return &UnknownTypeError{Type: typ}
	}
	return nil
}

// applyDefaults fills in the spec §4.4 defaults for a freshly parsed project.
func applyDefaults(p *Project) {
	if len(p.Sources) == 0 {
		p.Sources = []string{"src"}
	}
	if len(p.Includes) == 0 {
		p.Includes = []string{"include"}
	}
	if p.Language == "" {
		p.Language = "c"
	}
}
