// Package version negotiates an installed tool version against the version a
// profile requires.
package version

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"

	"github.com/artpar/devstack/internal/core/domain"
)

// =============================================================================
// Requirement
// =============================================================================

var (
	bareMajorRegex = regexp.MustCompile(`^\d+$`)
	versionRegex   = regexp.MustCompile(`(\d+\.\d+\.\d+)`)
)

// Requirement is a parsed version specifier.
type Requirement struct {
	Raw        string // as declared in the profile
	Constraint string // semver constraint checked against the installed version
	Channel    string // download channel of the binary
}

// ParseRequirement parses a bare major digit ("2" means latest within major
// 2) or a full version or range.
//
// Example:
//
//	ParseRequirement("2")      // {Constraint: "2.x", Channel: "latest-2.x"}
//	ParseRequirement("2.2.6")  // {Constraint: "2.2.6", Channel: "2.2.6"}
//	ParseRequirement("^2.2")   // {Constraint: "^2.2", Channel: "latest-stable"}
func ParseRequirement(spec string) (Requirement, error) {
	req := Requirement{Raw: spec}
	switch {
	case bareMajorRegex.MatchString(spec):
		req.Constraint = spec + ".x"
		req.Channel = "latest-" + spec + ".x"
	default:
		if _, err := semver.NewConstraint(spec); err != nil {
			return Requirement{}, domain.NewStackError("ParseRequirement", "version", spec, err.Error(), domain.ErrInvalidProfile)
		}
		req.Constraint = spec
		if v, err := semver.StrictNewVersion(spec); err == nil {
			req.Channel = v.String()
		} else {
			req.Channel = "latest-stable"
		}
	}
	return req, nil
}

// =============================================================================
// Verdict
// =============================================================================

// Verdict is the outcome of comparing an installed version to a requirement.
type Verdict struct {
	Installed  string
	Required   string // the requirement constraint
	Compatible bool
}

// Check compares installed against req.
//
// Example:
//
//	req, _ := ParseRequirement("2")
//	v, _ := Check("1.2.3", req) // v.Compatible == false
func Check(installed string, req Requirement) (Verdict, error) {
	verdict := Verdict{Installed: installed, Required: req.Constraint}

	v, err := semver.NewVersion(installed)
	if err != nil {
		return verdict, fmt.Errorf("parse installed version %q: %w", installed, err)
	}
	c, err := semver.NewConstraint(req.Constraint)
	if err != nil {
		return verdict, fmt.Errorf("parse constraint %q: %w", req.Constraint, err)
	}
	verdict.Compatible = c.Check(v)
	return verdict, nil
}

// ExtractVersion returns the first x.y.z version found in tool output.
//
// Example:
//
//	ExtractVersion("Composer version 2.2.6 2022-02-04 17:00:38") // "2.2.6"
func ExtractVersion(output string) (string, error) {
	match := versionRegex.FindString(output)
	if match == "" {
		return "", fmt.Errorf("no version found in output %q", output)
	}
	return match, nil
}
