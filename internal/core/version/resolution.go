package version

import (
	"fmt"

	"github.com/artpar/devstack/internal/core/pipeline"
)

// Resolutions offered when the installed version is incompatible.
const (
	ResolutionContinue pipeline.Resolution = "continue"
	ResolutionInstall  pipeline.Resolution = "install-and-continue"
	ResolutionAbort    pipeline.Resolution = "exit"
)

// Resolutions lists the conflict resolutions in prompt order.
var Resolutions = []pipeline.Resolution{ResolutionContinue, ResolutionInstall, ResolutionAbort}

// ParseResolution validates a resolution given by name, e.g. on the command
// line.
func ParseResolution(s string) (pipeline.Resolution, error) {
	for _, r := range Resolutions {
		if string(r) == s {
			return r, nil
		}
	}
	switch s {
	case "install":
		return ResolutionInstall, nil
	case "abort":
		return ResolutionAbort, nil
	}
	return "", fmt.Errorf("unknown resolution %q (want continue, install or abort)", s)
}

// ConflictQuestion builds the prompt shown for an incompatible verdict.
func ConflictQuestion(tool string, v Verdict) pipeline.Question {
	return pipeline.Question{
		Message: fmt.Sprintf("You have %s %s while your application version requires %s!", tool, v.Installed, v.Required),
		Choices: []pipeline.Choice{
			{Value: ResolutionContinue, Label: fmt.Sprintf("Continue with current installed version (%s)", v.Installed)},
			{Value: ResolutionInstall, Label: "Install correct version and continue (you will probably have to fix dependency versions)"},
			{Value: ResolutionAbort, Label: "Exit installation."},
		},
		Default: ResolutionContinue,
	}
}
