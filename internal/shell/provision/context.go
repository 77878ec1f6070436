// Package provision assembles the provisioning steps of the CLI commands
// into pipelines over one shared TaskContext.
package provision

import (
	"fmt"
	"sort"
	"strings"

	"github.com/artpar/devstack/internal/core/domain"
	"github.com/artpar/devstack/internal/core/instance"
)

// =============================================================================
// Task Context
// =============================================================================

// TaskContext is the mutable state of one command invocation. Steps receive
// it by pointer and mutate it in place; it is never persisted.
type TaskContext struct {
	RunID       string
	ProjectPath string // absolute application directory
	Version     string // requested application version, "" for the registered or default one

	Project *domain.Project
	Config  domain.EffectiveConfiguration
	Ports   domain.Ports
	Specs   []domain.ContainerSpec

	States  map[string]domain.ContainerState
	Images  map[string]bool
	Actions domain.ActionSet
	Passes  int

	DB SettingsWriter

	ComposerPath                        string
	ComposerVersion                     string
	ContinueWithExistingComposerVersion bool

	Statuses []domain.ServiceStatus
	Metadata instance.Metadata
}

// =============================================================================
// Step Access
// =============================================================================

// Access documents the TaskContext fields a step reads and writes.
type Access struct {
	Reads  []string
	Writes []string
}

// Steps lists the access of every step by title. Steps that run in the same
// concurrent group must have disjoint write sets, and none may read what a
// sibling writes.
var Steps = map[string]Access{
	TitleCheckEngine:     {},
	TitleLoadProject:     {Reads: []string{"ProjectPath"}, Writes: []string{"Project", "Ports"}},
	TitleResolveConfig:   {Reads: []string{"Version", "Project"}, Writes: []string{"Config"}},
	TitleAssignPorts:     {Reads: []string{"Project", "Config"}, Writes: []string{"Ports"}},
	TitleRegisterProject: {Reads: []string{"Config", "Ports"}, Writes: []string{"Project"}},
	TitleDerive:          {Reads: []string{"ProjectPath", "Project", "Config", "Ports"}, Writes: []string{"Specs"}},
	TitleInspect:         {Reads: []string{"Specs"}, Writes: []string{"States", "Images"}},
	TitleReconcileStart:  {Reads: []string{"Specs", "States", "Images"}, Writes: []string{"Actions"}},
	TitleReconcileStop:   {Reads: []string{"Specs", "States", "Images"}, Writes: []string{"Actions"}},
	TitleStopOutdated:    {Reads: []string{"Actions"}},
	TitlePull:            {Reads: []string{"Specs", "Actions"}},
	TitleStart:           {Reads: []string{"Specs", "Actions"}},
	TitleConverge:        {Reads: []string{"Specs"}, Writes: []string{"States", "Images", "Actions", "Passes"}},
	TitleWaitReady:       {Reads: []string{"Specs"}},
	TitleStopContainers:  {Reads: []string{"Actions"}},
	TitleInstallComposer: {Reads: []string{"Config"}, Writes: []string{"ComposerPath", "ComposerVersion", "ContinueWithExistingComposerVersion"}},
	TitleConnectDB:       {Reads: []string{"Config", "Ports"}, Writes: []string{"DB"}},
	TitleSetBaseURL:      {Reads: []string{"Config", "Ports", "DB"}},
	TitleURLRewrites:     {Reads: []string{"DB"}},
	TitleRecordStart:     {Reads: []string{"Project"}},
	TitleConfigure:       {Reads: []string{"DB"}},
	TitleStatus:          {Reads: []string{"Specs"}, Writes: []string{"States", "Statuses"}},
	TitleMetadata:        {Reads: []string{"Config", "Ports"}, Writes: []string{"Metadata"}},
}

// CheckDisjoint returns an error when two of the titled steps write the same
// field, or one reads a field another writes.
func CheckDisjoint(titles ...string) error {
	writer := make(map[string]string)
	for _, title := range titles {
		access, ok := Steps[title]
		if !ok {
			return fmt.Errorf("unknown step %q", title)
		}
		for _, field := range access.Writes {
			if other, dup := writer[field]; dup {
				return fmt.Errorf("steps %q and %q both write %s", other, title, field)
			}
			writer[field] = title
		}
	}

	var conflicts []string
	for _, title := range titles {
		for _, field := range Steps[title].Reads {
			if w, ok := writer[field]; ok && w != title {
				conflicts = append(conflicts, fmt.Sprintf("%q reads %s written by %q", title, field, w))
			}
		}
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return fmt.Errorf("concurrent steps conflict: %s", strings.Join(conflicts, "; "))
	}
	return nil
}
