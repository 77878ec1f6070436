package compose

import (
	"sort"
	"strconv"
	"time"

	"github.com/compose-spec/compose-go/v2/types"

	"github.com/artpar/devstack/internal/core/domain"
)

// =============================================================================
// Export Functions
// =============================================================================

// Export converts derived container specs into a Compose project. Services
// are keyed by service kind and keep their container names; named volumes
// and networks referenced by the specs are declared at the top level.
//
// Example:
//
//	project, err := Export("shop", specs)
//	data, err := project.MarshalYAML()
func Export(projectName string, specs []domain.ContainerSpec) (*types.Project, error) {
	if len(specs) == 0 {
		return nil, ErrNoSpecs
	}

	serviceOf := make(map[string]string, len(specs))
	for _, s := range specs {
		serviceOf[s.Name] = string(s.Service)
	}

	project := &types.Project{
		Name:     projectName,
		Services: types.Services{},
		Networks: types.Networks{},
		Volumes:  types.Volumes{},
	}

	for _, spec := range specs {
		svc := exportService(spec, serviceOf)
		project.Services[svc.Name] = svc

		if spec.Network != "" {
			project.Networks[spec.Network] = types.NetworkConfig{Name: spec.Network}
		}
		for _, m := range spec.Mounts {
			if m.Type == domain.MountVolume {
				project.Volumes[m.Source] = types.VolumeConfig{Name: m.Source}
			}
		}
	}

	return project, nil
}

// MarshalProject renders a project as a Compose YAML document.
func MarshalProject(project *types.Project) ([]byte, error) {
	return project.MarshalYAML()
}

func exportService(spec domain.ContainerSpec, serviceOf map[string]string) types.ServiceConfig {
	svc := types.ServiceConfig{
		Name:          string(spec.Service),
		ContainerName: spec.Name,
		Image:         spec.ImageRef(),
		Restart:       string(spec.Restart),
		SecurityOpt:   spec.SecurityOptions,
		Labels:        types.Labels{},
	}
	if len(spec.Entrypoint) > 0 {
		svc.Entrypoint = types.ShellCommand(spec.Entrypoint)
	}
	if len(spec.Command) > 0 {
		svc.Command = types.ShellCommand(spec.Command)
	}

	for k, v := range spec.Labels {
		svc.Labels[k] = v
	}

	if len(spec.Env) > 0 {
		svc.Environment = types.MappingWithEquals{}
		for k, v := range spec.Env {
			value := v
			svc.Environment[k] = &value
		}
	}

	for _, p := range spec.Ports {
		protocol := p.Protocol
		if protocol == "" {
			protocol = "tcp"
		}
		svc.Ports = append(svc.Ports, types.ServicePortConfig{
			Target:    uint32(p.ContainerPort),
			Published: strconv.Itoa(p.HostPort),
			Protocol:  protocol,
			HostIP:    p.HostIP,
			Mode:      "ingress",
		})
	}

	for _, m := range spec.Mounts {
		svc.Volumes = append(svc.Volumes, types.ServiceVolumeConfig{
			Type:     string(m.Type),
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}

	if spec.Network != "" {
		svc.Networks = map[string]*types.ServiceNetworkConfig{spec.Network: nil}
	}

	if len(spec.DependsOn) > 0 {
		svc.DependsOn = types.DependsOnConfig{}
		deps := append([]string(nil), spec.DependsOn...)
		sort.Strings(deps)
		for _, dep := range deps {
			name, ok := serviceOf[dep]
			if !ok {
				continue
			}
			svc.DependsOn[name] = types.ServiceDependency{
				Condition: types.ServiceConditionStarted,
				Required:  true,
			}
		}
	}

	if hc := spec.HealthCheck; hc != nil {
		retries := uint64(hc.Retries)
		svc.HealthCheck = &types.HealthCheckConfig{
			Test:        types.HealthCheckTest(hc.Test),
			Interval:    duration(hc.Interval),
			Timeout:     duration(hc.Timeout),
			StartPeriod: duration(hc.StartPeriod),
			Retries:     &retries,
		}
	}

	return svc
}

func duration(d time.Duration) *types.Duration {
	if d == 0 {
		return nil
	}
	out := types.Duration(d)
	return &out
}
