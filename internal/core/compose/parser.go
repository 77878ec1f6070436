package compose

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"

	"github.com/artpar/devstack/internal/core/deployment"
	"github.com/artpar/devstack/internal/core/domain"
)

// =============================================================================
// Parser Functions
// =============================================================================

// Parse loads a Compose document produced by Export back into container
// specs, ordered dependencies first. This is a pure function.
func Parse(yamlContent string) ([]domain.ContainerSpec, error) {
	if strings.TrimSpace(yamlContent) == "" {
		return nil, ErrEmptyInput
	}

	project, err := loadProject(yamlContent)
	if err != nil {
		return nil, err
	}
	if len(project.Services) == 0 {
		return nil, ErrNoServices
	}

	containerOf := make(map[string]string, len(project.Services))
	for name, svc := range project.Services {
		containerOf[name] = svc.ContainerName
		if svc.ContainerName == "" {
			containerOf[name] = name
		}
	}

	specs := make([]domain.ContainerSpec, 0, len(project.Services))
	for name, svc := range project.Services {
		spec, err := convertService(name, svc, containerOf)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return deployment.TopologicalSort(specs), nil
}

// loadProject loads a compose document using compose-go.
func loadProject(yamlContent string) (*types.Project, error) {
	var dict map[string]interface{}
	if err := yaml.Unmarshal([]byte(yamlContent), &dict); err != nil || dict == nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}

	projectName, _ := dict["name"].(string)
	if projectName == "" {
		projectName = deployment.DefaultProject
	}

	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: []byte(yamlContent),
				Config:  dict,
			},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName(projectName, true)
		opts.SkipInterpolation = true // values were rendered on export
		opts.SkipNormalization = true
		opts.SkipExtends = true
		opts.SkipConsistencyCheck = true
	})
	if err != nil {
		return nil, NewParseError("", err.Error(), ErrInvalidYAML)
	}
	return project, nil
}

// convertService converts a compose-go service to a container spec.
func convertService(name string, svc types.ServiceConfig, containerOf map[string]string) (domain.ContainerSpec, error) {
	kind := domain.ServiceKind(name)
	if !kind.IsValid() {
		return domain.ContainerSpec{}, NewParseError("services."+name, "unknown service kind", ErrUnknownService)
	}
	if svc.Image == "" {
		return domain.ContainerSpec{}, NewParseError("services."+name+".image", "service must have an image", ErrServiceNoImage)
	}

	image, tag := splitImage(svc.Image)
	spec := domain.ContainerSpec{
		Name:            containerOf[name],
		Service:         kind,
		Image:           image,
		Tag:             tag,
		Restart:         domain.RestartPolicy(svc.Restart),
		Entrypoint:      []string(svc.Entrypoint),
		Command:         []string(svc.Command),
		SecurityOptions: svc.SecurityOpt,
	}

	if len(svc.Environment) > 0 {
		spec.Env = make(map[string]string, len(svc.Environment))
		for k, v := range svc.Environment {
			if v != nil {
				spec.Env[k] = *v
			}
		}
	}
	if len(svc.Labels) > 0 {
		spec.Labels = make(map[string]string, len(svc.Labels))
		for k, v := range svc.Labels {
			spec.Labels[k] = v
		}
	}

	for _, p := range svc.Ports {
		hostPort, _ := strconv.Atoi(p.Published)
		spec.Ports = append(spec.Ports, domain.PortBinding{
			HostPort:      hostPort,
			ContainerPort: int(p.Target),
			Protocol:      p.Protocol,
			HostIP:        p.HostIP,
		})
	}

	for _, v := range svc.Volumes {
		mountType := domain.MountType(v.Type)
		if mountType == "" {
			mountType = domain.MountVolume
			if strings.HasPrefix(v.Source, "/") || strings.HasPrefix(v.Source, "./") {
				mountType = domain.MountBind
			}
		}
		spec.Mounts = append(spec.Mounts, domain.Mount{
			Type:     mountType,
			Source:   v.Source,
			Target:   v.Target,
			ReadOnly: v.ReadOnly,
		})
	}

	for network := range svc.Networks {
		spec.Network = network
	}

	for dep := range svc.DependsOn {
		spec.DependsOn = append(spec.DependsOn, containerOf[dep])
	}
	sort.Strings(spec.DependsOn)

	if hc := svc.HealthCheck; hc != nil && !hc.Disable {
		spec.HealthCheck = &domain.HealthCheck{
			Test:        []string(hc.Test),
			Interval:    fromDuration(hc.Interval),
			Timeout:     fromDuration(hc.Timeout),
			StartPeriod: fromDuration(hc.StartPeriod),
		}
		if hc.Retries != nil {
			spec.HealthCheck.Retries = int(*hc.Retries)
		}
	}

	return spec, nil
}

// splitImage splits "repo[:port]/name:tag" at the tag separator.
func splitImage(ref string) (string, string) {
	slash := strings.LastIndex(ref, "/")
	colon := strings.LastIndex(ref, ":")
	if colon > slash {
		return ref[:colon], ref[colon+1:]
	}
	return ref, ""
}

func fromDuration(d *types.Duration) time.Duration {
	if d == nil {
		return 0
	}
	return time.Duration(*d)
}
