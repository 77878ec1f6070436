// Package deployment derives the desired container topology of a project.
//
// This package contains the functional core logic for turning an effective
// configuration and a runtime port assignment into container specs. All
// functions are pure (no I/O, no side effects).
//
// # Functions
//
//   - Naming: Generate consistent resource names (NetworkName, VolumeName, ContainerName)
//   - Variables: Substitute ${VAR} placeholders in profile environments (SubstituteVariables)
//   - Derive: Build the ordered container specs of a configuration (Derive)
//   - Ordering: Sort specs by dependencies (TopologicalSort) and group them by depth (Stages)
//
// # Usage
//
// The imperative shell (internal/shell/docker) reconciles these specs
// against the engine and applies the resulting actions.
//
//	specs, err := deployment.Derive(deployment.DeriveParams{
//	    Config:  cfg,
//	    Project: "shop",
//	    Ports:   ports,
//	})
//	stages := deployment.Stages(specs)
package deployment
