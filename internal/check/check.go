package check

// Check represents a single analysis tool invocation over a set of target
// globs.
//
// Required: Name, Tool, Targets.
// Optional: Args, Env, Needs, AllowEmpty.
type Check struct {
	// Name is the logical identifier for the check.
	// It addresses the check on the command line and in `needs` edges.
	Name string `yaml:"name" json:"name"`

	// Tool is the executable to invoke. It is looked up on the host PATH at
	// execution time; the tool itself is an opaque external collaborator.
	Tool string `yaml:"tool" json:"tool"`

	// Args are passed to the tool before the resolved target paths.
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`

	// Targets is a list of file paths or glob patterns, resolved relative to
	// the project root. Expansion is deterministic and strictly sorted.
	Targets []string `yaml:"targets" json:"targets"`

	// Env is a map of environment variables layered over the host environment
	// for this check's tool process. Optional field.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// Needs lists checks that must pass before this check may run.
	// Optional field.
	Needs []string `yaml:"needs,omitempty" json:"needs,omitempty"`

	// AllowEmpty permits the check's target globs to match zero files.
	// When set, an empty match records the check as trivially passed instead
	// of failing the suite.
	AllowEmpty bool `yaml:"allow_empty,omitempty" json:"allow_empty,omitempty"`
}
