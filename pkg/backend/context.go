// Package backend wraps the external SQL backend process: staging and
// compiling template references, executing resolved SQL, and probing the
// installation.
package backend

// ExecContext carries the environment one backend invocation runs under:
// working directory, connection profile, and extra environment variables.
// It is an immutable value passed per call; the process environment is
// never mutated.
type ExecContext struct {
	// ProjectDir is the backend project root and the working directory for
	// every invocation.
	ProjectDir string
	// ProfilesDir is the directory holding the connection profiles file.
	// Empty means the backend's own default lookup applies.
	ProfilesDir string
	// Profile is the connection profile name. Empty means the project
	// default.
	Profile string
	// Target selects an output within the profile. Empty means the
	// profile's default target.
	Target string
	// Env holds extra KEY=VALUE pairs appended to the parent environment.
	Env []string
}

// BaseArgs renders the context as backend CLI flags, omitting unset fields.
func (c ExecContext) BaseArgs() []string {
	var args []string
	if c.ProfilesDir != "" {
		args = append(args, "--profiles-dir", c.ProfilesDir)
	}
	if c.Profile != "" {
		args = append(args, "--profile", c.Profile)
	}
	if c.Target != "" {
		args = append(args, "--target", c.Target)
	}
	return args
}
