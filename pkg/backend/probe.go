package backend

import (
	"context"
	"fmt"
	"regexp"

	goversion "github.com/hashicorp/go-version"
	"go.uber.org/zap"

	"github.com/queryward/queryward/pkg/apperrors"
)

var versionPattern = regexp.MustCompile(`\d+\.\d+\.\d+`)

// Probe checks that the backend executable is installed, runnable, and
// recent enough. Used by startup checks and the doctor command.
type Probe struct {
	runner     CommandRunner
	command    string
	minVersion string
	logger     *zap.Logger
}

// NewProbe builds a probe for the given backend command. minVersion may be
// empty to skip the version gate.
func NewProbe(runner CommandRunner, command, minVersion string, logger *zap.Logger) *Probe {
	return &Probe{
		runner:     runner,
		command:    command,
		minVersion: minVersion,
		logger:     logger.Named("probe"),
	}
}

// Check invokes the backend's version command and returns the detected
// version. Errors wrap ErrBackendUnavailable when the command cannot run,
// and report a too-old installation when a minimum version is configured.
func (p *Probe) Check(ctx context.Context) (string, error) {
	result, err := p.runner.Run(ctx, Invocation{
		Command: p.command,
		Args:    []string{"--version"},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrBackendUnavailable, err)
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("%w: %s --version exited with status %d: %s",
			apperrors.ErrBackendUnavailable, p.command, result.ExitCode, compileDiagnostic(result))
	}

	detected := versionPattern.FindString(result.Stdout)
	if detected == "" {
		detected = versionPattern.FindString(result.Stderr)
	}
	if detected == "" {
		return "", fmt.Errorf("%w: could not parse a version from %s --version output",
			apperrors.ErrBackendUnavailable, p.command)
	}

	if p.minVersion != "" {
		have, err := goversion.NewVersion(detected)
		if err != nil {
			return detected, fmt.Errorf("parsing detected version %q: %w", detected, err)
		}
		want, err := goversion.NewVersion(p.minVersion)
		if err != nil {
			return detected, fmt.Errorf("parsing minimum version %q: %w", p.minVersion, err)
		}
		if have.LessThan(want) {
			return detected, fmt.Errorf("backend version %s is older than required %s", detected, p.minVersion)
		}
	}

	p.logger.Debug("backend probe ok",
		zap.String("command", p.command),
		zap.String("version", detected))
	return detected, nil
}
