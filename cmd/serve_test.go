package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServeCommandMetadata(t *testing.T) {
	cmd := NewServeCommand(newTestDeps())

	assert.Equal(t, "serve", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	require.NotNil(t, cmd.Flags().Lookup("http"))
}

// The stdio and HTTP transports block until the process is told to stop,
// so the serve tests cover wiring failures rather than a full serve loop.
func TestServeCommand_PipelineFailureAborts(t *testing.T) {
	orig := buildPipelineFn
	buildPipelineFn = func(_ context.Context, _ *Deps) (queryRunner, func(), error) {
		return nil, nil, errors.New("backend binary not found")
	}
	t.Cleanup(func() { buildPipelineFn = orig })

	deps := newTestDeps()
	_, err := runCommand(t, deps, "serve")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend binary not found")
}

func TestServeCommand_TranslatorFailureAborts(t *testing.T) {
	stubPipeline(t, &fakeRunner{})

	orig := buildTranslatorFn
	buildTranslatorFn = func(_ *Deps) (questionTranslator, error) {
		return nil, errors.New("unsupported llm provider")
	}
	t.Cleanup(func() { buildTranslatorFn = orig })

	deps := newTestDeps()
	_, err := runCommand(t, deps, "serve")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported llm provider")
}
