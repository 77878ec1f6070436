package provision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/devstack/internal/core/configuration"
	"github.com/artpar/devstack/internal/core/domain"
	"github.com/artpar/devstack/internal/core/pipeline"
	"github.com/artpar/devstack/internal/core/profiles"
	"github.com/artpar/devstack/internal/core/version"
	"github.com/artpar/devstack/internal/shell/process/processtest"
)

// runInstallComposer runs the package-manager step alone over a context
// holding the default profile.
func runInstallComposer(t *testing.T, env *testEnv) (*TaskContext, pipeline.Report, error) {
	t.Helper()
	registry, err := profiles.NewBuiltinRegistry()
	require.NoError(t, err)
	cfg, err := configuration.Compose(registry, "", "", domain.Overrides{})
	require.NoError(t, err)

	p := env.provisioner(t, env.testSettings())
	c := p.newContext(env.project, "")
	c.Config = cfg

	report, err := p.runner().Run(context.Background(), c, []task{p.installComposer()}, pipeline.Options{})
	return c, report, err
}

// =============================================================================
// Version Negotiation Tests
// =============================================================================

func TestInstallComposer_DownloadsWhenMissing(t *testing.T) {
	env := newTestEnv(t)

	c, _, err := runInstallComposer(t, env)
	require.NoError(t, err)

	assert.Equal(t, int32(1), env.downloads.Load())
	assert.Equal(t, env.fetcher.Path("latest-2.x"), c.ComposerPath)
	assert.Equal(t, "2.2.6", c.ComposerVersion)
	assert.Empty(t, env.prompter.Asked())
}

func TestInstallComposer_CompatibleCachedBinary(t *testing.T) {
	env := newTestEnv(t)
	env.cacheComposer(t)

	c, _, err := runInstallComposer(t, env)
	require.NoError(t, err)

	assert.Equal(t, int32(0), env.downloads.Load())
	assert.Equal(t, "2.2.6", c.ComposerVersion)
	assert.False(t, c.ContinueWithExistingComposerVersion)
	assert.Empty(t, env.prompter.Asked())
}

func TestInstallComposer_ContinueWithExistingVersion(t *testing.T) {
	env := newTestEnv(t, version.ResolutionContinue)
	env.cacheComposer(t)
	env.runner.On(env.composerLine(), processtest.Response{Stdout: "Composer version 1.2.3 2019-01-01"})

	c, _, err := runInstallComposer(t, env)
	require.NoError(t, err)

	assert.True(t, c.ContinueWithExistingComposerVersion)
	assert.Equal(t, "1.2.3", c.ComposerVersion)
	assert.Equal(t, int32(0), env.downloads.Load(), "no download on continue")

	asked := env.prompter.Asked()
	require.Len(t, asked, 1)
	assert.Contains(t, asked[0].Message, "1.2.3")
	assert.Contains(t, asked[0].Message, "2.x")
	assert.Len(t, asked[0].Choices, 3)
}

func TestInstallComposer_InstallRequiredVersion(t *testing.T) {
	env := newTestEnv(t, version.ResolutionInstall)
	env.cacheComposer(t)
	env.runner.On(env.composerLine(), processtest.Response{Stdout: "Composer version 1.2.3 2019-01-01"})

	c, _, err := runInstallComposer(t, env)
	require.NoError(t, err)

	assert.False(t, c.ContinueWithExistingComposerVersion)
	assert.Equal(t, int32(1), env.downloads.Load(), "forced download")
}

func TestInstallComposer_Abort(t *testing.T) {
	env := newTestEnv(t, version.ResolutionAbort)
	env.cacheComposer(t)
	env.runner.On(env.composerLine(), processtest.Response{Stdout: "Composer version 1.2.3 2019-01-01"})

	c, report, err := runInstallComposer(t, env)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
	assert.Equal(t, pipeline.StatusFailed, statusOf(t, report, TitleInstallComposer))
	assert.Empty(t, c.ComposerVersion)
	assert.Equal(t, int32(0), env.downloads.Load())
}

func TestInstallComposer_UnreadableVersion(t *testing.T) {
	env := newTestEnv(t)
	env.cacheComposer(t)
	env.runner.On(env.composerLine(), processtest.Response{Stdout: "garbage"})

	_, _, err := runInstallComposer(t, env)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBinaryAcquisition)
	assert.Contains(t, domain.RemediationFor(err), "delete it")
}

func TestInstallComposer_RunsStructuredCommand(t *testing.T) {
	env := newTestEnv(t)
	env.cacheComposer(t)

	_, _, err := runInstallComposer(t, env)
	require.NoError(t, err)

	calls := env.runner.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, "php", calls[0].Name)
	assert.Equal(t, []string{env.fetcher.Path("latest-2.x"), "--version", "--no-ansi"}, calls[0].Args)
}
