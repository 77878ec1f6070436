package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/devstack/internal/core/pipeline"
	"github.com/artpar/devstack/internal/shell/provision"
)

// fakeProvisioner records the requests it receives.
type fakeProvisioner struct {
	calls []string
	last  provision.Request
	err   error
}

func (f *fakeProvisioner) result(name string, req provision.Request) (*provision.Result, error) {
	f.calls = append(f.calls, name)
	f.last = req
	return &provision.Result{Context: &provision.TaskContext{ProjectPath: req.ProjectPath}}, f.err
}

func (f *fakeProvisioner) Start(_ context.Context, req provision.Request) (*provision.Result, error) {
	return f.result("start", req)
}

func (f *fakeProvisioner) Stop(_ context.Context, req provision.Request) (*provision.Result, error) {
	return f.result("stop", req)
}

func (f *fakeProvisioner) Status(_ context.Context, req provision.Request) (*provision.Result, error) {
	return f.result("status", req)
}

func (f *fakeProvisioner) StopAll(context.Context) (pipeline.Report, error) {
	f.calls = append(f.calls, "stop-all")
	return pipeline.Report{}, f.err
}

func (f *fakeProvisioner) ExportCompose(_ context.Context, req provision.Request) ([]byte, error) {
	f.calls = append(f.calls, "export-compose")
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return []byte("name: shop\n"), nil
}

func newTestBus(f *fakeProvisioner) *Bus {
	bus := NewBus(f, nil)
	RegisterHandlers(bus)
	return bus
}

// =============================================================================
// Bus Tests
// =============================================================================

func TestRegisterHandlers_AllCommands(t *testing.T) {
	bus := newTestBus(&fakeProvisioner{})
	assert.Equal(t, []string{
		CommandExportCompose, CommandStart, CommandStatus, CommandStop, CommandStopAll,
	}, bus.Commands())
}

func TestDispatch_RoutesToProvisioner(t *testing.T) {
	tests := []struct {
		command string
	}{
		{CommandStart},
		{CommandStop},
		{CommandStatus},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			f := &fakeProvisioner{}
			out, err := newTestBus(f).Dispatch(context.Background(), tt.command, Request{ProjectPath: "/work/shop", Version: "2.4.3-p2"})
			require.NoError(t, err)

			assert.Equal(t, []string{tt.command}, f.calls)
			assert.Equal(t, provision.Request{ProjectPath: "/work/shop", Version: "2.4.3-p2"}, f.last)
			require.NotNil(t, out.Context)
			assert.Equal(t, "/work/shop", out.Context.ProjectPath)
		})
	}
}

func TestDispatch_FailureKeepsOutcome(t *testing.T) {
	boom := errors.New("boom")
	f := &fakeProvisioner{err: boom}

	out, err := newTestBus(f).Dispatch(context.Background(), CommandStart, Request{ProjectPath: "/work/shop"})
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, out)
	assert.NotNil(t, out.Context)
}

func TestDispatch_ExportCompose(t *testing.T) {
	f := &fakeProvisioner{}
	out, err := newTestBus(f).Dispatch(context.Background(), CommandExportCompose, Request{ProjectPath: "/work/shop"})
	require.NoError(t, err)
	assert.Equal(t, "name: shop\n", string(out.Compose))
}

func TestDispatch_StopAll(t *testing.T) {
	f := &fakeProvisioner{}
	_, err := newTestBus(f).Dispatch(context.Background(), CommandStopAll, Request{})
	require.NoError(t, err)
	assert.Equal(t, []string{"stop-all"}, f.calls)
}

func TestDispatch_UnknownCommand(t *testing.T) {
	_, err := newTestBus(&fakeProvisioner{}).Dispatch(context.Background(), "deploy", Request{})
	assert.ErrorIs(t, err, ErrUnknownCommand)
}
