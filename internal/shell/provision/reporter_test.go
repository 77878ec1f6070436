package provision

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/artpar/devstack/internal/core/domain"
	"github.com/artpar/devstack/internal/core/instance"
	"github.com/artpar/devstack/internal/core/pipeline"
)

// =============================================================================
// Reporter Tests
// =============================================================================

func TestColorReporter_OnEvent(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		event   pipeline.Event
		want    string
	}{
		{
			name:  "started",
			event: pipeline.Event{Kind: pipeline.EventStarted, Title: TitlePull},
			want:  "❯ Pulling images\n",
		},
		{
			name:  "completed nested",
			event: pipeline.Event{Kind: pipeline.EventCompleted, Depth: 1, Title: TitlePull, Duration: 1500 * time.Millisecond},
			want:  "  ✔ Pulling images (1.5s)\n",
		},
		{
			name:  "skipped",
			event: pipeline.Event{Kind: pipeline.EventSkipped, Title: TitlePull, Message: "all images present"},
			want:  "↓ Pulling images [all images present]\n",
		},
		{
			name:  "failed",
			event: pipeline.Event{Kind: pipeline.EventFailed, Title: TitlePull, Err: errors.New("registry unreachable")},
			want:  "✖ Pulling images: registry unreachable\n",
		},
		{
			name:  "output hidden",
			event: pipeline.Event{Kind: pipeline.EventOutput, Title: TitlePull, Message: "redis:7.0"},
			want:  "",
		},
		{
			name:    "output verbose",
			verbose: true,
			event:   pipeline.Event{Kind: pipeline.EventOutput, Title: TitlePull, Message: "redis:7.0"},
			want:    "  › redis:7.0\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := NewColorReporter(&buf, tt.verbose).WithoutColor()
			r.OnEvent(tt.event)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "(250ms)", formatDuration(250*time.Millisecond))
	assert.Equal(t, "(2.0s)", formatDuration(2*time.Second))
}

// =============================================================================
// Summary Tests
// =============================================================================

func TestRenderSummary(t *testing.T) {
	out := RenderSummary(instance.Metadata{
		Frontend: []instance.Location{
			{Title: instance.TitleLocalLocation, Text: "http://localhost:8080/"},
		},
		Admin: []instance.Location{
			{Title: instance.TitleLocalLocation, Text: "http://localhost:8080/admin"},
		},
	})

	assert.Contains(t, out, "Frontend")
	assert.Contains(t, out, "Admin")
	assert.Contains(t, out, "http://localhost:8080/")
	assert.Contains(t, out, "http://localhost:8080/admin")
}

func TestRenderStatus(t *testing.T) {
	out := RenderStatus([]domain.ServiceStatus{
		{
			Service: domain.ServiceRedis,
			Name:    "shop_redis",
			Image:   "redis:7.0",
			Status:  domain.ContainerRunning,
			Ports:   []domain.PortBinding{{HostPort: 6379, ContainerPort: 6379}},
		},
		{
			Service: domain.ServiceMaildev,
			Name:    "shop_maildev",
			Image:   "maildev/maildev:2.0.5",
			Status:  domain.ContainerStopped,
		},
	})

	assert.Contains(t, out, "shop_redis")
	assert.Contains(t, out, "shop_maildev")
	assert.Contains(t, out, "6379->6379")
	assert.True(t, strings.HasSuffix(out, "degraded"), out)
}

func TestStatusCell(t *testing.T) {
	tests := []struct {
		name string
		row  domain.ServiceStatus
		want string
	}{
		{name: "plain", row: domain.ServiceStatus{Status: domain.ContainerRunning}, want: "running"},
		{name: "health", row: domain.ServiceStatus{Status: domain.ContainerRunning, Health: domain.HealthHealthy}, want: "running (healthy)"},
		{name: "drift", row: domain.ServiceStatus{Status: domain.ContainerRunning, Drift: true}, want: "running, outdated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusCell(tt.row))
		})
	}
}
