package gantry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorkflowBuilder(t *testing.T) {
	def := New("deploy").
		WithID("deploy-7").
		WithInitialData(map[string]any{"env": "prod"}).
		Step("build", "shell", WithConfig(map[string]any{"cmd": "make"})).
		Step("test", "shell", DependsOn("build")).
		Step("release", "shell",
			DependsOn("test"),
			WithRetry(Retry(3).WithExponentialBackoff(100*time.Millisecond, 2*time.Second)),
		).
		Definition()

	require.Equal(t, "deploy-7", def.ID)
	require.Equal(t, "deploy", def.Name)
	require.Equal(t, "prod", def.InitialData["env"])
	require.Len(t, def.Steps, 3)

	require.Equal(t, "build", def.Steps[0].ID)
	require.Equal(t, "make", def.Steps[0].Config["cmd"])
	require.Empty(t, def.Steps[0].DependsOn)

	require.Equal(t, []string{"build"}, def.Steps[1].DependsOn)

	release := def.Steps[2]
	require.Equal(t, []string{"test"}, release.DependsOn)
	require.NotNil(t, release.Retry)
	require.Equal(t, 3, release.Retry.MaxAttempts)
	require.Equal(t, 100*time.Millisecond, release.Retry.Base)
	require.Equal(t, 2*time.Second, release.Retry.Max)
}

func TestWorkflowBuilder_Panics(t *testing.T) {
	require.Panics(t, func() { New("x").Step("", "shell") })
	require.Panics(t, func() { New("x").Step("a", "") })
}

func TestWorkflowBuilder_Create(t *testing.T) {
	ctx := context.Background()

	reg := NewExecutorRegistry()
	registerCounting(t, reg)
	eng := NewInMemoryEngine(reg)

	wf, err := New("built").
		Step("a", "work").
		Create(ctx, eng)
	require.NoError(t, err)
	require.NotEmpty(t, wf.ID) // engine assigns an ID when none is set
	require.Equal(t, StatusCreated, wf.Status)
}

func TestRetryBuilder(t *testing.T) {
	p := Retry(0).Policy()
	require.Equal(t, 1, p.MaxAttempts)

	p = Retry(5).WithExponentialBackoff(50*time.Millisecond, time.Second).Policy()
	require.Equal(t, 5, p.MaxAttempts)
	require.True(t, p.ShouldRetry(4))
	require.False(t, p.ShouldRetry(5))
	require.Equal(t, 100*time.Millisecond, p.Backoff(1))
	require.Equal(t, 200*time.Millisecond, p.Backoff(2))
	require.Equal(t, time.Second, p.Backoff(10))
}
