package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/testutil"
)

type recorder struct {
	events []string
}

func (r *recorder) dep(name string, requires ...string) *Dependency {
	return &Dependency{
		Name:     name,
		Requires: requires,
		StartFunc: func(context.Context) error {
			r.events = append(r.events, "start "+name)
			return nil
		},
		StopFunc: func(context.Context) error {
			r.events = append(r.events, "stop "+name)
			return nil
		},
	}
}

func TestStartup_DependencyOrder(t *testing.T) {
	ctx := context.Background()
	r := &recorder{}

	s := NewStartup(testutil.Logger(), 1)
	s.AddDependency(r.dep("server", "database", "redis"))
	s.AddDependency(r.dep("migrations", "database"))
	s.AddDependency(r.dep("database"))
	s.AddDependency(r.dep("redis"))

	require.NoError(t, s.Start(ctx))
	assert.Equal(t, []string{"start database", "start redis", "start server", "start migrations"}, r.events)
	assert.Equal(t, StartupStatusStarted, s.Status("server"))

	r.events = nil
	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, []string{"stop migrations", "stop server", "stop redis", "stop database"}, r.events)
	assert.Equal(t, StartupStatusStopped, s.Status("database"))
}

func TestStartup_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	s := NewStartup(testutil.Logger(), 3).WithBackoffUnit(time.Millisecond)
	s.AddDependency(&Dependency{
		Name: "database",
		StartFunc: func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 3, calls)
}

func TestStartup_GivesUp(t *testing.T) {
	s := NewStartup(testutil.Logger(), 2).WithBackoffUnit(time.Millisecond)
	s.AddDependency(&Dependency{
		Name:      "database",
		StartFunc: func(context.Context) error { return errors.New("connection refused") },
	})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, StartupStatusFailed, s.Status("database"))
}

func TestStartup_UnknownAndCyclicDependencies(t *testing.T) {
	s := NewStartup(testutil.Logger(), 1)
	s.AddDependency(&Dependency{Name: "server", Requires: []string{"database"}})
	assert.ErrorContains(t, s.Start(context.Background()), "unknown dependency 'database'")

	s = NewStartup(testutil.Logger(), 1)
	s.AddDependency(&Dependency{Name: "a", Requires: []string{"b"}})
	s.AddDependency(&Dependency{Name: "b", Requires: []string{"a"}})
	assert.ErrorContains(t, s.Start(context.Background()), "cycle")
}

func TestStartup_CanceledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewStartup(testutil.Logger(), 5).WithBackoffUnit(time.Hour)
	s.AddDependency(&Dependency{
		Name: "database",
		StartFunc: func(context.Context) error {
			cancel()
			return errors.New("connection refused")
		},
	})

	assert.ErrorIs(t, s.Start(ctx), context.Canceled)
}
