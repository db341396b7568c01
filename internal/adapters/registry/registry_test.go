package registry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/aspectjobs/internal/adapters/registry"
	"github.com/ZanzyTHEbar/aspectjobs/internal/domain"
)

func builtins(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	require.NoError(t, registry.RegisterBuiltins(r))
	return r
}

func TestRegistry_Kinds(t *testing.T) {
	r := builtins(t)
	assert.Equal(t, []string{"fail", "noop", "sleep", "spin"}, r.Kinds())
}

func TestRegistry_RegisterErrors(t *testing.T) {
	r := builtins(t)
	err := r.Register(registry.KindNoop, func(registry.Spec) (domain.Job, error) { return nil, nil })
	assert.ErrorIs(t, err, registry.ErrDuplicateKind)
	assert.Error(t, r.Register("", func(registry.Spec) (domain.Job, error) { return nil, nil }))
	assert.Error(t, r.Register("x", nil))
	assert.Error(t, registry.RegisterBuiltins(r), "registering builtins twice collides")
}

func TestRegistry_BuildUnknownKind(t *testing.T) {
	_, err := builtins(t).Build("teleport", registry.Spec{ID: "A"})
	assert.ErrorIs(t, err, registry.ErrUnknownKind)
}

func TestRegistry_BuildKeepsIdentity(t *testing.T) {
	j, err := builtins(t).Build(registry.KindNoop, registry.Spec{ID: "A", Deps: []domain.JobID{"X", "Y"}})
	require.NoError(t, err)
	assert.Equal(t, domain.JobID("A"), j.ID())
	assert.Equal(t, []domain.JobID{"X", "Y"}, j.Dependencies())
	assert.NoError(t, j.Run(context.Background()))
}

func TestBuiltins(t *testing.T) {
	r := builtins(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		kind    string
		params  map[string]any
		wantErr string
		panics  bool
	}{
		{name: "sleep", kind: registry.KindSleep, params: map[string]any{"duration": "1ms"}},
		{name: "spin", kind: registry.KindSpin, params: map[string]any{"iterations": float64(100)}},
		{name: "spin default", kind: registry.KindSpin},
		{name: "fail default", kind: registry.KindFail, wantErr: "job failed"},
		{name: "fail message", kind: registry.KindFail, params: map[string]any{"message": "nope"}, wantErr: "nope"},
		{name: "fail panic", kind: registry.KindFail, params: map[string]any{"panic": true}, panics: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, err := r.Build(tt.kind, registry.Spec{ID: "j", Params: tt.params})
			require.NoError(t, err)
			if tt.panics {
				assert.Panics(t, func() { _ = j.Run(ctx) })
				return
			}
			err = j.Run(ctx)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBuiltins_SleepHonorsContext(t *testing.T) {
	j, err := builtins(t).Build(registry.KindSleep, registry.Spec{ID: "s", Params: map[string]any{"duration": "1h"}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, j.Run(ctx), context.DeadlineExceeded)
}

func TestBuiltins_BadParams(t *testing.T) {
	r := builtins(t)
	bad := []struct {
		kind   string
		params map[string]any
	}{
		{registry.KindSleep, map[string]any{"duration": 5}},
		{registry.KindSleep, map[string]any{"duration": "soon"}},
		{registry.KindSleep, map[string]any{"duration": "-1s"}},
		{registry.KindSpin, map[string]any{"iterations": 1.5}},
		{registry.KindSpin, map[string]any{"iterations": "many"}},
		{registry.KindFail, map[string]any{"message": 3}},
		{registry.KindFail, map[string]any{"panic": "yes"}},
	}
	for _, b := range bad {
		_, err := r.Build(b.kind, registry.Spec{ID: "x", Params: b.params})
		assert.Error(t, err, "%s %v", b.kind, b.params)
	}
}
