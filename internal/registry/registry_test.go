package registry

import (
	"context"
	"testing"

	"github.com/specialistvlad/blockgrid/internal/protocol"
	"github.com/specialistvlad/blockgrid/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopModule struct{ name string }

func (m noopModule) Register(r *Registry) {
	r.RegisterProcessor(m.name, task.ProcessorFunc(func(context.Context, *protocol.BlockDescriptor) error { return nil }))
}

func TestRegistryResolvesModules(t *testing.T) {
	r := New(noopModule{"b"}, noopModule{"a"})
	r.RegisterChecker("always", task.CheckerFunc(func(context.Context, *protocol.BlockDescriptor) (bool, error) { return true, nil }))

	assert.Equal(t, []string{"a", "b"}, r.Names())
	_, ok := r.Processor("a")
	assert.True(t, ok)
	_, ok = r.Processor("missing")
	assert.False(t, ok)
	_, ok = r.Checker("always")
	assert.True(t, ok)
}

func TestRegistryPanicsOnDuplicate(t *testing.T) {
	r := New(noopModule{"a"})
	assert.Panics(t, func() { noopModule{"a"}.Register(r) })
}

func TestValidate(t *testing.T) {
	r := New(noopModule{"print"})
	testCases := []struct {
		name    string
		tasks   []*task.Task
		wantErr bool
	}{
		{name: "known processors", tasks: []*task.Task{{ID: "a", Processor: "print"}}},
		{name: "no tasks"},
		{
			name:    "unknown processor",
			tasks:   []*task.Task{{ID: "a", Processor: "print"}, {ID: "b", Processor: "render"}},
			wantErr: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := r.Validate(context.Background(), tc.tasks)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrUnknownProcessor)
				assert.Contains(t, err.Error(), `"render"`)
				return
			}
			require.NoError(t, err)
		})
	}
}
