package exec

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/blockgrid/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func block(args map[string]string) *protocol.BlockDescriptor {
	return &protocol.BlockDescriptor{
		TaskID:      "tiles",
		Coord:       []int64{1, 2},
		ReadOffset:  []int64{9, 19},
		ReadShape:   []int64{12, 12},
		WriteOffset: []int64{10, 20},
		WriteShape:  []int64{10, 10},
		Processor:   "exec",
		Arguments:   args,
		Attempt:     1,
	}
}

func TestEnv(t *testing.T) {
	env := Env(block(map[string]string{"scale": "2"}))
	assert.Contains(t, env, "BLOCK_TASK=tiles")
	assert.Contains(t, env, "BLOCK_COORD=1,2")
	assert.Contains(t, env, "BLOCK_READ_OFFSET=9,19")
	assert.Contains(t, env, "BLOCK_WRITE_SHAPE=10,10")
	assert.Contains(t, env, "BLOCK_ATTEMPT=1")
	assert.Contains(t, env, "ARG_SCALE=2")
}

func TestProcessBlock(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.txt")
	testCases := []struct {
		name    string
		args    map[string]string
		wantErr string
	}{
		{name: "writes with block env", args: map[string]string{CommandArg: `echo "$BLOCK_COORD" > ` + out}},
		{name: "missing command", args: map[string]string{}, wantErr: `argument "command" is required`},
		{name: "failing command", args: map[string]string{CommandArg: "echo boom >&2; exit 3"}, wantErr: "boom"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ProcessBlock(context.Background(), block(tc.args))
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			data, err := os.ReadFile(out)
			require.NoError(t, err)
			assert.Equal(t, "1,2\n", string(data))
		})
	}
}

func TestCheckBlock(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tiles_1,2"), nil, 0o644))
	check := `test -f ` + dir + `/"${BLOCK_TASK}_${BLOCK_COORD}"`

	done, err := CheckBlock(context.Background(), block(map[string]string{CheckArg: check}))
	require.NoError(t, err)
	assert.True(t, done)

	other := block(map[string]string{CheckArg: check})
	other.Coord = []int64{0, 0}
	done, err = CheckBlock(context.Background(), other)
	require.NoError(t, err)
	assert.False(t, done)

	done, err = CheckBlock(context.Background(), block(nil))
	require.NoError(t, err)
	assert.False(t, done)
}
