// Package exec runs a shell command per block. The block geometry is passed
// through BLOCK_* environment variables and every task argument as ARG_<NAME>.
package exec

import (
	"context"
	"errors"
	"fmt"
	"os"
	osexec "os/exec"
	"strconv"
	"strings"

	"github.com/specialistvlad/blockgrid/internal/ctxlog"
	"github.com/specialistvlad/blockgrid/internal/protocol"
	"github.com/specialistvlad/blockgrid/internal/registry"
	"github.com/specialistvlad/blockgrid/internal/task"
)

const (
	// CommandArg is the argument holding the command to run.
	CommandArg = "command"
	// CheckArg is the argument holding the completion check command. Exit
	// status 0 means the block is already done.
	CheckArg = "check_command"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Env returns the environment a block command runs with.
func Env(block *protocol.BlockDescriptor) []string {
	env := []string{
		"BLOCK_TASK=" + block.TaskID,
		"BLOCK_COORD=" + joinInts(block.Coord),
		"BLOCK_READ_OFFSET=" + joinInts(block.ReadOffset),
		"BLOCK_READ_SHAPE=" + joinInts(block.ReadShape),
		"BLOCK_WRITE_OFFSET=" + joinInts(block.WriteOffset),
		"BLOCK_WRITE_SHAPE=" + joinInts(block.WriteShape),
		"BLOCK_ATTEMPT=" + strconv.Itoa(block.Attempt),
	}
	for k, v := range block.Arguments {
		env = append(env, "ARG_"+strings.ToUpper(k)+"="+v)
	}
	return env
}

func joinInts(vs []int64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, ",")
}

func command(ctx context.Context, block *protocol.BlockDescriptor, script string) *osexec.Cmd {
	cmd := osexec.CommandContext(ctx, "sh", "-c", script)
	cmd.Env = append(os.Environ(), Env(block)...)
	return cmd
}

// ProcessBlock runs the block's command.
func ProcessBlock(ctx context.Context, block *protocol.BlockDescriptor) error {
	script := block.Arguments[CommandArg]
	if script == "" {
		return fmt.Errorf("exec: argument %q is required", CommandArg)
	}
	logger := ctxlog.FromContext(ctx).With("block", block.Key().String())
	logger.Debug("Running block command", "command", script)

	out, err := command(ctx, block, script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("exec: command failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	if len(out) > 0 {
		logger.Debug("Block command output", "output", strings.TrimSpace(string(out)))
	}
	return nil
}

// CheckBlock runs the block's check command. A non-zero exit status means the
// block still has to be computed.
func CheckBlock(ctx context.Context, block *protocol.BlockDescriptor) (bool, error) {
	script := block.Arguments[CheckArg]
	if script == "" {
		return false, nil
	}
	err := command(ctx, block, script).Run()
	var exitErr *osexec.ExitError
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &exitErr):
		return false, nil
	}
	return false, fmt.Errorf("exec: check command: %w", err)
}

// Register registers the processor and checker with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterProcessor("exec", task.ProcessorFunc(ProcessBlock))
	r.RegisterChecker("exec", task.CheckerFunc(CheckBlock))
}
