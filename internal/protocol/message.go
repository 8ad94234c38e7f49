package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/specialistvlad/blockgrid/internal/region"
)

// Kind identifies a protocol message.
type Kind string

const (
	Register    Kind = "REGISTER"
	RequestNext Kind = "REQUEST_NEXT"
	Assign      Kind = "ASSIGN"
	BlockDone   Kind = "BLOCK_DONE"
	Heartbeat   Kind = "HEARTBEAT"
	Release     Kind = "RELEASE"
	Shutdown    Kind = "SHUTDOWN"
)

// Outcome is the result a worker reports for a block.
type Outcome string

const (
	Success Outcome = "success"
	Failure Outcome = "failure"
)

// ErrInvalidMessage is returned when a decoded message is malformed.
var ErrInvalidMessage = errors.New("invalid protocol message")

// BlockKey identifies a block by its task and grid coordinate.
type BlockKey struct {
	TaskID string `json:"task_id"`
	Coord  string `json:"coord"`
}

// NewBlockKey builds the key of the block at coord in the given task.
func NewBlockKey(taskID string, coord region.Coord) BlockKey {
	return BlockKey{TaskID: taskID, Coord: coord.String()}
}

func (k BlockKey) String() string {
	return fmt.Sprintf("%s[%s]", k.TaskID, k.Coord)
}

// BlockDescriptor carries everything a worker needs to process one block.
type BlockDescriptor struct {
	TaskID      string            `json:"task_id"`
	Coord       []int64           `json:"coord"`
	ReadOffset  []int64           `json:"read_offset"`
	ReadShape   []int64           `json:"read_shape"`
	WriteOffset []int64           `json:"write_offset"`
	WriteShape  []int64           `json:"write_shape"`
	Processor   string            `json:"processor"`
	Arguments   map[string]string `json:"arguments,omitempty"`
	Attempt     int               `json:"attempt"`
}

// Key returns the key of the described block.
func (d *BlockDescriptor) Key() BlockKey {
	return NewBlockKey(d.TaskID, d.Coord)
}

// ReadRegion returns the region the block may read.
func (d *BlockDescriptor) ReadRegion() (region.Region, error) {
	return region.New(d.ReadOffset, d.ReadShape)
}

// WriteRegion returns the region the block writes.
func (d *BlockDescriptor) WriteRegion() (region.Region, error) {
	return region.New(d.WriteOffset, d.WriteShape)
}

// Message is a single protocol frame. Which fields are populated depends on Kind.
type Message struct {
	Kind     Kind             `json:"kind"`
	WorkerID string           `json:"worker_id,omitempty"`
	Tasks    []string         `json:"tasks,omitempty"`
	Block    *BlockDescriptor `json:"block,omitempty"`
	Key      *BlockKey        `json:"key,omitempty"`
	Outcome  Outcome          `json:"outcome,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// NewRegister announces a worker. An empty task list accepts blocks of any task.
func NewRegister(workerID string, tasks []string) Message {
	return Message{Kind: Register, WorkerID: workerID, Tasks: tasks}
}

func NewRequestNext() Message { return Message{Kind: RequestNext} }

func NewAssign(d *BlockDescriptor) Message { return Message{Kind: Assign, Block: d} }

// NewBlockDone reports the outcome of a block. A nil err means success.
func NewBlockDone(key BlockKey, err error) Message {
	msg := Message{Kind: BlockDone, Key: &key, Outcome: Success}
	if err != nil {
		msg.Outcome = Failure
		msg.Error = err.Error()
	}
	return msg
}

// NewHeartbeat signals liveness. key is nil while the worker is idle.
func NewHeartbeat(key *BlockKey) Message { return Message{Kind: Heartbeat, Key: key} }

func NewRelease() Message { return Message{Kind: Release} }

func NewShutdown() Message { return Message{Kind: Shutdown} }

// Validate checks that the fields required by the message kind are present.
func (m Message) Validate() error {
	switch m.Kind {
	case Register, RequestNext, Release, Shutdown, Heartbeat:
		return nil
	case Assign:
		if m.Block == nil {
			return fmt.Errorf("%w: %s without block", ErrInvalidMessage, m.Kind)
		}
		if len(m.Block.Coord) == 0 || m.Block.TaskID == "" {
			return fmt.Errorf("%w: %s block has no task id or coordinate", ErrInvalidMessage, m.Kind)
		}
		return nil
	case BlockDone:
		if m.Key == nil {
			return fmt.Errorf("%w: %s without key", ErrInvalidMessage, m.Kind)
		}
		if m.Outcome != Success && m.Outcome != Failure {
			return fmt.Errorf("%w: unknown outcome %q", ErrInvalidMessage, m.Outcome)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, m.Kind)
	}
}

// Encode serialises a message for the wire.
func Encode(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// Decode parses and validates a wire message.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}
