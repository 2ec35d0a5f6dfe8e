// Package requestactor implements the per-request state machine that owns
// one Cargo invocation end to end: it spawns the subprocess, translates
// every message it produces into BSP task/progress/diagnostic
// notifications with correct parent-child task identity, drives the
// unit-graph -> compile -> execute -> finish phase sequence, and supports
// cooperative cancellation.
package requestactor

import (
	"github.com/google/uuid"

	"github.com/cargo-bsp/cargo-bsp-go/internal/bsp"
)

// Kind selects which request shape this actor is driving; it determines
// which phases after Compile run and how the task-id tree branches.
type Kind int

const (
	KindCompile Kind = iota
	KindRun
	KindTest
)

// newRootTaskId uses originId as the root task's id when the client
// supplied one, so the client's own correlation token becomes the root of
// the task tree; otherwise it mints a fresh one.
func newRootTaskId(originId string) bsp.TaskId {
	id := originId
	if id == "" {
		id = uuid.New().String()
	}
	return bsp.TaskId{Id: id}
}

// newChildTaskId mints a fresh id whose parents chain is parent's own
// parents plus parent itself, so every descendant carries its full
// ancestor chain rather than only its immediate parent.
func newChildTaskId(parent bsp.TaskId) bsp.TaskId {
	parents := make([]string, 0, len(parent.Parents)+1)
	parents = append(parents, parent.Parents...)
	parents = append(parents, parent.Id)
	return bsp.TaskId{Id: uuid.New().String(), Parents: parents}
}

// TestSuiteProgress tracks a running test suite's progress counter.
type TestSuiteProgress struct {
	Progress int64
	Total    int64
}

// State is the task-id tree and bookkeeping counters for one request:
// unit-graph, compile and execute are children of the root, per-target
// compile subtasks are children of compile, the suite is a child of
// execute, and each test is a child of the suite.
type State struct {
	Kind Kind

	RootTaskId      bsp.TaskId
	UnitGraphTaskId bsp.TaskId
	CompileTaskId   bsp.TaskId

	CompileErrors   int
	CompileWarnings int

	// ExecutionTaskId is valid for KindRun and KindTest.
	ExecutionTaskId bsp.TaskId

	// Test-only fields.
	SuiteTaskId       bsp.TaskId
	SuiteProgress     TestSuiteProgress
	SingleTestTaskIds map[string]bsp.TaskId
}

// NewState builds the task-id tree for a fresh request of the given kind.
func NewState(kind Kind, originId string) *State {
	root := newRootTaskId(originId)
	s := &State{
		Kind:            kind,
		RootTaskId:      root,
		UnitGraphTaskId: newChildTaskId(root),
		CompileTaskId:   newChildTaskId(root),
	}
	switch kind {
	case KindRun:
		s.ExecutionTaskId = newChildTaskId(root)
	case KindTest:
		exec := newChildTaskId(root)
		s.ExecutionTaskId = exec
		s.SuiteTaskId = newChildTaskId(exec)
		s.SingleTestTaskIds = make(map[string]bsp.TaskId)
	}
	return s
}

// CompileSubtaskId mints (and does not cache) a per-target compile
// subtask id, parented under the compile task.
func (s *State) CompileSubtaskId() bsp.TaskId {
	return newChildTaskId(s.CompileTaskId)
}

// TestTaskId mints a task id for a newly-started test, parented under the
// suite task, and records it under name for later lookup.
func (s *State) TestTaskId(name string) bsp.TaskId {
	id := newChildTaskId(s.SuiteTaskId)
	s.SingleTestTaskIds[name] = id
	return id
}
