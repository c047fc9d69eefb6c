// Package callable provides scripted work items for the thread pool.
//
// Hosts that embed a scripting layer hand the pool opaque callables
// rather than compiled-in functions. This package implements them with
// the otto pure-Go JavaScript interpreter, requiring no external process:
// a Script is compiled once from source plus an entry-function name, and
// every pool invocation calls that function inside the VM.
//
// Architecture:
//   - Script wraps an otto.Otto VM. Each Script is protected by a
//     sync.Mutex so a single VM may be shared across goroutines; fan-out
//     tasks of the same group serialise on it. For maximum throughput,
//     compile one Script per group.
//   - Func adapts a plain Go function to the same call surface, for hosts
//     and tests that need an opaque work item without a VM.
//
// Single pool tasks invoke a callable with no arguments; group tasks
// invoke it with one int argument, the claimed work index.
package callable

import (
	"fmt"
	"sync"

	"github.com/robertkrimen/otto"
)

// Script is a JavaScript work item backed by an otto VM.
// It is safe for concurrent use: a mutex serialises access to the VM.
type Script struct {
	vm    *otto.Otto
	entry otto.Value
	name  string
	mu    sync.Mutex
}

// Compile creates a Script from src, resolving entry to a function in the
// script's global scope. It fails if src does not parse, if running it
// throws, or if entry does not name a function.
//
// The source typically defines the entry function and any state it needs:
//
//	var hits = 0;
//	function process(index) { hits++; return index * 2; }
func Compile(src, entry string) (*Script, error) {
	vm := otto.New()
	if _, err := vm.Run(src); err != nil {
		return nil, fmt.Errorf("callable: compile: %w", err)
	}

	fn, err := vm.Get(entry)
	if err != nil {
		return nil, fmt.Errorf("callable: resolve entry %q: %w", entry, err)
	}
	if !fn.IsFunction() {
		return nil, fmt.Errorf("callable: entry %q is not a function", entry)
	}
	return &Script{vm: vm, entry: fn, name: entry}, nil
}

// Call invokes the entry function with args and returns the exported
// result. Runtime errors thrown by the script surface as wrapped Go
// errors; the pool records them and treats the work item as completed.
//
// The method acquires the VM mutex for the duration of the call, so
// concurrent invocations serialise on the same Script.
func (s *Script) Call(args ...any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ottoArgs := make([]interface{}, len(args))
	for i, a := range args {
		v, err := s.vm.ToValue(a)
		if err != nil {
			return nil, fmt.Errorf("callable: %s: convert argument %d: %w", s.name, i, err)
		}
		ottoArgs[i] = v
	}

	val, err := s.entry.Call(otto.UndefinedValue(), ottoArgs...)
	if err != nil {
		return nil, fmt.Errorf("callable: %s: %w", s.name, err)
	}
	out, err := val.Export()
	if err != nil {
		return nil, fmt.Errorf("callable: %s: export result: %w", s.name, err)
	}
	return out, nil
}

// Eval runs an arbitrary snippet in the Script's VM and returns the
// string form of the final expression. Hosts use it to inspect script
// state after a group has finished (e.g. an accumulator variable).
func (s *Script) Eval(snippet string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	val, err := s.vm.Run(snippet)
	if err != nil {
		return "", fmt.Errorf("callable: %s: eval: %w", s.name, err)
	}
	out, err := val.ToString()
	if err != nil {
		return "", fmt.Errorf("callable: %s: convert result to string: %w", s.name, err)
	}
	return out, nil
}

// Func adapts a Go function to the pool's callable surface.
type Func func(args ...any) (any, error)

// Call invokes the wrapped function.
func (f Func) Call(args ...any) (any, error) {
	return f(args...)
}
