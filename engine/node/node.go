// Package node implements Node, the per-host controller spec.md §4.7
// describes: connect/disconnect, file upload, remote command execution,
// log retrieval, and the pidfile-based kill/kill_composition signals.
// Grounded on original_source/penchy/node.py's Node class.
package node

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"penchy/engine/composition"
	"penchy/engine/core"
	"penchy/pkg/logger"
)

const (
	pidfileName = "penchy.pid"
	// logFiles are the client log files get_logs fetches and relays into
	// the server's own logging, named exactly as
	// original_source/penchy/node.py::Node._LOGFILES.
	bootstrapLog = "penchy_bootstrap.log"
	clientLog    = "penchy.log"
)

var logFiles = []string{bootstrapLog, clientLog}

// Node wraps one remote execution host: the compositions scheduled onto
// it (expected), the shell used to reach it, and whether it has been
// closed (spec.md §4.7).
type Node struct {
	mu sync.Mutex

	identifier string
	setting    *composition.NodeSetting
	shell      RemoteShell

	expected map[string]bool
	closed   bool
}

// New builds a Node for identifier (the NodeSetting's Host, per spec.md
// §4.8's "one Node per distinct node identifier"), scheduled to receive
// the given composition hashes.
func New(identifier string, setting *composition.NodeSetting, shell RemoteShell, expected []string) *Node {
	n := &Node{
		identifier: identifier,
		setting:    setting,
		shell:      shell,
		expected:   make(map[string]bool, len(expected)),
	}
	for _, h := range expected {
		n.expected[h] = true
	}
	return n
}

func (n *Node) Identifier() string { return n.identifier }

func (n *Node) Setting() *composition.NodeSetting { return n.setting }

func (n *Node) Closed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

// Received removes hash from the set of compositions this node still owes
// a result for.
func (n *Node) Received(hash string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.expected, hash)
}

// ReceivedAllResults reports whether every composition scheduled on this
// node has reported back.
func (n *Node) ReceivedAllResults() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.expected) == 0
}

// connectionRequired ensures a connection is present for the duration of
// action: it reuses an already-open connection, or opens and tears down a
// transient one otherwise (spec.md §4.7). Authentication failure clears
// expected and marks the node closed, mirroring
// original_source/penchy/node.py::Node.connection_required's
// AuthenticationException handling.
func (n *Node) connectionRequired(ctx context.Context, action func(ctx context.Context) error) error {
	if n.shell.Connected() {
		return action(ctx)
	}
	if err := withResilience(ctx, n.shell.Connect); err != nil {
		n.mu.Lock()
		n.expected = make(map[string]bool)
		n.closed = true
		n.mu.Unlock()
		var coreErr *core.Error
		if errors.As(err, &coreErr) {
			return coreErr
		}
		return core.NewUnauthenticatedError(n.identifier, err)
	}
	defer func() { _ = n.shell.Disconnect() }()
	return action(ctx)
}

// Connect opens the node's connection explicitly, e.g. for the deployment
// worker's single connect/upload/launch/disconnect sequence (spec.md
// §4.8's Launch).
func (n *Node) Connect(ctx context.Context) error {
	return withResilience(ctx, n.shell.Connect)
}

// Disconnect closes the node's connection explicitly.
func (n *Node) Disconnect() error {
	return n.shell.Disconnect()
}

// Put uploads local to remote on this node (spec.md §4.7).
func (n *Node) Put(ctx context.Context, local, remote string) error {
	return n.connectionRequired(ctx, func(ctx context.Context) error {
		return n.shell.Put(ctx, local, remote)
	})
}

// Exec runs cmd on this node and returns its captured stdout/stderr
// (spec.md §4.7).
func (n *Node) Exec(ctx context.Context, cmd string) (stdout, stderr string, err error) {
	err = n.connectionRequired(ctx, func(ctx context.Context) error {
		var execErr error
		stdout, stderr, execErr = n.shell.Exec(ctx, cmd)
		return execErr
	})
	return stdout, stderr, err
}

// GetLogs fetches the client's known log files and relays them into the
// server's log (spec.md §4.7), grounded on
// original_source/penchy/node.py::Node.get_logs.
func (n *Node) GetLogs(ctx context.Context) error {
	log := logger.FromContext(ctx)
	return n.connectionRequired(ctx, func(ctx context.Context) error {
		var contents []string
		for _, name := range logFiles {
			data, err := n.shell.ReadFile(ctx, name)
			if err != nil {
				log.Error("could not fetch client logfile", "node", n.identifier, "file", name, "error", err)
				continue
			}
			contents = append(contents, string(data))
		}
		log.Info(fmt.Sprintf("---- start log for %s ----\n%s\n---- end log for %s ----",
			n.identifier, strings.Join(contents, "\n"), n.identifier))
		return nil
	})
}

// Kill terminates every PenchY process on this node descended from the
// pidfile's pid (spec.md §4.7's "sends TERM to the process group"),
// grounded on original_source/penchy/node.py::Node.kill's
// `pkill -TERM -P <pid>`.
func (n *Node) Kill(ctx context.Context) error {
	return n.signalPidfile(ctx, "pkill -TERM -P")
}

// KillComposition stops only the currently running composition by
// sending HUP to the pidfile's pid, leaving other compositions on this
// node running (spec.md §4.7, §5).
func (n *Node) KillComposition(ctx context.Context) error {
	return n.signalPidfile(ctx, "kill -HUP")
}

func (n *Node) signalPidfile(ctx context.Context, signalCmd string) error {
	return n.connectionRequired(ctx, func(ctx context.Context) error {
		pid, err := n.shell.ReadFile(ctx, pidfileName)
		if err != nil {
			return fmt.Errorf("read pidfile on %s: %w", n.identifier, err)
		}
		_, stderr, err := n.shell.Exec(ctx, fmt.Sprintf("%s %s", signalCmd, strings.TrimSpace(string(pid))))
		if err != nil {
			return fmt.Errorf("signal pidfile on %s failed: %w (%s)", n.identifier, err, stderr)
		}
		return nil
	})
}

// Close tears the node down: if results are still outstanding it kills
// the client first, then always fetches logs, then marks itself closed.
// Idempotent (spec.md §4.7).
func (n *Node) Close(ctx context.Context) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.mu.Unlock()

	var firstErr error
	if !n.ReceivedAllResults() {
		if err := n.Kill(ctx); err != nil {
			firstErr = err
		}
		n.mu.Lock()
		n.expected = make(map[string]bool)
		n.mu.Unlock()
	}
	if err := n.GetLogs(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	return firstErr
}
