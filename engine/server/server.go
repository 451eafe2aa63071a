// Package server implements the control node spec.md §4.8 describes: it
// deploys the job to every distinct node referenced by its compositions,
// exposes the four-method RPC surface the client bootstrap reports back
// to, waits for results (or node timeouts) under a single reception lock,
// and finally runs the job's server-side pipeline (spec.md §4.5).
// Grounded on original_source/penchy/server.py's Server class for the
// control flow, and on the teacher's engine/infra/server package
// (lifecycle.go's graceful-shutdown shape) for the Go idiom.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"penchy/engine/composition"
	"penchy/engine/core"
	"penchy/engine/job"
	"penchy/engine/node"
	"penchy/pkg/config"
	"penchy/pkg/logger"
)

// errKind extracts a core.Error's taxonomy kind from err, or "" if it
// isn't (or doesn't wrap) one. Mirrors engine/job's own errorKind helper.
func errKind(err error) string {
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		return coreErr.Kind()
	}
	return ""
}

// nodeHandle is the subset of *node.Node the server drives. Declaring it
// here (rather than depending on the concrete type everywhere) lets tests
// substitute a fake without spinning up real SSH connections.
type nodeHandle interface {
	Identifier() string
	Connect(ctx context.Context) error
	Disconnect() error
	Put(ctx context.Context, local, remote string) error
	Exec(ctx context.Context, cmd string) (stdout, stderr string, err error)
	Kill(ctx context.Context) error
	KillComposition(ctx context.Context) error
	Close(ctx context.Context) error
	Received(hash string)
	ReceivedAllResults() bool
}

// Deployment describes the artifacts the deployment worker uploads to
// every node before invoking the bootstrap (spec.md §4.8 Launch).
type Deployment struct {
	JobSourcePath    string // local path to the job source file
	BootstrapPath    string // local path to the client bootstrap binary
	ConfigPath       string // local path to config.py (or its Go equivalent)
	BuildDescriptor  string // local path to the build-tool bootstrap descriptor
	RemoteBinaryName string // filename the bootstrap binary is uploaded as
}

// Server orchestrates one Job run across every node its compositions
// reference.
type Server struct {
	ctx    context.Context
	cancel context.CancelFunc

	job        *job.Job
	deployment Deployment
	cfg        *config.ServerConfig
	metrics    *Metrics

	mu              sync.Mutex // the reception lock (spec.md §5)
	nodes           map[string]nodeHandle
	compositionNode map[string]string // composition hash -> node identifier
	results         map[string]any
	timedOutNodes   map[string]bool
	timers          map[string]*time.Timer // per-hash stop_timeout deadlines
	started         map[string]time.Time   // per-hash start_timeout arrival, for duration metrics

	router       *gin.Engine
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

// New builds a Server for j, wiring one nodeHandle per distinct
// composition.NodeSetting host (spec.md §4.8's "one Node per distinct
// node identifier").
func New(ctx context.Context, j *job.Job, deployment Deployment, cfg *config.ServerConfig) *Server {
	if cfg == nil {
		cfg = config.DefaultServerConfig()
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Server{
		ctx:             ctx,
		cancel:          cancel,
		job:             j,
		deployment:      deployment,
		cfg:             cfg,
		metrics:         NewMetrics(),
		nodes:           make(map[string]nodeHandle),
		compositionNode: make(map[string]string),
		results:         make(map[string]any),
		timedOutNodes:   make(map[string]bool),
		timers:          make(map[string]*time.Timer),
		started:         make(map[string]time.Time),
		shutdownChan:    make(chan struct{}, 1),
	}
	byHost := make(map[string]*composition.NodeSetting)
	expectedByHost := make(map[string][]string)
	for _, comp := range j.Compositions {
		ns := comp.NodeSetting
		byHost[ns.Host] = ns
		hash := comp.Hash()
		expectedByHost[ns.Host] = append(expectedByHost[ns.Host], hash)
		s.compositionNode[hash] = ns.Host
	}
	for host, ns := range byHost {
		shell := node.NewSSHShell(ns)
		s.nodes[host] = node.New(host, ns, shell, expectedByHost[host])
	}
	s.metrics.SetActiveNodes(len(s.nodes))
	s.buildRouter()
	return s
}

// rcvData records hash's result under the reception lock and marks it
// received on its owning node (spec.md §4.8's rcv_data). An unknown hash
// is a WRONG_INPUT error, matching original_source's ValueError.
func (s *Server) rcvData(hash string, result any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	host, ok := s.compositionNode[hash]
	if !ok {
		return core.NewWrongInputError("unknown composition hash", map[string]any{"hash": hash})
	}
	s.results[hash] = result
	s.nodes[host].Received(hash)
	s.metrics.IncResultsReceived()
	s.observeDurationLocked(hash)
	s.stopTimeoutLocked(hash)
	return nil
}

// nodeError performs rcv_data's bookkeeping without storing a result
// (spec.md §4.8's node_error).
func (s *Server) nodeError(hash string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	host, ok := s.compositionNode[hash]
	if !ok {
		return core.NewWrongInputError("unknown composition hash", map[string]any{"hash": hash})
	}
	log := logger.FromContext(s.ctx)
	log.Error("node reported composition error", "composition", hash, "node", host, "reason", reason)
	s.nodes[host].Received(hash)
	s.observeDurationLocked(hash)
	s.stopTimeoutLocked(hash)
	return nil
}

// startTimeout arms hash's deadline (spec.md §5's timeout hook pair):
// if stopTimeout doesn't fire first, kill_composition runs against hash's
// node only, leaving the node's other compositions running.
func (s *Server) startTimeout(hash string, deadline time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	host, ok := s.compositionNode[hash]
	if !ok {
		return core.NewWrongInputError("unknown composition hash", map[string]any{"hash": hash})
	}
	s.started[hash] = time.Now()
	if deadline <= 0 {
		return nil
	}
	s.timers[hash] = time.AfterFunc(deadline, func() { s.fireTimeout(hash, host) })
	return nil
}

// stopTimeout disarms hash's deadline (spec.md §5).
func (s *Server) stopTimeout(hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimeoutLocked(hash)
	return nil
}

func (s *Server) stopTimeoutLocked(hash string) {
	if t, ok := s.timers[hash]; ok {
		t.Stop()
		delete(s.timers, hash)
	}
}

// observeDurationLocked records how long hash took from start_timeout to
// its result (or error) arriving. Call with s.mu held.
func (s *Server) observeDurationLocked(hash string) {
	start, ok := s.started[hash]
	if !ok {
		return
	}
	s.metrics.ObserveCompositionDuration(time.Since(start))
	delete(s.started, hash)
}

func (s *Server) fireTimeout(hash, host string) {
	log := logger.FromContext(s.ctx)
	s.mu.Lock()
	delete(s.timers, hash)
	n := s.nodes[host]
	s.timedOutNodes[host] = true
	s.mu.Unlock()

	s.metrics.IncTimeouts()
	log.Error("composition exceeded its deadline, killing it", "composition", hash, "node", host)
	if err := n.KillComposition(s.ctx); err != nil {
		log.Error("kill_composition failed", "composition", hash, "node", host, "error", err)
	}
}

// receivedAllResults reports whether every node has received every
// result it was scheduled (spec.md §4.8's result-loop predicate).
func (s *Server) receivedAllResults() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.nodes {
		if !n.ReceivedAllResults() {
			return false
		}
	}
	return true
}

// allNodesTimedOut is spec.md §5's global termination condition: every
// node has timed out and none will ever report back.
func (s *Server) allNodesTimedOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.nodes) == 0 {
		return false
	}
	for host := range s.nodes {
		if !s.timedOutNodes[host] {
			return false
		}
	}
	return true
}

// NodeStatus is one node's progress snapshot, for the `penchy status` TUI
// and the /status RPC route to display without exposing Server's
// internals directly.
type NodeStatus struct {
	Host      string `json:"host"`
	Received  bool   `json:"received_all_results"`
	TimedOut  bool   `json:"timed_out"`
	ResultsIn int    `json:"results_in"`
}

// nodeStatuses snapshots every node's progress under the reception lock.
func (s *Server) nodeStatuses() []NodeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	resultsByHost := make(map[string]int, len(s.nodes))
	for hash, host := range s.compositionNode {
		if _, ok := s.results[hash]; ok {
			resultsByHost[host]++
		}
	}
	statuses := make([]NodeStatus, 0, len(s.nodes))
	for host, n := range s.nodes {
		statuses = append(statuses, NodeStatus{
			Host:      host,
			Received:  n.ReceivedAllResults(),
			TimedOut:  s.timedOutNodes[host],
			ResultsIn: resultsByHost[host],
		})
	}
	return statuses
}

// resultLoop polls at cfg.PollInterval until receivedAllResults or
// allNodesTimedOut, or ctx is cancelled (spec.md §4.8 Result loop).
func (s *Server) resultLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if s.receivedAllResults() {
			return nil
		}
		if s.allNodesTimedOut() {
			return core.NewAllNodesTimedOutError()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// snapshotResults returns the results map collected so far, keyed by
// composition hash — the receive callback RunServerPipeline's Receive
// start publishes (spec.md §4.5).
func (s *Server) snapshotResults() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.results))
	for k, v := range s.results {
		out[k] = v
	}
	return out
}

// Run executes the full server lifecycle: launch, wait for results (or
// global timeout), close every node, close the RPC endpoint, then run
// the server-side pipeline (spec.md §4.8 Shutdown).
func (s *Server) Run() error {
	log := logger.FromContext(s.ctx)

	deployErrCh := make(chan error, 1)
	go func() { deployErrCh <- s.launch(s.ctx) }()

	srv := s.startHTTPServer()
	s.httpServer = srv

	var loopErr error
	select {
	case err := <-deployErrCh:
		if err != nil {
			loopErr = err
		} else {
			loopErr = s.resultLoop(s.ctx)
		}
	case <-s.shutdownChan:
		log.Debug("received programmatic shutdown signal")
	case <-s.ctx.Done():
		loopErr = s.ctx.Err()
	}

	s.closeAllNodes()
	if err := s.shutdownHTTPServer(); err != nil {
		log.Error("RPC endpoint shutdown failed", "error", err)
	}

	if errKind(loopErr) == core.KindAllNodesTimedOut {
		log.Error("all nodes timed out, skipping server pipeline")
		return loopErr
	}
	if loopErr != nil {
		return loopErr
	}

	return s.job.RunServerPipeline(s.ctx, s.snapshotResults)
}

func (s *Server) closeAllNodes() {
	log := logger.FromContext(s.ctx)
	for host, n := range s.nodes {
		if err := n.Close(s.ctx); err != nil {
			log.Error("node close failed", "node", host, "error", err)
		}
	}
}

// Shutdown requests a graceful stop, mirroring
// engine/infra/server/lifecycle.go's idempotent signal-once pattern.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() {
		select {
		case s.shutdownChan <- struct{}{}:
		default:
		}
		s.cancel()
	})
}
