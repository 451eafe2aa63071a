// Package client implements the process every node runs: the generic
// bootstrap binary original_source calls "penchy_bootstrap", uploaded
// once and invoked identically on every node with
// `<job descriptor> <run config> <node identifier>` (spec.md §4.8
// Launch, §6's bootstrap contract). It loads the job descriptor and run
// config data the server uploaded alongside it, runs this node's
// composition, and reports back over the RPC surface engine/server
// exposes.
package client

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gofrs/flock"

	"penchy/engine/composition"
	"penchy/engine/core"
	"penchy/engine/dependency"
	"penchy/engine/job"
	"penchy/pkg/config"
	"penchy/pkg/logger"
)

const pidfileName = "penchy.pid"

// Run loads jobPath/configPath, finds nodeHost's composition, and runs it
// end to end: write the pidfile the control node's Kill/KillComposition
// rely on, resolve dependencies, execute every invocation, run the
// client-side flow, and report the result (or error) back over RPC.
func Run(ctx context.Context, jobPath, configPath, nodeHost string) error {
	log := logger.FromContext(ctx)

	if err := writePidfile(); err != nil {
		return err
	}

	runCfg, err := config.LoadRunConfig(configPath)
	if err != nil {
		return fmt.Errorf("load run config: %w", err)
	}
	descriptor, err := config.LoadJobDescriptor(jobPath)
	if err != nil {
		return fmt.Errorf("load job descriptor: %w", err)
	}

	compositions, serverFlow, err := descriptor.Build(runCfg.NodesByHost())
	if err != nil {
		return fmt.Errorf("build job: %w", err)
	}

	comp := findComposition(compositions, nodeHost)
	if comp == nil {
		return core.NewWrongInputError("no composition for this node", map[string]any{"host": nodeHost})
	}

	resolver := dependency.NewHTTPResolver(comp.NodeSetting.Basepath)
	j := job.New(descriptor.Source, compositions, serverFlow, descriptor.Invocations, resolver)

	serverAddr := fmt.Sprintf("%s:%d", runCfg.Server.Host, runCfg.Server.Port)
	httpClient := resty.New().SetTimeout(30 * time.Second)
	send := job.RPCSend(httpClient, serverAddr)
	nodeError := job.RPCNodeError(httpClient, serverAddr)
	startTimeout := job.RPCStartTimeout(httpClient, serverAddr)
	stopTimeout := job.RPCStopTimeout(httpClient, serverAddr)

	hash := comp.Hash()
	deadline := time.Duration(comp.Timeout() * float64(time.Second))
	if err := startTimeout(hash, deadline); err != nil {
		log.Error("failed to arm composition deadline", "composition", hash, "error", err)
	}

	runErr := j.RunComposition(ctx, comp, send)

	if err := stopTimeout(hash); err != nil {
		log.Error("failed to disarm composition deadline", "composition", hash, "error", err)
	}
	if runErr != nil {
		log.Error("composition failed", "composition", hash, "error", runErr)
		if rpcErr := nodeError(hash, runErr.Error()); rpcErr != nil {
			log.Error("failed to report composition error", "composition", hash, "error", rpcErr)
		}
		return runErr
	}
	return nil
}

func findComposition(compositions []*composition.SystemComposition, nodeHost string) *composition.SystemComposition {
	for _, c := range compositions {
		if c.NodeSetting.Host == nodeHost {
			return c
		}
	}
	return nil
}

// writePidfile records this process's own PID, the artifact
// engine/node.Node.Kill/KillComposition read to find the child process
// tree to signal (spec.md §6's bootstrap contract: "produces penchy.pid").
// It takes an exclusive, non-blocking flock on the pidfile first, so a
// second bootstrap invocation in the same working directory fails fast
// instead of silently overwriting the PID a running composition depends
// on for Kill/KillComposition to find it by.
func writePidfile() error {
	lock := flock.New(pidfileName)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", pidfileName, err)
	}
	if !locked {
		return fmt.Errorf("%s is already locked by another process", pidfileName)
	}

	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(pidfileName, []byte(pid+"\n"), 0o644); err != nil { //nolint:gosec // not a secret
		return fmt.Errorf("write %s: %w", pidfileName, err)
	}
	return nil
}
