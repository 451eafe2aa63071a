package server

import (
	"context"
	"fmt"
	"path"

	"penchy/pkg/logger"
)

// launch is the deployment worker (spec.md §4.8 Launch): sequentially,
// for each node, connect, upload the job source, bootstrap binary, config
// file and build-tool bootstrap descriptor, invoke the bootstrap, then
// disconnect. Deployment is sequential by design (spec.md §5: "the
// reference design performs deployment sequentially to keep error
// handling simple"), grounded directly on
// original_source/penchy/server.py's Server._setup/Server.run upload loop.
func (s *Server) launch(ctx context.Context) error {
	log := logger.FromContext(ctx)
	jobBasename := path.Base(s.job.Source)

	for host, n := range s.nodes {
		if err := s.launchOne(ctx, host, n, jobBasename); err != nil {
			log.Error("deployment failed", "node", host, "error", err)
			return fmt.Errorf("deploy to %s: %w", host, err)
		}
	}
	return nil
}

func (s *Server) launchOne(ctx context.Context, host string, n nodeHandle, jobBasename string) error {
	log := logger.FromContext(ctx)
	log.Info("deploying job", "node", host)

	if err := n.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = n.Disconnect() }()

	uploads := []struct{ local, remote string }{
		{s.deployment.JobSourcePath, jobBasename},
		{s.deployment.BootstrapPath, s.deployment.RemoteBinaryName},
		{s.deployment.ConfigPath, "config.py"},
		{s.deployment.BuildDescriptor, path.Base(s.deployment.BuildDescriptor)},
	}
	for _, u := range uploads {
		if u.local == "" {
			continue
		}
		if err := n.Put(ctx, u.local, u.remote); err != nil {
			return fmt.Errorf("upload %s: %w", u.local, err)
		}
	}

	// Backgrounded and detached from the session: original_source's
	// execute_penchy relies on paramiko's exec_command returning before
	// the remote command completes, then disconnects without waiting.
	// session.Run over golang.org/x/crypto/ssh blocks until the remote
	// command exits, so the bootstrap itself has to background-and-exit
	// its launcher shell rather than rely on the transport not waiting.
	cmd := fmt.Sprintf("nohup ./%s run %s config.py %s > /dev/null 2>&1 & disown",
		s.deployment.RemoteBinaryName, jobBasename, host)
	if _, stderr, err := n.Exec(ctx, cmd); err != nil {
		return fmt.Errorf("bootstrap invocation failed: %w (%s)", err, stderr)
	}
	return nil
}
