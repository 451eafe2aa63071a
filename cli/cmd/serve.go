package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"penchy/engine/job"
	"penchy/engine/server"
	"penchy/pkg/config"
	"penchy/pkg/logger"
)

// NewServeCommand builds `penchy serve`, the control node (spec.md §4.8):
// it loads a job descriptor and run config, deploys to every node the
// config names, and runs until every node has reported back or the whole
// run times out.
func NewServeCommand() *cobra.Command {
	var jobPath, configPath, bootstrapPath, buildDescriptorPath, remoteBinaryName string

	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the control node for a benchmarking job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logger.FromContext(ctx)

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

			j := job.New(descriptor.Source, compositions, serverFlow, descriptor.Invocations, nil)
			if err := j.Check(ctx); err != nil {
				return fmt.Errorf("job failed validation: %w", err)
			}

			deployment := server.Deployment{
				JobSourcePath:    jobPath,
				BootstrapPath:    bootstrapPath,
				ConfigPath:       configPath,
				BuildDescriptor:  buildDescriptorPath,
				RemoteBinaryName: remoteBinaryName,
			}
			srv := server.New(ctx, j, deployment, runCfg.Server)

			log.Info("starting control node", "job", descriptor.Source, "nodes", len(runCfg.Nodes))
			return srv.Run()
		},
	}

	c.Flags().StringVar(&jobPath, "job", "", "path to the job descriptor YAML file")
	c.Flags().StringVar(&configPath, "nodes", "", "path to the run config YAML file (server + node settings)")
	c.Flags().StringVar(&bootstrapPath, "bootstrap", "", "local path to the penchy binary uploaded to every node")
	c.Flags().StringVar(&buildDescriptorPath, "build-descriptor", "", "local path to the build-tool bootstrap descriptor (e.g. a bootstrap.pom)")
	c.Flags().StringVar(&remoteBinaryName, "remote-binary-name", "penchy", "filename the bootstrap binary is uploaded as on each node")
	_ = c.MarkFlagRequired("job")
	_ = c.MarkFlagRequired("nodes")
	return c
}
