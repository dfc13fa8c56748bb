// Command mbserve loads an instance and serves it over HTTP/websocket via
// dispatchserver, so a dashboard can trigger solves and watch progress.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	log "gopkg.in/inconshreveable/log15.v2"

	"github.com/ts2/mbsolve/astar"
	"github.com/ts2/mbsolve/config"
	"github.com/ts2/mbsolve/dispatchserver"
	"github.com/ts2/mbsolve/ioadapter"
	"github.com/ts2/mbsolve/telemetry"
)

func main() {
	var configPath string
	var instanceDir string
	var addr string
	var port string

	root := &cobra.Command{
		Use:   "mbserve",
		Short: "Serve a moving-block dispatch instance over HTTP/websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := telemetry.InitializeLogger(log.New(), "mbserve")
			dispatchserver.InitializeLogger(log.New())

			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.FromYaml(configPath)
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				cfg = *loaded
			}
			if instanceDir == "" {
				instanceDir = cfg.NetworkPath
			}
			if addr == "" {
				addr = cfg.ServerAddr
			}
			if port == "" {
				port = cfg.ServerPort
			}

			inst, err := ioadapter.LoadInstance(instanceDir)
			if err != nil {
				return fmt.Errorf("loading instance: %w", err)
			}

			opts := astar.DefaultOptions()
			opts.ParallelWorkers = cfg.Workers
			srv := dispatchserver.New(inst, opts)

			logger.Info("serving", "addr", addr, "port", port)
			return srv.Run(addr, port)
		},
	}

	root.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.Flags().StringVar(&instanceDir, "instance", "", "path to a layered instance directory (overrides config)")
	root.Flags().StringVar(&addr, "addr", "", "bind address (overrides config)")
	root.Flags().StringVar(&port, "port", "", "bind port (overrides config)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
