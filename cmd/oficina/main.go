// Command oficina runs the workshop back office: the scheduled alerts, an
// interactive shell over the catalog, and a seed command for demo data.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/app"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/config"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/logger"
)

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:           "oficina",
	Short:         "Workshop back office",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "oficina.yaml", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file with OFICINA_* overrides")
	rootCmd.AddCommand(runCmd, shellCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads the configuration and wires the container. jobs is
// false for commands that never start the scheduler.
func bootstrap(ctx context.Context, jobs bool) (*config.Config, *app.Container, error) {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return nil, nil, err
	}
	logger.Configure(cfg.Log.Level, cfg.Log.Format)
	cfg.Jobs.Enabled = cfg.Jobs.Enabled && jobs

	c, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, c, nil
}
