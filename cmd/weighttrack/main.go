package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"weighttrack/internal/config"
	"weighttrack/internal/logger"
)

// cli carries state resolved once by the root command and shared with every
// sub-command.
type cli struct {
	v   *viper.Viper
	cfg *config.Config
	log *zap.SugaredLogger
}

func main() {
	root, err := rootCommand()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() (*cobra.Command, error) {
	v, err := config.New()
	if err != nil {
		return nil, err
	}
	c := &cli{v: v}

	root := &cobra.Command{
		Use:          "weighttrack",
		Short:        "Personal body weight tracker",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("env-file", ".env", "dotenv file loaded before the environment is read")
	if err := config.RegisterFlags(root, v); err != nil {
		return nil, err
	}

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		envFile, err := cmd.Flags().GetString("env-file")
		if err != nil {
			return err
		}
		if err := config.LoadDotenv(envFile); err != nil {
			return err
		}
		if c.cfg, err = config.Load(c.v); err != nil {
			return err
		}
		c.log, err = logger.New(c.cfg.LogLevel)
		return err
	}
	root.PersistentPostRun = func(*cobra.Command, []string) {
		if c.log != nil {
			_ = c.log.Sync()
		}
	}

	root.AddCommand(
		c.serveCommand(),
		c.exportCommand(),
		c.importCommand(),
		c.backupCommand(),
	)
	return root, nil
}
