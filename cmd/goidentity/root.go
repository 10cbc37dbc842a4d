package main

import (
	"github.com/MrEthical07/goIdentity/internal/config"
	"github.com/MrEthical07/goIdentity/internal/logging"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries resolved settings from the root command to its subcommands.
type app struct {
	configFile string
	settings   config.Settings
	logger     *zap.Logger
}

// NewRootCmd creates the root command for the goIdentity CLI.
func NewRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	cmd := &cobra.Command{
		Use:   "goidentity",
		Short: "Operate a goIdentity deployment",
		Long: `goidentity manages the durable schema, inspects tokens and maintains
the read-model cache of a goIdentity deployment.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&a.configFile, "config", "", "config file path")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newMigrateCmd(a))
	cmd.AddCommand(newTokenCmd(a))
	cmd.AddCommand(newCacheCmd(a))

	return cmd
}

func (a *app) load(cmd *cobra.Command) error {
	settings, err := config.Load(a.configFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := logging.NewWithWriter(settings.Log, cmd.ErrOrStderr())
	if err != nil {
		return oops.Code("LOGGER_INIT_FAILED").Wrap(err)
	}
	a.settings = settings
	a.logger = logger
	return nil
}

func (a *app) redisClient() redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{a.settings.Redis.Addr},
		Password: a.settings.Redis.Password,
		DB:       a.settings.Redis.DB,
	})
}
