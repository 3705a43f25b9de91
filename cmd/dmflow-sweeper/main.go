package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/dmflow/dmflow/pkg/cmd"
	"github.com/dmflow/dmflow/pkg/log"
	"github.com/dmflow/dmflow/pkg/messaging"
	"github.com/dmflow/dmflow/pkg/tenant"
)

const defaultSchedule = "* * * * *"

func main() {
	logger := log.WithModule("sweeper")

	command := &cli.Command{
		Name:                  "dmflow-sweeper",
		EnableShellCompletion: true,
		Usage:                 "Resume delay-parked executions whose timers elapsed",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron expression controlling sweep frequency",
				Value:   defaultSchedule,
				Sources: cli.EnvVars("SWEEP_SCHEDULE"),
			},
			&cli.IntFlag{
				Name:    "batch-size",
				Usage:   "Maximum due executions claimed per sweep",
				Value:   50,
				Sources: cli.EnvVars("SWEEP_BATCH_SIZE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing dmflow sweeper")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			accounts := tenant.NewLoader(
				persistence,
				tenant.NewCache(tenant.DefaultCacheTTL, nil),
				logger,
			)

			sweeper := NewSweeper(
				persistence,
				accounts,
				messaging.NewLogMessenger(logger),
				&messaging.FallbackGenerator{},
				command.Int("batch-size"),
				logger,
			)

			err := sweeper.Run(ctx, command.String("schedule"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to run sweeper", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
