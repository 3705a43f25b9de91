package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/dmflow/dmflow/pkg/cmd"
	"github.com/dmflow/dmflow/pkg/log"
	"github.com/dmflow/dmflow/pkg/messaging"
	"github.com/dmflow/dmflow/pkg/receivers/queue"
	"github.com/dmflow/dmflow/pkg/tenant"
)

func main() {
	command := &cli.Command{
		Name:                  "dmflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Consume platform events and run flow executions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis address for the queue receiver (disabled when empty)",
				Value:   "",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-queue",
				Usage:   "Redis list the queue receiver drains",
				Value:   "dmflow:events",
				Sources: cli.EnvVars("REDIS_QUEUE"),
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

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("dmflow-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing dmflow worker")

			eventBus := cmd.NewEventBus(command.String("event-bus"), "dmflow-worker", logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			var receiver *queue.Receiver

			if addr := command.String("redis-url"); addr != "" {
				var err error

				receiver, err = queue.NewReceiver(ctx, queue.Config{
					Addr:  addr,
					Queue: command.String("redis-queue"),
				}, eventBus, logger)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to create queue receiver", "error", err)

					return err
				}

				defer func() {
					if err := receiver.Stop(ctx); err != nil {
						logger.ErrorContext(ctx, "Failed to stop queue receiver", "error", err)
					}
				}()
			}

			accounts := tenant.NewLoader(
				persistence,
				tenant.NewCache(tenant.DefaultCacheTTL, nil),
				logger,
			)

			worker := NewWorkerManager(
				workerID,
				persistence,
				eventBus,
				accounts,
				messaging.NewLogMessenger(logger),
				&messaging.FallbackGenerator{},
				logger,
			)

			if receiver != nil {
				if err := receiver.Start(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to start queue receiver", "error", err)

					return err
				}
			}

			err := worker.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start event-driven worker", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
