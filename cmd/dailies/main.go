package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"dailies/internal/bot"
	"dailies/internal/cli"
	"dailies/internal/config"
	"dailies/internal/repository"
	"dailies/internal/service"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Printf("config: %v", err)
		return 1
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Printf("db: %v", err)
		return 1
	}
	defer func() {
		if err := repository.Close(db); err != nil {
			log.Printf("close db: %v", err)
		}
	}()

	taskRepo := repository.NewTaskRepository(db)
	taskSvc := service.NewTaskService(taskRepo).WithClock(cfg.Now)
	statsSvc := service.NewStatsService(taskRepo).WithClock(cfg.Now)
	summarySvc := service.NewSummaryService(taskSvc, statsSvc)

	app := &cli.App{
		Tasks:   taskSvc,
		Stats:   statsSvc,
		Summary: summarySvc,
		RunBot: func(ctx context.Context) error {
			return runBot(ctx, cfg, taskSvc, summarySvc)
		},
	}

	if err := cli.NewRootCmd(app).ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func runBot(ctx context.Context, cfg config.Config, taskSvc *service.TaskService, summarySvc *service.SummaryService) error {
	telegramBot, err := bot.New(cfg, taskSvc, summarySvc)
	if err != nil {
		return err
	}

	scheduler := service.NewSchedulerService(cfg.Location, summarySvc)
	if _, err := scheduler.ScheduleSummary(cfg.SummaryTime, func(_ context.Context, text string) error {
		log.Printf("[info] daily summary\n%s", text)
		return nil
	}); err != nil {
		return fmt.Errorf("schedule summary: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Println("Dailies bot started.")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Println("Shutdown complete.")
	return nil
}
