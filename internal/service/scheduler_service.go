package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	clockLayout    = "15:04"
	summaryTimeout = 30 * time.Second
)

// SummaryDeliverer receives the rendered daily summary.
type SummaryDeliverer func(ctx context.Context, text string) error

// SchedulerService runs the nightly summary on a cron clock.
type SchedulerService struct {
	cron    *cron.Cron
	summary *SummaryService
}

func NewSchedulerService(loc *time.Location, summary *SummaryService) *SchedulerService {
	logger := cron.PrintfLogger(log.Default())
	return &SchedulerService{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		summary: summary,
	}
}

// ScheduleSummary renders the summary every day at clock (HH:MM) and hands it
// to deliver.
func (s *SchedulerService) ScheduleSummary(clock string, deliver SummaryDeliverer) (cron.EntryID, error) {
	spec, err := dailySpec(clock)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, func() { s.runSummary(deliver) })
}

func (s *SchedulerService) runSummary(deliver SummaryDeliverer) {
	ctx, cancel := context.WithTimeout(context.Background(), summaryTimeout)
	defer cancel()

	text, err := s.summary.DailySummary(ctx)
	if err != nil {
		log.Printf("[warn] daily summary: %v", err)
		return
	}
	if err := deliver(ctx, text); err != nil {
		log.Printf("[warn] deliver daily summary: %v", err)
	}
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

// Stop waits for a running summary to finish.
func (s *SchedulerService) Stop() {
	<-s.cron.Stop().Done()
}

// Next returns the next run time of the entry, zero if unknown.
func (s *SchedulerService) Next(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

// dailySpec turns HH:MM into a seconds-first cron spec.
func dailySpec(clock string) (string, error) {
	at, err := time.Parse(clockLayout, strings.TrimSpace(clock))
	if err != nil {
		return "", fmt.Errorf("invalid time %q, expected HH:MM: %w", clock, err)
	}
	return fmt.Sprintf("0 %d %d * * *", at.Minute(), at.Hour()), nil
}
