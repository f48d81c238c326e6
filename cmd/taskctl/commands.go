package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/larkspur-dev/taskctl/internal/acs"
	"github.com/larkspur-dev/taskctl/internal/batch"
	"github.com/larkspur-dev/taskctl/internal/board"
	"github.com/larkspur-dev/taskctl/internal/config"
	"github.com/larkspur-dev/taskctl/internal/notify"
	"github.com/larkspur-dev/taskctl/internal/orchestrator"
	"github.com/larkspur-dev/taskctl/internal/runstore"
	"github.com/larkspur-dev/taskctl/internal/selector"
	"github.com/larkspur-dev/taskctl/tui"
)

func init() {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single reconciliation pass and exit",
		RunE:  runRun,
	}
	rootCmd.AddCommand(runCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the board and run continuously",
		RunE:  runWatch,
	}
	rootCmd.AddCommand(watchCmd)

	resumeCmd := &cobra.Command{
		Use:   "resume",
		Short: "Clear a halted orchestrator",
		RunE:  runResume,
	}
	rootCmd.AddCommand(resumeCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show board and halt status",
		RunE:  runStatus,
	}
	rootCmd.AddCommand(statusCmd)

	taskCmd := &cobra.Command{
		Use:   "task [id]",
		Short: "Run a single named task",
		Args:  cobra.ExactArgs(1),
		RunE:  runTask,
	}
	rootCmd.AddCommand(taskCmd)

	epicCmd := &cobra.Command{
		Use:   "epic",
		Short: "Run one Epic-mode reconciliation pass",
		RunE:  runEpic,
	}
	rootCmd.AddCommand(epicCmd)

	dashboardCmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Launch the status dashboard",
		RunE:  runDashboard,
	}
	rootCmd.AddCommand(dashboardCmd)
}

func loadConfig() (*config.Config, error) {
	return config.LoadWithLocalFallback(configPath)
}

func haltFilePath(cfg *config.Config) string {
	return filepath.Join(filepath.Dir(cfg.Misc.RunStorePath), "halted")
}

func buildOrchestrator(cfg *config.Config) (*orchestrator.Orchestrator, *board.Client, error) {
	b := board.New(cfg.Board.Root)

	store, err := runstore.Open(cfg.Misc.RunStorePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening run store: %w", err)
	}

	notifier := notify.NewMultiNotifier(
		notify.NewDesktopNotifier(cfg.Notifications.Desktop),
		notify.NewSlackNotifier(cfg.Notifications.SlackWebhook),
	)

	ordering := selector.Ordering(cfg.Queue.Ordering)
	if ordering == "" {
		ordering = selector.OrderPriorityThenAlphabetical
	}

	opts := orchestrator.Options{
		Ordering:             ordering,
		MaxTasksPerRun:       cfg.Queue.MaxTasksPerRun,
		DebounceInterval:     time.Duration(cfg.Board.DebounceMillis) * time.Millisecond,
		AgentBinaryPath:      cfg.Agent.BinaryPath,
		AgentWorkdir:         workdirForBoard(cfg.Board.Root),
		AgentFullAccess:      cfg.Agent.FullAccess,
		AgentModel:           cfg.Agent.Model,
		AgentOAuthToken:      os.Getenv("AGENT_OAUTH_TOKEN"),
		AgentTimeout:         time.Duration(cfg.Agent.TimeoutSecs) * time.Second,
		AgentGracePeriod:     time.Duration(cfg.Agent.GracePeriodSecs) * time.Second,
		PromptOptions: acs.PromptOptions{
			RequireTestsCreated: cfg.Agent.RequireTestsMade,
			RequireTestRun:      cfg.Agent.RequireTestsRun,
			RequireCommit:       cfg.Agent.RequireCommit,
		},
		WatchdogInterval:     time.Duration(cfg.Watchdog.IntervalSecs) * time.Second,
		WatchdogMaxWarnings:  cfg.Watchdog.MaxWarnings,
		MaxConsecutiveSame:   cfg.Misc.MaxConsecutiveSameTask,
		GlobalMaxConsecutive: cfg.Misc.GlobalMaxConsecutive,
		RecoveryMaxPerTask:   cfg.Recovery.MaxRetriesPerTask,
		RecoveryMaxPerEpic:   cfg.Recovery.MaxRetriesPerEpic,
		ReviewTasks:          cfg.Review.ReviewTasks,
		ReviewEpics:          cfg.Review.ReviewEpics,
		ReviewModel:          cfg.Review.Model,
		HaltFilePath:         haltFilePath(cfg),
	}

	return orchestrator.New(b, acs.Default(), store, notifier, opts), b, nil
}

// workdirForBoard assumes the board root lives inside the repository the
// agent should operate on; the project root is its parent.
func workdirForBoard(boardRoot string) string {
	abs, err := filepath.Abs(boardRoot)
	if err != nil {
		return "."
	}
	return filepath.Dir(abs)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	orch, _, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}
	orch.ReconcileOnce(cmd.Context())
	return nil
}

func runTask(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	orch, _, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}
	return orch.ReconcileTaskOnce(cmd.Context(), args[0])
}

func runEpic(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	orch, _, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}
	orch.ReconcileEpicOnce(cmd.Context())
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	orch, _, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	debounce := time.Duration(cfg.Board.DebounceMillis) * time.Millisecond
	events, err := board.Watch(ctx, cfg.Board.Root, debounce)
	if err != nil {
		return fmt.Errorf("watching board: %w", err)
	}

	var scheduler *batch.Scheduler
	if cfg.Queue.CronExpr != "" {
		scheduler, err = batch.NewScheduler([]batch.BatchConfig{{
			Name: "poll",
			Cron: cfg.Queue.CronExpr,
		}})
		if err != nil {
			return fmt.Errorf("parsing cron expression: %w", err)
		}
		go scheduler.Start(func(batch.BatchConfig) error {
			orch.Schedule(ctx, "cron", orchestrator.ModeNormal)
			return nil
		})
		defer scheduler.Stop()
	}

	fmt.Printf("watching %s\n", cfg.Board.Root)
	orch.Schedule(ctx, "startup", orchestrator.ModeNormal)

	for {
		select {
		case <-events:
			orch.Schedule(ctx, "fsnotify", orchestrator.ModeNormal)
		case sig := <-sigCh:
			fmt.Printf("\nreceived %v, shutting down\n", sig)
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func runResume(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	orch, _, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}
	if orch.Resume() {
		fmt.Println("cleared halt")
	} else {
		fmt.Println("was not halted")
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	orch, b, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}

	state := orch.IsRunning()
	if state.Halted {
		fmt.Println("status: HALTED")
	} else {
		fmt.Println("status: ok")
	}

	tasks, err := b.ListTasks()
	if err != nil {
		return err
	}

	var notStarted, inProgress, done int
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tAC")
	for _, t := range tasks {
		switch t.Status {
		case "Not Started":
			notStarted++
		case "In Progress":
			inProgress++
		case "Done":
			done++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\n", t.ID, t.Name, t.Status, t.AcDone, t.AcTotal)
	}
	w.Flush()

	fmt.Printf("\n%d total | %d not started | %d in progress | %d done\n",
		len(tasks), notStarted, inProgress, done)
	return nil
}

func runDashboard(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	_, b, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}
	store, err := runstore.Open(cfg.Misc.RunStorePath)
	if err != nil {
		return err
	}
	return tui.Run(b, store, haltFilePath(cfg))
}
