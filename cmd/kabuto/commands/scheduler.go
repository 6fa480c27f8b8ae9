package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/morita/kabuto/internal/scheduler"
	"github.com/morita/kabuto/internal/scheduler/jobs"
)

// schedulerCmd is the parent for scheduler subcommands
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "スケジューラーの管理（デーモン起動・ジョブ一覧・手動実行）",
	Long: `cron スケジュールに従ってデイリーダイジェストを自動実行します。

Examples:
  go run ./cmd/kabuto scheduler start
  go run ./cmd/kabuto scheduler list
  go run ./cmd/kabuto scheduler run daily_digest`,
}

// schedulerStartCmd runs the scheduler as a foreground daemon
var schedulerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "スケジューラーデーモンを起動",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := initPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		sched, err := initScheduler(p)
		if err != nil {
			return err
		}

		printHeader("Scheduler Daemon")
		for name, stats := range sched.GetJobStats() {
			printInfo("Job registered: %s (schedule: %s)", name, stats.Schedule)
		}

		sched.Start()
		printSuccess("Scheduler started, press Ctrl+C to stop")

		// Wait for shutdown signal
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fmt.Println()
		printInfo("Shutting down...")
		sched.Stop()
		printSuccess("Scheduler stopped")

		return nil
	},
}

// schedulerListCmd shows registered jobs and their schedules
var schedulerListCmd = &cobra.Command{
	Use:   "list",
	Short: "登録ジョブの一覧を表示",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := initPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		sched, err := initScheduler(p)
		if err != nil {
			return err
		}

		printHeader("Registered Jobs")
		fmt.Printf("%-20s %-20s %s\n", "Job", "Schedule", "Timezone")
		printSeparator()
		for name, stats := range sched.GetJobStats() {
			fmt.Printf("%-20s %-20s %s\n", name, stats.Schedule, p.digestCfg.Meta.Timezone)
		}

		return nil
	},
}

// schedulerRunCmd triggers one job immediately and waits for it
var schedulerRunCmd = &cobra.Command{
	Use:   "run [job]",
	Short: "ジョブを今すぐ実行",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := initPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		sched, err := initScheduler(p)
		if err != nil {
			return err
		}

		jobName := args[0]
		printHeader(fmt.Sprintf("Manual Job Run: %s", jobName))

		if err := sched.RunJob(jobName); err != nil {
			return err
		}

		// RunJob is asynchronous; poll history until the run lands
		for {
			time.Sleep(2 * time.Second)
			stats, ok := sched.GetJobStats()[jobName]
			if !ok || stats.TotalRuns == 0 {
				continue
			}
			if stats.LastError != "" {
				printError("Job failed: %s", stats.LastError)
			} else {
				printSuccess("Job completed")
			}
			return nil
		}
	},
}

// initScheduler builds a scheduler with all jobs registered
func initScheduler(p *pipeline) (*scheduler.Scheduler, error) {
	loc, err := p.digestCfg.Location()
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(p.log, loc)

	digestJob := jobs.NewDailyDigestJob(p.orchestrator, p.digestCfg, p.log)
	if err := sched.AddJob(digestJob); err != nil {
		return nil, fmt.Errorf("register daily digest job: %w", err)
	}

	return sched, nil
}

func init() {
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	rootCmd.AddCommand(schedulerCmd)
}
