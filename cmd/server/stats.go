package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/habitlog/internal/db"
	"github.com/habitlog/internal/stats"
	"github.com/habitlog/internal/store"
	"github.com/spf13/cobra"
)

type statsOptions struct {
	User  string
	Month string
}

func newStatsCommand() *cobra.Command {
	so := &statsOptions{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the monthly completion table of an account",
		Example: `
habitlog stats --user alice
habitlog stats --user alice --month 2024-03
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, so)
		},
	}

	cmd.Flags().StringVar(&so.User, "user", "", "account name")
	cmd.Flags().StringVar(&so.Month, "month", "", "month as YYYY-MM, defaults to the current month")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runStats(cmd *cobra.Command, so *statsOptions) error {
	now := time.Now()
	year, month := now.Year(), now.Month()
	if raw := strings.TrimSpace(so.Month); raw != "" {
		parsed, err := time.Parse("2006-01", raw)
		if err != nil {
			return fmt.Errorf("invalid --month %q, expected YYYY-MM", raw)
		}
		year, month = parsed.Year(), parsed.Month()
	}

	cfg, err := openDatabase()
	if err != nil {
		return err
	}

	snap, err := store.NewGormDocuments(db.DB).Get(cmd.Context(), so.User)
	if err != nil {
		return err
	}
	if !snap.Exists {
		return fmt.Errorf("no synced data for %q", so.User)
	}

	state := appDefaults(cfg).State().Adopt(snap.Document)
	agg := stats.Monthly(state.Habits, state.Records, year, month)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold("Habit"), bold("Done"), bold("Rate"), bold("Streak"))
	for _, habit := range state.Habits {
		done := agg.PerHabit[habit.ID]
		rate := 0
		if agg.DaysInMonth > 0 {
			rate = done * 100 / agg.DaysInMonth
		}
		tbl.AddRow(habit.Name, fmt.Sprintf("%d/%d", done, agg.DaysInMonth), rateColor(rate), stats.Streak(state.Records, habit.ID, now))
	}

	out := color.Output
	_, _ = fmt.Fprintln(out, color.New(color.Bold, color.Underline).Sprintf("%s %04d-%02d", so.User, year, int(month)))
	_, _ = fmt.Fprintln(out, tbl)
	_, _ = fmt.Fprintf(out, "\n%s %s (%d/%d)\n", bold("Total"), rateColor(agg.Percentage), agg.TotalCompleted, agg.TotalPossible)

	reading := stats.Reading(state.ReadingLogs)
	if reading != (stats.ReadingAggregate{}) {
		_, _ = fmt.Fprintf(out, "%s novel %s / practical %s / manga %s\n", bold("Reading"),
			orDash(reading.LastNovel), orDash(reading.LastPractical), orDash(reading.LastManga))
	}
	return nil
}

func bold(s string) string {
	return color.New(color.Bold).Sprint(s)
}

// rateColor 按完成率着色：80% 以上绿色，50% 以上黄色，其余红色。
func rateColor(rate int) string {
	text := fmt.Sprintf("%d%%", rate)
	switch {
	case rate >= 80:
		return color.GreenString(text)
	case rate >= 50:
		return color.YellowString(text)
	default:
		return color.RedString(text)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
