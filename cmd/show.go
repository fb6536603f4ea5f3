package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/hbctl/hbctl/internal/engine"
	"github.com/hbctl/hbctl/internal/journal"
	"github.com/hbctl/hbctl/internal/lifecycle"
	"github.com/hbctl/hbctl/internal/state"
	"github.com/hbctl/hbctl/internal/supervisor"
)

var showHistory int

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	runningStyle = cellStyle.Foreground(lipgloss.Color("82"))
	pendingStyle = cellStyle.Foreground(lipgloss.Color("214"))
	errStyle     = cellStyle.Foreground(lipgloss.Color("196"))
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
)

var showCmd = &cobra.Command{
	Use:   "show <cluster>",
	Short: "Show the live state of the selected tasks",
	Long: `Queries every selected task's supervisor and prints one row per task.
Every task is queried even when some fail; the command exits non-zero if any did.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return session("show", args[0], false, func(ctx context.Context, eng *engine.Engine) error {
			if w := balancerWarning(eng.State); w != "" {
				fmt.Println(warnStyle.Render(w))
			}

			rows, err := eng.Controller("show", eng.RestartPoller()).Show(ctx, selection())
			if rows != nil {
				fmt.Println(statusTable(rows))
			}

			if showHistory > 0 {
				entries, herr := eng.History(ctx, showHistory)
				if herr != nil {
					eng.Logger.Warn("reading history failed", "error", herr)
				} else if len(entries) > 0 {
					fmt.Println(historyTable(entries))
				}
			}
			return err
		})
	},
}

func init() {
	showCmd.Flags().IntVar(&showHistory, "history", 0, "also print the last N journal entries")
	rootCmd.AddCommand(showCmd)
}

func balancerWarning(st *state.State) string {
	if st == nil || !st.BalancerDisabled {
		return ""
	}
	msg := "WARNING: the balancer was left disabled"
	if !st.BalancerDisabledSince.IsZero() {
		msg += " since " + st.BalancerDisabledSince.Format(time.RFC3339)
	}
	if st.Rolling != nil && st.Rolling.FailedTask != "" {
		msg += fmt.Sprintf(" by a rolling update that aborted at %s (%s)", st.Rolling.FailedTask, st.Rolling.FailedState)
	}
	return msg + `; run "balance_switch true" in the HBase shell once the cluster is healthy`
}

func statusTable(rows []lifecycle.TaskStatus) string {
	states := make([]supervisor.RunState, len(rows))
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("JOB", "TASK", "HOST", "STATE", "ERROR")
	for i, r := range rows {
		states[i] = r.State
		msg := ""
		if r.Err != nil {
			msg = r.Err.Error()
		}
		t.Row(r.Task.Role, strconv.Itoa(r.Task.ID), r.Task.Host, r.State.String(), msg)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return headerStyle
		case rows[row].Err != nil:
			return errStyle
		case col != 3:
			return cellStyle
		case states[row] == supervisor.Running:
			return runningStyle
		default:
			return pendingStyle
		}
	})
	return t.Render()
}

func historyTable(entries []journal.Entry) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("TIME", "COMMAND", "OP", "TASK", "OUTCOME", "DURATION").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, e := range entries {
		task := fmt.Sprintf("%s/%d@%s", e.Role, e.TaskID, e.Host)
		outcome := e.Outcome
		if e.Error != "" {
			outcome += ": " + e.Error
		}
		t.Row(e.Time.Format(time.DateTime), e.Command, e.Op, task, outcome, e.Duration.Round(time.Millisecond).String())
	}
	return t.Render()
}
