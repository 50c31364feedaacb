package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/tuimeta/internal/apperrors"
	"github.com/verte-zerg/tuimeta/internal/historyui"
	"github.com/verte-zerg/tuimeta/internal/present"
	"github.com/verte-zerg/tuimeta/internal/prompt"
	"github.com/verte-zerg/tuimeta/internal/report"
)

var (
	stdinIsTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
	newConfirmer    = prompt.NewConfirmer
)

func newPredictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "predict [text...]",
		Short: "Classify text (from arguments or stdin)",
		RunE:  runPredictCmd,
	}
}

func runPredictCmd(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	if len(args) == 0 {
		if stdinIsTerminal() {
			return fmt.Errorf("no text given: pass it as arguments or pipe it on stdin")
		}
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(data)
	}

	e, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := e.client.Predict(cmd.Context(), text)
	if err != nil {
		return userError(err)
	}
	presented, err := present.Present(result)
	if err != nil {
		return userError(err)
	}
	return report.Write(cmd.OutOrStdout(), report.ResultLines(presented))
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse prediction history",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.PersistentFlags().StringVar(&historyLang, "lang", "", "language filter (all, hindi, tamil, telugu, kannada)")
	cmd.PersistentFlags().StringVar(&historyLabel, "label", "", "type filter (all, metaphor, normal)")
	cmd.PersistentFlags().BoolVar(&historyOffline, "offline", false, "print the last cached snapshot without calling the service")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print the filtered history",
		Args:  cobra.NoArgs,
		RunE:  runHistoryListCmd,
	}
	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one prediction",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryDeleteCmd,
	}
	deleteCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation")
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every prediction",
		Args:  cobra.NoArgs,
		RunE:  runHistoryClearCmd,
	}
	clearCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation")

	cmd.AddCommand(listCmd, deleteCmd, clearCmd)
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	if historyOffline {
		return runHistoryListCmd(cmd, nil)
	}
	e, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	m := historyui.NewModel(e.historyStore(), e.cfg.HistoryFilter, true)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run history TUI: %w", err)
	}
	return nil
}

func runHistoryListCmd(cmd *cobra.Command, _ []string) error {
	e, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	filter := e.cfg.HistoryFilter
	out := cmd.OutOrStdout()
	if historyOffline {
		if e.cache == nil {
			return fmt.Errorf("snapshot cache is unavailable")
		}
		snap, ok, err := e.cache.LoadHistory(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("failed to read snapshot: %w", err)
		}
		if !ok {
			return fmt.Errorf("no cached snapshot for %s", strings.TrimPrefix(report.FilterLine(filter), "Filters: "))
		}
		lines, err := report.HistoryTable(snap.Items, time.Local)
		if err != nil {
			return userError(err)
		}
		header := []string{report.CachedHeader(snap.FetchedAt, time.Local), report.FilterLine(filter), ""}
		return report.Write(out, append(header, lines...))
	}

	items, err := e.historyStore().List(cmd.Context(), filter)
	if err != nil {
		return userError(err)
	}
	lines, err := report.HistoryTable(items, time.Local)
	if err != nil {
		return userError(err)
	}
	return report.Write(out, append([]string{report.FilterLine(filter), ""}, lines...))
}

func runHistoryDeleteCmd(cmd *cobra.Command, args []string) error {
	id := strings.TrimSpace(args[0])
	if ok, err := confirm(fmt.Sprintf("Delete prediction %s?", id)); err != nil || !ok {
		return err
	}
	e, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := e.historyStore().DeleteOne(cmd.Context(), id, e.cfg.HistoryFilter); err != nil {
		return userError(err)
	}
	return report.Write(cmd.OutOrStdout(), []string{"Deleted prediction " + id})
}

func runHistoryClearCmd(cmd *cobra.Command, _ []string) error {
	if ok, err := confirm("Delete all predictions? This cannot be undone."); err != nil || !ok {
		return err
	}
	e, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := e.historyStore().DeleteAll(cmd.Context(), e.cfg.HistoryFilter); err != nil {
		return userError(err)
	}
	return report.Write(cmd.OutOrStdout(), []string{"History cleared"})
}

// confirm returns false without error when the user declines.
func confirm(question string) (bool, error) {
	if assumeYes {
		return true, nil
	}
	ok, err := newConfirmer().Confirm(question)
	if err != nil {
		return false, err
	}
	if !ok {
		logErrf("Cancelled\n")
	}
	return ok, nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show prediction statistics",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().BoolVar(&historyOffline, "offline", false, "print the last cached statistics")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	e, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	if historyOffline {
		if e.cache == nil {
			return fmt.Errorf("snapshot cache is unavailable")
		}
		snap, ok, err := e.cache.LoadStatistics(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read snapshot: %w", err)
		}
		if !ok {
			return fmt.Errorf("no cached statistics")
		}
		header := []string{report.CachedHeader(snap.FetchedAt, time.Local), ""}
		return report.Write(out, append(header, report.StatisticsTable(snap.Statistics)...))
	}

	stats, err := e.historyStore().Statistics(cmd.Context())
	if err != nil {
		return userError(err)
	}
	return report.Write(out, report.StatisticsTable(stats))
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the classification service answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, cleanup, err := setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			if err := e.client.Health(cmd.Context()); err != nil {
				if kind, _ := apperrors.KindOf(err); kind == apperrors.KindNetwork {
					return fmt.Errorf("%s is not reachable: %s", e.client.BaseURL(), apperrors.PublicMessage(err))
				}
				return userError(err)
			}
			return report.Write(cmd.OutOrStdout(), []string{e.client.BaseURL() + " is up"})
		},
	}
}
