package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/riskfeed/pkg/client"
	"github.com/cuemby/riskfeed/pkg/scheduler"
	"github.com/cuemby/riskfeed/pkg/synth"
	"github.com/cuemby/riskfeed/pkg/types"
)

const defaultServer = "127.0.0.1:4000"

func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().String("server", defaultServer, "riskfeed server address")
	cmd.Flags().Bool("json", false, "Print raw JSON")
}

func newClient(cmd *cobra.Command) (*client.Client, error) {
	server, _ := cmd.Flags().GetString("server")
	if env := os.Getenv("RISKFEED_SERVER"); env != "" && !cmd.Flags().Changed("server") {
		server = env
	}
	return client.NewClient(server)
}

// printJSON prints v as indented JSON when --json is set
func printJSON(cmd *cobra.Command, v any) (bool, error) {
	asJSON, _ := cmd.Flags().GetBool("json")
	if !asJSON {
		return false, nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

func caseID(id *string) string {
	if id == nil {
		return "-"
	}
	return *id
}

// Alert commands
var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Inspect alerts",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the newest alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		alerts, err := c.ListAlerts(limit)
		if err != nil {
			return fmt.Errorf("failed to list alerts: %w", err)
		}
		if ok, err := printJSON(cmd, alerts); ok {
			return err
		}

		w := newTable()
		fmt.Fprintln(w, "ID\tCREATED\tTYPE\tCHANNEL\tRISK\tAMOUNT\tSTATUS\tCASE")
		for _, a := range alerts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\t%s\t%s\n",
				a.ID, a.CreatedAt.Local().Format(time.DateTime), a.Type, a.Channel,
				a.RiskScore, synth.FormatCurrency(a.Amount), a.Status, caseID(a.CaseID))
		}
		return w.Flush()
	},
}

// Case commands
var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "Inspect investigation cases",
}

var casesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cases, most recently updated first",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}

		cases, err := c.ListCases()
		if err != nil {
			return fmt.Errorf("failed to list cases: %w", err)
		}
		if ok, err := printJSON(cmd, cases); ok {
			return err
		}

		w := newTable()
		fmt.Fprintln(w, "ID\tUPDATED\tPRIORITY\tSTATUS\tTITLE")
		for _, cs := range cases {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				cs.ID, cs.UpdatedAt.Local().Format(time.DateTime), cs.Priority, cs.Status, cs.Title)
		}
		return w.Flush()
	},
}

var casesGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show a case with its alerts and transactions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}

		detail, err := c.GetCase(args[0])
		if errors.Is(err, client.ErrNotFound) {
			return fmt.Errorf("case %s not found", args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to get case: %w", err)
		}
		if ok, err := printJSON(cmd, detail); ok {
			return err
		}

		fmt.Printf("Case:     %s\n", detail.ID)
		fmt.Printf("Title:    %s\n", detail.Title)
		fmt.Printf("Status:   %s\n", detail.Status)
		fmt.Printf("Priority: %s\n", detail.Priority)
		fmt.Printf("Owner:    %s\n", detail.Owner)
		fmt.Printf("Created:  %s\n", detail.CreatedAt.Local().Format(time.DateTime))
		fmt.Printf("Updated:  %s\n", detail.UpdatedAt.Local().Format(time.DateTime))
		fmt.Printf("Summary:  %s\n", detail.Summary)

		fmt.Printf("\nAlerts (%d):\n", len(detail.Alerts))
		for _, a := range detail.Alerts {
			fmt.Printf("  %s  %.2f  %s\n", a.ID, a.RiskScore, a.Description)
		}
		fmt.Printf("\nTransactions (%d):\n", len(detail.Transactions))
		for _, t := range detail.Transactions {
			fmt.Printf("  %s  %s  %s  %s\n", t.ID, synth.FormatCurrency(t.Amount), t.Channel, t.Merchant)
		}
		return nil
	},
}

var casesSetStatusCmd = &cobra.Command{
	Use:   "set-status ID STATUS",
	Short: "Move a case to open, in_review, resolved or closed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status := types.CaseStatus(args[1])
		if !status.Valid() {
			return fmt.Errorf("invalid case status %q", args[1])
		}

		c, err := newClient(cmd)
		if err != nil {
			return err
		}

		updated, err := c.UpdateCaseStatus(args[0], status)
		if errors.Is(err, client.ErrNotFound) {
			return fmt.Errorf("case %s not found", args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to update case: %w", err)
		}
		if ok, err := printJSON(cmd, updated); ok {
			return err
		}

		fmt.Printf("Case %s is now %s\n", updated.ID, updated.Status)
		return nil
	},
}

// Transaction commands
var transactionsCmd = &cobra.Command{
	Use:   "transactions",
	Short: "Inspect transactions",
}

var transactionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the newest transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		txns, err := c.ListTransactions(limit)
		if err != nil {
			return fmt.Errorf("failed to list transactions: %w", err)
		}
		if ok, err := printJSON(cmd, txns); ok {
			return err
		}

		w := newTable()
		fmt.Fprintln(w, "ID\tCREATED\tMEMBER\tMERCHANT\tCHANNEL\tAMOUNT\tRISK")
		for _, t := range txns {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%.2f\n",
				t.ID, t.CreatedAt.Local().Format(time.DateTime), t.Member, t.Merchant, t.Channel,
				synth.FormatCurrency(t.Amount), t.RiskScore)
		}
		return w.Flush()
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show the current dashboard metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}

		m, err := c.Metrics()
		if err != nil {
			return fmt.Errorf("failed to get metrics: %w", err)
		}
		if ok, err := printJSON(cmd, m); ok {
			return err
		}
		printMetrics(m)
		return nil
	},
}

func printMetrics(m types.Metrics) {
	fmt.Printf("Transactions:      %d\n", m.TotalTransactions)
	fmt.Printf("High-risk alerts:  %d\n", m.HighRiskAlerts)
	fmt.Printf("Open cases:        %d\n", m.OpenCases)
	fmt.Printf("Alert rate:        %.3f\n", m.AlertRate)
	fmt.Printf("Avg response:      %.1f min\n", m.AvgResponseMinutes)
	fmt.Printf("False positives:   %.3f\n", m.FPRate)
	fmt.Printf("Latency p95:       %.0f ms\n", m.LatencyMsP95)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail the live alert stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		enc := json.NewEncoder(os.Stdout)
		return c.Watch(ctx, func(ev client.Event) error {
			if asJSON {
				if ev.Alert != nil {
					return enc.Encode(map[string]any{"event": ev.Type, "data": ev.Alert})
				}
				return enc.Encode(map[string]any{"event": ev.Type, "data": ev.Metrics})
			}

			now := time.Now().Format(time.TimeOnly)
			if ev.Alert != nil {
				a := ev.Alert
				fmt.Printf("%s  ALERT    %s  %-8s  %.2f  %s  %s  case=%s\n",
					now, a.ID, a.Status, a.RiskScore, synth.FormatCurrency(a.Amount), a.Description, caseID(a.CaseID))
				return nil
			}
			m := ev.Metrics
			fmt.Printf("%s  METRICS  txns=%d high_risk=%d open_cases=%d alert_rate=%.3f\n",
				now, m.TotalTransactions, m.HighRiskAlerts, m.OpenCases, m.AlertRate)
			return nil
		})
	},
}

// Feed commands
var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Control the synthesis feed",
}

func feedAction(use, short string, call func(*client.Client) (scheduler.Status, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}

			st, err := call(c)
			if err != nil {
				return fmt.Errorf("feed %s failed: %w", use, err)
			}
			if ok, err := printJSON(cmd, st); ok {
				return err
			}

			state := "running"
			switch {
			case !st.Running:
				state = "stopped"
			case st.Paused:
				state = "paused"
			}
			fmt.Printf("Feed:      %s (every %s)\n", state, st.Interval)
			fmt.Printf("Cycles:    %d\n", st.Cycles)
			fmt.Printf("Alerts:    %d\n", st.Alerts)
			fmt.Printf("Cases:     %d\n", st.Cases)
			fmt.Printf("Errors:    %d\n", st.Errors)
			if st.LastCycleAt != nil {
				fmt.Printf("Last run:  %s\n", st.LastCycleAt.Local().Format(time.DateTime))
			}
			if st.LastError != "" {
				fmt.Printf("Last err:  %s\n", st.LastError)
			}
			return nil
		},
	}
}

var (
	feedStatusCmd = feedAction("status", "Show feed state", (*client.Client).FeedStatus)
	feedPauseCmd  = feedAction("pause", "Pause synthesis", (*client.Client).PauseFeed)
	feedResumeCmd = feedAction("resume", "Resume synthesis", (*client.Client).ResumeFeed)
)

var feedRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one synthesis cycle now",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}

		res, err := c.RunFeed()
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
			return errors.New("feed is paused, resume it first")
		}
		if err != nil {
			return fmt.Errorf("feed run failed: %w", err)
		}
		if ok, err := printJSON(cmd, res); ok {
			return err
		}

		if t := res.Transaction; t != nil {
			fmt.Printf("Transaction: %s  %s  %s  risk=%.2f\n", t.ID, synth.FormatCurrency(t.Amount), t.Channel, t.RiskScore)
		}
		if a := res.Alert; a != nil {
			fmt.Printf("Alert:       %s  %s  %s\n", a.ID, a.Status, a.Description)
		}
		if cs := res.Case; cs != nil {
			fmt.Printf("Case:        %s  %s  %s\n", cs.ID, cs.Priority, cs.Title)
		}
		return nil
	},
}

func init() {
	alertsCmd.AddCommand(alertsListCmd)
	casesCmd.AddCommand(casesListCmd)
	casesCmd.AddCommand(casesGetCmd)
	casesCmd.AddCommand(casesSetStatusCmd)
	transactionsCmd.AddCommand(transactionsListCmd)
	feedCmd.AddCommand(feedStatusCmd)
	feedCmd.AddCommand(feedPauseCmd)
	feedCmd.AddCommand(feedResumeCmd)
	feedCmd.AddCommand(feedRunCmd)

	for _, cmd := range []*cobra.Command{
		alertsListCmd, casesListCmd, casesGetCmd, casesSetStatusCmd, transactionsListCmd,
		metricsCmd, watchCmd, feedStatusCmd, feedPauseCmd, feedResumeCmd, feedRunCmd,
	} {
		addClientFlags(cmd)
	}

	alertsListCmd.Flags().Int("limit", 0, "Maximum alerts to show (server default 10)")
	transactionsListCmd.Flags().Int("limit", 0, "Maximum transactions to show (server default 15)")
}
