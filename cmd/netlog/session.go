package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/netlog/internal/models"
	"github.com/zulandar/netlog/internal/netlog"
	"github.com/zulandar/netlog/internal/policy"
	"github.com/zulandar/netlog/internal/schedule"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Session management commands",
	}

	cmd.AddCommand(newSessionOpenCmd())
	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionShowCmd())
	return cmd
}

func newSessionOpenCmd() *cobra.Command {
	var (
		configPath string
		spec       netlog.SessionSpec
		at         string
		scheduled  bool
	)

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open a new net session",
		Long: `Opens a session owned by the given controller.

The start time defaults to the scheduled net in progress when net.schedule is
configured, otherwise to now. Use --at for an explicit RFC 3339 time, or
--scheduled to require the schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionOpen(cmd, configPath, spec, at, scheduled)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to netlog config file")
	cmd.Flags().StringVar(&spec.ControllerID, "controller", "", "controller id, usually a callsign (required)")
	cmd.Flags().StringVar(&spec.ControllerName, "name", "", "controller display name (required)")
	cmd.Flags().StringVar(&spec.ControllerEquipment, "equipment", "", "controller equipment")
	cmd.Flags().StringVar(&spec.ControllerAntenna, "antenna", "", "controller antenna")
	cmd.Flags().StringVar(&spec.ControllerQTH, "qth", "", "controller location")
	cmd.Flags().StringVar(&at, "at", "", "session start time (RFC 3339)")
	cmd.Flags().BoolVar(&scheduled, "scheduled", false, "use the configured net schedule for the start time")
	cmd.MarkFlagRequired("controller")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagsMutuallyExclusive("at", "scheduled")
	return cmd
}

func runSessionOpen(cmd *cobra.Command, configPath string, spec netlog.SessionSpec, at string, scheduled bool) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	switch {
	case at != "":
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("invalid --at %q: %w", at, err)
		}
		spec.SessionTime = t
	case scheduled:
		if a.cfg.Net.Schedule == "" {
			return fmt.Errorf("--scheduled requires net.schedule in %s", configPath)
		}
		sched, err := schedule.Parse(a.cfg.Net.Schedule)
		if err != nil {
			return err
		}
		spec.SessionTime = schedule.Current(sched, time.Now().In(a.cfg.Location()), policy.ExpiryWindow)
	}

	s, err := a.manager.CreateSession(context.Background(), spec)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Opened session %s\n", s.ID)
	printSession(out, s, time.Now())
	return nil
}

func newSessionListCmd() *cobra.Command {
	var (
		configPath string
		filter     netlog.SessionFilter
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionList(cmd, configPath, filter)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to netlog config file")
	cmd.Flags().StringVar(&filter.ControllerID, "controller", "", "only sessions opened by this controller")
	cmd.Flags().BoolVar(&filter.ActiveOnly, "active", false, "only sessions still open for logging")
	return cmd
}

func runSessionList(cmd *cobra.Command, configPath string, filter netlog.SessionFilter) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	sessions, err := a.manager.ListSessions(context.Background(), filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions found.")
		return nil
	}

	now := time.Now()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCONTROLLER\tNAME\tSTART (UTC)\tREMAINING")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.ControllerID, s.ControllerName,
			s.SessionTime.UTC().Format("2006-01-02 15:04"),
			policy.FormatRemaining(policy.Remaining(s.SessionTime, now)))
	}
	return w.Flush()
}

func newSessionShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session and its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to netlog config file")
	return cmd
}

func runSessionShow(cmd *cobra.Command, configPath, id string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	s, err := a.manager.GetSession(ctx, id)
	if err != nil {
		return err
	}
	records, err := a.manager.GetRecords(ctx, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printSession(out, s, time.Now())
	fmt.Fprintln(out)
	if len(records) == 0 {
		fmt.Fprintln(out, "No records logged.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME (UTC)\tCALLSIGN\tQTH\tSIGNAL\tREPORT\tREMARKS")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.CreatedAt.UTC().Format("15:04:05"), r.Callsign,
			orDash(r.QTH), orDash(r.Signal), orDash(r.Report), orDash(r.Remarks))
	}
	fmt.Fprintf(w, "\n%d records\n", len(records))
	return w.Flush()
}

func printSession(out io.Writer, s *models.Session, now time.Time) {
	fmt.Fprintf(out, "Session:    %s\n", s.ID)
	fmt.Fprintf(out, "Controller: %s (%s)\n", s.ControllerName, s.ControllerID)
	if s.ControllerQTH != nil {
		fmt.Fprintf(out, "QTH:        %s\n", *s.ControllerQTH)
	}
	if s.ControllerEquipment != nil {
		fmt.Fprintf(out, "Equipment:  %s\n", *s.ControllerEquipment)
	}
	if s.ControllerAntenna != nil {
		fmt.Fprintf(out, "Antenna:    %s\n", *s.ControllerAntenna)
	}
	fmt.Fprintf(out, "Start:      %s\n", s.SessionTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(out, "Closes:     %s (%s)\n",
		policy.ExpiresAt(s.SessionTime).UTC().Format(time.RFC3339),
		policy.FormatRemaining(policy.Remaining(s.SessionTime, now)))
}

// orDash renders a nullable column.
func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
