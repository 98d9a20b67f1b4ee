package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/3run4/stampcard/admin"
	"github.com/3run4/stampcard/config"
	"github.com/3run4/stampcard/gateway"
)

// adminFlags are shared by the headless admin commands.
type adminFlags struct {
	configDir  string
	gatewayURL string
	email      string
	password   string
	week       string
	date       string
	search     string
	sort       string
	dir        string
	timeout    time.Duration
}

func (f *adminFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configDir, "config", "config", "Directory holding config.json or config.yaml")
	cmd.Flags().StringVar(&f.gatewayURL, "gateway", "", "Backend gateway base URL (overrides config)")
	cmd.Flags().StringVar(&f.email, "admin-email", "", "Administrator email")
	cmd.Flags().StringVar(&f.password, "admin-password", "", "Administrator password (or STAMPCARD_ADMIN_PASSWORD)")
	cmd.Flags().StringVar(&f.week, "week", "", "Week filter: this, last or custom")
	cmd.Flags().StringVar(&f.date, "date", "", "Any day of the custom week, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.search, "search", "", "Case-insensitive name or email filter")
	cmd.Flags().StringVar(&f.sort, "sort", "", "Sort column: email, display_name, stamp_count, last_stamp_date")
	cmd.Flags().StringVar(&f.dir, "dir", "", "Sort direction: asc or desc")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Per-call gateway timeout (overrides config)")
}

func (f *adminFlags) query() (admin.Query, error) {
	week, err := admin.ParseWeekMode(f.week)
	if err != nil {
		return admin.Query{}, err
	}
	col, err := admin.ParseColumn(f.sort)
	if err != nil {
		return admin.Query{}, err
	}
	dir, err := admin.ParseDirection(f.dir)
	if err != nil {
		return admin.Query{}, err
	}
	return admin.Query{Search: f.search, Week: week, Date: f.date, Column: col, Direction: dir}, nil
}

// open signs in as the administrator and loads the roster.
func (f *adminFlags) open(ctx context.Context) (*admin.Console, error) {
	cfg, err := config.Parse(f.configDir)
	if err != nil {
		return nil, err
	}
	if f.gatewayURL != "" {
		cfg.GatewayBaseURL = f.gatewayURL
	}
	if cfg.GatewayBaseURL == "" {
		return nil, fmt.Errorf("gateway URL is not configured, pass --gateway or set GATEWAY_BASE_URL")
	}
	timeout := time.Duration(cfg.GatewayTimeoutSec) * time.Second
	if f.timeout > 0 {
		timeout = f.timeout
	}
	password := f.password
	if password == "" {
		password = os.Getenv("STAMPCARD_ADMIN_PASSWORD")
	}

	client := gateway.NewClient(cfg.GatewayBaseURL, timeout)
	c, err := admin.Authenticate(ctx, client, f.email, password, admin.WithTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("admin login: %w", err)
	}
	if err := c.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	return c, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func exportCmd() *cobra.Command {
	var (
		flags  adminFlags
		layout string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the member roster as CSV",
		Long: `Sign in as an administrator and write the filtered, sorted roster as CSV.

Examples:
  stampcard export --admin-email boss@club.org --out users.csv
  stampcard export --admin-email boss@club.org --week last --layout detailed
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := flags.query()
			if err != nil {
				return err
			}
			l, err := admin.ParseLayout(layout)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			c, err := flags.open(ctx)
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				return c.Export(cmd.OutOrStdout(), q, l)
			}
			return writeFile(out, func(w io.Writer) error { return c.Export(w, q, l) })
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&layout, "layout", "basic", "CSV layout: basic or detailed")
	cmd.Flags().StringVar(&out, "out", "", "Output file (default stdout)")
	return cmd
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func raffleCmd() *cobra.Command {
	var flags adminFlags
	cmd := &cobra.Command{
		Use:   "raffle",
		Short: "Pick a random raffle winner among members who attended a week",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := flags.query()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			c, err := flags.open(ctx)
			if err != nil {
				return err
			}
			return printRaffle(cmd.OutOrStdout(), c, q)
		},
	}
	flags.bind(cmd)
	return cmd
}

func printRaffle(w io.Writer, c *admin.Console, q admin.Query) error {
	if q.Week == admin.WeekAll {
		q.Week = admin.WeekThis
	}
	anchor, err := admin.ResolveAnchor(q.Week, q.Date, c.Today())
	if err != nil {
		return err
	}
	winner, pool, ok, err := c.Raffle(q)
	if err != nil {
		return err
	}
	week := anchor.Format(admin.DateLayout)
	if !ok {
		_, err = fmt.Fprintf(w, "No eligible members for the week of %s.\n", week)
		return err
	}
	name := winner.DisplayName
	if name == "" {
		name = winner.Email
	}
	_, err = fmt.Fprintf(w, "Winner for the week of %s: %s <%s> (%d eligible)\n", week, name, winner.Email, len(pool))
	return err
}
