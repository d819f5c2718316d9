package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/splitledger/internal/adapter/apiclient"
	"github.com/iho/splitledger/internal/adapter/http/dto"
	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/infrastructure/auth"
)

// cli holds the resolved connection settings shared by all commands.
type cli struct {
	configPath string
	baseURL    string
	token      string
	userID     string
	secret     string
	timeout    time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "splitledger-cli",
		Short:         "Splitledger CLI tool",
		Long:          `A command line interface for sharing expenses through the Splitledger API.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.resolve(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.configPath, "config", defaultConfigPath(), "Path to the TOML config file")
	flags.StringVar(&c.baseURL, "url", "http://localhost:8080", "Base URL of the Splitledger API")
	flags.StringVar(&c.token, "token", "", "Bearer token")
	flags.StringVar(&c.userID, "user", "", "User ID sent when the server runs without auth")
	flags.DurationVar(&c.timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(
		c.dashboardCmd(),
		c.contextsCmd(),
		c.friendCmd(),
		c.groupCmd(),
		c.entriesCmd(),
		c.rosterCmd(),
		c.balanceCmd(),
		c.breakdownCmd(),
		c.expenseCmd(),
		c.paymentCmd(),
		c.adjustCmd(),
		c.consistencyCmd(),
		c.tokenCmd(),
	)

	return rootCmd
}

// resolve merges the config file under explicitly set flags.
func (c *cli) resolve(cmd *cobra.Command) error {
	fc, err := loadFileConfig(c.configPath)
	if err != nil {
		return fmt.Errorf("read config %s: %w", c.configPath, err)
	}

	flags := cmd.Flags()
	if fc.URL != "" && !flags.Changed("url") {
		c.baseURL = fc.URL
	}
	if fc.Token != "" && !flags.Changed("token") {
		c.token = fc.Token
	}
	if fc.UserID != "" && !flags.Changed("user") {
		c.userID = fc.UserID
	}
	c.secret = fc.Secret
	if env := os.Getenv("JWT_SECRET"); env != "" {
		c.secret = env
	}
	return nil
}

func (c *cli) client() *apiclient.Client {
	return apiclient.New(c.baseURL,
		apiclient.WithToken(c.token),
		apiclient.WithUserID(c.userID),
	)
}

func (c *cli) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), c.timeout)
}

func (c *cli) dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show what you owe and are owed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			d, err := c.client().FetchDashboard(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, t := range d.Totals {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "You owe:      %s %s\n", t.Owes.Display, t.Currency)
				fmt.Fprintf(out, "Owed to you:  %s %s\n", t.OwedToYou.Display, t.Currency)
				fmt.Fprintf(out, "Net:          %s %s\n", t.NetGlobal.Display, t.Currency)
			}

			w := newTable(out)
			fmt.Fprintln(w, "\nCONTEXT\tTYPE\tNAME\tNET")
			for _, b := range append(d.Friends, d.Groups...) {
				name := b.Name
				if b.Counterpart != nil {
					name = firstNonEmpty(b.Counterpart.Name, b.Counterpart.UserID)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s %s\n", b.ContextID, b.ContextType, truncate(name, 24), b.Net.Display, b.Currency)
			}
			return w.Flush()
		},
	}
}

func (c *cli) contextsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contexts",
		Short: "List your friends and groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			list, err := c.client().FetchContexts(ctx)
			if err != nil {
				return err
			}

			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tTYPE\tNAME\tMEMBERS\tCURRENCY")
			for _, lc := range list.Contexts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", lc.ID, lc.Type, truncate(lc.Name, 24), len(lc.Members), lc.Currency)
			}
			return w.Flush()
		},
	}
}

func (c *cli) friendCmd() *cobra.Command {
	var name, currency string

	cmd := &cobra.Command{
		Use:   "friend <user-id>",
		Short: "Link yourself with another user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			lc, err := c.client().CreateFriend(ctx, dto.CreateFriendRequest{
				Friend:   dto.MemberRequest{UserID: args[0], Name: name},
				Currency: currency,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Friend context %s\n", lc.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Friend's display name")
	cmd.Flags().StringVar(&currency, "currency", "", "Currency code")
	return cmd
}

func (c *cli) groupCmd() *cobra.Command {
	var (
		members  []string
		currency string
	)

	cmd := &cobra.Command{
		Use:   "group <name>",
		Short: "Create a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dto.CreateGroupRequest{Name: args[0], Currency: currency}
			for _, m := range members {
				id, name, _ := strings.Cut(m, "=")
				req.Members = append(req.Members, dto.MemberRequest{UserID: id, Name: name})
			}

			ctx, cancel := c.context(cmd)
			defer cancel()

			lc, err := c.client().CreateGroup(ctx, req)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Group %s (%d members)\n", lc.ID, len(lc.Members))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&members, "member", nil, "Member as id or id=name (repeatable)")
	cmd.Flags().StringVar(&currency, "currency", "", "Currency code")
	return cmd
}

func (c *cli) entriesCmd() *cobra.Command {
	var since string

	cmd := &cobra.Command{
		Use:   "entries <context-id>",
		Short: "List a context's entries, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sinceDate *domain.Date
			if since != "" {
				d, err := domain.ParseDate(since)
				if err != nil {
					return err
				}
				sinceDate = &d
			}

			ctx, cancel := c.context(cmd)
			defer cancel()

			client := c.client()
			lc, err := client.FetchContext(ctx, args[0])
			if err != nil {
				return err
			}

			list, err := client.FetchEntries(ctx, domain.ContextType(lc.Type), lc.ID, sinceDate)
			if err != nil {
				return err
			}

			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "DATE\tKIND\tTITLE\tAMOUNT\tYOU")
			for _, e := range list.Entries {
				mine := "-"
				if e.MyDelta != nil {
					mine = e.MyDelta.Display
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Date, e.Kind, truncate(e.Title, 30), e.Amount.Display, mine)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "Only entries on or after YYYY-MM-DD")
	return cmd
}

func (c *cli) rosterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roster <context-id>",
		Short: "List a context's members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			members, err := c.client().FetchRoster(ctx, args[0])
			if err != nil {
				return err
			}

			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "USER\tNAME\tJOINED")
			for _, m := range members {
				fmt.Fprintf(w, "%s\t%s\t%s\n", m.UserID, m.Name, m.JoinedAt.Format(time.DateOnly))
			}
			return w.Flush()
		},
	}
}

func (c *cli) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <context-id>",
		Short: "Show your net in a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			b, err := c.client().FetchBalance(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", b.Net.Display, b.Currency)
			return nil
		},
	}
}

func (c *cli) breakdownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "breakdown <context-id>",
		Short: "Show per-member totals of a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			b, err := c.client().FetchBreakdown(ctx, args[0])
			if err != nil {
				return err
			}

			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "USER\tPAID\tSHARE\tNET")
			for _, m := range b.Members {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", firstNonEmpty(m.Name, m.UserID), m.TotalPaid.Display, m.TotalShare.Display, m.Net.Display)
			}
			return w.Flush()
		},
	}
}

// entryFlags are shared by the commands that append entries.
type entryFlags struct {
	date, title, note string
}

func (f *entryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.date, "date", "", "Entry date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&f.title, "title", "", "Title")
	cmd.Flags().StringVar(&f.note, "note", "", "Note")
}

func (f *entryFlags) request(kind domain.EntryKind) dto.AppendEntryRequest {
	date := f.date
	if date == "" {
		date = time.Now().Format(time.DateOnly)
	}
	return dto.AppendEntryRequest{Kind: string(kind), Date: date, Title: f.title, Note: f.note}
}

func (c *cli) post(cmd *cobra.Command, contextID string, req dto.AppendEntryRequest) error {
	ctx, cancel := c.context(cmd)
	defer cancel()

	client := c.client()
	lc, err := client.FetchContext(ctx, contextID)
	if err != nil {
		return err
	}

	e, err := client.PostEntry(ctx, domain.ContextType(lc.Type), lc.ID, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Recorded %s %s (#%d)", e.Kind, e.Amount.Display, e.Seq)
	if e.MyDelta != nil {
		fmt.Fprintf(out, ", your balance changes by %s", e.MyDelta.Display)
	}
	fmt.Fprintln(out)
	return nil
}

func (c *cli) expenseCmd() *cobra.Command {
	var (
		ef       entryFlags
		amount   string
		payer    string
		with     []string
		category string
	)

	cmd := &cobra.Command{
		Use:   "expense <context-id>",
		Short: "Record a shared expense split equally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ef.request(domain.EntryKindExpense)
			req.Amount = amount
			req.PayerID = payer
			req.SplitWith = with
			req.Category = category
			return c.post(cmd, args[0], req)
		},
	}

	ef.register(cmd)
	cmd.Flags().StringVar(&amount, "amount", "", "Total amount, e.g. 42.50")
	cmd.Flags().StringVar(&payer, "payer", "", "Who paid (default you)")
	cmd.Flags().StringSliceVar(&with, "with", nil, "Split among these members (default everyone)")
	cmd.Flags().StringVar(&category, "category", "", "Category")
	cmd.MarkFlagRequired("amount")
	return cmd
}

func (c *cli) paymentCmd() *cobra.Command {
	var (
		ef     entryFlags
		to     string
		amount string
	)

	cmd := &cobra.Command{
		Use:   "payment <context-id>",
		Short: "Record money you paid to someone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ef.request(domain.EntryKindPayment)
			req.Recipients = []dto.RecipientRequest{{UserID: to, Amount: amount}}
			return c.post(cmd, args[0], req)
		},
	}

	ef.register(cmd)
	cmd.Flags().StringVar(&to, "to", "", "Recipient user ID")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount, e.g. 10")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("amount")
	return cmd
}

func (c *cli) adjustCmd() *cobra.Command {
	var (
		ef       entryFlags
		owedToMe []string
		iOwe     []string
	)

	cmd := &cobra.Command{
		Use:   "adjust <context-id>",
		Short: "Record a manual balance adjustment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ef.request(domain.EntryKindAdjustment)

			for _, set := range []struct {
				values    []string
				direction domain.Direction
			}{
				{owedToMe, domain.DirectionOwedToMe},
				{iOwe, domain.DirectionIOwe},
			} {
				lines, err := parseAdjustments(set.values, set.direction)
				if err != nil {
					return err
				}
				req.Lines = append(req.Lines, lines...)
			}

			if len(req.Lines) == 0 {
				return errors.New("adjust needs at least one --owed-to-me or --i-owe")
			}
			return c.post(cmd, args[0], req)
		},
	}

	ef.register(cmd)
	cmd.Flags().StringArrayVar(&owedToMe, "owed-to-me", nil, "id=amount someone owes you (repeatable)")
	cmd.Flags().StringArrayVar(&iOwe, "i-owe", nil, "id=amount you owe someone (repeatable)")
	return cmd
}

func parseAdjustments(values []string, direction domain.Direction) ([]dto.AdjustmentLineRequest, error) {
	lines := make([]dto.AdjustmentLineRequest, 0, len(values))
	for _, v := range values {
		id, amount, ok := strings.Cut(v, "=")
		if !ok || id == "" || amount == "" {
			return nil, fmt.Errorf("invalid adjustment %q, want id=amount", v)
		}
		lines = append(lines, dto.AdjustmentLineRequest{CounterpartID: id, Direction: string(direction), Value: amount})
	}
	return lines, nil
}

func (c *cli) consistencyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consistency <context-id>",
		Short: "Check that a context's balances sum to zero",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			report, err := c.client().CheckConsistency(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !report.Consistent {
				fmt.Fprintf(out, "Consistency check FAILED (net sum %d)\n", report.NetSum)
				for _, p := range report.Problems {
					fmt.Fprintf(out, "  - %s\n", p)
				}
				return errors.New("ledger is inconsistent")
			}

			fmt.Fprintf(out, "Consistency check PASSED\n")
			fmt.Fprintf(out, "Entries: %d, version: %d\n", report.EntryCount, report.Version)
			return nil
		},
	}
}

func (c *cli) tokenCmd() *cobra.Command {
	var (
		name string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token with the server's JWT secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.userID == "" {
				return errors.New("token needs --user")
			}
			if c.secret == "" {
				return errors.New("no JWT secret: set JWT_SECRET or secret in the config file")
			}

			token, err := auth.NewJWTManager(c.secret, ttl).Generate(domain.Session{UserID: c.userID, Name: name})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name to embed")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
