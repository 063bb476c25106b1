package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"finance-tracker/internal/client"
	"finance-tracker/internal/dashboard"
	"finance-tracker/internal/models"
)

const defaultServer = "http://localhost:8080"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: fintrack [-server <url>] [-session <cookie>] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  whoami     show the logged in user")
	fmt.Fprintln(w, "  list       list transactions (-type, -category, -q, -sort, -group)")
	fmt.Fprintln(w, "  summary    totals and expense breakdown (-currency)")
	fmt.Fprintln(w, "  add        add a transaction")
	fmt.Fprintln(w, "  edit       change fields of a transaction")
	fmt.Fprintln(w, "  delete     delete a transaction")
	fmt.Fprintln(w, "  logout     end the session")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The session cookie is copied from a logged in browser. It is read from")
	fmt.Fprintln(w, "-session, then FINTRACK_SESSION, and prompted for otherwise.")
}

type app struct {
	api     *client.Client
	session *client.SessionContext
	stdout  io.Writer
	stderr  io.Writer
	today   models.Date
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("fintrack", flag.ContinueOnError)
	fs.SetOutput(stderr)
	server := fs.String("server", defaultServer, "Server base URL")
	cookieName := fs.String("cookie-name", "fintrack.sid", "Name of the session cookie")
	sessionFlag := fs.String("session", "", "Session cookie value (optional, will prompt if omitted)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		usage(stdout)
		return fmt.Errorf("missing command")
	}

	if v := os.Getenv("FINTRACK_SERVER"); v != "" && *server == defaultServer {
		*server = v
	}

	sessionValue := *sessionFlag
	if sessionValue == "" {
		sessionValue = os.Getenv("FINTRACK_SESSION")
	}
	if sessionValue == "" {
		fmt.Fprint(stdout, "Session cookie: ")
		var err error
		sessionValue, err = readSecret(stdin)
		if err != nil {
			return fmt.Errorf("failed to read session cookie: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if strings.TrimSpace(sessionValue) == "" {
		return fmt.Errorf("session cookie cannot be empty")
	}

	api, err := client.New(*server)
	if err != nil {
		return err
	}
	api.SetSession(*cookieName, strings.TrimSpace(sessionValue))

	a := &app{
		api:     api,
		session: client.NewSessionContext(api),
		stdout:  stdout,
		stderr:  stderr,
		today:   models.DateOf(time.Now()),
	}

	ctx := context.Background()
	command, rest := fs.Arg(0), fs.Args()[1:]
	switch command {
	case "whoami":
		return a.whoami(ctx)
	case "list":
		return a.list(ctx, rest)
	case "summary":
		return a.summary(ctx, rest)
	case "add":
		return a.add(ctx, rest)
	case "edit":
		return a.edit(ctx, rest)
	case "delete":
		return a.delete(ctx, rest)
	case "logout":
		return a.logout(ctx)
	default:
		usage(stdout)
		return fmt.Errorf("unknown command %q", command)
	}
}

// identity waits for the session lookup and fails when nobody is logged in.
func (a *app) identity(ctx context.Context) (*models.Identity, error) {
	a.session.Load(ctx)
	identity, err := a.session.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, errors.New("not logged in; copy a fresh session cookie from the browser")
	}
	return identity, nil
}

func (a *app) dashboard(ctx context.Context) (*client.Dashboard, error) {
	identity, err := a.identity(ctx)
	if err != nil {
		return nil, err
	}
	d := client.NewDashboard(a.api, identity.ID)
	if err := d.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	return d, nil
}

func (a *app) whoami(ctx context.Context) error {
	identity, err := a.identity(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s <%s>\n", identity.Name, identity.Email)
	fmt.Fprintf(a.stdout, "id: %s\n", identity.ID)
	return nil
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	kind := fs.String("type", dashboard.All, "income, expense or all")
	category := fs.String("category", dashboard.All, "Category name or all")
	query := fs.String("q", "", "Search text")
	sortBy := fs.String("sort", string(dashboard.SortNewest), "newest, oldest, amountHigh or amountLow")
	group := fs.Bool("group", false, "Group by day")
	if err := fs.Parse(args); err != nil {
		return err
	}

	d, err := a.dashboard(ctx)
	if err != nil {
		return err
	}
	d.SetFilter(dashboard.Filter{Kind: *kind, Category: *category, Query: *query, Sort: dashboard.Sort(*sortBy)})
	view := d.View()

	if len(view.Transactions) == 0 {
		fmt.Fprintln(a.stdout, "No transactions")
		return nil
	}

	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	if *group {
		for _, g := range dashboard.GroupByDay(view.Transactions, a.today) {
			fmt.Fprintf(w, "%s\t\t\t%s\n", g.Title, signed(g.Net))
			for _, t := range g.Items {
				writeRow(w, t)
			}
		}
	} else {
		fmt.Fprintln(w, "DATE\tTYPE\tAMOUNT\tCATEGORY\tDESCRIPTION\tID")
		for _, t := range view.Transactions {
			fmt.Fprintf(w, "%s\t", t.Date)
			writeRow(w, t)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "\n%d transaction(s), income %s, expense %s, net %s\n",
		view.Totals.Count, view.Totals.Income.StringFixed(2), view.Totals.Expense.StringFixed(2), view.Totals.Net.StringFixed(2))
	return nil
}

func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}

func writeRow(w io.Writer, t models.Transaction) {
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.Kind, t.Amount.StringFixed(2), t.Category, t.Description, t.ID)
}

func (a *app) summary(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	currency := fs.String("currency", "", "Also show totals converted from USD into this currency")
	if err := fs.Parse(args); err != nil {
		return err
	}

	d, err := a.dashboard(ctx)
	if err != nil {
		return err
	}
	view := d.View()

	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "Transactions\t%d\t\n", view.Totals.Count)
	fmt.Fprintf(w, "Income\t%s\t\n", view.Totals.Income.StringFixed(2))
	fmt.Fprintf(w, "Expense\t%s\t\n", view.Totals.Expense.StringFixed(2))
	fmt.Fprintf(w, "Net\t%s\t\n", view.Totals.Net.StringFixed(2))
	if err := w.Flush(); err != nil {
		return err
	}

	if *currency != "" {
		rate, err := a.api.ExchangeRate(ctx, "USD", *currency)
		if err != nil {
			return fmt.Errorf("failed to get exchange rate: %w", err)
		}
		converted := view.Totals.Convert(rate.Rate)
		fmt.Fprintf(a.stdout, "\nIn %s at %s (%s): income %s, expense %s, net %s\n",
			rate.Quote, rate.Rate, rate.Date,
			converted.Income.StringFixed(2), converted.Expense.StringFixed(2), converted.Net.StringFixed(2))
	}

	if len(view.Breakdown) > 0 {
		fmt.Fprintln(a.stdout, "\nExpenses by category:")
		w = tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
		for _, c := range view.Breakdown {
			fmt.Fprintf(w, "  %s\t%s\t%s%%\n", c.Category, c.Total.StringFixed(2), c.Percentage.StringFixed(1))
		}
		return w.Flush()
	}
	return nil
}

// fieldFlags registers the editable transaction fields on fs.
func fieldFlags(fs *flag.FlagSet) map[string]*string {
	return map[string]*string{
		"type":        fs.String("type", "", "income or expense"),
		"amount":      fs.String("amount", "", "Amount, e.g. 12.50"),
		"category":    fs.String("category", "", "Category"),
		"date":        fs.String("date", "", "Date as YYYY-MM-DD"),
		"description": fs.String("desc", "", "Description"),
	}
}

// input builds a TransactionInput from the flags that were actually given.
func input(fs *flag.FlagSet, values map[string]*string) client.TransactionInput {
	var in client.TransactionInput
	fs.Visit(func(f *flag.Flag) {
		name := f.Name
		if name == "desc" {
			name = "description"
		}
		v, ok := values[name]
		if !ok {
			return
		}
		switch name {
		case "type":
			in.Type = client.String(*v)
		case "amount":
			in.Amount = client.String(*v)
		case "category":
			in.Category = client.String(*v)
		case "date":
			in.Date = client.String(*v)
		case "description":
			in.Description = client.String(*v)
		}
	})
	return in
}

func (a *app) add(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	values := fieldFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	in := input(fs, values)
	if in.Date == nil {
		in.Date = client.String(a.today.String())
	}

	identity, err := a.identity(ctx)
	if err != nil {
		return err
	}
	d := client.NewDashboard(a.api, identity.ID)
	t, err := d.Create(ctx, in)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	fmt.Fprintf(a.stdout, "Added %s %s %s on %s (%s)\n", t.Kind, t.Amount.StringFixed(2), t.Category, t.Date, t.ID)
	return nil
}

func (a *app) edit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	id := fs.String("id", "", "Transaction id")
	values := fieldFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		fmt.Fprintln(a.stdout, "Usage: fintrack edit -id <id> [-type] [-amount] [-category] [-date] [-desc]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: id")
	}

	t, err := a.api.UpdateTransaction(ctx, *id, input(fs, values))
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	fmt.Fprintf(a.stdout, "Updated %s: %s %s %s on %s\n", t.ID, t.Kind, t.Amount.StringFixed(2), t.Category, t.Date)
	return nil
}

func (a *app) delete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	id := fs.String("id", "", "Transaction id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		fmt.Fprintln(a.stdout, "Usage: fintrack delete -id <id>")
		return fmt.Errorf("missing required flags: id")
	}

	if err := a.api.DeleteTransaction(ctx, *id); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	fmt.Fprintf(a.stdout, "Deleted %s\n", *id)
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if err := a.session.Logout(ctx); err != nil {
		fmt.Fprintf(a.stderr, "Warning: %v\n", err)
	}
	fmt.Fprintln(a.stdout, "Logged out")
	return nil
}

func readSecret(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
