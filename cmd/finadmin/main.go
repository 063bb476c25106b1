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

	"github.com/redis/go-redis/v9"

	"finance-tracker/internal/models"
	"finance-tracker/internal/session"
	"finance-tracker/internal/storage"
)

const defaultDBPath = "finance.db"

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
	fmt.Fprintln(w, "Usage: finadmin [-db <db_path>] [-redis <addr>] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  users             list every user that has logged in")
	fmt.Fprintln(w, "  prune-sessions    delete expired sessions")
	fmt.Fprintln(w, "  revoke -email E   log a user out everywhere")
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("finadmin", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", defaultDBPath, "Path to database file")
	redisAddr := fs.String("redis", "", "Redis address when sessions are kept in Redis")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		usage(stdout)
		return fmt.Errorf("missing command")
	}

	// DATABASE_URL applies unless -db was given explicitly.
	if path := os.Getenv("DATABASE_URL"); path != "" && *dbPath == defaultDBPath {
		*dbPath = path
	}
	if *redisAddr == "" {
		*redisAddr = os.Getenv("REDIS_ADDR")
	}

	command, rest := fs.Arg(0), fs.Args()[1:]
	switch command {
	case "users", "prune-sessions", "revoke":
	default:
		usage(stdout)
		return fmt.Errorf("unknown command %q", command)
	}

	db, err := storage.NewDB(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	var sessions sessionStore = db
	if *redisAddr != "" && command != "users" {
		rdb := redis.NewClient(&redis.Options{Addr: *redisAddr, Password: os.Getenv("REDIS_PASSWORD")})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		sessions = session.NewRedisStore(rdb, "")
	}

	switch command {
	case "users":
		return listUsers(ctx, db, stdout)
	case "prune-sessions":
		return pruneSessions(ctx, sessions, stdout)
	default:
		return revoke(ctx, db, sessions, rest, stdin, stdout, stderr)
	}
}

// sessionStore is where the server keeps sessions: the database, or Redis
// when the server runs with REDIS_ADDR.
type sessionStore interface {
	DeleteUserSessions(ctx context.Context, userID string) (int64, error)
}

type sessionPruner interface {
	CleanExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

func listUsers(ctx context.Context, db *storage.DB, stdout io.Writer) error {
	users, err := db.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	if len(users) == 0 {
		fmt.Fprintln(stdout, "No users yet")
		return nil
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EMAIL\tNAME\tPROVIDER ID\tSINCE")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.Email, u.Name, u.ProviderID, u.CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}

func pruneSessions(ctx context.Context, sessions sessionStore, stdout io.Writer) error {
	pruner, ok := sessions.(sessionPruner)
	if !ok {
		fmt.Fprintln(stdout, "Sessions in Redis expire on their own, nothing to prune")
		return nil
	}
	n, err := pruner.CleanExpiredSessions(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to prune sessions: %w", err)
	}
	fmt.Fprintf(stdout, "Deleted %d expired session(s)\n", n)
	return nil
}

func revoke(ctx context.Context, db *storage.DB, sessions sessionStore, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("revoke", flag.ContinueOnError)
	fs.SetOutput(stderr)
	email := fs.String("email", "", "Email of the user to log out")
	yes := fs.Bool("yes", false, "Do not ask for confirmation")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		fmt.Fprintln(stdout, "Usage: finadmin revoke -email <email> [-yes]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: email")
	}

	user, err := db.GetUserByEmail(ctx, *email)
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("user %s does not exist", *email)
	}
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}

	if !*yes {
		fmt.Fprintf(stdout, "Log %s out of every session? [y/N]: ", user.Email)
		answer, err := readLine(stdin)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read answer: %w", err)
		}
		fmt.Fprintln(stdout)
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Fprintln(stdout, "Aborted")
			return nil
		}
	}

	n, err := sessions.DeleteUserSessions(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	fmt.Fprintf(stdout, "Revoked %d session(s) of %s\n", n, user.Email)
	return nil
}

func readLine(stdin io.Reader) (string, error) {
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
