package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/term"

	"github.com/swami086/gentle-space-realty/internal/domain"
	"github.com/swami086/gentle-space-realty/internal/repository"
	"github.com/swami086/gentle-space-realty/internal/repository/postgres"
	"github.com/swami086/gentle-space-realty/internal/service/auth"
	"github.com/swami086/gentle-space-realty/pkg/config"
	"github.com/swami086/gentle-space-realty/pkg/logger"
)

var buildVersion = "dev"

// openStoreFunc connects to the user store. The returned func releases it.
type openStoreFunc func(ctx context.Context, cfg config.AdminConfig) (repository.UserRepository, func(), error)

type cli struct {
	stdin     io.Reader
	stdinFD   int
	stdout    io.Writer
	stderr    io.Writer
	loadCfg   func() (config.AdminConfig, error)
	openStore openStoreFunc
}

func main() {
	c := cli{
		stdin:     os.Stdin,
		stdinFD:   int(os.Stdin.Fd()),
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		loadCfg:   config.LoadAdminConfig,
		openStore: openPostgres,
	}
	if err := c.run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (c cli) run(args []string) error {
	if len(args) == 0 {
		c.printUsage()
		return errors.New("missing command")
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "user":
		return c.commandUser(rest)
	case "policy":
		return c.commandPolicy(rest)
	case "config":
		return c.commandConfig(rest)
	case "remote":
		return c.commandRemote(rest)
	case "version", "--version", "-v":
		fmt.Fprintln(c.stdout, strings.TrimSpace(buildVersion))
		return nil
	case "help", "-h", "--help":
		c.printUsage()
		return nil
	}
	c.printUsage()
	return fmt.Errorf("unknown command: %s", cmd)
}

func (c cli) commandUser(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: adminctl user [create|list|role]")
	}
	switch args[0] {
	case "create":
		return c.userCreate(args[1:])
	case "list":
		return c.userList(args[1:])
	case "role":
		return c.userRole(args[1:])
	}
	return fmt.Errorf("unknown user command: %s", args[0])
}

func (c cli) userCreate(args []string) error {
	fs := flag.NewFlagSet("user create", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	email := fs.String("email", "", "Email address")
	name := fs.String("name", "", "Display name")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}

	secret := *password
	if secret == "" {
		var err error
		if secret, err = c.readPassword(); err != nil {
			return err
		}
	}

	return c.withStore(func(ctx context.Context, cfg config.AdminConfig, users repository.UserRepository) error {
		svc := auth.New(users, nil, c.serviceLogger(cfg), cfg.APIConfig())
		user, err := svc.CreatePasswordUser(ctx, *email, *name, secret)
		switch {
		case errors.Is(err, repository.ErrConflict):
			return fmt.Errorf("a user with email %s already exists", domain.NormalizeEmail(*email))
		case err != nil:
			return err
		}
		fmt.Fprintf(c.stdout, "user created: %s (%s) role=%s\n", user.ID, user.Email, user.Role)
		if !user.CanAccessAdmin() {
			fmt.Fprintln(c.stdout, "note: this account cannot sign in to the admin area")
		}
		return nil
	})
}

func (c cli) userList(args []string) error {
	fs := flag.NewFlagSet("user list", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	limit := fs.Int("limit", 50, "Maximum number of users")
	offset := fs.Int("offset", 0, "Number of users to skip")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return c.withStore(func(ctx context.Context, _ config.AdminConfig, users repository.UserRepository) error {
		list, err := users.ListUsers(ctx, *limit, *offset)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEMAIL\tROLE\tPROVIDER\tLAST LOGIN")
		for _, u := range list {
			last := "-"
			if u.LastLoginAt != nil {
				last = u.LastLoginAt.UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Role, u.AuthProvider, last)
		}
		return w.Flush()
	})
}

func (c cli) userRole(args []string) error {
	fs := flag.NewFlagSet("user role", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	email := fs.String("email", "", "Email address of the user")
	role := fs.String("role", "", "New role (user|admin|super_admin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	parsed, err := domain.ParseRole(*role)
	if err != nil {
		return errors.New("--role must be one of user, admin, super_admin")
	}
	return c.withStore(func(ctx context.Context, _ config.AdminConfig, users repository.UserRepository) error {
		user, err := users.GetUserByEmail(ctx, *email)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("no user with email %s", domain.NormalizeEmail(*email))
		}
		if err != nil {
			return err
		}
		updated, err := users.UpdateUserRole(ctx, user.ID, parsed)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "role updated: %s %s -> %s\n", updated.Email, user.Role, updated.Role)
		return nil
	})
}

// commandPolicy prints the role an email would receive, without touching the database.
func (c cli) commandPolicy(args []string) error {
	fs := flag.NewFlagSet("policy", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	domainFlag := fs.String("domain", "", "Admin email domain (default from ADMIN_EMAIL_DOMAIN)")
	super := fs.String("super-admin", "", "Super admin email (default from SUPER_ADMIN_EMAIL)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("usage: adminctl policy [--domain d] [--super-admin e] <email>...")
	}
	adminDomain, superAdmin := *domainFlag, *super
	if adminDomain == "" {
		adminDomain = os.Getenv("ADMIN_EMAIL_DOMAIN")
	}
	if superAdmin == "" {
		superAdmin = os.Getenv("SUPER_ADMIN_EMAIL")
	}
	policy := domain.NewRolePolicy(adminDomain, superAdmin)
	for _, email := range fs.Args() {
		role := policy.RoleFor(email)
		access := "denied"
		if role.CanAccessAdmin() {
			access = "allowed"
		}
		fmt.Fprintf(c.stdout, "%s\t%s\tadmin access %s\n", domain.NormalizeEmail(email), role, access)
	}
	return nil
}

func (c cli) commandConfig(args []string) error {
	if len(args) == 0 || args[0] != "check" {
		return errors.New("usage: adminctl config check")
	}
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		fmt.Fprintf(c.stdout, "configuration invalid:\n%v\n", err)
		return errors.New("configuration check failed")
	}
	fmt.Fprintf(c.stdout, "environment: %s\n", cfg.Environment)
	fmt.Fprintf(c.stdout, "callback path: %s\n", cfg.CallbackPath())
	if enabled, reason := cfg.GoogleStatus(); enabled {
		fmt.Fprintln(c.stdout, "google sign-in: enabled")
	} else {
		fmt.Fprintf(c.stdout, "google sign-in: disabled (%s)\n", reason)
	}
	limit, window := cfg.RateLimit()
	fmt.Fprintf(c.stdout, "rate limit: %d requests per %s\n", limit, window)
	if cfg.RedisAddr == "" {
		fmt.Fprintln(c.stdout, "login state: in-process (single instance only)")
	} else {
		fmt.Fprintf(c.stdout, "login state: redis %s\n", cfg.RedisAddr)
	}
	return nil
}

func (c cli) withStore(fn func(context.Context, config.AdminConfig, repository.UserRepository) error) error {
	cfg, err := c.loadCfg()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	users, release, err := c.openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx, cfg, users)
}

func (c cli) serviceLogger(cfg config.AdminConfig) *slog.Logger {
	level, _ := config.ParseLevel(cfg.LogLevel)
	return logger.NewWithOptions("gsr-adminctl", logger.Options{Writer: c.stderr, Level: level})
}

// readPassword prompts on a terminal and otherwise reads the first line of stdin.
func (c cli) readPassword() (string, error) {
	if !term.IsTerminal(c.stdinFD) {
		line, err := bufio.NewReader(c.stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	fmt.Fprint(c.stderr, "Password: ")
	first, err := term.ReadPassword(c.stdinFD)
	fmt.Fprintln(c.stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Fprint(c.stderr, "Confirm password: ")
	second, err := term.ReadPassword(c.stdinFD)
	fmt.Fprintln(c.stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

func openPostgres(ctx context.Context, cfg config.AdminConfig) (repository.UserRepository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL.Reveal())
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	return postgres.New(pool), pool.Close, nil
}

func (c cli) printUsage() {
	fmt.Fprintf(c.stdout, "adminctl %s\n\n", buildVersion)
	fmt.Fprint(c.stdout, `Usage:
	adminctl user create --email user@gentlespacerealty.com [--name "Jane Doe"] [--password secret]
	adminctl user list [--limit N] [--offset N]
	adminctl user role --email user@example.com --role user|admin|super_admin
	adminctl policy [--domain d] [--super-admin e] <email>...
	adminctl config check
	adminctl remote status [--api URL]
	adminctl remote login --email user@gentlespacerealty.com [--password secret] [--api URL]
	adminctl remote users [--limit N] [--offset N]
	adminctl remote role --id <user-id> --role user|admin|super_admin
	adminctl version
`)
}
