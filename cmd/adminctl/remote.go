package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	apiclient "github.com/swami086/gentle-space-realty/pkg/api/client"
)

// remoteConfig is persisted between remote commands.
type remoteConfig struct {
	APIBaseURL  string `json:"api_base_url"`
	AccessToken string `json:"access_token"`
}

func (c cli) commandRemote(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: adminctl remote [status|login|users|role]")
	}
	switch args[0] {
	case "status":
		return c.remoteStatus(args[1:])
	case "login":
		return c.remoteLogin(args[1:])
	case "users":
		return c.remoteUsers(args[1:])
	case "role":
		return c.remoteRole(args[1:])
	}
	return fmt.Errorf("unknown remote command: %s", args[0])
}

func (c cli) remoteStatus(args []string) error {
	fs := flag.NewFlagSet("remote status", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	apiBase := fs.String("api", "", "API base URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, _, err := c.remoteClient(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	health, healthErr := client.Health(ctx)
	fmt.Fprintf(c.stdout, "api: %s\nstatus: %s\n", client.BaseURL(), firstNonEmpty(health.Status, "unreachable"))
	for name, component := range health.Components {
		fmt.Fprintf(c.stdout, "  %s: %s\n", name, component["status"])
	}
	authCfg, err := client.AuthConfig(ctx)
	if err != nil {
		return err
	}
	for _, name := range []string{"password", "google"} {
		provider, ok := authCfg.Providers[name]
		switch {
		case !ok:
			continue
		case provider.Enabled:
			fmt.Fprintf(c.stdout, "%s sign-in: enabled\n", name)
		default:
			fmt.Fprintf(c.stdout, "%s sign-in: disabled (%s)\n", name, provider.Reason)
		}
	}
	return healthErr
}

func (c cli) remoteLogin(args []string) error {
	fs := flag.NewFlagSet("remote login", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	apiBase := fs.String("api", "", "API base URL")
	email := fs.String("email", "", "Email address")
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
	client, cfg, err := c.remoteClient(*apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	resp, err := client.Login(ctx, *email, secret)
	if err != nil {
		return err
	}
	cfg.APIBaseURL = client.BaseURL()
	cfg.AccessToken = resp.Token
	if err := saveRemoteConfig(cfg); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "logged in as %s (%s), session expires %s\n", resp.User.Email, resp.User.Role, resp.ExpiresAt)
	return nil
}

func (c cli) remoteUsers(args []string) error {
	fs := flag.NewFlagSet("remote users", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	limit := fs.Int("limit", 50, "Maximum number of users")
	offset := fs.Int("offset", 0, "Number of users to skip")
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, cfg, err := c.remoteClient("")
	if err != nil {
		return err
	}
	if err := requireToken(cfg); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	users, err := client.ListUsers(ctx, cfg.AccessToken, *limit, *offset)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tROLE\tPROVIDER")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Role, u.AuthProvider)
	}
	return w.Flush()
}

func (c cli) remoteRole(args []string) error {
	fs := flag.NewFlagSet("remote role", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	userID := fs.String("id", "", "User identifier")
	role := fs.String("role", "", "New role (user|admin|super_admin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*userID) == "" || strings.TrimSpace(*role) == "" {
		return errors.New("--id and --role are required")
	}
	client, cfg, err := c.remoteClient("")
	if err != nil {
		return err
	}
	if err := requireToken(cfg); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	updated, err := client.ChangeRole(ctx, cfg.AccessToken, *userID, *role)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "role updated: %s -> %s\n", updated.Email, updated.Role)
	return nil
}

func (c cli) remoteClient(apiBase string) (*apiclient.Client, remoteConfig, error) {
	cfg, err := loadRemoteConfig()
	if err != nil {
		return nil, remoteConfig{}, err
	}
	if strings.TrimSpace(apiBase) != "" {
		cfg.APIBaseURL = apiBase
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return nil, remoteConfig{}, err
	}
	return client, cfg, nil
}

func requireToken(cfg remoteConfig) error {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return errors.New("please login first using 'adminctl remote login'")
	}
	return nil
}

func loadRemoteConfig() (remoteConfig, error) {
	path, err := remoteConfigPath()
	if err != nil {
		return remoteConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return remoteConfig{}, nil
		}
		return remoteConfig{}, err
	}
	var cfg remoteConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return remoteConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func saveRemoteConfig(cfg remoteConfig) error {
	path, err := remoteConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func remoteConfigPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "gsr-adminctl", "config.json"), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
