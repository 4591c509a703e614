// fleetdash-admin manages dashboard accounts directly against the database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"fleetdash/config"
	"fleetdash/crypto"
	"fleetdash/db"
	"fleetdash/models"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	dim    = color.New(color.Faint)
)

// readPassword prompts on the terminal without echo. Tests replace it.
var readPassword = func(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if err := run(context.Background(), os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "create-user":
		return runCreateUser(ctx, args, out)
	case "set-password":
		return runSetPassword(ctx, args, out)
	case "list-users":
		return runListUsers(ctx, args, out)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func printUsage(w io.Writer) {
	bold.Fprintln(w, "fleetdash-admin")
	fmt.Fprintln(w, `
Usage:
  fleetdash-admin create-user [-config file] [-db path] [-role user|admin] [-name "Full Name"] <email>
  fleetdash-admin set-password [-config file] [-db path] <email>
  fleetdash-admin list-users [-config file] [-db path]`)
}

type commonFlags struct {
	configPath string
	dbPath     string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", os.Getenv("FLEETDASH_CONFIG"), "path to the YAML config file")
	fs.StringVar(&c.dbPath, "db", "", "database path (overrides config)")
}

// open resolves the configuration and opens the store it points at.
func (c *commonFlags) open() (*config.Config, *db.Store, error) {
	var cfg *config.Config
	var err error
	if c.configPath != "" {
		cfg, err = config.LoadConfig(c.configPath)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if c.dbPath != "" {
		cfg.Database.Path = c.dbPath
	}

	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func promptNewPassword() (string, error) {
	pw, err := readPassword("Password: ")
	if err != nil {
		return "", err
	}
	if pw == "" {
		return "", errors.New("password must not be empty")
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if pw != confirm {
		return "", errors.New("passwords do not match")
	}
	return pw, nil
}

func runCreateUser(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	role := fs.String("role", string(models.RoleUser), "account role (user or admin)")
	name := fs.String("name", "", "full name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("create-user needs exactly one email argument")
	}
	email := strings.TrimSpace(fs.Arg(0))

	r := models.Role(*role)
	if !r.Valid() {
		return fmt.Errorf("invalid role %q", *role)
	}

	cfg, store, err := common.open()
	if err != nil {
		return err
	}
	defer store.Close()

	pw, err := promptNewPassword()
	if err != nil {
		return err
	}
	hash, err := crypto.NewBcryptHasher(cfg.Auth.BcryptCost).Hash(pw)
	if err != nil {
		return err
	}

	caps := models.DefaultCapabilities()
	caps.Users = r == models.RoleAdmin
	fullName := *name
	if fullName == "" {
		fullName = email
	}
	u, err := store.CreateUser(ctx, &models.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         r,
		Capabilities: caps,
	})
	if errors.Is(err, db.ErrDuplicate) {
		return fmt.Errorf("a user with email %s already exists", email)
	}
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	green.Fprintf(out, "Created %s %s (id %d)\n", u.Role, u.Email, u.ID)
	return nil
}

func runSetPassword(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("set-password", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("set-password needs exactly one email argument")
	}

	cfg, store, err := common.open()
	if err != nil {
		return err
	}
	defer store.Close()

	u, err := store.GetUserByEmail(ctx, fs.Arg(0))
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("no user with email %s", fs.Arg(0))
	}
	if err != nil {
		return err
	}

	pw, err := promptNewPassword()
	if err != nil {
		return err
	}
	hash, err := crypto.NewBcryptHasher(cfg.Auth.BcryptCost).Hash(pw)
	if err != nil {
		return err
	}
	if err := store.SetPassword(ctx, u.ID, hash); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	green.Fprintf(out, "Password updated for %s\n", u.Email)
	return nil
}

func runListUsers(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list-users", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	_, store, err := common.open()
	if err != nil {
		return err
	}
	defer store.Close()

	users, err := store.ListUsers(ctx, "")
	if err != nil {
		return err
	}
	if len(users) == 0 {
		yellow.Fprintln(out, "No users.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tROLE\tCAPABILITIES")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Email, u.FullName, u.Role, capabilityList(u.Capabilities))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	dim.Fprintf(out, "%d user(s)\n", len(users))
	return nil
}

func capabilityList(c models.Capabilities) string {
	var names []string
	if c.Expenses {
		names = append(names, "expenses")
	}
	if c.ExternalExpenses {
		names = append(names, "external-expenses")
	}
	if c.Vehicles {
		names = append(names, "vehicles")
	}
	if c.Users {
		names = append(names, "users")
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ",")
}
