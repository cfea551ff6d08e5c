// Package admincli implements the scmsctl operator commands.
package admincli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"github.com/yigit/scms/internal/app/models"
	appRepos "github.com/yigit/scms/internal/app/repositories"
	"github.com/yigit/scms/internal/app/services"
	"github.com/yigit/scms/internal/bootstrap"
	"github.com/yigit/scms/internal/pkg/apperrors"
	"github.com/yigit/scms/internal/seed"
)

// Env is what a command runs against
type Env struct {
	Store    appRepos.Store
	Services *services.Services
	Logger   zerolog.Logger
	// Migrate applies pending migrations; nil when the backend has no schema
	Migrate func(ctx context.Context) (int, error)
	Close   func()
}

// Opener builds an Env from the --config flag value
type Opener func(ctx context.Context, configPath string) (*Env, error)

// OpenPostgres connects to the configured database without running migrations
func OpenPostgres(ctx context.Context, configPath string) (*Env, error) {
	cfg, lgr, err := bootstrap.LoadConfigAndSetupLogger(configPath)
	if err != nil {
		return nil, err
	}
	database, err := bootstrap.ConnectDatabase(cfg, lgr)
	if err != nil {
		return nil, err
	}
	denylist, closeDenylist, err := bootstrap.SetupDenylist(ctx, cfg, lgr)
	if err != nil {
		database.Close()
		return nil, err
	}

	store := appRepos.NewPostgresStore(database)
	svc, _ := bootstrap.BuildServices(cfg, store, denylist, lgr)
	return &Env{
		Store:    store,
		Services: svc,
		Logger:   lgr,
		Migrate: func(ctx context.Context) (int, error) {
			return bootstrap.RunMigrations(ctx, cfg, database, lgr)
		},
		Close: func() {
			_ = closeDenylist()
			database.Close()
		},
	}, nil
}

var (
	success = color.New(color.FgGreen)
	warning = color.New(color.FgYellow)
	notice  = color.New(color.FgCyan)
	failure = color.New(color.FgRed)
)

// NewApp builds the scmsctl command tree
func NewApp(open Opener) *cli.App {
	r := &runner{open: open}
	return &cli.App{
		Name:  "scmsctl",
		Usage: "operator commands for the student course management service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   bootstrap.DefaultConfigPath,
				Usage:   "path to the config file",
				EnvVars: []string{"SCMS_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "create-admin",
				Usage: "create the admin account, or replace the existing one with --force",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Value: "admin", Usage: "admin username"},
					&cli.StringFlag{Name: "email", Required: true, Usage: "admin email"},
					&cli.StringFlag{Name: "password", Value: seed.AdminPassword, Usage: "admin password"},
					&cli.StringFlag{Name: "first-name", Value: "System", Usage: "admin first name"},
					&cli.StringFlag{Name: "last-name", Value: "Admin", Usage: "admin last name"},
					&cli.BoolFlag{Name: "force", Usage: "replace the existing admin"},
				},
				Action: r.wrap(createAdmin),
			},
			{
				Name:   "list-admins",
				Usage:  "list every admin account",
				Action: r.wrap(listAdmins),
			},
			{
				Name:  "cleanup-admins",
				Usage: "keep a single admin account; dry run unless --confirm is given",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "keep", Usage: "username of the admin to keep (default: oldest)"},
					&cli.BoolFlag{Name: "confirm", Usage: "actually delete the other admins"},
				},
				Action: r.wrap(cleanupAdmins),
			},
			{
				Name:  "seed",
				Usage: "load the sample admin, courses and students",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "clear", Usage: "remove existing students and courses first"},
				},
				Action: r.wrap(seedData),
			},
			{
				Name:   "backfill-profiles",
				Usage:  "create student profiles for student users that lack one",
				Action: r.wrap(backfillProfiles),
			},
			{
				Name:   "migrate",
				Usage:  "apply pending database migrations",
				Action: r.wrap(migrate),
			},
		},
	}
}

type runner struct {
	open Opener
}

type action func(c *cli.Context, env *Env) error

func (r *runner) wrap(fn action) cli.ActionFunc {
	return func(c *cli.Context) error {
		env, err := r.open(c.Context, c.String("config"))
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to initialize: %v", err), 1)
		}
		if env.Close != nil {
			defer env.Close()
		}
		return fn(c, env)
	}
}

func createAdmin(c *cli.Context, env *Env) error {
	w := c.App.Writer
	in := services.NewUserInput{
		Username:  c.String("username"),
		Email:     c.String("email"),
		Password:  c.String("password"),
		FirstName: c.String("first-name"),
		LastName:  c.String("last-name"),
		IsStaff:   true,
	}

	created, replaced, err := env.Services.UserService.ReplaceAdmin(c.Context, in, c.Bool("force"))
	if errors.Is(err, apperrors.ErrConflict) {
		warning.Fprintln(w, message(err))
		notice.Fprintln(w, "Use --force flag to replace the existing admin")
		return cli.Exit("", 1)
	}
	if err != nil {
		return cli.Exit(describe(err), 1)
	}

	for _, u := range replaced {
		warning.Fprintf(w, "Replaced existing admin: %s (%s)\n", u.Username, u.Email)
	}
	success.Fprintf(w, "Successfully created admin account: %s (%s)\n", created.Username, created.Email)
	notice.Fprintf(w, "Login credentials - Username: %s, Password: %s\n", in.Username, in.Password)
	return nil
}

func listAdmins(c *cli.Context, env *Env) error {
	w := c.App.Writer
	admins, err := env.Services.UserService.ListAdmins(c.Context)
	if err != nil {
		return cli.Exit(describe(err), 1)
	}
	if len(admins) == 0 {
		notice.Fprintln(w, "No admin accounts found in the system")
		return nil
	}

	success.Fprintf(w, "Found %d admin account(s):\n", len(admins))
	renderUsers(w, admins)
	return nil
}

func cleanupAdmins(c *cli.Context, env *Env) error {
	w := c.App.Writer
	confirm := c.Bool("confirm")

	kept, removed, err := env.Services.UserService.CleanupAdmins(c.Context, c.String("keep"), confirm)
	if err != nil {
		return cli.Exit(describe(err), 1)
	}
	if len(removed) == 0 {
		count := 0
		if kept != nil {
			count = 1
		}
		success.Fprintf(w, "System is already clean - only %d admin(s) found\n", count)
		return nil
	}

	success.Fprintf(w, "Will keep: %s (%s)\n", kept.Username, kept.Email)
	warning.Fprintf(w, "Will remove %d admin(s):\n", len(removed))
	renderUsers(w, removed)

	if !confirm {
		notice.Fprintln(w, "This is a dry run. Use --confirm flag to actually perform the cleanup.")
		return nil
	}
	success.Fprintf(w, "Successfully removed %d admin account(s). System now has only one admin: %s\n", len(removed), kept.Username)
	return nil
}

func seedData(c *cli.Context, env *Env) error {
	w := c.App.Writer
	seeder := seed.NewSeeder(env.Store, env.Services, env.Logger)

	if c.Bool("clear") {
		warning.Fprintln(w, "Clearing existing students and courses...")
		if err := seeder.Clear(c.Context); err != nil {
			return cli.Exit(describe(err), 1)
		}
	}

	res, err := seeder.Run(c.Context)
	if err != nil {
		return cli.Exit(describe(err), 1)
	}

	success.Fprintln(w, "Sample data loaded")
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Item", "Created"})
	table.Append([]string{"Courses", fmt.Sprint(res.CoursesCreated)})
	table.Append([]string{"Students", fmt.Sprint(res.StudentsCreated)})
	table.Append([]string{"Enrollments ensured", fmt.Sprint(res.Enrollments)})
	table.Render()
	notice.Fprintf(w, "Admin login: %s / %s (if newly created)\n", seed.AdminUsername, seed.AdminPassword)
	notice.Fprintf(w, "Student password: %s\n", seed.StudentPassword)
	return nil
}

func backfillProfiles(c *cli.Context, env *Env) error {
	w := c.App.Writer
	created, err := env.Services.StudentService.BackfillProfiles(c.Context)
	if err != nil {
		return cli.Exit(describe(err), 1)
	}
	if len(created) == 0 {
		warning.Fprintln(w, "No student profiles needed to be created")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Username", "Student Number"})
	for _, s := range created {
		username := ""
		if s.User != nil {
			username = s.User.Username
		}
		table.Append([]string{username, s.StudentNumber})
	}
	table.Render()
	success.Fprintf(w, "Successfully created %d student profiles\n", len(created))
	return nil
}

func migrate(c *cli.Context, env *Env) error {
	w := c.App.Writer
	if env.Migrate == nil {
		notice.Fprintln(w, "Nothing to migrate")
		return nil
	}
	applied, err := env.Migrate(c.Context)
	if err != nil {
		return cli.Exit(describe(err), 1)
	}
	success.Fprintf(w, "Applied %d migration(s)\n", applied)
	return nil
}

func renderUsers(w io.Writer, users []*models.User) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Username", "Email", "Name", "Created", "Active"})
	for _, u := range users {
		active := "No"
		if u.IsActive {
			active = "Yes"
		}
		table.Append([]string{
			u.Username,
			u.Email,
			strings.TrimSpace(u.FirstName + " " + u.LastName),
			u.CreatedAt.Format("2006-01-02 15:04"),
			active,
		})
	}
	table.Render()
}

func message(err error) string {
	var ce *apperrors.CustomError
	if errors.As(err, &ce) && ce.Message != "" {
		return ce.Message
	}
	return err.Error()
}

// describe flattens an error and its field details into one line
func describe(err error) string {
	var ce *apperrors.CustomError
	if !errors.As(err, &ce) || len(ce.Details) == 0 {
		return failure.Sprint(message(err))
	}
	fields := make([]string, 0, len(ce.Details))
	for field := range ce.Details {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %v", field, ce.Details[field]))
	}
	return failure.Sprintf("%s (%s)", message(err), strings.Join(parts, "; "))
}
