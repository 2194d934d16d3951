package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mrlokans/growlin/internal/auth"
	"github.com/mrlokans/growlin/internal/config"
	"github.com/mrlokans/growlin/internal/database/users"
	"github.com/mrlokans/growlin/internal/entities"
)

// CreateUserCommand adds an account from the command line, e.g. the first
// librarian on a headless install.
type CreateUserCommand struct {
	DatabasePath string
	Username     string
	Name         string
	Email        string
	Group        string
	Password     string
	Admin        bool

	config *config.Config
	out    io.Writer
}

func NewCreateUserCommand(cfg *config.Config) *CreateUserCommand {
	return &CreateUserCommand{config: cfg, out: os.Stdout}
}

func (cmd *CreateUserCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)

	fs.StringVar(&cmd.DatabasePath, "db", "", "Path to the SQLite database (defaults to DATABASE_PATH)")
	fs.StringVar(&cmd.Username, "username", "", "Login name (required)")
	fs.StringVar(&cmd.Name, "name", "", "Display name, at most 24 characters (defaults to the username)")
	fs.StringVar(&cmd.Email, "email", "", "Email address")
	fs.StringVar(&cmd.Group, "group", "Staff", "Group the user is listed under on the login page")
	fs.StringVar(&cmd.Password, "password", "", "Password (a random one is generated and printed if empty)")
	fs.BoolVar(&cmd.Admin, "admin", false, "Grant the admin role")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s create-user [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Create a user account.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s create-user -username europa -name Europa -group Jupiter -admin\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd.Username = strings.TrimSpace(cmd.Username)
	if cmd.Username == "" {
		fs.Usage()
		return fmt.Errorf("username is required")
	}
	if cmd.Name == "" {
		cmd.Name = cmd.Username
	}
	return nil
}

func (cmd *CreateUserCommand) Run() error {
	db, err := openDatabase(cmd.config, cmd.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	password := cmd.Password
	generated := password == ""
	if generated {
		if password, err = auth.GeneratePassword(); err != nil {
			return fmt.Errorf("failed to generate password: %w", err)
		}
	}

	var roles []string
	if cmd.Admin {
		roles = append(roles, entities.RoleAdmin)
	}

	service := auth.NewService(users.NewRepository(db.DB), cmd.config.Auth)
	user, err := service.CreateUser(auth.NewUser{
		Username: cmd.Username,
		Name:     cmd.Name,
		Email:    cmd.Email,
		Password: password,
		Group:    cmd.Group,
		Roles:    roles,
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(cmd.out, "Created user %s in group %s\n", user.Username, cmd.Group)
	if generated {
		fmt.Fprintf(cmd.out, "Password: %s\n", password)
	}
	return nil
}
