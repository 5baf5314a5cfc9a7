package cli

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/pulseofpeople/sessionkit/pkg/auth"
	"github.com/pulseofpeople/sessionkit/pkg/session"
)

func newLoginCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "login",
		Description: "Log in with a username or email",
		Flags:       flag.NewFlagSet("login", flag.ContinueOnError),
	}

	identifier := cmd.Flags.String("identifier", "", "Username or email (may also be given as the first argument)")
	password := cmd.Flags.String("password", "", "Password")
	passwordStdin := cmd.Flags.Bool("password-stdin", false, "Read the password from stdin")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		id := *identifier
		if id == "" {
			id = cmd.Flags.Arg(0)
		}
		pw, err := resolvePassword(env, *password, *passwordStdin)
		if err != nil {
			return err
		}
		if id == "" || pw == "" {
			return fmt.Errorf("identifier and password are required")
		}

		if !env.Session.Login(env.Context(), id, pw) {
			return ErrLoginFailed
		}

		user := env.Session.User()
		fmt.Fprintf(env.Out, "Logged in as %s <%s> (role: %s)\n", user.Name, user.Email, user.Role)
		return nil
	}

	return cmd
}

func newSignupCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "signup",
		Description: "Register a new account and log in",
		Flags:       flag.NewFlagSet("signup", flag.ContinueOnError),
	}

	email := cmd.Flags.String("email", "", "Email address")
	name := cmd.Flags.String("name", "", "Full name")
	role := cmd.Flags.String("role", string(auth.DefaultRole), "Requested role (assigned by the server)")
	password := cmd.Flags.String("password", "", "Password")
	passwordStdin := cmd.Flags.Bool("password-stdin", false, "Read the password from stdin")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		pw, err := resolvePassword(env, *password, *passwordStdin)
		if err != nil {
			return err
		}
		if *email == "" || pw == "" {
			return fmt.Errorf("email and password are required")
		}

		ok := env.Session.Signup(env.Context(), session.SignupParams{
			Email:    *email,
			Password: pw,
			Name:     *name,
			Role:     *role,
		})
		if !ok {
			return ErrSignupFailed
		}

		user := env.Session.User()
		fmt.Fprintf(env.Out, "Account created. Logged in as %s <%s> (role: %s)\n", user.Name, user.Email, user.Role)
		return nil
	}

	return cmd
}

func newLogoutCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "logout",
		Description: "Clear stored tokens",
		Flags:       flag.NewFlagSet("logout", flag.ContinueOnError),
	}

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		env.Session.Logout(env.Context())
		fmt.Fprintln(env.Out, "Logged out")
		return nil
	}

	return cmd
}

func newWhoamiCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "whoami",
		Description: "Show the current user",
		Flags:       flag.NewFlagSet("whoami", flag.ContinueOnError),
	}

	asJSON := cmd.Flags.Bool("json", false, "Print the user as JSON")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		user := env.Session.Initialize(env.Context())
		if user == nil {
			return ErrNotLoggedIn
		}

		if *asJSON {
			return printUserJSON(env, user)
		}

		fmt.Fprintf(env.Out, "ID:           %s\n", user.ID)
		fmt.Fprintf(env.Out, "Name:         %s\n", user.Name)
		fmt.Fprintf(env.Out, "Email:        %s\n", user.Email)
		fmt.Fprintf(env.Out, "Role:         %s\n", user.Role)
		fmt.Fprintf(env.Out, "Worker:       %t\n", user.IsWorker())
		fmt.Fprintf(env.Out, "Super admin:  %t\n", user.IsSuperAdmin)
		if user.OrganizationID != "" {
			fmt.Fprintf(env.Out, "Organization: %s\n", user.OrganizationID)
		}
		fmt.Fprintf(env.Out, "Permissions:  %s\n", joinPermissions(user.Permissions))
		return nil
	}

	return cmd
}

func newCanCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "can",
		Description: "Check whether the current user holds a permission",
		Flags:       flag.NewFlagSet("can", flag.ContinueOnError),
	}

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		permission := cmd.Flags.Arg(0)
		if permission == "" {
			return fmt.Errorf("permission is required")
		}

		if env.Session.Initialize(env.Context()) == nil {
			return ErrNotLoggedIn
		}

		if !env.Session.HasPermission(auth.Permission(permission)) {
			fmt.Fprintln(env.Out, "no")
			return fmt.Errorf("%w: %s", ErrPermissionDenied, permission)
		}
		fmt.Fprintln(env.Out, "yes")
		return nil
	}

	return cmd
}

type userJSON struct {
	*auth.User
	Permissions []auth.Permission `json:"permissions"`
	IsWorker    bool              `json:"is_worker"`
}

func printUserJSON(env *Env, user *auth.User) error {
	enc := json.NewEncoder(env.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(userJSON{
		User:        user,
		Permissions: user.Permissions.Sorted(),
		IsWorker:    user.IsWorker(),
	})
}

func joinPermissions(set auth.PermissionSet) string {
	if len(set) == 0 {
		return "(none)"
	}
	perms := set.Sorted()
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return strings.Join(out, ", ")
}

func resolvePassword(env *Env, flagValue string, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(env.In).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("failed to read password from stdin: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	if flagValue != "" {
		return flagValue, nil
	}

	// Interactive prompt, only when stdin is a terminal
	f, ok := env.In.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return "", nil
	}
	fmt.Fprint(env.Err, "Password: ")
	pw, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(env.Err)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}
