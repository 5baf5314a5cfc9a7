package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
)

var (
	ErrNotLoggedIn      = errors.New("not logged in")
	ErrLoginFailed      = errors.New("login failed")
	ErrSignupFailed     = errors.New("signup failed")
	ErrPermissionDenied = errors.New("permission denied")
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet

	out io.Writer
}

// NewRootCommand creates the root command
func NewRootCommand(env *Env) *Command {
	root := &Command{
		Name:        "pulse-session",
		Description: "Pulse of People - session client",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("pulse-session", flag.ContinueOnError),
		out:         env.Out,
	}

	// Add subcommands
	for _, cmd := range []*Command{
		newLoginCommand(env),
		newSignupCommand(env),
		newLogoutCommand(env),
		newWhoamiCommand(env),
		newCanCommand(env),
		newRequestCommand(env),
		newStatusCommand(env),
	} {
		cmd.Flags.SetOutput(env.Err)
		root.Subcommands[cmd.Name] = cmd
	}

	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(args []string) error {
	if len(args) == 0 {
		return c.usage()
	}

	// Check for help flag
	if args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		return c.usage()
	}

	// Check for subcommand
	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	out := c.out
	if out == nil {
		out = os.Stdout
	}

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")
	for _, name := range names {
		fmt.Fprintf(out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}
