package main

import (
	"flag"
	"fmt"
	"io"
	"sort"
)

// Command is one CLI subcommand.
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	out         io.Writer
}

// Execute dispatches args[0] to the matching subcommand.
func (c *Command) Execute(args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		c.usage()
		return nil
	}

	sub, ok := c.Subcommands[args[0]]
	if !ok {
		c.usage()
		return fmt.Errorf("unknown command: %s", args[0])
	}
	return sub.Run(args[1:])
}

func (c *Command) add(cmd *Command) {
	c.Subcommands[cmd.Name] = cmd
}

func (c *Command) usage() {
	fmt.Fprintf(c.out, "Usage: %s <command> [flags]\n\nCommands:\n", c.Name)
	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(c.out, "  %-12s %s\n", name, c.Subcommands[name].Description)
	}
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

// tokenArg returns the single positional token argument.
func tokenArg(fs *flag.FlagSet) (string, error) {
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%s: expected exactly one token argument", fs.Name())
	}
	return fs.Arg(0), nil
}
