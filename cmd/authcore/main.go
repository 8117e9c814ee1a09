// Command authcore administers the user database and session tokens and
// serves the /api/auth HTTP API.
//
// Configuration comes from the environment and an optional .env file; see
// internal/config for the variables.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := setupLogger(os.Stderr)
	root := newRootCommand(ctx, &cli{out: os.Stdout, log: logger, envFile: envFileFromEnv()})

	if err := root.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogger(w io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return logger
}

func envFileFromEnv() string {
	if f := os.Getenv("AUTHCORE_ENV_FILE"); f != "" {
		return f
	}
	return ".env"
}

func newRootCommand(ctx context.Context, c *cli) *Command {
	root := &Command{
		Name:        "authcore",
		Description: "authcore - user and session administration",
		Subcommands: make(map[string]*Command),
		out:         c.out,
	}

	root.add(&Command{Name: "migrate", Description: "apply database migrations", Run: func(args []string) error { return c.migrate(ctx, args) }})
	root.add(&Command{Name: "seed", Description: "create the default accounts", Run: func(args []string) error { return c.seed(ctx, args) }})
	root.add(&Command{Name: "users", Description: "list accounts", Run: func(args []string) error { return c.users(ctx, args) }})
	root.add(&Command{Name: "register", Description: "create an account", Run: func(args []string) error { return c.register(ctx, args) }})
	root.add(&Command{Name: "passwd", Description: "change an account password", Run: func(args []string) error { return c.passwd(ctx, args) }})
	root.add(&Command{Name: "set-role", Description: "change an account role", Run: func(args []string) error { return c.setRole(ctx, args) }})
	root.add(&Command{Name: "set-speaker", Description: "change an account speaker binding", Run: func(args []string) error { return c.setSpeaker(ctx, args) }})
	root.add(&Command{Name: "login", Description: "authenticate and print a session token", Run: func(args []string) error { return c.login(ctx, args) }})
	root.add(&Command{Name: "validate", Description: "validate a session token", Run: func(args []string) error { return c.validate(ctx, args) }})
	root.add(&Command{Name: "refresh", Description: "refresh a session token", Run: func(args []string) error { return c.refresh(ctx, args) }})
	root.add(&Command{Name: "logout", Description: "revoke a session token", Run: func(args []string) error { return c.logout(ctx, args) }})
	root.add(&Command{Name: "cleanup", Description: "remove expired sessions and revocations", Run: func(args []string) error { return c.cleanup(ctx, args) }})
	root.add(&Command{Name: "genkey", Description: "print a new hex SECRET_KEY", Run: c.genkey})
	root.add(&Command{Name: "serve", Description: "serve the HTTP API", Run: func(args []string) error { return c.serve(ctx, args) }})

	return root
}
