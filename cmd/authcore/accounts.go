package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/nemoserver/authcore"
	"github.com/nemoserver/authcore/account"
	"github.com/nemoserver/authcore/provision"
	"github.com/nemoserver/authcore/store/sqlstore"
)

func (c *cli) migrate(ctx context.Context, args []string) error {
	fs := newFlagSet("migrate", c.out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Open applies pending migrations.
	a, err := c.open(ctx, openOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	version, err := sqlstore.MigrationVersion(ctx, a.store.DB(), a.store.Dialect())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s schema at version %d\n", a.store.Dialect(), version)
	return nil
}

func (c *cli) seed(ctx context.Context, args []string) error {
	fs := newFlagSet("seed", c.out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := c.open(ctx, openOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	res, err := c.seedDefaults(ctx, a)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "created: %s\nskipped: %s\n", joinOrNone(res.Created), joinOrNone(res.Skipped))
	return nil
}

func (c *cli) seedDefaults(ctx context.Context, a *app) (provision.Result, error) {
	hasher, err := a.hasher()
	if err != nil {
		return provision.Result{}, err
	}
	return provision.Seed(ctx, a.store, hasher, provision.Options{Logger: c.log})
}

func (c *cli) users(ctx context.Context, args []string) error {
	fs := newFlagSet("users", c.out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := c.open(ctx, openOptions{engine: true})
	if err != nil {
		return err
	}
	defer a.close()

	users, err := a.engine.ListUsers(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tROLE\tSPEAKER\tEMAIL\tUSER ID")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.Username, u.Role, orDash(u.SpeakerID), orDash(u.Email), u.UserID)
	}
	return tw.Flush()
}

func (c *cli) register(ctx context.Context, args []string) error {
	fs := newFlagSet("register", c.out)
	username := fs.String("username", "", "account username")
	pw := fs.String("password", "", "account password")
	role := fs.String("role", "user", "account role (user, admin)")
	speaker := fs.String("speaker", "", "speaker binding; defaults to the username for users")
	email := fs.String("email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := account.ParseRole(*role)
	if err != nil {
		return err
	}
	req := authcore.RegisterRequest{Username: *username, Password: *pw, Role: r}
	switch {
	case *speaker != "":
		req.SpeakerID = account.StringPtr(*speaker)
	case r == account.RoleUser:
		req.SpeakerID = account.StringPtr(account.NormalizeUsername(*username))
	}
	if *email != "" {
		req.Email = account.StringPtr(*email)
	}

	a, err := c.open(ctx, openOptions{engine: true})
	if err != nil {
		return err
	}
	defer a.close()

	sum, err := a.engine.Register(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "created %s (%s) %s\n", sum.Username, sum.Role, sum.UserID)
	return nil
}

func (c *cli) passwd(ctx context.Context, args []string) error {
	fs := newFlagSet("passwd", c.out)
	username := fs.String("username", "", "account username")
	oldPw := fs.String("old", "", "current password")
	newPw := fs.String("new", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := c.open(ctx, openOptions{engine: true})
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.engine.ChangePassword(ctx, *username, *oldPw, *newPw); err != nil {
		if errors.Is(err, authcore.ErrInvalidCredentials) {
			return errors.New("current password is incorrect")
		}
		return err
	}
	fmt.Fprintln(c.out, "password changed")
	return nil
}

func (c *cli) setRole(ctx context.Context, args []string) error {
	fs := newFlagSet("set-role", c.out)
	username := fs.String("username", "", "account username")
	role := fs.String("role", "", "new role (user, admin)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	r, err := account.ParseRole(*role)
	if err != nil {
		return err
	}

	a, err := c.open(ctx, openOptions{engine: true})
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.engine.SetRole(ctx, *username, r); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s is now %s\n", *username, r)
	return nil
}

func (c *cli) setSpeaker(ctx context.Context, args []string) error {
	fs := newFlagSet("set-speaker", c.out)
	username := fs.String("username", "", "account username")
	speaker := fs.String("speaker", "", "speaker id; empty clears the binding")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := c.open(ctx, openOptions{engine: true})
	if err != nil {
		return err
	}
	defer a.close()

	var sp *string
	if *speaker != "" {
		sp = account.StringPtr(*speaker)
	}
	if err := a.engine.SetSpeaker(ctx, *username, sp); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s speaker set to %s\n", *username, orDash(sp))
	return nil
}

func joinOrNone(s []string) string {
	if len(s) == 0 {
		return "none"
	}
	return strings.Join(s, ", ")
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
