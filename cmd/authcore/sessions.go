package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/nemoserver/authcore/token"
)

func (c *cli) login(ctx context.Context, args []string) error {
	fs := newFlagSet("login", c.out)
	username := fs.String("username", "", "account username")
	pw := fs.String("password", "", "account password")
	ip := fs.String("ip", "", "client address recorded in the session")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := c.open(ctx, openOptions{engine: true})
	if err != nil {
		return err
	}
	defer a.close()

	tok, err := a.engine.Authenticate(ctx, *username, *pw, *ip)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, tok)
	return nil
}

func (c *cli) validate(ctx context.Context, args []string) error {
	fs := newFlagSet("validate", c.out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	tok, err := tokenArg(fs)
	if err != nil {
		return err
	}

	a, err := c.open(ctx, openOptions{engine: true})
	if err != nil {
		return err
	}
	defer a.close()

	if _, err := a.engine.ValidateSession(ctx, tok); err != nil {
		return err
	}
	info, err := a.engine.InspectSession(tok)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

func (c *cli) refresh(ctx context.Context, args []string) error {
	fs := newFlagSet("refresh", c.out)
	ip := fs.String("ip", "", "new client address; empty keeps the old one")
	if err := fs.Parse(args); err != nil {
		return err
	}
	tok, err := tokenArg(fs)
	if err != nil {
		return err
	}

	a, err := c.open(ctx, openOptions{engine: true})
	if err != nil {
		return err
	}
	defer a.close()

	newTok, err := a.engine.RefreshToken(ctx, tok, *ip)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, newTok)
	return nil
}

func (c *cli) logout(ctx context.Context, args []string) error {
	fs := newFlagSet("logout", c.out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	tok, err := tokenArg(fs)
	if err != nil {
		return err
	}

	a, err := c.open(ctx, openOptions{engine: true})
	if err != nil {
		return err
	}
	defer a.close()

	// a fresh process has an empty cache, so Logout reports false even
	// though the token is revoked
	a.engine.Logout(ctx, tok)
	switch rep := a.engine.SecurityReport(); {
	case !rep.RevocationEnabled:
		c.log.Warn("revocation is disabled; the token stays valid until it expires")
	case !rep.RevocationShared:
		c.log.Warn("revocation list is process local without REDIS_ADDR; other processes still accept the token")
	}
	fmt.Fprintln(c.out, "logged out")
	return nil
}

func (c *cli) cleanup(ctx context.Context, args []string) error {
	fs := newFlagSet("cleanup", c.out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := c.open(ctx, openOptions{engine: true})
	if err != nil {
		return err
	}
	defer a.close()

	n := a.engine.CleanupExpiredSessions(ctx)
	fmt.Fprintf(c.out, "removed %d expired sessions\n", n)
	return nil
}

func (c *cli) genkey(args []string) error {
	fs := newFlagSet("genkey", c.out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := token.GenerateKey()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, hex.EncodeToString(key))
	return nil
}
