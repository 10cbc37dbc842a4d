package main

import (
	"time"

	"github.com/MrEthical07/goIdentity/jwt"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// now is swapped in tests.
var now = time.Now

func newTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Work with issued tokens",
	}

	var unverified bool
	inspect := &cobra.Command{
		Use:   "inspect <token>",
		Short: "Print the claims of a token",
		Long: `Verify a token with the configured signing key and print its claims.
With --unverified the signature and expiry are not checked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claims, err := a.inspectToken(args[0], unverified)
			if err != nil {
				return err
			}
			printClaims(cmd, claims, unverified)
			return nil
		},
	}
	inspect.Flags().BoolVar(&unverified, "unverified", false, "decode without verifying signature or expiry")
	cmd.AddCommand(inspect)

	return cmd
}

func (a *app) inspectToken(token string, unverified bool) (*jwt.Claims, error) {
	if unverified {
		claims := &jwt.Claims{}
		if _, _, err := jwtlib.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, oops.Code("TOKEN_MALFORMED").Wrap(err)
		}
		return claims, nil
	}

	m, err := a.settings.Identity.JWT.NewTokenManager(now)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "build token manager").Wrap(err)
	}
	claims, err := m.Parse(token)
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID").Wrap(err)
	}
	return claims, nil
}

func printClaims(cmd *cobra.Command, c *jwt.Claims, unverified bool) {
	cmd.Printf("subject:  %s\n", c.Subject)
	cmd.Printf("purpose:  %s\n", c.Purpose)
	cmd.Printf("id:       %s\n", c.ID)
	cmd.Printf("issuer:   %s\n", c.Issuer)
	if c.IssuedAt != nil {
		cmd.Printf("issued:   %s\n", c.IssuedAt.UTC().Format(time.RFC3339))
	}
	if c.ExpiresAt != nil {
		cmd.Printf("expires:  %s\n", c.ExpiresAt.UTC().Format(time.RFC3339))
		if remaining := c.ExpiresAt.Sub(now()); remaining > 0 {
			cmd.Printf("remaining: %s\n", remaining.Round(time.Second))
		} else {
			cmd.Println("remaining: expired")
		}
	}
	if unverified {
		cmd.Println("verified: no")
	} else {
		cmd.Println("verified: yes")
	}
}
