// Package login implements `weave login`: acquires an OAuth2
// client-credentials token for the optional remote HUD bridge
// (pkg/hud.Remote) and caches it in the OS keyring. No weave command
// currently builds a remote HUD sink.
package login

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/dgxrun/weave/internal/commands/shared"
)

const keyringService = "weave-hud"

var (
	tokenURL     string
	clientID     string
	clientSecret string
	scopes       []string
)

// NewCommand builds the `weave login` subcommand.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Acquire and cache a HUD bridge token",
		Long: `Login exchanges client credentials for an access token against the
remote HUD bridge's OAuth2 token endpoint, then stores it in the OS
keyring. It is only needed when running with a remote HUD sink
(pkg/hud.Remote); the local in-process HUD bus needs no credentials.`,
		RunE: runLogin,
	}
	cmd.Flags().StringVar(&tokenURL, "token-url", "", "OAuth2 token endpoint")
	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth2 client ID")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth2 client secret")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "OAuth2 scopes to request")
	cmd.MarkFlagRequired("token-url")
	cmd.MarkFlagRequired("client-id")
	cmd.MarkFlagRequired("client-secret")
	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	ccConfig := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}

	token, err := ccConfig.Token(context.Background())
	if err != nil {
		return shared.NewExecutionError("acquiring HUD bridge token", err)
	}

	raw, err := json.Marshal(token)
	if err != nil {
		return shared.NewExecutionError("encoding token for storage", err)
	}
	if err := keyring.Set(keyringService, clientID, string(raw)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return shared.NewConfigError("no OS keyring backend available", err)
		}
		return shared.NewExecutionError("storing token in keyring", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK("HUD bridge token cached, expires "+token.Expiry.String()))
	return nil
}
