// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/sessionscope/internal/api"
	"github.com/jeranaias/sessionscope/internal/config"
)

func loginCmd(a *App) *cobra.Command {
	var noVerify bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a bearer token for the backend in the config file",
		Long: "Store a bearer token in the config file. The token is read without echo\n" +
			"from the terminal, or as one line from piped stdin. It is checked against\n" +
			"the backend before it is saved unless --no-verify is given.",
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := a.flags.token
			if token == "" {
				var err error
				if token, err = a.readSecret("Token: "); err != nil {
					return err
				}
			}
			if token == "" {
				return usageErrorf("no token given")
			}

			if !noVerify {
				client := api.NewClientWithConfig(&api.ClientConfig{
					BaseURL:    a.cfg.API.BaseURL,
					APIVersion: a.cfg.API.APIVersion,
					Token:      token,
					Timeout:    a.cfg.API.Timeout(),
					Logger:     &a.logger,
				})
				if _, err := client.GetSystemConfig(cmd.Context()); err != nil {
					return api.ProcessError(err, "token rejected")
				}
			}

			cfg, path, err := a.loadEditable()
			if err != nil {
				return err
			}
			cfg.API.Token = token
			if a.flags.baseURL != "" {
				cfg.API.BaseURL = a.cfg.API.BaseURL
			}
			if err := config.SaveTo(cfg, path); err != nil {
				return errors.Wrap(err, "failed to save token")
			}

			data := map[string]interface{}{"path": path, "base_url": cfg.API.BaseURL, "verified": !noVerify}
			return a.emit(cmd, data, func(w io.Writer) error {
				fmt.Fprintln(w, a.theme.RenderSuccess(fmt.Sprintf("Token for %s saved to %s", cfg.API.BaseURL, path)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "save without checking the token")
	return cmd
}
