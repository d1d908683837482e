package auth

import (
	"bufio"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/crucial707/licitasis/cmd/cli/apiclient"
	"github.com/crucial707/licitasis/cmd/cli/config"
	"github.com/spf13/cobra"
)

// InitAuth registers login and logout on the root command.
func InitAuth(rootCmd *cobra.Command) {
	rootCmd.AddCommand(loginCmd(), logoutCmd())
}

// loginCmd creates a command that logs in a user and stores the JWT token locally.
func loginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the LicitaSis API",
		Long:  "Authenticate with email and password and store the session token for subsequent CLI commands. The password is read from stdin when --password is not given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			if password == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			var loginResp struct {
				Token string `json:"token"`
				User  struct {
					Name       string `json:"name"`
					Permission string `json:"permission"`
				} `json:"user"`
			}
			payload := map[string]string{"email": email, "password": password}
			if err := apiclient.Call(http.MethodPost, "/auth/login", nil, payload, &loginResp, false); err != nil {
				return fmt.Errorf("failed to login: %w", err)
			}
			if loginResp.Token == "" {
				return fmt.Errorf("login succeeded but no token returned")
			}

			if err := config.SaveToken(loginResp.Token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s).\n", loginResp.User.Name, loginResp.User.Permission)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email to authenticate as")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")

	return cmd
}

// logoutCmd ends the session on the server and removes the local token.
func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and remove the saved token",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := apiclient.Call(http.MethodPost, "/auth/logout", nil, nil, nil, true)
			if errors.Is(err, config.ErrNotLoggedIn) {
				fmt.Fprintln(cmd.OutOrStdout(), "No user logged in.")
				return nil
			}
			var apiErr *apiclient.APIError
			if err != nil && !(errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized) {
				return fmt.Errorf("failed to logout: %w", err)
			}

			if err := config.RemoveToken(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out successfully.")
			return nil
		},
	}
}
