package users

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/crucial707/licitasis/cmd/cli/apiclient"
	"github.com/crucial707/licitasis/cmd/cli/output"
	"github.com/spf13/cobra"
)

type user struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Permission string `json:"permission"`
}

// ==========================
// CLI Command Init
// ==========================
func InitUsers(rootCmd *cobra.Command) {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts (administrators only)",
	}
	usersCmd.AddCommand(listUsersCmd(), createUserCmd(), deleteUserCmd())
	rootCmd.AddCommand(usersCmd)
}

// ==========================
// List Users
// ==========================
func listUsersCmd() *cobra.Command {
	var limit, offset int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List user accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			var page struct {
				Items []user `json:"items"`
			}
			q := url.Values{"limit": {strconv.Itoa(limit)}, "offset": {strconv.Itoa(offset)}}
			if err := apiclient.Call(http.MethodGet, "/users", q, nil, &page, true); err != nil {
				return err
			}
			if asJSON {
				return output.PrintJSON(cmd.OutOrStdout(), page.Items)
			}

			rows := make([][]interface{}, 0, len(page.Items))
			for _, u := range page.Items {
				rows = append(rows, []interface{}{u.ID, u.Name, u.Email, u.Permission})
			}
			output.RenderTable(cmd.OutOrStdout(), []string{"ID", "Name", "Email", "Permission"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "Page offset")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output raw JSON")
	return cmd
}

// ==========================
// Create User
// ==========================
func createUserCmd() *cobra.Command {
	var name, email, password, permission string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]string{
				"name":       name,
				"email":      email,
				"password":   password,
				"permission": permission,
			}
			var created user
			if err := apiclient.Call(http.MethodPost, "/users", nil, payload, &created, true); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %d (%s, %s).\n", created.ID, created.Email, created.Permission)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Login email")
	cmd.Flags().StringVar(&password, "password", "", "Initial password (at least 8 characters)")
	cmd.Flags().StringVar(&permission, "permission", "", "Permission level (default Usuario_Nivel_1)")
	return cmd
}

// ==========================
// Delete User
// ==========================
func deleteUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete a user account; its audit history is kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			if err := apiclient.Call(http.MethodDelete, "/users/"+strconv.Itoa(id), nil, nil, nil, true); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %d.\n", id)
			return nil
		},
	}
}
