package audit

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/crucial707/licitasis/cmd/cli/apiclient"
	"github.com/crucial707/licitasis/cmd/cli/history"
	"github.com/crucial707/licitasis/cmd/cli/output"
	"github.com/spf13/cobra"
)

// InitAudit registers the administrator audit commands on the root command.
func InitAudit(rootCmd *cobra.Command) {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Query and maintain the audit log (administrators only)",
	}
	auditCmd.AddCommand(statsCmd(), reportCmd(), userHistoryCmd(), cleanupCmd())
	rootCmd.AddCommand(auditCmd)
}

// ==========================
// audit stats
// ==========================
func statsCmd() *cobra.Command {
	var days int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Event counts per action over the last N days",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Days  int `json:"days"`
				Items []struct {
					Action         string `json:"action"`
					Count          int    `json:"count"`
					DistinctActors int    `json:"distinct_actors"`
				} `json:"items"`
			}
			q := url.Values{"days": {strconv.Itoa(days)}}
			if err := apiclient.Call(http.MethodGet, "/audit/stats", q, nil, &out, true); err != nil {
				return err
			}
			if asJSON {
				return output.PrintJSON(cmd.OutOrStdout(), out)
			}

			rows := make([][]interface{}, 0, len(out.Items))
			for _, s := range out.Items {
				rows = append(rows, []interface{}{s.Action, s.Count, s.DistinctActors})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Last %d days\n", out.Days)
			output.RenderTable(cmd.OutOrStdout(), []string{"Action", "Events", "Users"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "Window in days")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output raw JSON")
	return cmd
}

// ==========================
// audit report
// ==========================
func reportCmd() *cobra.Command {
	var start, end string
	var userID int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Events between two dates (YYYY-MM-DD or RFC 3339)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if start == "" || end == "" {
				return fmt.Errorf("--start and --end are required")
			}
			q := url.Values{"start": {start}, "end": {end}}
			if userID > 0 {
				q.Set("user_id", strconv.Itoa(userID))
			}

			var out struct {
				Items []struct {
					history.Event
					ActorFullName   *string `json:"actor_full_name"`
					ActorPermission *string `json:"actor_permission"`
				} `json:"items"`
			}
			if err := apiclient.Call(http.MethodGet, "/audit/report", q, nil, &out, true); err != nil {
				return err
			}
			if asJSON {
				return output.PrintJSON(cmd.OutOrStdout(), out)
			}

			rows := make([][]interface{}, 0, len(out.Items))
			for _, e := range out.Items {
				permission := "(deleted user)"
				if e.ActorPermission != nil {
					permission = *e.ActorPermission
				}
				rows = append(rows, []interface{}{
					e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					e.Label,
					e.ActorName,
					permission,
					e.SourceIP,
				})
			}
			output.RenderTable(cmd.OutOrStdout(), []string{"When", "Action", "User", "Permission", "IP"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Start date")
	cmd.Flags().StringVar(&end, "end", "", "End date (a bare date covers the whole day)")
	cmd.Flags().IntVar(&userID, "user", 0, "Only events of this user id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output raw JSON")
	return cmd
}

// ==========================
// audit user-history <id>
// ==========================
func userHistoryCmd() *cobra.Command {
	var limit int
	var action string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "user-history <user-id>",
		Short: "Show one user's audit history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			var page history.Page
			if err := apiclient.Call(http.MethodGet, "/audit/users/"+strconv.Itoa(id)+"/history", history.Query(limit, action), nil, &page, true); err != nil {
				return err
			}
			if asJSON {
				return output.PrintJSON(cmd.OutOrStdout(), page)
			}
			history.Render(cmd, page.Items)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of events")
	cmd.Flags().StringVar(&action, "action", "", "Only events with this action")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output raw JSON")
	return cmd
}

// ==========================
// audit cleanup
// ==========================
func cleanupCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete events older than N days",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				DaysKept    int   `json:"days_kept"`
				DeletedRows int64 `json:"deleted_rows"`
			}
			q := url.Values{"days": {strconv.Itoa(days)}}
			if err := apiclient.Call(http.MethodPost, "/audit/cleanup", q, nil, &out, true); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d events older than %d days.\n", out.DeletedRows, out.DaysKept)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 365, "Keep events from the last N days")
	return cmd
}
