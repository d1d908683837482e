package history

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/crucial707/licitasis/cmd/cli/apiclient"
	"github.com/crucial707/licitasis/cmd/cli/output"
	"github.com/spf13/cobra"
)

// Event is an audit event as returned by the history endpoints.
type Event struct {
	ID          int64                  `json:"id"`
	ActorID     *int                   `json:"actor_id"`
	ActorName   string                 `json:"actor_name"`
	Action      string                 `json:"action"`
	Label       string                 `json:"label"`
	TargetTable *string                `json:"target_table"`
	RecordID    *int64                 `json:"target_record_id"`
	Details     map[string]interface{} `json:"details"`
	SourceIP    string                 `json:"source_ip"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Page is the body of a history response.
type Page struct {
	UserID int     `json:"user_id"`
	Limit  int     `json:"limit"`
	Items  []Event `json:"items"`
}

// InitHistory registers the history command on the root command.
func InitHistory(rootCmd *cobra.Command) {
	rootCmd.AddCommand(historyCmd())
}

func historyCmd() *cobra.Command {
	var limit int
	var action string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show your own audit history",
		RunE: func(cmd *cobra.Command, args []string) error {
			var page Page
			if err := apiclient.Call(http.MethodGet, "/me/history", Query(limit, action), nil, &page, true); err != nil {
				return err
			}
			if asJSON {
				return output.PrintJSON(cmd.OutOrStdout(), page)
			}
			Render(cmd, page.Items)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of events")
	cmd.Flags().StringVar(&action, "action", "", "Only events with this action (e.g. LOGIN)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output raw JSON")
	return cmd
}

// Query builds the limit/action query shared by the history endpoints.
func Query(limit int, action string) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if action != "" {
		q.Set("action", action)
	}
	return q
}

// Render prints events as a table, newest first as received.
func Render(cmd *cobra.Command, events []Event) {
	if len(events) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No events.")
		return
	}
	rows := make([][]interface{}, 0, len(events))
	for _, e := range events {
		target := ""
		if e.TargetTable != nil {
			target = *e.TargetTable
			if e.RecordID != nil {
				target += "#" + strconv.FormatInt(*e.RecordID, 10)
			}
		}
		rows = append(rows, []interface{}{
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			e.Label,
			e.ActorName,
			target,
			e.SourceIP,
		})
	}
	output.RenderTable(cmd.OutOrStdout(), []string{"When", "Action", "User", "Target", "IP"}, rows)
}
