package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// options are the global flags
type options struct {
	apiURL    string
	tokenPath string
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "doorctl",
		Short:         "Admin client for the doorgate server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.apiURL, "api", envOr("DOORGATE_API", "http://localhost:8080"), "server base URL")
	cmd.PersistentFlags().StringVar(&opts.tokenPath, "token-file", defaultTokenFile(), "where the login token is kept")

	cmd.AddCommand(
		newLoginCommand(opts),
		newUsersCommand(opts),
		newLogsCommand(opts),
		newExportCommand(opts),
		newDoorsCommand(opts),
		newGroupsCommand(opts),
		newSyncCommand(opts),
	)
	return cmd
}

func newLoginCommand(opts *options) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the admin token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if username == "" || password == "" {
				return fmt.Errorf("--username and --password are required")
			}
			var out struct {
				Token string `json:"token"`
				Role  string `json:"role"`
			}
			err := opts.client().do(cmd.Context(), http.MethodPost, "/admin/login",
				map[string]string{"username": username, "password": password}, &out)
			if err != nil {
				return err
			}
			if err := saveToken(opts.tokenPath, out.Token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", username, out.Role)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "admin username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "admin password")
	return cmd
}

func newUsersCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List cached directory users",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var users []struct {
				UPN    string   `json:"upn"`
				TagUID string   `json:"rfid_uid"`
				Groups []string `json:"groups"`
			}
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/admin/users", nil, &users); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "UPN\tTAG\tGROUPS")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\n", u.UPN, u.TagUID, strings.Join(u.Groups, ","))
			}
			return w.Flush()
		},
	}
}

func newLogsCommand(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the newest access log entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var logs []struct {
				Timestamp time.Time `json:"timestamp"`
				User      *string   `json:"user"`
				TagUID    string    `json:"rfid_uid"`
				DoorID    int64     `json:"door_id"`
				Granted   bool      `json:"granted"`
			}
			path := "/admin/logs?limit=" + strconv.Itoa(limit)
			if err := opts.client().do(cmd.Context(), http.MethodGet, path, nil, &logs); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tUSER\tTAG\tDOOR\tGRANTED")
			for _, l := range logs {
				user := "-"
				if l.User != nil {
					user = *l.User
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\n", l.Timestamp.Format(time.RFC3339), user, l.TagUID, l.DoorID, l.Granted)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "number of entries")
	return cmd
}

func newExportCommand(opts *options) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the access log as CSV or XLSX",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				output = "logs." + format
			}
			body, err := opts.client().raw(cmd.Context(), http.MethodGet, "/admin/logs/export?format="+url.QueryEscape(format))
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, body, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", output, len(body))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "csv or xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default logs.<format>)")
	return cmd
}

type door struct {
	ID    int64  `json:"id"`
	Group string `json:"group"`
}

func newDoorsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doors",
		Short: "List and manage door to group bindings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var doors []door
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/admin/doors", nil, &doors); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DOOR\tGROUP")
			for _, d := range doors {
				fmt.Fprintf(w, "%d\t%s\n", d.ID, d.Group)
			}
			return w.Flush()
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <id> <group>",
			Short: "Bind a door to a group",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid door id %q", args[0])
				}
				var out door
				if err := opts.client().do(cmd.Context(), http.MethodPost, "/admin/doors", door{ID: id, Group: args[1]}, &out); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Door %d now requires %s\n", out.ID, out.Group)
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Remove a door binding",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := opts.client().do(cmd.Context(), http.MethodDelete, "/admin/doors/"+url.PathEscape(args[0]), nil, nil); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Door %s deleted\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

func newGroupsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List and remove cached groups",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var groups []struct {
				Name string `json:"name"`
			}
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/admin/groups", nil, &groups); err != nil {
				return err
			}
			for _, g := range groups {
				fmt.Fprintln(cmd.OutOrStdout(), g.Name)
			}
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a group and its door bindings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().do(cmd.Context(), http.MethodDelete, "/admin/groups/"+url.PathEscape(args[0]), nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Group %s deleted\n", args[0])
			return nil
		},
	})
	return cmd
}

func newSyncCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run a directory reconciliation now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var report map[string]any
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/admin/sync", nil, &report); err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}

// apiClient calls the admin API with the stored token
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func (o *options) client() *apiClient {
	return &apiClient{
		base:  strings.TrimRight(o.apiURL, "/"),
		token: loadToken(o.tokenPath),
		http:  &http.Client{Timeout: 2 * time.Minute},
	}
}

func (c *apiClient) request(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, e.Error)
	}
	return resp, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.request(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) raw(ctx context.Context, method, path string) ([]byte, error) {
	resp, err := c.request(ctx, method, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".doorgate-token"
	}
	return filepath.Join(home, ".doorgate", "token")
}

func saveToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token), 0o600)
}

func loadToken(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
