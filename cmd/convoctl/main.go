// convoctl inspects a running convod daemon over its admin HTTP API.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var adminAddr string

func main() {
	root := &cobra.Command{
		Use:           "convoctl",
		Short:         "Inspect a running convod daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&adminAddr, "addr", "127.0.0.1:7621", "admin API address")

	root.AddCommand(statusCmd(), channelsCmd(), messagesCmd(), typingCmd(), threadCmd(), olderCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon connection state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return getJSON(cmd, "/v1/status")
		},
	}
}

func channelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "List channels and message counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return getJSON(cmd, "/v1/channels")
		},
	}
}

func messagesCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "messages <channel>",
		Short: "Show the newest messages in a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(cmd, fmt.Sprintf("/v1/channels/%s/messages?limit=%d", args[0], limit))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum messages to show")
	return cmd
}

func typingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "typing <channel>",
		Short: "Show who is typing in a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(cmd, fmt.Sprintf("/v1/channels/%s/typing", args[0]))
		},
	}
}

func threadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "thread <channel> <root-message-id>",
		Short: "Show a thread: the root message and its replies",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(cmd, fmt.Sprintf("/v1/channels/%s/threads/%s", args[0], args[1]))
		},
	}
}

func olderCmd() *cobra.Command {
	var before string
	cmd := &cobra.Command{
		Use:   "older <channel>",
		Short: "Load one older page of channel history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/v1/channels/%s/older", args[0])
			if before != "" {
				path += "?before=" + before
			}
			return postJSON(cmd, path)
		},
	}
	cmd.Flags().StringVar(&before, "before", "", "message ID to page back from")
	return cmd
}

func getJSON(cmd *cobra.Command, path string) error {
	return request(cmd, http.MethodGet, path)
}

func postJSON(cmd *cobra.Command, path string) error {
	return request(cmd, http.MethodPost, path)
}

func request(cmd *cobra.Command, method, path string) error {
	client := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequestWithContext(cmd.Context(), method, "http://"+adminAddr+path, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("is convod running? %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, string(body))
	}

	// Re-indent for the terminal.
	var pretty map[string]any
	if err := json.Unmarshal(body, &pretty); err != nil {
		fmt.Println(string(body))
		return nil
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(out))
	return nil
}
