package main

import (
	"fmt"
	"io"
	"net/http"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var cancelServerURL string

var cancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Request a graceful stop of a task running in the API server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		base := cancelServerURL
		if base == "" {
			base = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
		}

		url := fmt.Sprintf("%s/tasks/%s/cancel", base, args[0])
		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, nil)
		if err != nil {
			return eris.Wrap(err, "build cancel request")
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return eris.Wrap(err, "send cancel request")
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusAccepted {
			return eris.Errorf("cancel rejected (%d): %s", resp.StatusCode, string(body))
		}
		fmt.Println(string(body))
		return nil
	},
}

func init() {
	cancelCmd.Flags().StringVar(&cancelServerURL, "server", "", "API server base URL (default http://localhost:<config port>)")
	rootCmd.AddCommand(cancelCmd)
}
