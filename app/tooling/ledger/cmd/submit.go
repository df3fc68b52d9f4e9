package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit <data>",
	Short: "Queue a payload on the node for mining.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  submitRun,
}

func init() {
	rootCmd.AddCommand(submitCmd)
}

func submitRun(cmd *cobra.Command, args []string) error {
	req := struct {
		Data string `json:"data"`
	}{
		Data: strings.Join(args, " "),
	}

	var resp struct {
		ID      string `json:"id"`
		Pending int    `json:"pending"`
	}

	if err := post(nodeURL+"/v1/payload", req, &resp); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "queued %s (pending %d)\n", resp.ID, resp.Pending)
	return nil
}

// post sends the value as JSON and decodes the reply into v.
func post(url string, value any, v any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decode(resp, v)
}

// get performs a GET and decodes the reply into v.
func get(url string, v any) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decode(resp, v)
}

func decode(resp *http.Response, v any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("node answered %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	if v == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(v)
}
