package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Send a GET request",
	Long: `Send a GET request through the security pipeline.

The path is joined onto the configured base URL unless it is already an
absolute URL.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRequest(cmd.Context(), http.MethodGet, args[0], nil)
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <method> <path> [json-body]",
	Short: "Send a request with any method and an optional JSON body",
	Long: `Send a request through the security pipeline.

The body, when given, must be JSON. It is sanitized according to the
active security level before it is serialized.

Examples:
  armor send POST /users '{"name": "ada"}'
  armor --security-level high send DELETE /users/42`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		method := strings.ToUpper(args[0])
		var body any
		if len(args) == 3 {
			if err := json.Unmarshal([]byte(args[2]), &body); err != nil {
				return fmt.Errorf("body is not valid JSON: %w", err)
			}
		}
		return runRequest(cmd.Context(), method, args[1], body)
	},
}

// runRequest builds the client, dispatches one request, and prints the
// normalized result as JSON on stdout. Failures print the normalized
// error shape and exit non-zero.
func runRequest(ctx context.Context, method, path string, body any) error {
	shutdown, err := setupTracing(ctx)
	if err != nil {
		return err
	}
	defer shutdown()

	client, err := buildClient()
	if err != nil {
		return err
	}

	var resp any
	switch method {
	case http.MethodGet:
		resp, err = client.Get(ctx, path)
	case http.MethodPost:
		resp, err = client.Post(ctx, path, body)
	case http.MethodPut:
		resp, err = client.Put(ctx, path, body)
	case http.MethodPatch:
		resp, err = client.Patch(ctx, path, body)
	case http.MethodDelete:
		resp, err = client.Delete(ctx, path)
	default:
		return fmt.Errorf("unsupported method %q", method)
	}
	if err != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(err)
		return fmt.Errorf("request failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func init() {
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(sendCmd)
}
