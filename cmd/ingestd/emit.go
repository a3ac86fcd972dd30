package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ingestd/pkg/types"
)

var errNotOK = errors.New("emit not acknowledged")

func newEmitCmd(opts *rootOptions) *cobra.Command {
	var (
		server  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:     "emit <payload>",
		Short:   "Emit one payload and wait for its outcome",
		Example: "  ingestd emit '{\"id\":42}'",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			resp, err := postEmit(ctx, http.DefaultClient, server, args[0])
			if err != nil {
				return err
			}
			opts.log.Debug().Bool("ok", resp.OK).Str("reason", resp.Reason).Msg("emit done")
			if resp.OK {
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			}
			if resp.Error != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", resp.Reason, resp.Error)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), resp.Reason)
			}
			return errNotOK
		},
	}
	cmd.Flags().StringVar(&server, "server", envStr("INGESTD_URL", defaultServer), "Base URL of the ingestd server (defaults INGESTD_URL)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Client side deadline (0 = rely on the server's emit timeout)")
	return cmd
}

// postEmit sends one emit request. Non-2xx answers carrying an
// EmitResponse are returned as such; anything else is an error.
func postEmit(ctx context.Context, c *http.Client, server, payload string) (types.EmitResponse, error) {
	var out types.EmitResponse
	body, err := json.Marshal(types.EmitRequest{Payload: payload})
	if err != nil {
		return out, err
	}
	url := strings.TrimRight(server, "/") + "/emit"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		return out, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil || out.Reason == "" {
		return out, fmt.Errorf("unexpected response %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return out, nil
}
