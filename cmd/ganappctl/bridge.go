package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// bridgeClient talks to the desktop bridge's localhost API.
type bridgeClient struct {
	addr string
	http *http.Client
}

func newBridgeClient(addr string) *bridgeClient {
	return &bridgeClient{
		addr: strings.TrimRight(addr, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *bridgeClient) get(path string) ([]byte, error) {
	return c.do(http.MethodGet, path, nil)
}

func (c *bridgeClient) post(path string, body any) ([]byte, error) {
	return c.do(http.MethodPost, path, body)
}

func (c *bridgeClient) do(method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.addr+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bridge not reachable at %s: %w", c.addr, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("bridge returned %d: %s", resp.StatusCode, msg)
	}
	return raw, nil
}

// printRaw dumps a bridge response as-is for --json.
func printRaw(cmd *cobra.Command, raw []byte) error {
	fmt.Fprintln(cmd.OutOrStdout(), string(bytes.TrimSpace(raw)))
	return nil
}
