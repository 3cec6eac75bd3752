package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	capsteps "github.com/yelzgniq/cap-android-steps"
)

const pluginPath = "/plugins/CapAndroidSteps/"

// callError is a plugin call the bridge rejected.
type callError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *callError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type bridgeClient struct {
	base string
	http *http.Client
}

func newBridgeClient(base string) *bridgeClient {
	return &bridgeClient{
		base: strings.TrimRight(base, "/"),
		// permission calls block until the host answers
		http: &http.Client{Timeout: 5 * time.Minute},
	}
}

func clientFromFlags(cmd *cobra.Command) *bridgeClient {
	addr, _ := cmd.Flags().GetString("addr")
	return newBridgeClient(addr)
}

// call invokes a plugin method and decodes the envelope's data into out.
func (c *bridgeClient) call(ctx context.Context, method string, options any, out any) error {
	var body []byte
	if options != nil {
		var err error
		if body, err = json.Marshal(options); err != nil {
			return err
		}
	}
	return c.callRaw(ctx, method, body, out)
}

func (c *bridgeClient) callRaw(ctx context.Context, method string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+pluginPath+method, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Call-Id", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env struct {
		CallID string          `json:"callId"`
		Data   json.RawMessage `json:"data"`
		Error  *callError      `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil {
		return fmt.Errorf("%s: decode response (status %s): %w", method, resp.Status, err)
	}
	if env.Error != nil {
		env.Error.Status = resp.StatusCode
		return env.Error
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// nextPrompt long-polls the host prompt queue; false means nothing arrived.
func (c *bridgeClient) nextPrompt(ctx context.Context) (capsteps.PermissionRequest, bool, error) {
	var p capsteps.PermissionRequest
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/host/permissions/prompts", nil)
	if err != nil {
		return p, false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return p, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return p, false, nil
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			return p, false, err
		}
		return p, true, nil
	case http.StatusNotFound:
		return p, false, fmt.Errorf("bridge does not queue prompts; set permission.mode to host")
	default:
		return p, false, fmt.Errorf("unexpected status %s", resp.Status)
	}
}

// sendResult reports grantResults in the Android encoding (0 granted, -1 denied).
func (c *bridgeClient) sendResult(ctx context.Context, requestCode int, permissions []string, grantResults []int) (bool, error) {
	body, err := json.Marshal(map[string]any{
		"requestCode":  requestCode,
		"permissions":  permissions,
		"grantResults": grantResults,
	})
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/host/permissions/result", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var out struct {
		Matched bool `json:"matched"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, err
	}
	return out.Matched, nil
}
