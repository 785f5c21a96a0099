package cli

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"pomodoro/daemon/internal/model"
	"pomodoro/daemon/internal/timer"
)

type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func newClient() *client {
	c := &client{
		baseURL: strings.TrimRight(serverURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	if data, err := os.ReadFile(tokenPath); err == nil {
		c.token = strings.TrimSpace(string(data))
	}
	return c
}

func (c *client) saveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(tokenPath), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(tokenPath, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *client) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("reach daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("%s (%s)", apiErr.Error.Message, apiErr.Error.Code)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *client) trigger(path string, body interface{}) (*timer.StateView, error) {
	var view timer.StateView
	if err := c.do(http.MethodPost, path, body, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *client) history(limit int) ([]model.PhaseSession, error) {
	var envelope struct {
		Sessions []model.PhaseSession `json:"sessions"`
	}
	path := fmt.Sprintf("/api/timer/history?limit=%d", limit)
	if err := c.do(http.MethodGet, path, nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Sessions, nil
}
