package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type apiResponse struct {
	Status  string `json:"status"`
	Token   string `json:"token"`
	Answer  string `json:"answer"`
	Message string `json:"message"`
}

type askClient struct {
	httpClient *http.Client
	baseURL    string
	userID     string
}

func newAskClient(httpClient *http.Client, baseURL string, userID string) *askClient {
	return &askClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		userID:     userID,
	}
}

func (c *askClient) submit(ctx context.Context, question string) (apiResponse, error) {
	body, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return apiResponse{}, fmt.Errorf("failed to encode question: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/ask", bytes.NewReader(body))
	if err != nil {
		return apiResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *askClient) poll(ctx context.Context, token string, wait time.Duration) (apiResponse, error) {
	url := fmt.Sprintf("%s/v1/ask/%s?wait=%s", c.baseURL, token, strconv.FormatFloat(wait.Seconds(), 'f', -1, 64))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apiResponse{}, fmt.Errorf("failed to create request: %w", err)
	}

	return c.do(req)
}

// pollUntilDone long-polls until the answer is no longer pending
func (c *askClient) pollUntilDone(ctx context.Context, token string, wait time.Duration) (apiResponse, error) {
	for {
		response, err := c.poll(ctx, token, wait)
		if err != nil {
			return apiResponse{}, err
		}
		if response.Status != "pending" {
			return response, nil
		}
		if err := ctx.Err(); err != nil {
			return apiResponse{}, err
		}
	}
}

func (c *askClient) do(req *http.Request) (apiResponse, error) {
	req.Header.Set("User-Agent", "askcli/1.0")
	if c.userID != "" {
		req.Header.Set("X-User-Id", c.userID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apiResponse{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apiResponse{}, fmt.Errorf("failed to read response body: %w", err)
	}

	var response apiResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return apiResponse{}, fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	return response, nil
}
