// Package dashscope is the client for the DashScope image-generation API,
// the external image synthesizer. Synthesis takes on the order of tens of
// seconds, so the HTTP client carries a generous timeout.
package dashscope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const imageEditPath = "/services/aigc/image-generation/generation"

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

type imageEditRequest struct {
	Model string `json:"model"`
	Input struct {
		Prompt   string `json:"prompt"`
		ImageURL string `json:"image_url"`
	} `json:"input"`
	Parameters struct {
		Size string `json:"size,omitempty"`
		N    int    `json:"n,omitempty"`
	} `json:"parameters"`
}

type imageEditResponse struct {
	Output struct {
		Results []struct {
			URL string `json:"url"`
		} `json:"results"`
	} `json:"output"`
	Usage struct {
		ImageCount int `json:"image_count"`
	} `json:"usage"`
}

func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

// EditImage submits one generation against the base image and returns the
// URL of the resulting render. The returned URL is temporary; callers that
// need a durable artifact must copy it elsewhere.
func (c *Client) EditImage(ctx context.Context, prompt, baseImageURL string) (string, error) {
	reqBody := imageEditRequest{Model: c.model}
	reqBody.Input.Prompt = prompt
	reqBody.Input.ImageURL = baseImageURL
	reqBody.Parameters.Size = "1024*1024"
	reqBody.Parameters.N = 1

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+imageEditPath, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to edit image: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result imageEditResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}

	if len(result.Output.Results) == 0 || result.Output.Results[0].URL == "" {
		return "", fmt.Errorf("no image generated, body: %s", string(body))
	}

	return result.Output.Results[0].URL, nil
}

// DownloadImage fetches the render bytes from a result URL.
func (c *Client) DownloadImage(ctx context.Context, downloadURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to download image: status %d, body: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
