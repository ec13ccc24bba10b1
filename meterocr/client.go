package meterocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	TypeHorimeter = "horimeter"
	TypeQuantity  = "quantity"
)

// errorSentinel is what the classification service writes into rawText when
// it could not read the meter.
const errorSentinel = "ERRO"

type Result struct {
	Success bool     `json:"success"`
	Value   *float64 `json:"value"`
	RawText string   `json:"rawText"`
}

type recognizeRequest struct {
	Image string `json:"image"`
	Type  string `json:"type"`
}

// Client talks to the external meter-image classification service. The
// service's internals are out of scope here; this is only the consumed
// interface.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func NewClientFromEnv() (*Client, error) {
	baseURL := strings.TrimSpace(os.Getenv("METER_OCR_URL"))
	if baseURL == "" {
		return nil, errors.New("METER_OCR_URL is required")
	}
	return NewClient(baseURL, nil), nil
}

// Recognize submits one image and normalizes the response: a nil value, a
// non-positive value or the ERRO sentinel all mean "not recognized".
func (c *Client) Recognize(ctx context.Context, imageDataURL string, readingType string) (Result, error) {
	payload, err := json.Marshal(recognizeRequest{Image: imageDataURL, Type: readingType})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("meter ocr error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return Result{}, err
	}

	if strings.TrimSpace(result.RawText) == errorSentinel {
		result.Value = nil
	}
	if result.Value != nil && *result.Value <= 0 {
		result.Value = nil
	}
	if result.Value == nil {
		result.Success = false
	}
	return result, nil
}
