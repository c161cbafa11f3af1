// Package httpdetector talks to the detection service over plain HTTP.
package httpdetector

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/soocke/vision-live-go/domain/detection"
)

const maxErrorExcerpt = 512

type weightsResponse struct {
	Weights []string `json:"weights"`
}

type predictResponse struct {
	Objects []detection.Box `json:"objects"`
	TS      float64         `json:"ts,omitempty"`
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status string  `json:"status"`
	Time   float64 `json:"time"`
}

type Client struct {
	url    *url.URL
	client *http.Client
}

func NewClient(rawURL string, client *http.Client) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid detector url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("invalid detector url %q: want http or https", rawURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{url: u, client: client}, nil
}

// Weights lists the weights known to the service.
func (c *Client) Weights(ctx context.Context) ([]string, error) {
	var resp weightsResponse
	if err := c.do(ctx, http.MethodGet, c.url.JoinPath("/weights").String(), nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Weights, nil
}

// UploadWeight sends a weight file as multipart field "file".
func (c *Client) UploadWeight(ctx context.Context, name string, r io.Reader) error {
	if err := detection.ValidWeightName(name); err != nil {
		return err
	}
	body, contentType, err := multipartBody(name, r)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, c.url.JoinPath("/upload-weight").String(), body, contentType, nil)
}

// Detect posts img to /predict and returns the detected objects.
func (c *Client) Detect(ctx context.Context, img detection.Image, weight string) ([]detection.Box, error) {
	body, contentType, err := multipartBody(img.Name, bytes.NewReader(img.Data))
	if err != nil {
		return nil, err
	}
	u := c.url.JoinPath("/predict")
	if weight != "" {
		q := u.Query()
		q.Set("weight", weight)
		u.RawQuery = q.Encode()
	}
	var resp predictResponse
	if err := c.do(ctx, http.MethodPost, u.String(), body, contentType, &resp); err != nil {
		return nil, err
	}
	return resp.Objects, nil
}

// Health queries GET /health.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var h HealthStatus
	err := c.do(ctx, http.MethodGet, c.url.JoinPath("/health").String(), nil, "", &h)
	return h, err
}

// Close is a no-op; the HTTP client owns no connection state.
func (c *Client) Close() error { return nil }

func multipartBody(name string, r io.Reader) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return nil, "", errors.Wrap(err, "create form")
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, "", errors.Wrap(err, "copy file into form")
	}
	if err := writer.Close(); err != nil {
		return nil, "", errors.Wrap(err, "close multipart writer")
	}
	return body, writer.FormDataContentType(), nil
}

func (c *Client) do(ctx context.Context, method, target string, body io.Reader, contentType string, out any) error {
	request, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}
	response, err := c.client.Do(request)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, request.URL.Path)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorExcerpt))
		return errors.Errorf("%s %s: status %d, body: %s", method, request.URL.Path, response.StatusCode, bytes.TrimSpace(excerpt))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response body")
	}
	return nil
}
