// Package upload sends compiled images to a device over HTTP.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/micro-blocks/mbc/bytecode"
	"github.com/rs/zerolog"
)

// CodePath is the device endpoint that accepts an image.
const CodePath = "/api/code"

// DefaultTimeout bounds a whole upload.
const DefaultTimeout = 10 * time.Second

// Client uploads images to one device.
type Client struct {
	device   string
	http     *http.Client
	log      zerolog.Logger
	progress io.Writer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its timeout applies per upload.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.http = &http.Client{Timeout: d}
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(cl *Client) {
		cl.log = log
	}
}

// WithProgress copies the request body to w while it is sent.
func WithProgress(w io.Writer) Option {
	return func(cl *Client) {
		cl.progress = w
	}
}

// New returns a client for the device at the given base URL. A bare host
// name is treated as http.
func New(device string, opts ...Option) *Client {
	if !strings.Contains(device, "://") {
		device = "http://" + device
	}
	c := &Client{
		device: strings.TrimSuffix(device, "/"),
		http:   &http.Client{Timeout: DefaultTimeout},
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the endpoint images are posted to.
func (c *Client) URL() string {
	return c.device + CodePath
}

// Upload posts the image. The device stops its running program, loads the
// image and starts every thread.
func (c *Client) Upload(ctx context.Context, image []byte) error {
	if _, err := bytecode.ParseImage(image); err != nil {
		return fmt.Errorf("refusing to upload: %w", err)
	}
	var body io.Reader = bytes.NewReader(image)
	if c.progress != nil {
		body = io.TeeReader(body, c.progress)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.ContentLength = int64(len(image))
	req.Header.Set("Content-Type", "application/octet-stream")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload to %s: %w", c.device, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if text := strings.TrimSpace(string(msg)); text != "" {
			return fmt.Errorf("device rejected image: %s: %s", resp.Status, text)
		}
		return fmt.Errorf("device rejected image: %s", resp.Status)
	}
	c.log.Info().
		Str("device", c.device).
		Int("bytes", len(image)).
		Dur("took", time.Since(start)).
		Msg("image uploaded")
	return nil
}
