// Package http_request hands each block to an HTTP service: the block
// descriptor is POSTed as JSON and any 2xx response counts as success.
package http_request

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/specialistvlad/blockgrid/internal/ctxlog"
	"github.com/specialistvlad/blockgrid/internal/protocol"
	"github.com/specialistvlad/blockgrid/internal/registry"
)

const (
	URLArg     = "url"
	TimeoutArg = "timeout"

	defaultTimeout = 30 * time.Second
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Client is used for every request. Nil means a pooled default client.
	Client *http.Client
}

// Processor posts blocks to the URL named in their arguments.
type Processor struct {
	client *http.Client
}

// NewProcessor creates a processor sending through client.
func NewProcessor(client *http.Client) *Processor {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Processor{client: client}
}

// ProcessBlock implements task.Processor.
func (p *Processor) ProcessBlock(ctx context.Context, block *protocol.BlockDescriptor) error {
	url := block.Arguments[URLArg]
	if url == "" {
		return fmt.Errorf("http_request: argument %q is required", URLArg)
	}
	timeout := defaultTimeout
	if raw := block.Arguments[TimeoutArg]; raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("http_request: invalid timeout %q: %w", raw, err)
		}
		timeout = d
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("failed to encode block: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Posting block", "block", block.Key().String(), "url", url)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("http_request: %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	logger.Debug("Received HTTP response", "status", resp.Status)
	return nil
}

// Register registers the processor with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterProcessor("http_request", NewProcessor(m.Client))
}
