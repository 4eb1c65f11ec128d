package toolreg

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jarvislabs/jarvis/internal/logging"
)

// Catalog resolves tool metadata and packages from a remote source.
type Catalog interface {
	// Search returns catalog entries matching the query.
	Search(ctx context.Context, query string, limit int) ([]ToolDefinition, error)
	// GetInfo returns metadata for one tool, or nil when the catalog
	// does not know it.
	GetInfo(ctx context.Context, name string) (*ToolDefinition, error)
	// Download fetches the tool package payload.
	Download(ctx context.Context, name, version string) ([]byte, error)
}

// HTTPCatalog talks to a tool catalog over its REST API.
type HTTPCatalog struct {
	baseURL string
	client  *http.Client
	log     *logging.Logger
}

// NewHTTPCatalog creates a catalog client for the given base URL.
func NewHTTPCatalog(baseURL string, log *logging.Logger) *HTTPCatalog {
	return &HTTPCatalog{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.Sub("catalog"),
	}
}

type searchResponse struct {
	Tools []ToolDefinition `json:"tools"`
}

// Search queries the catalog for tools matching the query string.
func (c *HTTPCatalog) Search(ctx context.Context, query string, limit int) ([]ToolDefinition, error) {
	if limit <= 0 {
		limit = 20
	}
	endpoint := fmt.Sprintf("%s/tools/search?q=%s&limit=%s",
		c.baseURL, url.QueryEscape(query), strconv.Itoa(limit))

	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("catalog search failed: HTTP %d", status)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing catalog search response: %w", err)
	}
	return resp.Tools, nil
}

// GetInfo fetches metadata for one tool. A catalog 404 is not an
// error; it returns nil so callers can distinguish unknown tools from
// transport failures.
func (c *HTTPCatalog) GetInfo(ctx context.Context, name string) (*ToolDefinition, error) {
	endpoint := fmt.Sprintf("%s/tools/%s", c.baseURL, url.PathEscape(name))

	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("catalog info failed: HTTP %d", status)
	}

	var def ToolDefinition
	if err := json.Unmarshal(body, &def); err != nil {
		return nil, fmt.Errorf("parsing catalog tool info: %w", err)
	}
	return &def, nil
}

// Download fetches the package payload for one tool version.
func (c *HTTPCatalog) Download(ctx context.Context, name, version string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/tools/%s/download", c.baseURL, url.PathEscape(name))
	if version != "" {
		endpoint += "?version=" + url.QueryEscape(version)
	}

	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("catalog download failed: HTTP %d", status)
	}
	c.log.Debug().Str("tool", name).Int("bytes", len(body)).Msg("Downloaded tool package")
	return body, nil
}

func (c *HTTPCatalog) get(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
