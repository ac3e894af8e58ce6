package monday

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"precatorios/internal/board"
)

const (
	DefaultURL        = "https://api.monday.com/v2"
	DefaultAPIVersion = "2024-01"
	pageSize          = 100
)

// boardQuery pages through the board items. The cursor variable is
// omitted on the first request.
const boardQuery = `
query($boardId: [ID!], $cursor: String) {
  boards(ids: $boardId) {
    id
    name
    groups { id title }
    items_page(limit: %d, cursor: $cursor) {
      items {
        id
        name
        group { id title }
        column_values { id text value type }
        created_at
        updated_at
      }
      cursor
    }
  }
}`

type Client struct {
	http       *http.Client
	url        string
	token      string
	boardID    string
	apiVersion string
}

// Ensure interface conformance
var _ board.Reader = (*Client)(nil)

type Config struct {
	URL        string
	Token      string
	BoardID    string
	APIVersion string
	HTTPClient *http.Client
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("missing monday api token")
	}
	if strings.TrimSpace(cfg.BoardID) == "" {
		return nil, errors.New("missing monday board id")
	}
	c := &Client{
		http:       cfg.HTTPClient,
		url:        cfg.URL,
		token:      cfg.Token,
		boardID:    cfg.BoardID,
		apiVersion: cfg.APIVersion,
	}
	if c.http == nil {
		c.http = newHTTPClientWithPooling()
	}
	if c.url == "" {
		c.url = DefaultURL
	}
	if c.apiVersion == "" {
		c.apiVersion = DefaultAPIVersion
	}
	return c, nil
}

// newHTTPClientWithPooling creates an HTTP client for the board API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data struct {
		Boards []struct {
			ID        string        `json:"id"`
			Name      string        `json:"name"`
			Groups    []board.Group `json:"groups"`
			ItemsPage struct {
				Items  []board.Item `json:"items"`
				Cursor *string      `json:"cursor"`
			} `json:"items_page"`
		} `json:"boards"`
	} `json:"data"`
	Errors []json.RawMessage `json:"errors"`
}

// FetchBoard follows the items cursor sequentially until it is empty or a
// page comes back without items.
func (c *Client) FetchBoard(ctx context.Context) (board.Board, error) {
	var (
		out    board.Board
		cursor string
		page   = 1
		found  bool
	)
	for {
		resp, err := c.fetchPage(ctx, cursor)
		if err != nil {
			return board.Board{}, fmt.Errorf("fetch page %d: %w", page, err)
		}
		if len(resp.Data.Boards) == 0 {
			return board.Board{}, board.ErrBoardNotFound
		}
		b := resp.Data.Boards[0]
		if !found {
			out.ID, out.Name, out.Groups = b.ID, b.Name, b.Groups
			found = true
		}
		items := b.ItemsPage.Items
		out.Items = append(out.Items, items...)

		slog.DebugContext(ctx, "Fetched board page",
			"board_id", c.boardID,
			"page", page,
			"items", len(items))

		if b.ItemsPage.Cursor == nil || *b.ItemsPage.Cursor == "" || len(items) == 0 {
			break
		}
		cursor = *b.ItemsPage.Cursor
		page++
	}
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, cursor string) (*graphQLResponse, error) {
	vars := map[string]any{"boardId": []string{c.boardID}}
	if cursor != "" {
		vars["cursor"] = cursor
	}
	body, err := json.Marshal(graphQLRequest{Query: fmt.Sprintf(boardQuery, pageSize), Variables: vars})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("API-Version", c.apiVersion)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", c.url, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("monday api error: %s: %s", res.Status, strings.TrimSpace(string(snippet)))
	}

	var decoded graphQLResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Errors) > 0 {
		raw, _ := json.Marshal(decoded.Errors)
		return nil, fmt.Errorf("monday api errors: %s", raw)
	}
	return &decoded, nil
}
