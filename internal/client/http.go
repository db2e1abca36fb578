package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/seralith/wartable/internal/battlemap"
	apperrors "github.com/seralith/wartable/internal/platform/errors"
)

var tracer = otel.Tracer("github.com/seralith/wartable/internal/client")

// Client talks to the map authority over HTTP JSON, presenting a table grant
// as a Bearer token. It implements Authority and LogStreamer.
type Client struct {
	baseURL    string
	campaignID string
	grant      string
	httpClient *http.Client
}

// NewClient binds a grant to one campaign on one authority.
func NewClient(baseURL, campaignID, grant string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		campaignID: campaignID,
		grant:      grant,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) mapPath(suffix string) string {
	return "/api/v1/maps/" + url.PathEscape(c.campaignID) + suffix
}

// do issues one JSON request and decodes the response into out when non-nil.
// Authority error bodies are mapped back to their domain codes.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	Activity.Begin()
	defer Activity.End()

	ctx, span := tracer.Start(ctx, method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("campaign.id", c.campaignID)),
	)
	defer span.End()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.grant)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		var remote struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &remote) == nil && remote.Code != "" {
			return apperrors.New(apperrors.Code(remote.Code), remote.Message)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) Snapshot(ctx context.Context) (battlemap.Map, error) {
	var doc battlemap.Map
	err := c.do(ctx, http.MethodGet, c.mapPath(""), nil, &doc)
	return doc, err
}

func (c *Client) AddStroke(ctx context.Context, stroke battlemap.Stroke) (battlemap.Stroke, error) {
	var stored battlemap.Stroke
	err := c.do(ctx, http.MethodPut, c.mapPath("/strokes"), stroke, &stored)
	return stored, err
}

func (c *Client) DeleteStroke(ctx context.Context, strokeID string) error {
	return c.do(ctx, http.MethodDelete, c.mapPath("/strokes/"+url.PathEscape(strokeID)), nil, nil)
}

func (c *Client) ClearStrokes(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, c.mapPath("/strokes"), nil, nil)
}

func (c *Client) ClearMap(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, c.mapPath(""), nil, nil)
}

func (c *Client) AddToken(ctx context.Context, token battlemap.Token) (battlemap.Token, error) {
	var stored battlemap.Token
	err := c.do(ctx, http.MethodPost, c.mapPath("/tokens"), token, &stored)
	return stored, err
}

func (c *Client) UpdateToken(ctx context.Context, tokenID string, patch battlemap.TokenPatch) (battlemap.Token, error) {
	var stored battlemap.Token
	err := c.do(ctx, http.MethodPatch, c.mapPath("/tokens/"+url.PathEscape(tokenID)), patch, &stored)
	return stored, err
}

func (c *Client) DeleteToken(ctx context.Context, tokenID string) error {
	return c.do(ctx, http.MethodDelete, c.mapPath("/tokens/"+url.PathEscape(tokenID)), nil, nil)
}

func (c *Client) AddShape(ctx context.Context, shape battlemap.Shape) (battlemap.Shape, error) {
	var stored battlemap.Shape
	err := c.do(ctx, http.MethodPost, c.mapPath("/shapes"), shape, &stored)
	return stored, err
}

func (c *Client) UpdateShape(ctx context.Context, shapeID string, patch battlemap.ShapePatch) (battlemap.Shape, error) {
	var stored battlemap.Shape
	err := c.do(ctx, http.MethodPatch, c.mapPath("/shapes/"+url.PathEscape(shapeID)), patch, &stored)
	return stored, err
}

func (c *Client) DeleteShape(ctx context.Context, shapeID string) error {
	return c.do(ctx, http.MethodDelete, c.mapPath("/shapes/"+url.PathEscape(shapeID)), nil, nil)
}

func (c *Client) UpdateBackground(ctx context.Context, patch battlemap.BackgroundPatch) (battlemap.Background, error) {
	var stored battlemap.Background
	err := c.do(ctx, http.MethodPatch, c.mapPath("/background"), patch, &stored)
	return stored, err
}

func (c *Client) ClearBackground(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, c.mapPath("/background"), nil, nil)
}

func (c *Client) UpdateSettings(ctx context.Context, patch battlemap.SettingsPatch) (battlemap.Map, error) {
	var doc battlemap.Map
	err := c.do(ctx, http.MethodPatch, c.mapPath("/settings"), patch, &doc)
	return doc, err
}

type startCombatRequest struct {
	Order []string `json:"order"`
	Round int      `json:"round"`
	Turn  int      `json:"turn"`
}

func (c *Client) StartCombat(ctx context.Context, order []string, round, turn int) (battlemap.CombatState, error) {
	var combat battlemap.CombatState
	req := startCombatRequest{Order: order, Round: round, Turn: turn}
	err := c.do(ctx, http.MethodPost, c.mapPath("/combat/start"), req, &combat)
	return combat, err
}

func (c *Client) AdvanceTurn(ctx context.Context) (battlemap.CombatState, error) {
	var combat battlemap.CombatState
	err := c.do(ctx, http.MethodPost, c.mapPath("/combat/advance"), nil, &combat)
	return combat, err
}

func (c *Client) EndCombat(ctx context.Context) (battlemap.CombatState, error) {
	var combat battlemap.CombatState
	err := c.do(ctx, http.MethodPost, c.mapPath("/combat/end"), nil, &combat)
	return combat, err
}

func (c *Client) AppendLog(ctx context.Context, entry battlemap.BattleLogEntry) (battlemap.BattleLogEntry, error) {
	var stored battlemap.BattleLogEntry
	err := c.do(ctx, http.MethodPost, c.mapPath("/log"), entry, &stored)
	return stored, err
}

func (c *Client) Log(ctx context.Context) ([]battlemap.BattleLogEntry, error) {
	var entries []battlemap.BattleLogEntry
	err := c.do(ctx, http.MethodGet, c.mapPath("/log"), nil, &entries)
	return entries, err
}

func (c *Client) ListLibrary(ctx context.Context) ([]LibraryEntry, error) {
	var entries []LibraryEntry
	err := c.do(ctx, http.MethodGet, c.mapPath("/library"), nil, &entries)
	return entries, err
}

type saveLibraryRequest struct {
	Name string `json:"name"`
}

func (c *Client) SaveToLibrary(ctx context.Context, name string) (LibraryEntry, error) {
	var entry LibraryEntry
	err := c.do(ctx, http.MethodPost, c.mapPath("/library"), saveLibraryRequest{Name: name}, &entry)
	return entry, err
}

func (c *Client) LoadFromLibrary(ctx context.Context, entryID string) (battlemap.Map, error) {
	var doc battlemap.Map
	err := c.do(ctx, http.MethodPost, c.mapPath("/library/"+url.PathEscape(entryID)+"/load"), nil, &doc)
	return doc, err
}

func (c *Client) DeleteFromLibrary(ctx context.Context, entryID string) error {
	return c.do(ctx, http.MethodDelete, c.mapPath("/library/"+url.PathEscape(entryID)), nil, nil)
}

// StreamLog consumes the battle-log push channel, redialing with exponential
// backoff until ctx ends. Each received entry is handed to fn.
func (c *Client) StreamLog(ctx context.Context, fn func(battlemap.BattleLogEntry)) error {
	streamURL, err := c.streamURL()
	if err != nil {
		return err
	}

	operation := func() (struct{}, error) {
		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, streamURL, nil)
		if err != nil {
			if resp != nil {
				_ = resp.Body.Close()
			}
			if ctx.Err() != nil {
				return struct{}{}, backoff.Permanent(ctx.Err())
			}
			return struct{}{}, err
		}
		defer func() { _ = conn.Close() }()

		for {
			var entry battlemap.BattleLogEntry
			if err := conn.ReadJSON(&entry); err != nil {
				if ctx.Err() != nil {
					return struct{}{}, backoff.Permanent(ctx.Err())
				}
				return struct{}{}, err
			}
			fn(entry)
		}
	}

	_, err = backoff.Retry(ctx, operation, backoff.WithBackOff(backoff.NewExponentialBackOff()))
	return err
}

// streamURL converts the HTTP base into the ws(s) log-stream endpoint. The
// grant travels as a query parameter because browser WebSocket clients cannot
// set headers.
func (c *Client) streamURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + c.mapPath("/log/stream")
	q := u.Query()
	q.Set("grant", c.grant)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
