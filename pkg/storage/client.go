package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mrlobot/discord-bot/pkg/errs"
	"github.com/valyala/fasthttp"
)

// NoopUnitID is appended to a removal list so that it is never empty: the
// service treats a request without chars as "delete the whole sheet".
const NoopUnitID = -1

const conditionalCheckFailed = "ConditionalCheckFailedException"

// Client talks to the guild config service that stores server registrations
// and named spreadsheets.
type Client struct {
	httpClient *fasthttp.Client
	baseURL    string
	timeout    time.Duration
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &fasthttp.Client{
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: time.Minute,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

type ServerGuild struct {
	Server string `json:"srvr"`
	Guild  string `json:"guild"`
}

type Sheet struct {
	Name    string  `json:"sheet"`
	CharIDs *IDList `json:"char_ids"`
}

func (s Sheet) IDs() []int {
	if s.CharIDs == nil {
		return nil
	}
	return *s.CharIDs
}

type AddResult struct {
	Added    IDList `json:"new"`
	Repeated IDList `json:"old"`
	IsNew    bool   `json:"is_new"`
}

type RemoveResult struct {
	Message      string `json:"-"`
	Deleted      IDList `json:"deleted"`
	Left         IDList `json:"left"`
	SheetRemoved bool   `json:"sheet_removed"`
}

// IDList accepts unit ids encoded either as numbers or as numeric strings.
type IDList []int

func (l *IDList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	ids := make(IDList, 0, len(raw))
	for _, item := range raw {
		var n json.Number
		if err := json.Unmarshal(item, &n); err == nil {
			v, err := strconv.Atoi(n.String())
			if err != nil {
				return fmt.Errorf("invalid unit id %s: %w", n, err)
			}
			ids = append(ids, v)
			continue
		}

		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return fmt.Errorf("invalid unit id %s", item)
		}
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("invalid unit id %q: %w", s, err)
		}
		ids = append(ids, v)
	}

	*l = ids
	return nil
}

// flag is the service's "ok" field, sent as a boolean or as 0/1.
type flag bool

func (f *flag) UnmarshalJSON(data []byte) error {
	switch strings.TrimSpace(string(data)) {
	case "true", "1":
		*f = true
	default:
		*f = false
	}
	return nil
}

type envelope struct {
	OK           flag            `json:"ok"`
	ErrorType    string          `json:"errorType"`
	ErrorMessage string          `json:"errorMessage"`
	Message      string          `json:"message"`
	Content      json.RawMessage `json:"content"`
}

func (e *envelope) emptyContent() bool {
	c := strings.TrimSpace(string(e.Content))
	return c == "" || c == "null" || c == "{}" || c == "[]"
}

func (e *envelope) decode(endpoint string, v interface{}) error {
	if err := json.Unmarshal(e.Content, v); err != nil {
		return &errs.TransportError{Endpoint: endpoint, Status: fasthttp.StatusOK, Err: fmt.Errorf("failed to decode content: %w", err)}
	}
	return nil
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.baseURL + "/" + strings.Join(escaped, "/")
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload interface{}) (*envelope, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(endpoint)
	req.Header.SetMethod(method)

	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload: %w", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.httpClient.DoDeadline(req, resp, deadline)
	} else {
		err = c.httpClient.DoTimeout(req, resp, c.timeout)
	}
	if err != nil {
		return nil, &errs.TransportError{Endpoint: endpoint, Err: err}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, &errs.TransportError{Endpoint: endpoint, Status: resp.StatusCode()}
	}

	var env envelope
	decoder := json.NewDecoder(bytes.NewReader(resp.Body()))
	if err := decoder.Decode(&env); err != nil {
		return nil, &errs.TransportError{Endpoint: endpoint, Status: resp.StatusCode(), Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return &env, nil
}

// check turns the service's own failure fields into a RemoteError.
func check(endpoint string, env *envelope, userMessage string) error {
	if env.ErrorType != "" {
		return &errs.RemoteError{
			Endpoint:    endpoint,
			Kind:        errs.KindOther,
			Technical:   env.ErrorType + ": " + env.ErrorMessage,
			UserMessage: userMessage,
		}
	}
	if !env.OK {
		return &errs.RemoteError{
			Endpoint:    endpoint,
			Kind:        errs.KindOther,
			Technical:   env.Message,
			UserMessage: userMessage,
		}
	}
	return nil
}

func (c *Client) RegisterGuild(ctx context.Context, serverID, guildID string) error {
	ep := c.endpoint("register")
	payload := map[string]string{
		"server": serverID,
		"guild":  guildID,
	}

	env, err := c.do(ctx, fasthttp.MethodPut, ep, payload)
	if err != nil {
		return err
	}

	switch {
	case env.ErrorType == conditionalCheckFailed:
		return &errs.RemoteError{
			Endpoint:    ep,
			Kind:        errs.KindDuplicateRegistration,
			Technical:   env.ErrorMessage,
			UserMessage: "**Mr.Lobot** cannot add more than one guild per server.",
		}
	case env.ErrorType != "":
		return check(ep, env, "**Mr.Lobot** cannot register this guild.")
	case !bool(env.OK):
		return check(ep, env, env.Message)
	}

	return nil
}

func (c *Client) GuildServers(ctx context.Context, serverID string) ([]ServerGuild, error) {
	ep := c.endpoint("srvrs", serverID)

	env, err := c.do(ctx, fasthttp.MethodGet, ep, nil)
	if err != nil {
		return nil, err
	}
	if err := check(ep, env, "**Mr.Lobot** cannot obtain the guild for this server"); err != nil {
		return nil, err
	}

	var content struct {
		Items []ServerGuild `json:"items"`
	}
	if err := env.decode(ep, &content); err != nil {
		return nil, err
	}
	return content.Items, nil
}

func (c *Client) AddToSpreadsheet(ctx context.Context, sheet, guildID string, chars []int) (*AddResult, error) {
	ep := c.endpoint("spreadsheet", sheet)
	payload := struct {
		Guild string `json:"guild"`
		Chars []int  `json:"chars"`
	}{guildID, chars}

	env, err := c.do(ctx, fasthttp.MethodPut, ep, payload)
	if err != nil {
		return nil, err
	}
	if err := check(ep, env, fmt.Sprintf("**Mr.Lobot** cannot add units to the spreadsheet **%s**", sheet)); err != nil {
		return nil, err
	}

	var result AddResult
	if err := env.decode(ep, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RemoveFromSpreadsheet deletes chars from the sheet. An empty chars list
// deletes the whole sheet; append NoopUnitID to avoid that.
func (c *Client) RemoveFromSpreadsheet(ctx context.Context, sheet, guildID string, chars []int) (*RemoveResult, error) {
	ep := c.endpoint("spreadsheet", sheet)
	payload := struct {
		Guild string `json:"guild"`
		Chars []int  `json:"chars,omitempty"`
	}{guildID, chars}

	env, err := c.do(ctx, fasthttp.MethodDelete, ep, payload)
	if err != nil {
		return nil, err
	}

	if env.ErrorType == "" && !bool(env.OK) && env.emptyContent() {
		return nil, &errs.RemoteError{
			Endpoint:    ep,
			Kind:        errs.KindNotFound,
			Technical:   env.Message,
			UserMessage: fmt.Sprintf("**Mr.Lobot** did not find the spreadsheet **%s**", sheet),
		}
	}
	if err := check(ep, env, fmt.Sprintf("**Mr.Lobot** cannot remove units to the spreadsheet **%s**", sheet)); err != nil {
		return nil, err
	}

	var result RemoveResult
	if err := env.decode(ep, &result); err != nil {
		return nil, err
	}
	result.Message = env.Message
	return &result, nil
}

func (c *Client) Spreadsheet(ctx context.Context, guildID, sheet string) (*Sheet, error) {
	ep := c.endpoint("spreadsheet", sheet, guildID)

	env, err := c.do(ctx, fasthttp.MethodGet, ep, nil)
	if err != nil {
		return nil, err
	}
	if err := check(ep, env, fmt.Sprintf("**Mr.Lobot** cannot retrieve info for the spreadsheet **%s**", sheet)); err != nil {
		return nil, err
	}

	var content struct {
		Sheet Sheet `json:"sheet"`
	}
	if err := env.decode(ep, &content); err != nil {
		return nil, err
	}

	if content.Sheet.CharIDs == nil {
		return nil, &errs.RemoteError{
			Endpoint:    ep,
			Kind:        errs.KindNotFound,
			Technical:   "sheet without char_ids",
			UserMessage: fmt.Sprintf("**Mr.Lobot** did not locate the spreadsheet **%s** on his database.", sheet),
		}
	}
	if content.Sheet.Name == "" {
		content.Sheet.Name = sheet
	}
	return &content.Sheet, nil
}

// Spreadsheets lists the guild sheets whose name starts with prefix.
func (c *Client) Spreadsheets(ctx context.Context, guildID, prefix string) ([]Sheet, error) {
	ep := c.endpoint("spreadsheets", guildID) + "?start=" + url.QueryEscape(prefix)

	env, err := c.do(ctx, fasthttp.MethodGet, ep, nil)
	if err != nil {
		return nil, err
	}
	if err := check(ep, env, fmt.Sprintf("**Mr.Lobot** cannot obtain spreadsheets for the guild **%s**", guildID)); err != nil {
		return nil, err
	}

	var content struct {
		Sheets []Sheet `json:"sheets"`
	}
	if err := env.decode(ep, &content); err != nil {
		return nil, err
	}
	return content.Sheets, nil
}
