// Package swgoh reads the public game stats API: the unit catalog and the
// rosters of a guild.
package swgoh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mrlobot/discord-bot/pkg/errs"
	"github.com/mrlobot/discord-bot/pkg/report"
	"github.com/mrlobot/discord-bot/pkg/units"
	"github.com/valyala/fasthttp"
)

type Client struct {
	httpClient *fasthttp.Client
	baseURL    string
	timeout    time.Duration
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: time.Minute,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

type Character struct {
	PK     int    `json:"pk"`
	Name   string `json:"name"`
	BaseID string `json:"base_id"`
}

type GuildData struct {
	ID            string `json:"guild_id"`
	Name          string `json:"name"`
	MemberCount   int    `json:"member_count"`
	GalacticPower int64  `json:"galactic_power"`
}

type guildResponse struct {
	Data    *GuildData            `json:"data"`
	Players []report.PlayerRoster `json:"players"`
}

// RawUnits converts the catalog into the input of units.BuildIndex.
func RawUnits(chars []Character) []units.RawUnit {
	raw := make([]units.RawUnit, 0, len(chars))
	for _, c := range chars {
		raw = append(raw, units.RawUnit{ID: c.PK, Name: c.Name, BaseID: c.BaseID})
	}
	return raw
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.baseURL + "/" + strings.Join(escaped, "/") + "/"
}

func doRequest[T any](ctx context.Context, client *Client, endpoint string) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(endpoint)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = client.httpClient.DoDeadline(req, resp, deadline)
	} else {
		err = client.httpClient.DoTimeout(req, resp, client.timeout)
	}
	if err != nil {
		return nil, &errs.TransportError{Endpoint: endpoint, Err: err}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, &errs.TransportError{Endpoint: endpoint, Status: resp.StatusCode()}
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, &errs.TransportError{Endpoint: endpoint, Status: resp.StatusCode(), Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return &result, nil
}

// Characters returns the whole unit catalog.
func (c *Client) Characters(ctx context.Context) ([]Character, error) {
	chars, err := doRequest[[]Character](ctx, c, c.endpoint("characters"))
	if err != nil {
		return nil, err
	}
	return *chars, nil
}

// GuildInfo checks that the guild exists and returns its summary.
func (c *Client) GuildInfo(ctx context.Context, guildID string) (*GuildData, error) {
	ep := c.endpoint("guild", guildID)

	missing := fmt.Sprintf("**Mr.Lobot** cannot find the guild with id **%s**. Are sure it exists?", guildID)

	guild, err := doRequest[guildResponse](ctx, c, ep)
	if err != nil {
		return nil, notFound(ep, missing, err)
	}
	if guild.Data == nil {
		return nil, &errs.RemoteError{
			Endpoint:    ep,
			Kind:        errs.KindNotFound,
			Technical:   "guild response without data",
			UserMessage: missing,
		}
	}
	return guild.Data, nil
}

func (c *Client) GuildPlayers(ctx context.Context, guildID string) ([]report.PlayerRoster, error) {
	ep := c.endpoint("guild", guildID)

	guild, err := doRequest[guildResponse](ctx, c, ep)
	if err != nil {
		return nil, notFound(ep, fmt.Sprintf("**Mr.Lobot** cannot find any data for the player of the guild **%s**", guildID), err)
	}
	return guild.Players, nil
}

// notFound maps a 404 to a RemoteError so the user gets a readable answer;
// every other failure stays a TransportError.
func notFound(endpoint, userMessage string, err error) error {
	var transport *errs.TransportError
	if !errors.As(err, &transport) || transport.Status != fasthttp.StatusNotFound {
		return err
	}
	return &errs.RemoteError{
		Endpoint:    endpoint,
		Kind:        errs.KindNotFound,
		Technical:   transport.Error(),
		UserMessage: userMessage,
	}
}
