// Package tesla implements the owner-api gateway client. The client reports
// each outcome as exactly one typed error; retry policy belongs to the caller.
package tesla

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/teslamon/teslamon/auth"
	"github.com/teslamon/teslamon/core/logger"
	"github.com/teslamon/teslamon/core/model"
	coretesla "github.com/teslamon/teslamon/core/tesla"
)

const (
	DefaultAPIURL = "https://owner-api.teslamotors.com"

	clientID     = "81527cff06843c8634fdc09e8ac0abefb46ac849f38fe1e431c2ef2106796384"
	clientSecret = "c7257eb71a564034f9419ee651c7d0e5f7aa6bfbd18bafb5c5c033b093bb2fa3"
	userAgent    = "teslamon"

	// vehicleUnavailablePrefix marks the structured error body the API sends
	// for an unreachable car.
	vehicleUnavailablePrefix = "vehicle unavailable:"
)

// reply is the success envelope wrapping every owner-api payload. The payload
// is kept raw so a missing or null envelope can be told apart from a zero
// value.
type reply struct {
	Response json.RawMessage `json:"response"`
}

type errorReply struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type tokenReply struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Client issues authenticated calls to the owner-api. Each worker gets its own
// Client sharing only the credential value taken at spawn time, so token
// refresh needs no cross-worker coordination beyond the credential's own lock.
type Client struct {
	http   *http.Client
	apiURL string
	cred   *auth.Credential
	log    logger.Logger

	wakeAttempts int
	wakeInterval time.Duration
}

// Authenticate builds a Client from the configuration. With an email/password
// pair it performs a password-grant login; with a pre-issued token pair it
// uses the tokens as-is.
func Authenticate(cfg Config, log logger.Logger) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		http:         &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		apiURL:       cfg.APIURL,
		log:          log,
		wakeAttempts: cfg.WakeAttempts,
		wakeInterval: time.Duration(cfg.WakeIntervalSeconds) * time.Second,
	}
	if cfg.Email != "" && cfg.Password != "" {
		tok, err := c.requestToken(context.Background(), map[string]string{
			"grant_type":    "password",
			"client_id":     clientID,
			"client_secret": clientSecret,
			"email":         cfg.Email,
			"password":      cfg.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("authenticate: %w", err)
		}
		c.cred = auth.NewCredential(tok.AccessToken, tok.RefreshToken, tok.ExpiresIn)
		return c, nil
	}
	c.cred = auth.NewCredential(cfg.AccessToken, cfg.RefreshToken, 3600)
	return c, nil
}

// Clone returns a client with its own transport sharing this client's
// credential. The supervisor hands one clone to every polling loop.
func (c *Client) Clone() *Client {
	cp := *c
	httpCopy := *c.http
	cp.http = &httpCopy
	return &cp
}

// RefreshCredential exchanges the refresh token for a new pair and swaps it
// into the credential in place.
func (c *Client) RefreshCredential(ctx context.Context) error {
	tok, err := c.requestToken(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     clientID,
		"client_secret": clientSecret,
		"refresh_token": c.cred.RefreshToken(),
	})
	if err != nil {
		return fmt.Errorf("refresh credential: %w", err)
	}
	c.cred.Replace(&oauth2.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second),
	})
	return nil
}

// FetchVehicles lists the vehicles on the account.
func (c *Client) FetchVehicles(ctx context.Context) ([]model.Vehicle, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/1/vehicles")
	if err != nil {
		return nil, err
	}
	return decodeReply[[]model.Vehicle](body)
}

// FetchVehicleData retrieves the full readable state of one vehicle.
func (c *Client) FetchVehicleData(ctx context.Context, vehicleID int64) (*model.VehicleData, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/1/vehicles/%d/vehicle_data", vehicleID))
	if err != nil {
		return nil, err
	}
	data, err := decodeReply[model.VehicleData](body)
	if err != nil {
		return nil, err
	}
	return &data, nil
}

// Wake asks a sleeping vehicle to come online. Calling it on an online
// vehicle is a no-op from the caller's perspective.
func (c *Client) Wake(ctx context.Context, vehicleID int64) (model.Vehicle, error) {
	body, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/1/vehicles/%d/wake_up", vehicleID))
	if err != nil {
		return model.Vehicle{}, err
	}
	return decodeReply[model.Vehicle](body)
}

// WakePoll issues Wake until the vehicle reports online or the attempt
// ceiling is reached, sleeping the wake interval between attempts.
func (c *Client) WakePoll(ctx context.Context, vehicleID int64) (model.Vehicle, error) {
	v, err := c.Wake(ctx, vehicleID)
	if err != nil {
		return model.Vehicle{}, err
	}
	for attempt := 0; v.IsAsleep() && attempt < c.wakeAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return model.Vehicle{}, ctx.Err()
		case <-time.After(c.wakeInterval):
		}
		if v, err = c.Wake(ctx, vehicleID); err != nil {
			return model.Vehicle{}, err
		}
	}
	if v.IsAsleep() {
		return model.Vehicle{}, coretesla.ErrWakeTimeout
	}
	return v, nil
}

// FetchAllVehicleData wakes every asleep vehicle and fetches its state,
// skipping vehicles that stay unreachable.
func (c *Client) FetchAllVehicleData(ctx context.Context) ([]*model.VehicleData, error) {
	vehicles, err := c.FetchVehicles(ctx)
	if err != nil {
		return nil, err
	}
	var out []*model.VehicleData
	for _, v := range vehicles {
		if v.IsAsleep() {
			if _, err := c.WakePoll(ctx, v.ID); err != nil {
				c.log.Warnf("wake %q: %v", v.DisplayName, err)
				continue
			}
		}
		data, err := c.FetchVehicleData(ctx, v.ID)
		if err != nil {
			c.log.Warnf("fetch %q: %v", v.DisplayName, err)
			continue
		}
		out = append(out, data)
	}
	return out, nil
}

// do issues one authenticated request and returns the raw success body, or
// exactly one classified error.
func (c *Client) do(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	c.cred.SetAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &coretesla.TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &coretesla.TransportError{Err: err}
	}
	return handleReply(resp.StatusCode, body)
}

// handleReply classifies one HTTP outcome. The mapping is total: every
// status/body combination yields either the success body or one typed error.
func handleReply(status int, body []byte) ([]byte, error) {
	switch {
	case status >= 200 && status < 300:
		return body, nil
	case status == http.StatusUnauthorized:
		return nil, coretesla.ErrAuthExpired
	case status == http.StatusTooManyRequests:
		return nil, coretesla.ErrBlocked
	}
	var er errorReply
	if err := json.Unmarshal(body, &er); err == nil && strings.HasPrefix(er.Error, vehicleUnavailablePrefix) {
		return nil, coretesla.ErrVehicleUnavailable
	} else if err == nil && er.Error != "" {
		return nil, &coretesla.APIError{StatusCode: status, ErrorText: er.Error, Description: er.ErrorDescription}
	}
	return nil, &coretesla.APIError{StatusCode: status, ErrorText: string(body)}
}

func decodeReply[T any](body []byte) (T, error) {
	var zero T
	var r reply
	if err := json.Unmarshal(body, &r); err != nil {
		return zero, &coretesla.DecodeError{Err: err}
	}
	if len(r.Response) == 0 || string(r.Response) == "null" {
		return zero, &coretesla.DecodeError{Err: errors.New("missing response envelope")}
	}
	var out T
	if err := json.Unmarshal(r.Response, &out); err != nil {
		return zero, &coretesla.DecodeError{Err: err}
	}
	return out, nil
}

// requestToken posts a grant request to the token endpoint. Token calls are
// unauthenticated and bypass the envelope.
func (c *Client) requestToken(ctx context.Context, form map[string]string) (*tokenReply, error) {
	payload, err := json.Marshal(form)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/oauth/token?grant_type=%s", c.apiURL, form["grant_type"])
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &coretesla.TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &coretesla.TransportError{Err: err}
	}
	if _, err := handleReply(resp.StatusCode, body); err != nil {
		// A 401 here is a rejected grant, not an expired bearer token.
		if errors.Is(err, coretesla.ErrAuthExpired) {
			return nil, coretesla.ErrLoginFailed
		}
		return nil, err
	}
	var tok tokenReply
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, &coretesla.DecodeError{Err: err}
	}
	return &tok, nil
}
