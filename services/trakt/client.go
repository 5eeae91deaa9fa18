package trakt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"traktsweep/models"
)

const (
	traktAPIBaseURL = "https://api.trakt.tv"
	traktAPIVersion = "2"

	// historyPageLimit is the page size used when fetching watch history.
	historyPageLimit = 1000
)

// Sentinel errors for the device flow and authenticated calls.
var (
	ErrUnauthorized         = errors.New("trakt: unauthorized")
	ErrAuthorizationPending = errors.New("trakt: authorization pending")
	ErrSlowDown             = errors.New("trakt: polling too fast")
	ErrDeviceCodeExpired    = errors.New("trakt: device code expired")
	ErrDeviceCodeUsed       = errors.New("trakt: device code already used")
	ErrAccessDenied         = errors.New("trakt: user denied authorization")
)

// Client handles Trakt API interactions for OAuth and history management.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
}

// DeviceCode represents the response from /oauth/device/code.
type DeviceCode struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// RemovalResult represents the response from /sync/history/remove.
type RemovalResult struct {
	Deleted struct {
		Movies   int `json:"movies"`
		Episodes int `json:"episodes"`
	} `json:"deleted"`
	NotFound struct {
		IDs []int64 `json:"ids"`
	} `json:"not_found"`
}

// NewClient creates a new Trakt API client.
func NewClient(clientID, clientSecret string) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      traktAPIBaseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// setTraktHeaders adds required Trakt API headers to a request.
func (c *Client) setTraktHeaders(req *http.Request, accessToken string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("trakt-api-version", traktAPIVersion)
	req.Header.Set("trakt-api-key", c.clientID)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
}

func (c *Client) postJSON(path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setTraktHeaders(req, "")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trakt api request: %w", err)
	}
	return resp, nil
}

// GetDeviceCode initiates the device code OAuth flow.
func (c *Client) GetDeviceCode() (*DeviceCode, error) {
	resp, err := c.postJSON("/oauth/device/code", map[string]string{
		"client_id": c.clientID,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("trakt device code failed: %s - %s", resp.Status, string(respBody))
	}

	var code DeviceCode
	if err := json.NewDecoder(resp.Body).Decode(&code); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &code, nil
}

// PollDeviceToken polls for the OAuth token after the user has been shown
// the verification code. Pending authorization and rate limiting surface as
// ErrAuthorizationPending and ErrSlowDown for the caller's poll loop.
func (c *Client) PollDeviceToken(deviceCode string) (*models.Token, error) {
	resp, err := c.postJSON("/oauth/device/token", map[string]string{
		"code":          deviceCode,
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"grant_type":    "urn:ietf:params:oauth:grant-type:device_code",
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var token models.Token
		if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &token, nil
	case http.StatusBadRequest:
		return nil, ErrAuthorizationPending
	case http.StatusTooManyRequests:
		return nil, ErrSlowDown
	case http.StatusGone:
		return nil, ErrDeviceCodeExpired
	case http.StatusConflict:
		return nil, ErrDeviceCodeUsed
	case http.StatusForbidden, http.StatusTeapot:
		return nil, ErrAccessDenied
	default:
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("trakt token poll failed: %s - %s", resp.Status, string(respBody))
	}
}

// RefreshToken exchanges a refresh token for a new access token.
func (c *Client) RefreshToken(refreshToken string) (*models.Token, error) {
	resp, err := c.postJSON("/oauth/token", map[string]string{
		"refresh_token": refreshToken,
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"redirect_uri":  "urn:ietf:wg:oauth:2.0:oob",
		"grant_type":    "refresh_token",
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("trakt token refresh failed: %s - %s", resp.Status, string(respBody))
	}

	var token models.Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &token, nil
}

// History retrieves one page of the user's watch history for the given
// media type ("movies" or "episodes"), with extended details so playback
// progress is included. Returns items, total item count, and error.
func (c *Client) History(accessToken, username, mediaType string, page, limit int) ([]models.HistoryEntry, int, error) {
	url := fmt.Sprintf("%s/users/%s/history/%s?page=%d&limit=%d&extended=full",
		c.baseURL, username, mediaType, page, limit)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	c.setTraktHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, 0, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, 0, fmt.Errorf("trakt history failed: %s - %s", resp.Status, string(respBody))
	}

	totalCount := 0
	if totalHeader := resp.Header.Get("X-Pagination-Item-Count"); totalHeader != "" {
		totalCount, _ = strconv.Atoi(totalHeader)
	}

	var items []models.HistoryEntry
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, 0, fmt.Errorf("decode response: %w", err)
	}
	return items, totalCount, nil
}

// AllHistory retrieves the complete watch history for a media type,
// following pagination until the reported item count is satisfied.
func (c *Client) AllHistory(accessToken, username, mediaType string) ([]models.HistoryEntry, error) {
	var allItems []models.HistoryEntry
	page := 1

	for {
		items, totalCount, err := c.History(accessToken, username, mediaType, page, historyPageLimit)
		if err != nil {
			return nil, err
		}
		allItems = append(allItems, items...)
		if len(allItems) >= totalCount || len(items) == 0 {
			break
		}
		page++
	}
	return allItems, nil
}

// RemoveFromHistory removes the given watch events from the user's history
// in a single batch.
func (c *Client) RemoveFromHistory(accessToken string, ids []int64) (*RemovalResult, error) {
	body, err := json.Marshal(map[string][]int64{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/sync/history/remove", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setTraktHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trakt api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("trakt history remove failed: %s - %s", resp.Status, string(respBody))
	}

	var result RemovalResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
