package line

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

	"kingchat-backend/internal/env"
)

const defaultEndpoint = "https://api.line.me"

// DefaultPushTimeout bounds one push call. Timeouts are reported as
// ErrTimeout, never assumed delivered.
const DefaultPushTimeout = 10 * time.Second

var (
	ErrRejected = errors.New("line: push rejected")
	ErrTimeout  = errors.New("line: push timed out")
)

// RejectedError carries the platform's reason for refusing a push.
type RejectedError struct {
	StatusCode int
	Body       string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("line: push rejected: status %d: %s", e.StatusCode, e.Body)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// Client talks to the LINE Messaging API. Endpoint and HTTP client are
// injectable so tests can point it at a local server.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{
		endpoint:   env.GetOrDefault(env.LineAPIEndpoint, defaultEndpoint),
		httpClient: &http.Client{Timeout: DefaultPushTimeout},
	}
}

func NewClientWithEndpoint(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultPushTimeout}
	}
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: httpClient,
	}
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []pushMessage `json:"messages"`
}

type pushMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// PushText delivers one text message to a customer on behalf of the
// account owning accessToken. Returns nil only when the platform
// confirmed acceptance; a non-2xx response is ErrRejected and a deadline
// hit is ErrTimeout.
func (c *Client) PushText(ctx context.Context, accessToken, to, text string) error {
	payload, err := json.Marshal(pushRequest{
		To:       to,
		Messages: []pushMessage{{Type: "text", Text: text}},
	})
	if err != nil {
		return fmt.Errorf("line: marshal push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v2/bot/message/push", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("line: build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	res, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return ErrTimeout
		}
		return fmt.Errorf("line: push request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &RejectedError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return nil
}

type Profile struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	PictureURL  string `json:"pictureUrl"`
}

// GetProfile fetches the customer's display name. Best effort; callers
// fall back to the raw user id when it fails.
func (c *Client) GetProfile(ctx context.Context, accessToken, userID string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/v2/bot/profile/"+userID, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("line: build profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("line: profile request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("line: profile request: status %d", res.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(res.Body).Decode(&profile); err != nil {
		return Profile{}, fmt.Errorf("line: decode profile: %w", err)
	}
	return profile, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
