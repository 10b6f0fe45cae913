// Package logout calls the account service to revoke a user's portal session.
package logout

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const userIDPlaceholder = "{user_telegram_id}"

// Client posts forced-logout requests to the account service. The URL template
// must contain {user_telegram_id}.
type Client struct {
	http     *http.Client
	template string
	header   string
	token    string
}

func NewClient(urlTemplate, header, token string) *Client {
	if header == "" {
		header = "X-Auth-Token"
	}
	return &Client{
		http:     &http.Client{Timeout: 30 * time.Second},
		template: urlTemplate,
		header:   header,
		token:    token,
	}
}

// Logout revokes the user's session on the account service.
func (c *Client) Logout(ctx context.Context, userID int64) error {
	url := strings.ReplaceAll(c.template, userIDPlaceholder, strconv.FormatInt(userID, 10))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set(c.header, c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("logout request for %d: %w", userID, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("logout for %d: account service returned %d", userID, resp.StatusCode)
	}
	return nil
}
