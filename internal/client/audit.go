package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/types"
)

// LogoutAuditor reports client-side logouts to the gateway's audit route.
type LogoutAuditor struct {
	client *http.Client
	url    string
}

// NewLogoutAuditor posts to apiURL + "/api/auth/logout". client should
// carry the kiosk's identifying headers (see httpx.HeaderInjector).
func NewLogoutAuditor(client *http.Client, apiURL string) *LogoutAuditor {
	if client == nil {
		client = http.DefaultClient
	}
	return &LogoutAuditor{client: client, url: strings.TrimRight(apiURL, "/") + "/api/auth/logout"}
}

func (a *LogoutAuditor) Logout(ctx context.Context, memberID, reason string) error {
	body, err := json.Marshal(types.LogoutSubmission{MemberID: memberID, Reason: reason})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("post logout: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post logout: gateway responded %d", resp.StatusCode)
	}
	return nil
}
