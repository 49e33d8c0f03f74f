package clientsync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// HTTPPoller はGET /requests/access/todayを叩くPoller実装。
type HTTPPoller struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPPoller(baseURL, token string) *HTTPPoller {
	return &HTTPPoller{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  http.DefaultClient,
	}
}

type accessStateResponse struct {
	State string `json:"state"`
}

func (p *HTTPPoller) PollAccessState(ctx context.Context) (AccessState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/requests/access/today", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.Token)

	res, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("poll access state: unexpected status %d", res.StatusCode)
	}

	var body accessStateResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", err
	}
	switch st := AccessState(body.State); st {
	case StateNone, StatePending, StateApproved, StateRejected:
		return st, nil
	default:
		return "", fmt.Errorf("poll access state: unknown state %q", body.State)
	}
}
