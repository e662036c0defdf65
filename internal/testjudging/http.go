package testjudging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/crux/internal/domain/model"
	"github.com/okian/crux/internal/domain/types"
)

// HTTPClient talks to the crux HTTP API.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type judgeBody struct {
	ClimberID int64  `json:"climberId"`
	Try       bool   `json:"try,omitempty"`
	Top       *bool  `json:"top,omitempty"`
	Zone      *bool  `json:"zone,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type judgeAck struct {
	Status    string       `json:"status"`
	Duplicate bool         `json:"duplicate"`
	Result    model.Result `json:"result"`
}

type stateBody struct {
	State model.GroupState `json:"state"`
}

// do sends a request and decodes a 2xx JSON answer into out when out is set.
// It returns the status code along with any error.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return resp.StatusCode, fmt.Errorf("%w: %s %s: %d %s",
			ErrUnexpectedStatus, method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

// Health checks the metrics endpoint answers.
func (c *HTTPClient) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	return err
}

// Group fetches a group with its boulders and roster.
func (c *HTTPClient) Group(ctx context.Context, id int64) (model.Group, error) {
	var g model.Group
	_, err := c.do(ctx, http.MethodGet, "/groups/"+strconv.FormatInt(id, 10), nil, &g)
	return g, err
}

// Round fetches round metadata.
func (c *HTTPClient) Round(ctx context.Context, id int64) (model.Round, error) {
	var r model.Round
	_, err := c.do(ctx, http.MethodGet, "/rounds/"+strconv.FormatInt(id, 10), nil, &r)
	return r, err
}

// SetGroupState moves a group to state.
func (c *HTTPClient) SetGroupState(ctx context.Context, id int64, state model.GroupState) (model.Group, error) {
	var g model.Group
	path := "/groups/" + strconv.FormatInt(id, 10) + "/state"
	_, err := c.do(ctx, http.MethodPut, path, stateBody{State: state}, &g)
	return g, err
}

// Results fetches every result of a group.
func (c *HTTPClient) Results(ctx context.Context, groupID int64) ([]model.Result, error) {
	var out []model.Result
	_, err := c.do(ctx, http.MethodGet, "/groups/"+strconv.FormatInt(groupID, 10)+"/results", nil, &out)
	return out, err
}

// Rankings fetches the current ranking of a scope.
func (c *HTTPClient) Rankings(ctx context.Context, scope model.Scope) (types.RankingEvent, error) {
	var ev types.RankingEvent
	_, err := c.do(ctx, http.MethodGet, "/rankings?scope="+scope.String(), nil, &ev)
	return ev, err
}

// Judge submits one call and classifies the answer. Client errors are
// rejections; transport errors and server errors are failures.
func (c *HTTPClient) Judge(ctx context.Context, groupID int64, call Call) Outcome {
	path := "/groups/" + strconv.FormatInt(groupID, 10) +
		"/boulders/" + strconv.FormatInt(call.BoulderID, 10) + "/results"
	body := judgeBody{
		ClimberID: call.ClimberID,
		Try:       call.Try,
		Top:       call.Top,
		Zone:      call.Zone,
		RequestID: call.RequestID,
	}

	var ack judgeAck
	code, err := c.do(ctx, http.MethodPost, path, body, &ack)
	switch {
	case err == nil && ack.Duplicate:
		return OutcomeDuplicate
	case err == nil:
		return OutcomeApplied
	case code >= http.StatusBadRequest && code < http.StatusInternalServerError:
		return OutcomeRejected
	default:
		return OutcomeFailed
	}
}
