package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const maxRedirects = 3

// Client is the HTTP client for the government directory API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a directory client with a bounded timeout and a
// redirect cap. The directory occasionally answers with redirect chains;
// anything longer than maxRedirects is treated as a failure.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		logger: logger.With(slog.String("component", "directory_client")),
	}
}

// ValidateUser asks the directory whether the citizen is already registered
// with some operator. A 200 means registered, a 204 means unknown.
func (c *Client) ValidateUser(ctx context.Context, userID string) (bool, string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/validateCitizen/"+userID, nil)
	if err != nil {
		return false, "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if err != nil {
			return false, "", fmt.Errorf("read validate response: %w", err)
		}
		return true, string(body), nil
	case http.StatusNoContent:
		return false, "", nil
	default:
		return false, "", fmt.Errorf("validate citizen %s: unexpected status %d", userID, resp.StatusCode)
	}
}

type registerCitizenRequest struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Address      string `json:"address"`
	Email        string `json:"email"`
	OperatorID   string `json:"operatorId"`
	OperatorName string `json:"operatorName"`
}

// RegisterCitizen records custody of the citizen under the given operator.
func (c *Client) RegisterCitizen(ctx context.Context, userID, name, address, email, operatorID, operatorName string) error {
	req := registerCitizenRequest{
		ID:           userID,
		Name:         name,
		Address:      address,
		Email:        email,
		OperatorID:   operatorID,
		OperatorName: operatorName,
	}
	resp, err := c.do(ctx, http.MethodPost, "/registerCitizen", req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("register citizen %s: unexpected status %d", userID, resp.StatusCode)
	}
	return nil
}

// UnregisterCitizen releases custody of the citizen. The call only counts as
// a release on a 200; anything else is surfaced to the caller so the saga
// can fail instead of handing off a citizen the directory still pins here.
func (c *Client) UnregisterCitizen(ctx context.Context, userID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/unregisterCitizen/"+userID, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unregister citizen %s: unexpected status %d", userID, resp.StatusCode)
	}
	return nil
}

// GetOperators fetches the full operator list from the directory.
func (c *Client) GetOperators(ctx context.Context) ([]OperatorRecord, error) {
	resp, err := c.do(ctx, http.MethodGet, "/getOperators", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get operators: unexpected status %d", resp.StatusCode)
	}
	var operators []OperatorRecord
	if err := json.NewDecoder(resp.Body).Decode(&operators); err != nil {
		return nil, fmt.Errorf("decode operators: %w", err)
	}
	return operators, nil
}

type registerOperatorResponse struct {
	IDOperator string `json:"idOperator"`
}

// RegisterOperator registers this operator with the directory and returns
// the directory-assigned operator id.
func (c *Client) RegisterOperator(ctx context.Context, req RegisterOperatorRequest) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/registerOperator", req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("register operator: unexpected status %d", resp.StatusCode)
	}
	var out registerOperatorResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode register operator response: %w", err)
	}
	return out.IDOperator, nil
}

type registerTransferEndpointsRequest struct {
	IDOperator      string `json:"idOperator"`
	EndPoint        string `json:"endPoint"`
	EndPointConfirm string `json:"endPointConfirm"`
}

// RegisterTransferEndpoints publishes the operator's inter-operator endpoints
// so peers can deliver and confirm transfers.
func (c *Client) RegisterTransferEndpoints(ctx context.Context, operatorID, endpoint, confirmEndpoint string) error {
	req := registerTransferEndpointsRequest{
		IDOperator:      operatorID,
		EndPoint:        endpoint,
		EndPointConfirm: confirmEndpoint,
	}
	resp, err := c.do(ctx, http.MethodPost, "/registerTransferEndPoint", req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("register transfer endpoints: unexpected status %d", resp.StatusCode)
	}
	return nil
}

type authenticateDocumentRequest struct {
	IDCitizen     string `json:"idCitizen"`
	URLDocument   string `json:"UrlDocument"`
	DocumentTitle string `json:"documentTitle"`
}

// AuthenticateDocument asks the directory to certify a stored document.
func (c *Client) AuthenticateDocument(ctx context.Context, userID, documentURL, title string) error {
	req := authenticateDocumentRequest{
		IDCitizen:     userID,
		URLDocument:   documentURL,
		DocumentTitle: title,
	}
	resp, err := c.do(ctx, http.MethodPut, "/authenticateDocument", req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("authenticate document %q: unexpected status %d", title, resp.StatusCode)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal directory request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build directory request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory %s %s: %w", method, path, err)
	}
	c.logger.DebugContext(ctx, "directory call",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)))
	return resp, nil
}
