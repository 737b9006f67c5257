// Package operators delivers transfer payloads to peer operators over the
// inter-operator HTTP contract published in the government directory.
package operators

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/josuedanielbust/docucol/internal/transfer/models"
)

// Gateway posts citizen transfer payloads to a peer operator's transfer
// endpoint. Delivery counts as accepted only on a 200; every other status
// leaves custody with the sender.
type Gateway struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func NewGateway(timeout time.Duration, logger *slog.Logger) *Gateway {
	return &Gateway{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "operator_gateway")),
	}
}

// Deliver sends the citizen package to the peer's transferAPIURL.
func (g *Gateway) Deliver(ctx context.Context, transferAPIURL string, payload models.IncomingPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal transfer payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, transferAPIURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver transfer to %s: %w", transferAPIURL, err)
	}
	defer resp.Body.Close()

	g.logger.InfoContext(ctx, "peer transfer delivery attempted",
		slog.String("url", transferAPIURL),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("peer operator rejected transfer: status %d", resp.StatusCode)
	}
	return nil
}
