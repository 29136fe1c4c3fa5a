package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/shopsight/backend/internal/domain/export"
	domain "github.com/shopsight/backend/internal/domain/platform"
	"github.com/shopsight/backend/internal/domain/shop"
	"github.com/shopsight/backend/internal/infrastructure/config"
)

const (
	// maxResponseSize limits the admin API response body to prevent memory exhaustion
	maxResponseSize = 10 * 1024 * 1024 // 10MB

	accessTokenHeader = "X-Platform-Access-Token"
)

// Client implements the domain's BulkExporter port against the platform's
// GraphQL admin API. One Client serves every shop; the credential travels
// per request.
type Client struct {
	cfg        *config.PlatformConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a platform admin API client
func NewClient(cfg *config.PlatformConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		logger: logger,
	}
}

// SubmitExport requests a bulk export of one entity kind and returns the
// platform's operation handle
func (c *Client) SubmitExport(ctx context.Context, s *shop.Shop, kind export.EntityKind) (string, error) {
	query, err := bulkQueryForKind(kind)
	if err != nil {
		return "", err
	}

	var payload submitPayload
	if err := c.execute(ctx, s, graphQLRequest{
		Query:     submitMutation,
		Variables: map[string]interface{}{"query": query},
	}, &payload); err != nil {
		return "", err
	}

	result := payload.BulkOperationRunQuery
	if len(result.UserErrors) > 0 {
		first := result.UserErrors[0]
		return "", fmt.Errorf("%w: %s", domain.ErrQueryRejected, first.Message)
	}
	if result.BulkOperation == nil || result.BulkOperation.ID == "" {
		return "", fmt.Errorf("%w: submit returned no operation handle", domain.ErrQueryRejected)
	}

	c.logger.Info("bulk export submitted",
		zap.String("shop_domain", s.Domain),
		zap.String("kind", string(kind)),
		zap.String("operation_id", result.BulkOperation.ID))

	return result.BulkOperation.ID, nil
}

// PollOperation queries the current status of a bulk operation by handle
func (c *Client) PollOperation(ctx context.Context, s *shop.Shop, operationID string) (*domain.OperationStatus, error) {
	var payload pollPayload
	if err := c.execute(ctx, s, graphQLRequest{
		Query:     pollQuery,
		Variables: map[string]interface{}{"id": operationID},
	}, &payload); err != nil {
		return nil, err
	}

	if payload.Node == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrOperationNotFound, operationID)
	}
	return payload.Node.toStatus(), nil
}

// endpointFor builds the shop-scoped admin API URL
func (c *Client) endpointFor(s *shop.Shop) string {
	base := strings.ReplaceAll(c.cfg.Endpoint, "{shop}", s.Domain)
	return fmt.Sprintf("%s/%s/graphql.json", strings.TrimRight(base, "/"), c.cfg.APIVersion)
}

// execute sends one GraphQL request and decodes the data payload into out
func (c *Client) execute(ctx context.Context, s *shop.Shop, reqBody graphQLRequest, out interface{}) error {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("encoding platform request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointFor(s), bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("building platform request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(accessTokenHeader, s.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling platform: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("reading platform response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.ErrAuth
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case resp.StatusCode >= 400:
		return fmt.Errorf("platform returned HTTP %d", resp.StatusCode)
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("parsing platform response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return graphQLErrorToDomain(envelope.Errors[0])
	}
	if len(envelope.Data) == 0 {
		return fmt.Errorf("platform response carried no data")
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("parsing platform payload: %w", err)
	}
	return nil
}

// graphQLErrorToDomain maps a top-level API error onto the domain taxonomy
func graphQLErrorToDomain(e graphQLError) error {
	switch e.Extensions.Code {
	case "UNAUTHENTICATED", "ACCESS_DENIED":
		return fmt.Errorf("%w: %s", domain.ErrAuth, e.Message)
	case "THROTTLED":
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, e.Message)
	default:
		return fmt.Errorf("%w: %s", domain.ErrQueryRejected, e.Message)
	}
}
