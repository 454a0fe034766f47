package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/boddenberg/ynab-shared-report/internal/domain"
	"github.com/boddenberg/ynab-shared-report/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("client")

// YNABClient fetches categories and transactions of one budget from the
// YNAB REST API.
type YNABClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	budgetID   string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewYNABClient creates a new YNABClient.
func NewYNABClient(httpClient *http.Client, baseURL, token, budgetID string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *YNABClient {
	return &YNABClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		budgetID:   budgetID,
		cb:         cb,
		cfg:        cfg,
	}
}

type categoriesEnvelope struct {
	Data struct {
		CategoryGroups []domain.CategoryGroup `json:"category_groups"`
	} `json:"data"`
}

type transactionsEnvelope struct {
	Data struct {
		Transactions    []domain.RawTransaction `json:"transactions"`
		ServerKnowledge int64                   `json:"server_knowledge"`
	} `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Detail string `json:"detail"`
	} `json:"error"`
}

// GetCategoryGroups fetches the budget's category groups with retry,
// circuit breaker, and tracing.
func (c *YNABClient) GetCategoryGroups(ctx context.Context) ([]domain.CategoryGroup, error) {
	ctx, span := tracer.Start(ctx, "YNABClient.GetCategoryGroups")
	defer span.End()
	span.SetAttributes(attribute.String("ynab.budget_id", c.budgetID))

	var env categoriesEnvelope
	path := fmt.Sprintf("/budgets/%s/categories", url.PathEscape(c.budgetID))
	if err := c.get(ctx, "categories", path, nil, &env); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("ynab.category_groups", len(env.Data.CategoryGroups)))
	return env.Data.CategoryGroups, nil
}

// GetTransactions fetches transactions dated on or after since. A zero
// since fetches the full history.
func (c *YNABClient) GetTransactions(ctx context.Context, since time.Time) ([]domain.RawTransaction, error) {
	ctx, span := tracer.Start(ctx, "YNABClient.GetTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("ynab.budget_id", c.budgetID))

	query := url.Values{}
	if !since.IsZero() {
		query.Set("since_date", since.Format(domain.DateLayout))
		span.SetAttributes(attribute.String("ynab.since_date", query.Get("since_date")))
	}

	var env transactionsEnvelope
	path := fmt.Sprintf("/budgets/%s/transactions", url.PathEscape(c.budgetID))
	if err := c.get(ctx, "transactions", path, query, &env); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("ynab.transactions", len(env.Data.Transactions)))
	return env.Data.Transactions, nil
}

// get performs one authenticated GET and decodes the JSON body into out.
// Client errors other than 429 are not retried.
func (c *YNABClient) get(ctx context.Context, resource, path string, query url.Values, out any) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			u := c.baseURL + path
			if len(query) > 0 {
				u += "?" + query.Encode()
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return resilience.Permanent(err)
			}
			req.Header.Set("Authorization", "Bearer "+c.token)
			req.Header.Set("Accept", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return statusError(resp, resource, c.budgetID)
			}

			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return resilience.Permanent(fmt.Errorf("decode %s response: %w", resource, err))
			}
			return nil
		})
	})

	if err != nil {
		return &domain.ErrExternalService{Service: "ynab:" + resource, Err: err}
	}
	return nil
}

// statusError maps a non-200 response to a domain error, reading the YNAB
// error envelope when present.
func statusError(resp *http.Response, resource, budgetID string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var env errorEnvelope
	detail := ""
	if json.Unmarshal(body, &env) == nil && env.Error.Detail != "" {
		detail = env.Error.Detail
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		msg := "YNAB rejected the API token"
		if detail != "" {
			msg += ": " + detail
		}
		return resilience.Permanent(&domain.ErrUnauthorized{Message: msg})
	case resp.StatusCode == http.StatusNotFound:
		return resilience.Permanent(&domain.ErrNotFound{Resource: "budget " + resource, ID: budgetID})
	case resp.StatusCode == http.StatusTooManyRequests:
		return &domain.ErrRateLimited{Service: "ynab"}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return resilience.Permanent(fmt.Errorf("%s API returned status %d: %s", resource, resp.StatusCode, detail))
	}
	return fmt.Errorf("%s API returned status %d", resource, resp.StatusCode)
}
