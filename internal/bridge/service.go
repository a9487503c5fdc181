// Package bridge turns chatbot requests into prompts for a hosted language
// model and answers warehouse questions end to end.
package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	bq "github.com/dvloznov/altcredit/internal/bigquery"
	"github.com/dvloznov/altcredit/internal/config"
	"github.com/dvloznov/altcredit/internal/logger"
	"github.com/dvloznov/altcredit/internal/metrics"
)

// FormatRequest asks for a short explanation of query results.
type FormatRequest struct {
	UserQuery string           `json:"user_query"`
	SQLQuery  string           `json:"sql_query,omitempty"`
	Results   []map[string]any `json:"results"`
	Model     string           `json:"model,omitempty"`
}

// SQLRequest asks for a query answering a question over a schema.
type SQLRequest struct {
	Question string `json:"question"`
	Schema   string `json:"schema"`
	Model    string `json:"model,omitempty"`
}

// TopMerchant is a merchant and the customer's total spend there.
type TopMerchant struct {
	Name  string  `json:"name"`
	Total float64 `json:"total"`
}

// ShoppingRequest asks for product recommendations from purchase history.
type ShoppingRequest struct {
	Category              string           `json:"category,omitempty"`
	PurchaseHistory       []map[string]any `json:"purchase_history"`
	TopMerchants          []TopMerchant    `json:"top_merchants"`
	FavoriteMerchants     []string         `json:"favorite_merchants"`
	AveragePurchaseAmount *float64         `json:"average_purchase_amount,omitempty"`
	TotalPurchases        *int             `json:"total_purchases,omitempty"`
	Model                 string           `json:"model,omitempty"`
}

// InterpretRequest asks the router prompt to classify a chat message.
type InterpretRequest struct {
	Message      string `json:"message"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	Model        string `json:"model,omitempty"`
}

// AskResponse is the outcome of a question answered against the warehouse.
type AskResponse struct {
	Question  string           `json:"question"`
	SQL       string           `json:"sql"`
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Truncated bool             `json:"truncated"`
	Answer    string           `json:"answer"`
}

// Querier runs read-only warehouse queries.
type Querier interface {
	RunReadOnlyQuery(ctx context.Context, sql string, maxRows int) (*bq.QueryResult, error)
}

// Service implements the bridge operations.
type Service struct {
	runner  Runner
	models  config.BridgeConfig
	querier Querier
	metrics *metrics.Metrics
	timeout time.Duration
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithQuerier enables Ask against a warehouse.
func WithQuerier(q Querier) ServiceOption {
	return func(s *Service) { s.querier = q }
}

// WithMetrics records every model call.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.timeout = d }
}

// NewService creates a Service. models supplies the default model per operation.
func NewService(runner Runner, models config.BridgeConfig, opts ...ServiceOption) *Service {
	s := &Service{runner: runner, models: models, timeout: 2 * time.Minute}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func pick(override, fallback string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	return fallback
}

func (s *Service) run(ctx context.Context, operation string, req RunRequest) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := s.runner.Run(ctx, req)
	s.metrics.BridgeCall(operation, err)

	log := logger.FromContext(ctx)
	if err != nil {
		log.Error().Err(err).Str("operation", operation).Str("model", req.Model).Msg("Model call failed")
		return "", fmt.Errorf("%s: %w", operation, err)
	}
	log.Debug().
		Str("operation", operation).
		Str("model", req.Model).
		Dur("duration", time.Since(start)).
		Int("output_len", len(out)).
		Msg("Model call complete")
	return out, nil
}

// FormatResults explains query results in a few friendly sentences.
func (s *Service) FormatResults(ctx context.Context, req FormatRequest) (string, error) {
	return s.run(ctx, "format_results", RunRequest{
		Input:        formatResultsPrompt(req),
		Model:        pick(req.Model, s.models.DefaultModel),
		SystemPrompt: formatSystemPrompt,
	})
}

// GenerateSQL asks the model for a query and extracts it from the response.
func (s *Service) GenerateSQL(ctx context.Context, req SQLRequest) (string, error) {
	out, err := s.run(ctx, "generate_sql", RunRequest{
		Input:        generateSQLPrompt(req),
		Model:        pick(req.Model, s.models.SQLModel),
		SystemPrompt: sqlSystemPrompt,
	})
	if err != nil {
		return "", err
	}
	sql, err := ExtractSQL(out)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Str("response", out).Msg("Model response carried no SQL")
		return "", err
	}
	return sql, nil
}

// ShoppingRecommendations suggests three products matching purchase history.
func (s *Service) ShoppingRecommendations(ctx context.Context, req ShoppingRequest) (string, error) {
	return s.run(ctx, "shopping_recommendations", RunRequest{
		Input:        shoppingPrompt(req),
		Model:        pick(req.Model, s.models.ShoppingModel),
		SystemPrompt: shoppingSystemPrompt,
	})
}

// InterpretQuery classifies a chat message, with DefaultInterpretPrompt
// unless the request brings its own system prompt.
func (s *Service) InterpretQuery(ctx context.Context, req InterpretRequest) (string, error) {
	return s.run(ctx, "interpret_query", RunRequest{
		Input:        req.Message,
		Model:        pick(req.Model, s.models.DefaultModel),
		SystemPrompt: pick(req.SystemPrompt, DefaultInterpretPrompt),
	})
}

// Ask answers a question about the warehouse: it generates SQL against the
// warehouse schema, runs it read-only and explains the rows.
func (s *Service) Ask(ctx context.Context, question string) (*AskResponse, error) {
	if s.querier == nil {
		return nil, fmt.Errorf("Ask: no warehouse configured")
	}
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("Ask: question is required")
	}

	sql, err := s.GenerateSQL(ctx, SQLRequest{Question: question, Schema: bq.SchemaDescription})
	if err != nil {
		return nil, fmt.Errorf("Ask: %w", err)
	}

	result, err := s.querier.RunReadOnlyQuery(ctx, sql, bq.DefaultMaxRows)
	if err != nil {
		return nil, fmt.Errorf("Ask: %w", err)
	}

	answer, err := s.FormatResults(ctx, FormatRequest{
		UserQuery: question,
		SQLQuery:  sql,
		Results:   result.Rows,
	})
	if err != nil {
		return nil, fmt.Errorf("Ask: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("sql", sql).
		Int("rows", len(result.Rows)).
		Bool("truncated", result.Truncated).
		Msg("Answered warehouse question")

	return &AskResponse{
		Question:  question,
		SQL:       sql,
		Columns:   result.Columns,
		Rows:      result.Rows,
		Truncated: result.Truncated,
		Answer:    answer,
	}, nil
}
