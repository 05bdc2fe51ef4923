package lambdafn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/artpar/code-explorer/internal/core/costs"
)

// CostSource fetches cost periods for a query.
type CostSource interface {
	FetchCosts(ctx context.Context, q costs.Query) ([]costs.Period, error)
}

// CostReport serves cost reports over the API Gateway proxy contract.
// It never returns a Go error: every failure becomes a 4xx/5xx response.
type CostReport struct {
	source CostSource
	now    func() time.Time
	logger *slog.Logger
}

// NewCostReport creates a cost report handler.
func NewCostReport(source CostSource, logger *slog.Logger) *CostReport {
	if logger == nil {
		logger = slog.Default()
	}
	return &CostReport{
		source: source,
		now:    time.Now,
		logger: logger.With("handler", "cost_report"),
	}
}

// Handle implements HandlerFunc.
func (h *CostReport) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (resp events.APIGatewayProxyResponse, err error) {
	logger := h.logger.With("request_id", requestID(ctx, req))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panicked", "panic", r)
			resp, err = toProxyResponse(costs.ErrorResponse(http.StatusInternalServerError, fmt.Sprint(r))), nil
		}
	}()

	params := req.QueryStringParameters
	if params == nil {
		params = map[string]string{}
	}

	q, err := costs.ParseQuery(params, h.now())
	if err != nil {
		if errors.Is(err, costs.ErrInvalidDate) {
			logger.Info("rejected request", "error", err)
			return toProxyResponse(costs.ErrorResponse(http.StatusBadRequest, err.Error())), nil
		}
		return h.internalError(logger, err), nil
	}

	periods, err := h.source.FetchCosts(ctx, q)
	if err != nil {
		return h.internalError(logger, err), nil
	}

	rows, err := costs.ExtractRows(periods)
	if err != nil {
		return h.internalError(logger, err), nil
	}

	logger.Info("cost report served",
		"start", q.StartDate(),
		"end", q.EndDate(),
		"format", string(q.Format),
		"rows", len(rows),
	)
	return toProxyResponse(costs.Render(rows, q.Format)), nil
}

func (h *CostReport) internalError(logger *slog.Logger, err error) events.APIGatewayProxyResponse {
	logger.Error("cost report failed", "error", err)
	return toProxyResponse(costs.ErrorResponse(http.StatusInternalServerError, err.Error()))
}

func toProxyResponse(r costs.Response) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: r.StatusCode,
		Headers:    r.Headers,
		Body:       r.Body,
	}
}

// requestID prefers the Lambda invocation ID and falls back to the API
// Gateway request ID (set by the local dev server).
func requestID(ctx context.Context, req events.APIGatewayProxyRequest) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	return req.RequestContext.RequestID
}
