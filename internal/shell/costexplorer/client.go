// Package costexplorer fetches cost and usage data from AWS Cost Explorer.
// This is part of the Imperative Shell - it handles I/O with the AWS API.
package costexplorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	smithy "github.com/aws/smithy-go"

	"github.com/artpar/code-explorer/internal/core/costs"
)

// maxPages bounds NextPageToken pagination for a single query.
const maxPages = 50

// =============================================================================
// Errors
// =============================================================================

// ErrCostExplorer is matched by every failed Cost Explorer request.
var ErrCostExplorer = errors.New("cost explorer error")

// RequestError wraps a failed Cost Explorer request.
type RequestError struct {
	// Code is the AWS error code when the failure came from the API
	// (e.g. "DataUnavailableException"), empty otherwise.
	Code string
	Err  error
}

// Error implements the error interface. The message is returned to callers
// verbatim in the response body.
func (e *RequestError) Error() string {
	return "Cost Explorer Error: " + e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrCostExplorer.
func (e *RequestError) Is(target error) bool {
	return target == ErrCostExplorer
}

func newRequestError(err error) *RequestError {
	reqErr := &RequestError{Err: err}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		reqErr.Code = apiErr.ErrorCode()
	}
	return reqErr
}

// =============================================================================
// Client
// =============================================================================

// API is the subset of the Cost Explorer client used here.
type API interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

// Cache stores fetched periods between invocations.
type Cache interface {
	Get(ctx context.Context, key string) ([]costs.Period, bool, error)
	Put(ctx context.Context, key string, periods []costs.Period) error
}

// Config holds Cost Explorer client configuration.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// Granularity is DAILY, MONTHLY or HOURLY.
	Granularity string

	// Metric is the reported cost metric, e.g. UnblendedCost.
	Metric string
}

// Client queries Cost Explorer for per-service costs.
type Client struct {
	api         API
	cache       Cache
	granularity cetypes.Granularity
	metric      string
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithCache enables result caching.
func WithCache(cache Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// New creates a client from AWS configuration. Static credentials are used
// when configured; otherwise the default credential chain applies.
func New(ctx context.Context, cfg Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWithAPI(costexplorer.NewFromConfig(awsCfg), cfg, logger, opts...)
}

// NewWithAPI creates a client over an existing API implementation.
func NewWithAPI(api API, cfg Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	granularity := cetypes.Granularity(cfg.Granularity)
	if !isKnownGranularity(granularity) {
		return nil, fmt.Errorf("unsupported granularity %q", cfg.Granularity)
	}
	if cfg.Metric == "" {
		return nil, errors.New("metric is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		api:         api,
		granularity: granularity,
		metric:      cfg.Metric,
		logger:      logger.With("component", "costexplorer"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func isKnownGranularity(g cetypes.Granularity) bool {
	for _, known := range g.Values() {
		if g == known {
			return true
		}
	}
	return false
}

// FetchCosts returns the query's cost periods grouped by service, following
// every result page. Cached results are served when a cache is configured;
// cache failures are logged and otherwise ignored.
func (c *Client) FetchCosts(ctx context.Context, q costs.Query) ([]costs.Period, error) {
	key := costs.CacheKey(q, string(c.granularity), c.metric)

	if c.cache != nil {
		periods, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("cache lookup failed", "error", err)
		} else if ok {
			c.logger.Debug("cache hit", "start", q.StartDate(), "end", q.EndDate())
			return periods, nil
		}
	}

	periods, err := c.fetch(ctx, q)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Put(ctx, key, periods); err != nil {
			c.logger.Warn("cache store failed", "error", err)
		}
	}

	return periods, nil
}

func (c *Client) fetch(ctx context.Context, q costs.Query) ([]costs.Period, error) {
	input := &costexplorer.GetCostAndUsageInput{
		TimePeriod: &cetypes.DateInterval{
			Start: aws.String(q.StartDate()),
			End:   aws.String(q.EndDate()),
		},
		Granularity: c.granularity,
		Metrics:     []string{c.metric},
		GroupBy: []cetypes.GroupDefinition{
			{Type: cetypes.GroupDefinitionTypeDimension, Key: aws.String(costs.DimensionService)},
		},
		Filter: toExpression(q.Filter),
	}

	var periods []costs.Period
	for page := 0; page < maxPages; page++ {
		out, err := c.api.GetCostAndUsage(ctx, input)
		if err != nil {
			reqErr := newRequestError(err)
			c.logger.Error("GetCostAndUsage failed",
				"error", err,
				"code", reqErr.Code,
				"start", q.StartDate(),
				"end", q.EndDate(),
			)
			return nil, reqErr
		}

		for _, result := range out.ResultsByTime {
			period, err := c.toPeriod(result)
			if err != nil {
				return nil, newRequestError(err)
			}
			periods = append(periods, period)
		}

		if aws.ToString(out.NextPageToken) == "" {
			c.logger.Debug("fetched cost data", "periods", len(periods), "pages", page+1)
			return periods, nil
		}
		input.NextPageToken = out.NextPageToken
	}

	return nil, newRequestError(fmt.Errorf("result exceeded %d pages", maxPages))
}

func (c *Client) toPeriod(result cetypes.ResultByTime) (costs.Period, error) {
	var period costs.Period
	if result.TimePeriod != nil {
		period.Start = aws.ToString(result.TimePeriod.Start)
		period.End = aws.ToString(result.TimePeriod.End)
	}

	period.Groups = make([]costs.Group, 0, len(result.Groups))
	for _, group := range result.Groups {
		metric, ok := group.Metrics[c.metric]
		if !ok {
			return costs.Period{}, fmt.Errorf("metric %s missing for group %v", c.metric, group.Keys)
		}
		period.Groups = append(period.Groups, costs.Group{
			Keys:   group.Keys,
			Amount: aws.ToString(metric.Amount),
		})
	}
	return period, nil
}

// toExpression converts a core filter into the SDK representation.
func toExpression(e *costs.Expression) *cetypes.Expression {
	if e == nil {
		return nil
	}

	out := &cetypes.Expression{}
	switch {
	case len(e.And) > 0:
		out.And = make([]cetypes.Expression, 0, len(e.And))
		for i := range e.And {
			out.And = append(out.And, *toExpression(&e.And[i]))
		}
	case e.Dimension != nil:
		out.Dimensions = &cetypes.DimensionValues{
			Key:    cetypes.Dimension(e.Dimension.Key),
			Values: e.Dimension.Values,
		}
	case e.Tag != nil:
		out.Tags = &cetypes.TagValues{
			Key:    aws.String(e.Tag.Key),
			Values: e.Tag.Values,
		}
	}
	return out
}
