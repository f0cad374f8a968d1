// internal/workers/matching/recommend-categories/handler.go
package recommendcategories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"loan-intake/internal/catalog"
	commonerrors "loan-intake/internal/common/errors"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/common/metrics"
	"loan-intake/internal/lending"
)

const (
	TaskType = "recommend-categories"
)

var (
	ErrInvalidProfile     = errors.New("INVALID_APPLICANT_PROFILE")
	ErrCatalogUnavailable = errors.New("CATALOG_UNAVAILABLE")
)

type Catalog interface {
	Products(ctx context.Context) (*catalog.Result, error)
}

type Handler struct {
	config  *Config
	catalog Catalog
	logger  logger.Logger
	errors  *commonerrors.ErrorHandler
}

func NewHandler(config *Config, products Catalog, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		catalog: products,
		logger:  l,
		errors:  commonerrors.NewErrorHandler(l),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	timer := metrics.StartJob(TaskType)
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, timer, commonerrors.Wrap(commonerrors.ErrCodeParseError, err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, timer, mapError(err))
		return
	}

	h.completeJob(client, job, output)
	timer.Done("")
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	res, err := h.catalog.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	recs := lending.RecommendCategories(res.Products, input.ApplicantProfile)
	if h.config.Limit > 0 && len(recs) > h.config.Limit {
		recs = recs[:h.config.Limit]
	}

	output := &Output{
		Categories:        recs,
		HasRecommendation: len(recs) > 0,
		Degraded:          res.Degraded,
		CatalogSource:     string(res.Source),
	}
	if len(recs) > 0 {
		output.TopCategory = recs[0].Category
	}

	h.logger.Info("categories recommended", map[string]interface{}{
		"categories": len(recs),
		"top":        output.TopCategory,
		"source":     res.Source,
	})
	return output, nil
}

func mapError(err error) *commonerrors.StandardError {
	switch {
	case errors.Is(err, ErrInvalidProfile):
		return commonerrors.Wrap(commonerrors.ErrCodeInvalidApplicantProfile, err)
	case errors.Is(err, ErrCatalogUnavailable):
		return commonerrors.Wrap(commonerrors.ErrCodeCatalogUnavailable, err)
	default:
		return commonerrors.Wrap(commonerrors.ErrCodeInternal, err)
	}
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, timer *metrics.JobTimer, stdErr *commonerrors.StandardError) {
	timer.Done(string(stdErr.Code))
	if err := h.errors.HandleJobError(context.Background(), client, job, stdErr); err != nil {
		h.logger.Error("failed to report job error", map[string]interface{}{"error": err})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
