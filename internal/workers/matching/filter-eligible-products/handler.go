// internal/workers/matching/filter-eligible-products/handler.go
package filtereligibleproducts

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
	TaskType = "filter-eligible-products"
)

var (
	ErrInvalidProfile     = errors.New("INVALID_APPLICANT_PROFILE")
	ErrCatalogUnavailable = errors.New("CATALOG_UNAVAILABLE")
)

// Catalog is the product source; *catalog.Service in production.
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
		h.failJob(client, job, timer, h.mapError(err))
		return
	}

	h.completeJob(client, job, output)
	timer.Done("")
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if err := validateProfile(input.ApplicantProfile); err != nil {
		return nil, err
	}

	res, err := h.catalog.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	eligible := lending.FilterEligibleProducts(res.Products, input.ApplicantProfile)
	metrics.EligibleProducts.Observe(float64(len(eligible)))

	output := &Output{
		EligibleProducts: eligible,
		EligibleCount:    len(eligible),
		HasMatches:       len(eligible) > 0,
		Degraded:         res.Degraded,
		CatalogSource:    string(res.Source),
	}
	if input.Explain || h.config.IncludeRejections {
		output.Rejections = lending.ExplainRejections(res.Products, input.ApplicantProfile)
	}

	h.logger.Info("products filtered", map[string]interface{}{
		"catalogSize": len(res.Products),
		"eligible":    len(eligible),
		"source":      res.Source,
		"degraded":    res.Degraded,
	})
	return output, nil
}

func validateProfile(p lending.ApplicantProfile) error {
	if err := p.ValidateForMatching(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	return nil
}

func (h *Handler) mapError(err error) *commonerrors.StandardError {
	switch {
	case errors.Is(err, ErrInvalidProfile):
		return commonerrors.Wrap(commonerrors.ErrCodeInvalidApplicantProfile, err)
	case errors.Is(err, ErrCatalogUnavailable):
		return commonerrors.Wrap(commonerrors.ErrCodeCatalogUnavailable, err)
	}
	return commonerrors.Wrap(commonerrors.ErrCodeInternal, err)
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, timer *metrics.JobTimer, stdErr *commonerrors.StandardError) {
	timer.Done(string(stdErr.Code))
	if err := h.errors.HandleJobError(context.Background(), client, job, stdErr); err != nil {
		h.logger.Error("failed to report job error", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
