package http

import (
	"context"
	"io"

	"priceindex/internal/exporter"
	"priceindex/internal/services"
)

// IndexServiceInterface defines the index operations used by IndexHandler
type IndexServiceInterface interface {
	Compute(ctx context.Context, req services.ComputeRequest) (*services.IndexRun, error)
	ComputeGrouped(ctx context.Context, req services.ComputeRequest, groupColumn string) (*services.GroupedRun, error)
	Get(id string) (*services.IndexRun, error)
	GetGroup(groupID string) (*services.GroupedRun, error)
	List(limit int) ([]*services.IndexRun, error)
	Export(ctx context.Context, w io.Writer, id string, format exporter.Format) error
}
