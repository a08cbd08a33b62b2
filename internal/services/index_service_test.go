package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"priceindex/internal/exporter"
	"priceindex/internal/infrastructure"
	"priceindex/internal/multilateral"
	"priceindex/internal/panel"
	"priceindex/internal/shared/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func readPanel(t *testing.T, data string, characteristics ...string) *panel.Panel {
	t.Helper()
	cols := panel.DefaultColumns()
	cols.Characteristics = characteristics
	p, err := panel.ReadCSV(strings.NewReader(data), cols)
	require.NoError(t, err)
	return p
}

func TestIndexService_Compute(t *testing.T) {
	svc := NewIndexService(discardLogger())

	run, err := svc.Compute(context.Background(), ComputeRequest{
		Method: "TPD",
		Panel:  readPanel(t, testutil.ProportionalCSV),
		Source: "test.csv",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, multilateral.TPD, run.Method)
	assert.Equal(t, "test.csv", run.Source)
	require.NotNil(t, run.Table)
	assert.Equal(t, []string{"1", "2"}, run.Table.Periods())

	v, ok := run.Table.Value("2")
	require.True(t, ok)
	assert.InDelta(t, 1.5, v, 1e-9)

	stored, err := svc.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, stored.ID)
}

func TestIndexService_ComputeErrors(t *testing.T) {
	tests := []struct {
		name    string
		opts    []IndexServiceOption
		req     func(t *testing.T) ComputeRequest
		wantErr error
	}{
		{
			name: "invalid method",
			req: func(t *testing.T) ComputeRequest {
				return ComputeRequest{Method: "FOO", Panel: readPanel(t, testutil.ProportionalCSV)}
			},
			wantErr: multilateral.ErrInvalidMethod,
		},
		{
			name: "invalid method checked before panel",
			req: func(t *testing.T) ComputeRequest {
				return ComputeRequest{Method: "FOO"}
			},
			wantErr: multilateral.ErrInvalidMethod,
		},
		{
			name: "missing panel",
			req: func(t *testing.T) ComputeRequest {
				return ComputeRequest{Method: "TPD"}
			},
			wantErr: ErrPanelRequired,
		},
		{
			name: "TDH without characteristics",
			req: func(t *testing.T) ComputeRequest {
				return ComputeRequest{Method: "TDH", Panel: readPanel(t, testutil.ProportionalCSV)}
			},
			wantErr: multilateral.ErrCharacteristicsRequired,
		},
		{
			name: "too many observations",
			opts: []IndexServiceOption{WithMaxObservations(3)},
			req: func(t *testing.T) ComputeRequest {
				return ComputeRequest{Method: "TPD", Panel: readPanel(t, testutil.ProportionalCSV)}
			},
			wantErr: ErrTooManyObservations,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewIndexService(discardLogger(), tt.opts...)
			_, err := svc.Compute(context.Background(), tt.req(t))
			assert.ErrorIs(t, err, tt.wantErr)

			runs, err := svc.List(0)
			require.NoError(t, err)
			assert.Empty(t, runs, "failed runs are not stored")
		})
	}
}

func TestIndexService_ComputeTDH(t *testing.T) {
	svc := NewIndexService(discardLogger())

	run, err := svc.Compute(context.Background(), ComputeRequest{
		Method: "TDH",
		Panel:  readPanel(t, testutil.HedonicCSV, "model"),
	})
	require.NoError(t, err)
	assert.Equal(t, multilateral.TDH, run.Method)
	assert.Equal(t, []string{"1", "2", "3"}, run.Table.Periods())
}

func TestIndexService_ComputeGrouped(t *testing.T) {
	store := NewMemoryRunStore(0)
	svc := NewIndexService(discardLogger(), WithStore(store), WithMaxConcurrency(1))

	grouped, err := svc.ComputeGrouped(context.Background(), ComputeRequest{
		Method: "TPD",
		Panel:  readPanel(t, testutil.GroupedCSV),
	}, "region")
	require.NoError(t, err)

	require.Len(t, grouped.Runs, 2)
	assert.Equal(t, "region", grouped.GroupColumn)
	assert.Equal(t, "north", grouped.Runs[0].Group)
	assert.Equal(t, "south", grouped.Runs[1].Group)

	north, _ := grouped.Runs[0].Table.Value("2")
	south, _ := grouped.Runs[1].Table.Value("2")
	assert.InDelta(t, 1.5, north, 1e-9)
	assert.InDelta(t, 1.1, south, 1e-9)

	for _, run := range grouped.Runs {
		assert.Equal(t, grouped.ID, run.GroupID)
	}
	assert.Equal(t, 2, store.Len())

	again, err := svc.GetGroup(grouped.ID)
	require.NoError(t, err)
	require.Len(t, again.Runs, 2)
	assert.Equal(t, "north", again.Runs[0].Group)
}

// numericGroupsCSV has three regions labelled 2, 10 and 3
const numericGroupsCSV = `id,month,price,quantity,region
A,1,2,1,2
A,2,3,1,2
A,1,2,1,10
A,2,4,1,10
A,1,2,1,3
A,2,5,1,3
`

func TestIndexService_GetGroupOrder(t *testing.T) {
	svc := NewIndexService(discardLogger())

	grouped, err := svc.ComputeGrouped(context.Background(), ComputeRequest{
		Method: "TPD",
		Panel:  readPanel(t, numericGroupsCSV),
	}, "region")
	require.NoError(t, err)

	groups := func(runs []*IndexRun) []string {
		out := make([]string, len(runs))
		for i, r := range runs {
			out[i] = r.Group
		}
		return out
	}
	assert.Equal(t, []string{"2", "3", "10"}, groups(grouped.Runs))

	again, err := svc.GetGroup(grouped.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3", "10"}, groups(again.Runs))
	assert.Equal(t, 3, again.Runs[0].GroupSize)
}

func TestIndexService_ComputeGroupedExceedsCapacity(t *testing.T) {
	store := NewMemoryRunStore(2)
	svc := NewIndexService(discardLogger(), WithStore(store))

	_, err := svc.ComputeGrouped(context.Background(), ComputeRequest{
		Method: "TPD",
		Panel:  readPanel(t, numericGroupsCSV),
	}, "region")
	assert.ErrorIs(t, err, ErrGroupTooLarge)
	assert.Equal(t, 0, store.Len())
}

func TestIndexService_GetGroupIncomplete(t *testing.T) {
	store := NewMemoryRunStore(0)
	svc := NewIndexService(discardLogger(), WithStore(store))

	grouped, err := svc.ComputeGrouped(context.Background(), ComputeRequest{
		Method: "TPD",
		Panel:  readPanel(t, numericGroupsCSV),
	}, "region")
	require.NoError(t, err)
	require.NoError(t, store.Delete(grouped.Runs[0].ID))

	_, err = svc.GetGroup(grouped.ID)
	assert.ErrorIs(t, err, ErrRunNotFound)

	var buf bytes.Buffer
	err = svc.Export(context.Background(), &buf, grouped.ID, exporter.FormatCSV)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestIndexService_ComputeGroupedErrors(t *testing.T) {
	svc := NewIndexService(discardLogger())
	p := readPanel(t, testutil.GroupedCSV)

	_, err := svc.ComputeGrouped(context.Background(), ComputeRequest{Method: "TPD", Panel: p}, "")
	assert.ErrorIs(t, err, ErrGroupColumnRequired)

	_, err = svc.ComputeGrouped(context.Background(), ComputeRequest{Method: "FOO", Panel: p}, "region")
	assert.ErrorIs(t, err, multilateral.ErrInvalidMethod)

	_, err = svc.ComputeGrouped(context.Background(), ComputeRequest{Method: "TPD", Panel: p}, "country")
	var schemaErr *panel.SchemaError
	assert.True(t, errors.As(err, &schemaErr))

	_, err = svc.ComputeGrouped(context.Background(), ComputeRequest{Method: "TDH", Panel: p}, "region")
	assert.ErrorIs(t, err, multilateral.ErrCharacteristicsRequired)

	runs, err := svc.List(0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestIndexService_ListAndGetGroupNotFound(t *testing.T) {
	svc := NewIndexService(discardLogger())
	for i := 0; i < 3; i++ {
		_, err := svc.Compute(context.Background(), ComputeRequest{Method: "TPD", Panel: readPanel(t, testutil.ProportionalCSV)})
		require.NoError(t, err)
	}

	runs, err := svc.List(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.Equal(t, 3, svc.Len())

	_, err = svc.GetGroup("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestIndexService_Export(t *testing.T) {
	svc := NewIndexService(discardLogger())
	ctx := context.Background()

	run, err := svc.Compute(ctx, ComputeRequest{Method: "TPD", Panel: readPanel(t, testutil.ProportionalCSV)})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.Export(ctx, &buf, run.ID, exporter.FormatCSV))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"period", "index_value"}, records[0])

	grouped, err := svc.ComputeGrouped(ctx, ComputeRequest{Method: "TPD", Panel: readPanel(t, testutil.GroupedCSV)}, "region")
	require.NoError(t, err)

	buf.Reset()
	require.NoError(t, svc.Export(ctx, &buf, grouped.ID, exporter.FormatCSV))
	records, err = csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, []string{"region", "period", "index_value"}, records[0])
	assert.Equal(t, "north", records[1][0])
	assert.Equal(t, "south", records[4][0])

	err = svc.Export(ctx, &buf, "missing", exporter.FormatCSV)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestIndexService_SaveFailure(t *testing.T) {
	store := new(MockRunStore)
	store.On("Save", mock.AnythingOfType("*services.IndexRun")).Return(errors.New("disk full"))

	svc := NewIndexService(discardLogger(), WithStore(store))
	_, err := svc.Compute(context.Background(), ComputeRequest{Method: "TPD", Panel: readPanel(t, testutil.ProportionalCSV)})
	assert.ErrorContains(t, err, "disk full")
	store.AssertExpectations(t)
	assert.Equal(t, -1, svc.Len())
}

func TestIndexService_RecordsMetricsAndSpans(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := infrastructure.CreateIndexMetrics(mp.Meter("test"))
	require.NoError(t, err)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	svc := NewIndexService(discardLogger(), WithMetrics(metrics), WithTracer(tp.Tracer("test")))
	ctx := context.Background()

	_, err = svc.Compute(ctx, ComputeRequest{Method: "TPD", Panel: readPanel(t, testutil.ProportionalCSV)})
	require.NoError(t, err)
	_, err = svc.Compute(ctx, ComputeRequest{Method: "TDH", Panel: readPanel(t, testutil.ProportionalCSV)})
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	var total, failures int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				switch m.Name {
				case "index_computations_total":
					total += dp.Value
				case "index_computation_errors_total":
					failures += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), total)
	assert.Equal(t, int64(1), failures)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "IndexService.Compute", spans[0].Name())
	assert.Equal(t, "Error", spans[1].Status().Code.String())
}
