// Package services implements the business logic layer of the price index
// application. It sits between the HTTP handlers and the index calculator.
//
// # Available Services
//
//   - IndexService: computes TPD/TDH indexes, single or per group, keeps the
//     runs in a RunStore and exports them through the exporter package
//   - HealthService: health, readiness, liveness and version information
//
// # Runs
//
// Every successful computation becomes an IndexRun with a UUID. Grouped
// computations share a group id, and exporting by group id writes all of
// the group's tables in one file:
//
//	svc := services.NewIndexService(logger,
//	    services.WithStore(services.NewMemoryRunStore(100)),
//	    services.WithMaxConcurrency(4),
//	)
//
//	grouped, err := svc.ComputeGrouped(ctx, services.ComputeRequest{
//	    Method: "TPD",
//	    Panel:  p,
//	}, "region")
//
//	err = svc.Export(ctx, w, grouped.ID, exporter.FormatXLSX)
//
// # Error Handling
//
// Services return sentinel errors (ErrRunNotFound, ErrTooManyObservations,
// ErrGroupColumnRequired) alongside the multilateral and panel errors; the
// errors package maps them to problem details.
//
// # Testing
//
// MockRunStore is a testify mock of RunStore:
//
//	store := new(services.MockRunStore)
//	store.On("Get", id).Return(nil, services.ErrRunNotFound)
package services
