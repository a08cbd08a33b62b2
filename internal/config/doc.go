// Package config provides centralized configuration management for the
// price index service and CLI.
//
// # Configuration Sources
//
// Configuration is built in layers, later layers winning:
//
//  1. Default values (Default)
//  2. A YAML file, named by PINDEX_CONFIG_FILE or found at priceindex.yaml,
//     configs/priceindex.yaml or ../configs/priceindex.yaml
//  3. Environment variables with the PINDEX_ prefix
//
// # Environment Variables
//
// Variables follow the section/field layout of Config:
//
//	PINDEX_SERVER_PORT=8080
//	PINDEX_LOGGING_LEVEL=debug
//	PINDEX_INDEX_DEFAULT_METHOD=TDH
//	PINDEX_INDEX_CHARACTERISTICS=brand,size
//	PINDEX_TELEMETRY_TRACE_EXPORTER=stdout
//
// # Example File
//
//	server:
//	  port: 8080
//	  compute_timeout: 45s
//	index:
//	  default_method: TPD
//	  date_column: month
//	  product_id_column: id
//	  max_concurrency: 4
//	telemetry:
//	  metric_exporter: prometheus
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	infrastructure.InitializeLogger(cfg.Logging)
package config
