// Package http implements the HTTP handlers of the price index service.
// Handlers stay thin: they decode and validate requests, call the services
// layer and render the result. Every error goes through
// errors.ErrorHandler so clients always receive RFC 7807 problem details.
//
// # Routes
//
//	POST /api/indexes               compute from a JSON body of observations
//	POST /api/indexes/upload        compute from a CSV or XLSX upload
//	GET  /api/indexes               recent runs, newest first (?limit=)
//	GET  /api/indexes/{id}          one run or grouped computation (?base=)
//	GET  /api/indexes/{id}/export   download as csv, xlsx or json (?format=)
//	GET  /api/health[/ready|/live]  health checks
//	GET  /api/version               build and method information
//	GET  /metrics                   Prometheus metrics
//
// # Request Example
//
//	{
//	    "method": "TDH",
//	    "characteristics": ["model"],
//	    "observations": [
//	        {"id": "A", "period": "1", "price": 2.0, "quantity": 10,
//	         "characteristics": {"model": "alpha"}}
//	    ]
//	}
//
// # Error Handling
//
// An unknown method is a 400 with type /errors/index/invalid-method and the
// supported methods listed under "supported_methods". Data problems such as
// zero expenditure in a period are 422.
package http
