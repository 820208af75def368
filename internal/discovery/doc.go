// Package discovery provides the HTTP client used to look up candidate
// streaming endpoints.
//
// A discovery service answers GET requests with a JSON document:
//
//	{"services": [{"endpoint": "host/path", "port": 443, "transport": "websocket",
//	               "dataFormat": ["json"], "location": "amer-east", "tier": [1, 3]}]}
//
// Filtering and ranking of the returned services is done by the endpoint package.
package discovery
