// Package endpoint resolves a logical service key into an ordered list of
// streaming endpoints.
//
// Resolution either short-circuits on a statically configured URL or asks a
// discovery service and filters the answer by transport, tier and preferred
// location. An empty result is an error, never a silent default.
package endpoint
