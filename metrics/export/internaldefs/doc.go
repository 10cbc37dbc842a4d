// Package internaldefs holds metric names and bucket layouts shared by the
// exporters.
//
// Both the Prometheus and OTel exporters read these tables, so a rename here
// changes every exporter at once.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
