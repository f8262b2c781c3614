// Package exporter renders tidy enrollment records as CSV and XLSX files.
//
// This package contains two main components:
//
// CSVWriter: Core CSV writing functionality with support for headers,
// streaming, and UTF-8 BOM for Excel compatibility.
//
// EnrollmentExporter: Converts tidy enrollment records into deterministic,
// sorted CSV or XLSX output, either to a file under the exports directory
// or streamed to an arbitrary writer for HTTP responses.
//
// Example usage:
//
//	// Create an exporter rooted at the application paths
//	enrollmentExporter := exporter.NewEnrollmentExporter(paths)
//
//	// Export records to a file
//	path, err := enrollmentExporter.Export(records, "enrollment_2024.csv", exporter.FormatCSV)
//
//	// Stream records to an HTTP response
//	err = enrollmentExporter.StreamXLSX(w, records)
package exporter
