// Package http exposes the dashboard API: dataset upload, metadata,
// profiling, CSV export, login and health. Handlers own no business logic;
// they validate input, call the services layer and shape responses,
// returning the standard error envelope on failure.
package http
