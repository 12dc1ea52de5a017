// Package services glues the HTTP layer to the analytics core. The dataset
// service owns the in-memory session store of loaded datasets and mediates
// every loader and profiler call made on behalf of a request.
package services
