// Package session coordinates one user's view of the fire-risk map.
//
// A Coordinator owns the query text, the debounced suggestion list, the
// latest weather observation with its derived risk assessment and hourly
// series, and the map viewport. Every mutation happens under a single lock
// and network calls run outside it. Both asynchronous streams carry a
// sequence token so that only the response to the latest request is applied.
//
// A Manager keeps the live coordinators keyed by id and reaps idle ones.
package session
