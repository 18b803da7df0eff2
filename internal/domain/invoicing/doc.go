// Package invoicing contains the Invoice Documents bounded context.
// It models the requests, rendered documents, batch items and print queue
// entries that back the download, print and preview actions of the
// travel back office, together with the ports those actions depend on.
// Nothing in this context is persisted; every entity lives for the
// duration of one user-triggered action.
package invoicing
