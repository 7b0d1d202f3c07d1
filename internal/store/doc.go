// Package store defines interfaces for data persistence operations:
// generation charts, with their conditional status updates and owner-scoped
// queries, and the per-chart raw datasets. These interfaces keep the
// generation pipeline independent of whether datasets live in relational
// tables or documents.
package store
