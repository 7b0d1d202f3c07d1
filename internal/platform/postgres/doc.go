// Package postgres provides PostgreSQL implementations of the store
// interfaces: charts live in a single charts table, and each chart's raw
// dataset lives in its own chart_<id> table. It also embeds the goose
// migrations for the charts schema.
package postgres
