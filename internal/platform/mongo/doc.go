// Package mongo stores raw chart datasets in MongoDB, one document per
// chart. It is the document-oriented alternative to the PostgreSQL dataset
// store and cannot join the SQL transaction that creates a chart; callers
// compensate with DropTable instead.
package mongo
