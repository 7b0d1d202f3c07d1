// Package events carries chart status transitions from the generation
// pipeline to any interested party without coupling the pipeline to them.
//
// The pipeline emits a ChartStatusEvent through an EventEmitter after every
// persisted transition. InMemoryEventEmitter fans each event out to the
// registered handlers, such as LogHandler or a message broker publisher.
package events
