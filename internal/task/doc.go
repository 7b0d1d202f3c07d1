// Package task runs chart generation in the background.
//
// A Scheduler feeds a bounded TaskQueue to a WorkerPool and reports a full
// queue through the submission Handle. The Pipeline composes the scheduler
// with a RetryPolicy for execution faults and a ResubmitPolicy for
// saturation, and recovers unfinished charts when the process starts.
// ChartGenerationTask is the unit of work: it marks a chart running, asks
// the AI model for a chart, and records the terminal state.
package task
