// Package service contains the application use cases: accepting chart
// generation requests and answering history queries.
//
// ChartService validates a request, applies the per-user rate limit,
// persists the chart and its raw dataset in one transaction, and then
// either calls the AI model inline (GenChart) or hands the chart to the
// background generation pipeline (GenChartAsync). It depends on store
// interfaces only, never on a concrete database.
package service
