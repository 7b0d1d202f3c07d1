// Package generation defines the boundary between the chart pipeline and
// external AI/LLM services. A Client sends one prompt to a model and
// returns its raw text reply; adapters for concrete providers live under
// internal/platform.
package generation
