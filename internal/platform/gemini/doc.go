// Package gemini implements generation.Client on top of Google's Gemini API
// through the google.golang.org/genai SDK. The chart system prompt is sent as
// the system instruction and the reply text of the first candidate is
// returned unparsed.
package gemini
