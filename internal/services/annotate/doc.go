// Package annotate talks to an OpenAI-compatible vision model endpoint to
// describe individual video frames. The client handles transient transport
// failures itself and surfaces provider overload as services.ErrOverloaded,
// leaving the long fixed-delay overload retry to the analysis coordinator.
package annotate
