// Package services defines shared utilities consumed by the pipeline
// coordinator and the Unreal Editor integration.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers, stage names, and the render
//     strategy in effect for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the render error taxonomy, along with the Kind and ExitCode
//     mappings the CLI and run ledger rely on.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability) stays uniform across the stages.
package services
