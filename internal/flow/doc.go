// Package flow implements the config flow engine: interactive multi-step
// setup wizards that collect credentials, check them against the vendor and finish by
// persisting a config entry.
//
// # Steps
//
// Each integration supplies a Handler. The Manager calls Handler.Step with
// the name of the step to run and the input submitted for it; a nil input
// means the step is being entered and should show its form. Every step
// returns exactly one Result:
//
//   - form: more input is needed (Schema, optional Errors)
//   - external: the user must visit URL; the flow is suspended
//   - external_done: the external step finished, call Configure to continue
//   - create_entry: the entry was persisted (Entry)
//   - abort: the flow ended with Reason
//
// # External continuation
//
// An external step is correlated by a signed JWT "state" parameter that
// carries the flow id and an expiry. The inbound callback hands state and
// code to Manager.ResumeExternal, which verifies the token and resumes the
// suspended step. Flows that are never resumed are removed by the reaper
// started with Manager.Run, and late callbacks get ErrFlowExpired.
//
// # Deduplication
//
// Handlers call Flow.SetUniqueID with the stable device identity and
// Flow.AbortIfUniqueIDConfigured before creating an entry. A device that
// is already configured aborts with already_configured after merging the
// given updates into the existing entry; a second flow for the same device
// aborts with already_in_progress.
//
// # Thread Safety
//
// Steps of one flow never run concurrently. Different flows run in
// parallel.
package flow
