package flow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-integrations/internal/entry"
)

// Source is what started a flow. It is also the name of the first step.
type Source string

const (
	SourceUser     Source = "user"
	SourceZeroconf Source = "zeroconf"
	SourceReauth   Source = "reauth"
)

// ResultType is the outcome of one step.
type ResultType string

const (
	ResultForm         ResultType = "form"
	ResultExternal     ResultType = "external"
	ResultExternalDone ResultType = "external_done"
	ResultCreateEntry  ResultType = "create_entry"
	ResultAbort        ResultType = "abort"
)

// Well-known step names.
const (
	StepUser         = "user"
	StepAuth         = "auth"
	StepCode         = "code"
	StepCreation     = "creation"
	StepAuthenticate = "authenticate"
	StepReauth       = "reauth"
	StepZeroconf     = "zeroconf"
)

// Abort reasons.
const (
	ReasonCannotConnect        = "cannot_connect"
	ReasonInvalidAuth          = "invalid_auth"
	ReasonInvalidHost          = "invalid_host"
	ReasonAuthorizeURLTimeout  = "authorize_url_timeout"
	ReasonReauthSuccessful     = "reauth_successful"
	ReasonAlreadyConfigured    = "already_configured"
	ReasonAlreadyInProgress    = "already_in_progress"
	ReasonExternalTimeout      = "external_timeout"
	ReasonUnknown              = "unknown"
	ReasonMissingConfiguration = "missing_configuration"
)

// Form error keys. ErrorBaseKey is the field key for errors not tied to
// one input field.
const (
	ErrorBaseKey       = "base"
	ErrorCannotConnect = "cannot_connect"
	ErrorInvalidAuth   = "invalid_auth"
	ErrorInvalidHost   = "invalid_host"
	ErrorUnknown       = "unknown"
	ErrorRequired      = "required"
	ErrorInvalidValue  = "invalid_value"
)

// ValidationTimeout bounds vendor checks run during setup.
const ValidationTimeout = 10 * time.Second

// FieldType is the input type of a form field.
type FieldType string

const (
	FieldString   FieldType = "string"
	FieldInt      FieldType = "int"
	FieldPassword FieldType = "password"
)

// Field is one input of a form.
type Field struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Default  string    `json:"default,omitempty"`
}

// Schema is an ordered list of form fields.
type Schema []Field

// Apply checks input against the schema and fills in defaults. It returns
// the completed input and per-field errors, or nil errors when valid.
// Keys not in the schema are dropped.
func (s Schema) Apply(input Input) (Input, map[string]string) {
	out := make(Input, len(s))
	var errs map[string]string
	fail := func(field, key string) {
		if errs == nil {
			errs = make(map[string]string)
		}
		errs[field] = key
	}

	for _, f := range s {
		v, ok := input[f.Name]
		if !ok || v == "" {
			v = f.Default
		}
		if v == "" {
			if f.Required {
				fail(f.Name, ErrorRequired)
			}
			continue
		}
		if f.Type == FieldInt {
			if _, err := strconv.Atoi(v); err != nil {
				fail(f.Name, ErrorInvalidValue)
				continue
			}
		}
		out[f.Name] = v
	}
	return out, errs
}

// Input is user input for a step, or callback data for an external step.
type Input map[string]string

// Result is the outcome of a step as presented to API clients.
type Result struct {
	Type         ResultType        `json:"type"`
	FlowID       string            `json:"flow_id"`
	Handler      string            `json:"handler"`
	StepID       string            `json:"step_id,omitempty"`
	Schema       Schema            `json:"data_schema,omitempty"`
	Errors       map[string]string `json:"errors,omitempty"`
	Placeholders map[string]string `json:"description_placeholders,omitempty"`
	URL          string            `json:"url,omitempty"`
	Title        string            `json:"title,omitempty"`
	Reason       string            `json:"reason,omitempty"`

	// Data is the entry data of a create_entry result. It holds secrets and
	// is never serialised.
	Data map[string]string `json:"-"`

	// Entry is the persisted entry of a create_entry result.
	Entry *entry.Entry `json:"result,omitempty"`
}

// Handler runs the steps of one flow instance. Implementations keep the
// values collected by earlier steps on their own struct.
type Handler interface {
	Step(ctx context.Context, step string, input Input) (Result, error)
}

// Factory creates the handler for a new flow.
type Factory func(f *Flow) Handler

// UnknownStep returns the error for a step a handler does not implement.
func UnknownStep(step string) error {
	return fmt.Errorf("%w: %s", ErrUnknownStep, step)
}
