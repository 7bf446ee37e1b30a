package spectrum

import (
	"context"
	"fmt"
)

// Row is one normalized vendor record: flat field name -> string value.
type Row map[string]string

// Named vendor operations. Each maps onto a distinct web service endpoint.
const (
	OpGetJob         = "GetJob"
	OpGetJobMain     = "GetJobMain"
	OpGetJobDates    = "GetJobDates"
	OpGetJobUDF      = "GetJobUDF"
	OpGetPHByJob     = "GetPHByJob"
	OpGetJobContacts = "GetJobContacts"
)

// Well-known vendor field names.
const (
	FieldCompanyCode = "Company_Code"
	FieldJobNumber   = "Job_Number"
	FieldCostCenter  = "Cost_Center"
	FieldErrorCode   = "Error_Code"
	FieldErrorDesc   = "Error_Description"
)

// CallResult is the payload of one successful vendor call. Body is the inner
// result payload in any of the shapes Normalize accepts; Raw is the undecoded
// HTTP response body, kept for optional forensic capture.
type CallResult struct {
	Body any
	Raw  []byte
}

// Caller issues one vendor operation call. The fetcher depends on this rather
// than the concrete Client so tests can substitute canned responses.
type Caller interface {
	Call(ctx context.Context, operation string, params map[string]string) (*CallResult, error)
}

// TransportError means no candidate endpoint URL yielded a usable client, or the
// HTTP exchange itself failed. It wraps the last underlying error.
type TransportError struct {
	Operation string
	Tried     []string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("spectrum transport: operation %s failed after %d endpoint(s): %v",
		e.Operation, len(e.Tried), e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// VendorFault is an explicit SOAP fault returned by the vendor.
type VendorFault struct {
	Operation string
	Code      string
	Message   string
}

func (e *VendorFault) Error() string {
	return fmt.Sprintf("spectrum fault: operation %s: %s: %s", e.Operation, e.Code, e.Message)
}

// ShapeError means the response body could not be parsed as a SOAP envelope.
// Callers treat it as an empty result, not a run-aborting failure.
type ShapeError struct {
	Operation string
	Err       error
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("spectrum shape: operation %s: unrecognized response: %v", e.Operation, e.Err)
}

func (e *ShapeError) Unwrap() error {
	return e.Err
}
