package faults

import (
	"net/http"

	"google.golang.org/protobuf/types/known/structpb"
)

// TestRecord is one request/response pair recovered from the fuzzer's
// generated artifacts. Body holds the parsed response body, nil when the
// response carried none.
type TestRecord struct {
	Method     string
	Path       string
	StatusCode int
	Body       *structpb.Struct

	// Source names the artifact file the record came from; Ordinal is its
	// position within that file. Both exist only for report evidence.
	Source  string
	Ordinal int
}

func (r *TestRecord) field(name string) *structpb.Value {
	if r.Body == nil {
		return nil
	}
	return r.Body.Fields[name]
}

// BodyStatus returns the application-level status field of the response
// body, when present and numeric.
func (r *TestRecord) BodyStatus() (float64, bool) {
	v := r.field("status")
	if v == nil {
		return 0, false
	}
	if n, ok := v.GetKind().(*structpb.Value_NumberValue); ok {
		return n.NumberValue, true
	}
	return 0, false
}

// IsInjected reports whether the response body carries isInjected: true.
func (r *TestRecord) IsInjected() bool {
	v := r.field("isInjected")
	if v == nil {
		return false
	}
	if b, ok := v.GetKind().(*structpb.Value_BoolValue); ok {
		return b.BoolValue
	}
	return false
}

// FaultName returns the faultName marker from the response body, empty
// when absent.
func (r *TestRecord) FaultName() string {
	v := r.field("faultName")
	if v == nil {
		return ""
	}
	if s, ok := v.GetKind().(*structpb.Value_StringValue); ok {
		return s.StringValue
	}
	return ""
}

// Suspicious reports whether the record carries any injected-fault marker.
// Any single marker is sufficient. A zero body status is a weak signal
// shared across unrelated endpoints; it is kept for parity with the
// injection contract of the system under test.
func (r *TestRecord) Suspicious() bool {
	if r.StatusCode == http.StatusBadRequest {
		return true
	}
	if s, ok := r.BodyStatus(); ok && s == 0 {
		return true
	}
	if r.IsInjected() {
		return true
	}
	return r.FaultName() != ""
}
