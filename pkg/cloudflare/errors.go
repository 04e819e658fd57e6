package cloudflare

import "fmt"

// FetchReason classifies why a whole record fetch failed.
type FetchReason int

const (
	// FetchTransport covers request construction, connection, and body
	// read failures.
	FetchTransport FetchReason = iota
	// FetchMalformedJSON means the response body was not valid JSON.
	FetchMalformedJSON
	// FetchMissingSuccess means the body parsed but carried no
	// `"success": true` indicator.
	FetchMissingSuccess
	// FetchMissingResult means the `result` array was absent or not an
	// array.
	FetchMissingResult
	// FetchMalformedRecord means a result element lacked a required
	// field or its ttl did not parse as a 32-bit integer.
	FetchMalformedRecord
)

// String returns the reason name for logs.
func (r FetchReason) String() string {
	switch r {
	case FetchTransport:
		return "transport"
	case FetchMalformedJSON:
		return "malformed-json"
	case FetchMissingSuccess:
		return "missing-success"
	case FetchMissingResult:
		return "missing-result"
	default:
		return "malformed-record"
	}
}

// FetchError is the tagged failure of a whole ListRecords call. The raw
// response body is kept only when the provider rejected the request, for
// diagnostics.
type FetchError struct {
	Reason FetchReason
	Body   string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch records: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch records: %s", e.Reason)
}

func (e *FetchError) Unwrap() error { return e.Err }

// UpdateReason classifies why a single record update failed.
type UpdateReason int

const (
	// UpdateTransport covers request construction and connection
	// failures.
	UpdateTransport UpdateReason = iota
	// UpdateBodyDecode means the response body could not be read.
	UpdateBodyDecode
	// UpdateRejected means the body was readable but carried no
	// success indicator; Body holds the provider's response.
	UpdateRejected
)

// String returns the reason name for logs.
func (r UpdateReason) String() string {
	switch r {
	case UpdateTransport:
		return "transport"
	case UpdateBodyDecode:
		return "body-decode"
	default:
		return "provider-rejected"
	}
}

// UpdateError is the tagged failure of a single UpdateRecord call.
type UpdateError struct {
	Reason UpdateReason
	Body   string
	Err    error
}

func (e *UpdateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("update record: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("update record: %s", e.Reason)
}

func (e *UpdateError) Unwrap() error { return e.Err }
