// Package ops defines the operations recorded in the upload log. An operation
// is an immutable fact: once appended it is never rewritten, and the upload
// state is always the fold of the operations that produced it.
package ops

// Kind names an operation variant. It is the discriminator written to the log.
type Kind string

const (
	KindConfiguredParts Kind = "configured_parts"
	KindStarted         Kind = "started"
	KindFailedStart     Kind = "failed_start"
	KindUploadedPart    Kind = "uploaded_part"
	KindFailedPart      Kind = "failed_part"
	KindCompleted       Kind = "completed"
	KindFailedComplete  Kind = "failed_complete"
	KindAborted         Kind = "aborted"
	KindFailedAbort     Kind = "failed_abort"
)

// Kinds lists every operation variant in declaration order.
var Kinds = []Kind{
	KindConfiguredParts,
	KindStarted,
	KindFailedStart,
	KindUploadedPart,
	KindFailedPart,
	KindCompleted,
	KindFailedComplete,
	KindAborted,
	KindFailedAbort,
}

// Part is one file uploaded as one part of the multipart upload.
type Part struct {
	Number int    `json:"number"`
	Path   string `json:"path"`
	ETag   string `json:"etag"`
}

// NewPart returns a part that has not been uploaded yet.
func NewPart(number int, path string) Part {
	return Part{Number: number, Path: path}
}

// Uploaded reports whether the remote store has assigned the part an ETag.
func (p Part) Uploaded() bool {
	return p.ETag != ""
}

// Operation is implemented by every operation variant. The set is closed.
type Operation interface {
	Kind() Kind
	isOperation()
}

// ConfiguredParts fixes the ordered part list for the upload.
type ConfiguredParts struct {
	Parts []Part `json:"parts"`
}

// Started records the upload id of a newly created remote session.
type Started struct {
	UploadID string `json:"upload_id"`
}

// FailedStart records a failed attempt to create the remote session.
type FailedStart struct {
	Attempt int    `json:"attempt"`
	Msg     string `json:"msg"`
}

// UploadedPart records the ETag of the part at Index (0-based).
type UploadedPart struct {
	Index int    `json:"index"`
	ETag  string `json:"etag"`
}

// FailedPart records a failed attempt to upload the part at Index.
type FailedPart struct {
	Index   int    `json:"index"`
	Attempt int    `json:"attempt"`
	Msg     string `json:"msg"`
}

// Completed records that the remote store assembled the object.
type Completed struct{}

// FailedComplete records a failed attempt to finalize the upload.
type FailedComplete struct {
	Attempt int    `json:"attempt"`
	Msg     string `json:"msg"`
}

// Aborted records that the remote session was cancelled.
type Aborted struct{}

// FailedAbort records a failed attempt to cancel the remote session.
type FailedAbort struct {
	Attempt int    `json:"attempt"`
	Msg     string `json:"msg"`
}

func (ConfiguredParts) Kind() Kind { return KindConfiguredParts }
func (Started) Kind() Kind         { return KindStarted }
func (FailedStart) Kind() Kind     { return KindFailedStart }
func (UploadedPart) Kind() Kind    { return KindUploadedPart }
func (FailedPart) Kind() Kind      { return KindFailedPart }
func (Completed) Kind() Kind       { return KindCompleted }
func (FailedComplete) Kind() Kind  { return KindFailedComplete }
func (Aborted) Kind() Kind         { return KindAborted }
func (FailedAbort) Kind() Kind     { return KindFailedAbort }

func (ConfiguredParts) isOperation() {}
func (Started) isOperation()         {}
func (FailedStart) isOperation()     {}
func (UploadedPart) isOperation()    {}
func (FailedPart) isOperation()      {}
func (Completed) isOperation()       {}
func (FailedComplete) isOperation()  {}
func (Aborted) isOperation()         {}
func (FailedAbort) isOperation()     {}
