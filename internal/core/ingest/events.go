package ingest

// Status discriminates the upload event stream. Exactly one of
// StatusComplete or StatusError terminates a given upload's sequence.
type Status string

const (
	StatusValidating Status = "validating"
	StatusSaving     Status = "saving"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// ErrorClass lets the transport pick a status code without parsing messages.
// It is not part of the wire format.
type ErrorClass int

const (
	ErrorNone ErrorClass = iota
	ErrorValidation
	ErrorIngestion
)

// Event is one progress record of an upload. Progress is an integer in
// [0,100]; 100 is reserved for the terminal complete event.
type Event struct {
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`

	Class ErrorClass `json:"-"`
}

// Terminal reports whether no further events may follow e.
func (e Event) Terminal() bool {
	return e.Status == StatusComplete || e.Status == StatusError
}
