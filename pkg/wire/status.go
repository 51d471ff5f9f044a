package wire

// Status is the outcome carried by a Response.
type Status uint8

// Response statuses. Values are fixed on the wire.
const (
	StatusSuccess        Status = iota // table found and returned
	StatusNotFound                     // no table behind the path
	StatusInvalidRequest               // malformed request
	StatusBusy                         // service overloaded, retry later
	StatusInternalError                // service failed to build the table
	StatusTimeout                      // service gave up computing the table
	StatusUnsupported                  // unknown scheme or query parameter
)

var statusNames = [...]string{
	StatusSuccess:        "SUCCESS",
	StatusNotFound:       "NOT_FOUND",
	StatusInvalidRequest: "INVALID_REQUEST",
	StatusBusy:           "BUSY",
	StatusInternalError:  "INTERNAL_ERROR",
	StatusTimeout:        "TIMEOUT",
	StatusUnsupported:    "UNSUPPORTED",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "UNKNOWN"
}

// IsSuccess reports whether s is StatusSuccess.
func (s Status) IsSuccess() bool { return s == StatusSuccess }
