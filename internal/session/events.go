package session

// Event names exchanged with live clients.
const (
	EventConnected          = "connected"
	EventBeginProcessing    = "beginProcessing"
	EventStopSignal         = "stopSignal"
	EventURLsScraped        = "urlsScraped"
	EventServerDataReceived = "serverDataReceived"
	EventRunFailed          = "runFailed"
	EventRunComplete        = "runComplete"
	EventStaticData         = "staticDataReceived"
	EventError              = "error"
)

// Event is one JSON frame on the live connection.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// ConnectedData is sent when a session is registered.
type ConnectedData struct {
	SessionID string `json:"sessionId"`
}

// RunFailedData reports a terminal run failure.
type RunFailedData struct {
	RunID string `json:"runId"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// RunCompleteData reports a finished run.
type RunCompleteData struct {
	RunID     string `json:"runId"`
	Emitted   int    `json:"emitted"`
	Dropped   int    `json:"dropped"`
	Missing   int    `json:"missing"`
	Cancelled bool   `json:"cancelled"`
}
