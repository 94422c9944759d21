package assistant

import "errors"

// Blocking notices. Every one of them leaves the panel state unchanged.
var (
	// ErrInvalidBackendURL means the configured agent backend is not an
	// absolute http or https URL.
	ErrInvalidBackendURL = errors.New("please enter a valid backend URL")
	// ErrNoApplication means a selection was attempted without a name.
	ErrNoApplication = errors.New("no application selected")
	// ErrNoSession means a turn was submitted before any application was selected.
	ErrNoSession = errors.New("select an application first")
	// ErrNoAction means there is no live suggested action to run.
	ErrNoAction = errors.New("no request")
	// ErrActionAlreadyRun means the rerun policy forbids running the live action again.
	ErrActionAlreadyRun = errors.New("suggested request already executed")
	// ErrNoOutcome means there is no executed action outcome to report.
	ErrNoOutcome = errors.New("no request output to send")
	// ErrSessionChanged means the session was replaced while a request was in
	// flight and its completion was discarded.
	ErrSessionChanged = errors.New("session changed while request was in flight")
)

// Fixed conversation texts.
const (
	MsgAnalysisError = "Error getting analysis."
	MsgChatError     = "Chat error."
	MsgActionFailed  = "❌ Failed to send request."
	MsgReportSuccess = "I executed the API in my browser successfully and have sent you the response. Please analyze the API response."
	MsgReportFailure = "I executed the API in my browser unsuccessfully."
)
