// Package protocol defines the wire contract with the VS Code venv-switcher
// extension: single-shot JSON messages delimited by a NUL sentinel byte over
// a local unix socket.
package protocol

// Request asks the extension to switch to a specific interpreter.
type Request struct {
	Action     string `json:"action"`
	PythonPath string `json:"pythonPath"`
	ShortName  string `json:"shortName"`
}

// Response is the extension's acknowledgement. RequestedPath, when present,
// is the path the extension actually applied.
type Response struct {
	Success       bool   `json:"success"`
	RequestedPath string `json:"requestedPath,omitempty"`
	Error         string `json:"error,omitempty"`
}
