package actions

import "encoding/json"

// Invocation is a request from the model to run a registered action.
// Arguments holds the raw JSON text exactly as the model produced it.
type Invocation struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Arguments string `json:"arguments" yaml:"arguments"`
}

// Result is what every action invocation produces, successful or not.
type Result struct {
	Success bool    `json:"success" yaml:"success"`
	Message string  `json:"message" yaml:"message"`
	Path    *string `json:"path" yaml:"path"`
}

func NewSuccessResult(message string, path string) Result {
	return Result{
		Success: true,
		Message: message,
		Path:    &path,
	}
}

func NewFailureResult(message string) Result {
	return Result{
		Success: false,
		Message: message,
	}
}

// JSON returns the wire form sent back to the model as a tool result.
func (r Result) JSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		// Result only holds strings and a bool
		return `{"success":false,"message":"could not encode result","path":null}`
	}
	return string(b)
}
