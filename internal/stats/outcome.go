package stats

import "time"

// Outcome is the category a completed request falls into.
type Outcome uint8

const (
	Informational Outcome = iota
	Success
	Redirection
	ClientError
	ServerError
	OtherError
	Timeout
)

var outcomeNames = [...]string{
	Informational: "informational",
	Success:       "success",
	Redirection:   "redirection",
	ClientError:   "client_error",
	ServerError:   "server_error",
	OtherError:    "other_error",
	Timeout:       "timeout",
}

// Outcomes lists every category in counter order.
var Outcomes = []Outcome{Informational, Success, Redirection, ClientError, ServerError, OtherError, Timeout}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "unknown"
}

// OutcomeFromStatus classifies an HTTP status code by its class.
func OutcomeFromStatus(code int) Outcome {
	switch {
	case code >= 100 && code < 200:
		return Informational
	case code >= 200 && code < 300:
		return Success
	case code >= 300 && code < 400:
		return Redirection
	case code >= 400 && code < 500:
		return ClientError
	case code >= 500 && code < 600:
		return ServerError
	default:
		return OtherError
	}
}

// Result is what a single request produced.
type Result struct {
	Outcome Outcome
	Elapsed time.Duration
}
