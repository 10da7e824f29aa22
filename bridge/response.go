package bridge

import "github.com/caffeineduck/webinterp/interpreter"

// Response is the transport object returned to clients. Field names and
// order are part of the wire contract.
type Response struct {
	Standard []string                  `json:"Standard"`
	Error    []interpreter.ErrorRecord `json:"Error"`
	Meta     []string                  `json:"Meta"`
}

// NewResponse wraps drained streams without transforming them. Nil
// collections become empty so every key is always present.
func NewResponse(out interpreter.Output) Response {
	resp := Response{
		Standard: out.Standard,
		Error:    out.Error,
		Meta:     out.Meta,
	}
	if resp.Standard == nil {
		resp.Standard = []string{}
	}
	if resp.Error == nil {
		resp.Error = []interpreter.ErrorRecord{}
	}
	if resp.Meta == nil {
		resp.Meta = []string{}
	}
	return resp
}
