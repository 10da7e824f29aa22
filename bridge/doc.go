// Package bridge turns an encoded source payload into a structured response.
//
// # Overview
//
// A request flows through a fixed sequence:
//
//	decode -> parse -> (check) -> execute-or-skip -> collect -> respond
//
// Each request gets its own interpreter session from the configured
// [interpreter.Factory]. Nothing is shared between requests.
//
// # Basic Usage
//
//	b := bridge.New(starlark.New(), bridge.WithExecutionTimeout(10*time.Second))
//
//	result, err := b.Interpret(ctx, bridge.Encode(`print("hi")`))
//	if err != nil {
//	    // decode failure or unavailable backend
//	}
//	fmt.Println(result.Response.Standard) // [hi]
//
// # Errors
//
// Only payload problems ([ErrMissingCode], [*DecodeError], [*EncodingError])
// and backend failures ([*UnavailableError]) are returned as errors. Syntax
// and runtime errors of the submitted program are ordinary response data in
// the Error stream.
package bridge
