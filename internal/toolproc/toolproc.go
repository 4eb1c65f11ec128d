// Package toolproc is the harness side of the tool subprocess
// contract. A tool binary receives the function name and a JSON
// parameter object on argv and writes one JSON document to stdout;
// errors go to stderr with a non-zero exit.
package toolproc

import (
	"encoding/json"
	"fmt"
	"os"
)

// Request is one decoded tool invocation.
type Request struct {
	Function string
	Params   map[string]any
}

// String returns a string parameter or the fallback when absent.
func (r Request) String(key, fallback string) string {
	if v, ok := r.Params[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// Float returns a numeric parameter. JSON numbers decode as float64;
// numeric strings are not accepted.
func (r Request) Float(key string) (float64, bool) {
	v, ok := r.Params[key].(float64)
	return v, ok
}

// Int returns a numeric parameter truncated to int, or the fallback.
func (r Request) Int(key string, fallback int) int {
	if v, ok := r.Params[key].(float64); ok {
		return int(v)
	}
	return fallback
}

// Bool returns a boolean parameter, defaulting to false.
func (r Request) Bool(key string) bool {
	v, _ := r.Params[key].(bool)
	return v
}

// Parse decodes --function and --parameters from an argv slice.
func Parse(args []string) (Request, error) {
	var req Request
	rawParams := "{}"

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--function":
			if i+1 >= len(args) {
				return req, fmt.Errorf("--function requires a value")
			}
			i++
			req.Function = args[i]
		case "--parameters":
			if i+1 >= len(args) {
				return req, fmt.Errorf("--parameters requires a value")
			}
			i++
			rawParams = args[i]
		}
	}

	if req.Function == "" {
		return req, fmt.Errorf("missing --function argument")
	}
	if err := json.Unmarshal([]byte(rawParams), &req.Params); err != nil {
		return req, fmt.Errorf("decoding parameters: %w", err)
	}
	if req.Params == nil {
		req.Params = map[string]any{}
	}
	return req, nil
}

// Handler implements one tool function.
type Handler func(req Request) (any, error)

// Main parses os.Args, dispatches to the matching handler, and writes
// the result as JSON on stdout. It does not return on failure.
func Main(handlers map[string]Handler) {
	req, err := Parse(os.Args[1:])
	if err != nil {
		Fatal(err)
	}

	handler, ok := handlers[req.Function]
	if !ok {
		Fatal(fmt.Errorf("unknown function: %s", req.Function))
	}

	result, err := handler(req)
	if err != nil {
		Fatal(err)
	}

	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(result); err != nil {
		Fatal(fmt.Errorf("encoding result: %w", err))
	}
}

// Fatal reports an error on stderr and exits non-zero.
func Fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
