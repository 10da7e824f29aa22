//go:build wasip1

// Scripted interpreter guest for testing the wasm backend.
// Build with: GOOS=wasip1 GOARCH=wasm go build -o mock.wasm mock.go
//
// Each source line is one instruction:
//
//	say <text>   print <text>
//	note <text>  emit a meta frame
//	warn <text>  write <text> to stderr without framing
//	fail <text>  emit a runtime error and stop
//	kv <k> <v>   kv_set then kv_get through host calls and print the result
//	spin         loop forever
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type instruction struct {
	op, arg string
}

var stdin = bufio.NewScanner(os.Stdin)

func frame(kind, payload string) {
	if payload == "" {
		fmt.Fprintf(os.Stderr, "\x00WI_%s\x00", kind)
		return
	}
	fmt.Fprintf(os.Stderr, "\x00WI_%s:%s\x00", kind, payload)
}

func emitError(msg, phase string, line int) {
	data, _ := json.Marshal(map[string]any{"message": msg, "phase": phase, "line": line})
	frame("ERROR", string(data))
}

func call(fn string, args map[string]any) (any, string) {
	data, _ := json.Marshal(map[string]any{"fn": fn, "args": args})
	frame("CALL", string(data))
	if !stdin.Scan() {
		return nil, "no reply"
	}
	var resp struct {
		Data  any    `json:"data"`
		Error string `json:"error"`
	}
	json.Unmarshal(stdin.Bytes(), &resp)
	return resp.Data, resp.Error
}

func parse(code string) ([]instruction, bool) {
	var program []instruction
	ok := true
	for i, line := range strings.Split(code, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		op, arg, _ := strings.Cut(line, " ")
		switch op {
		case "say", "note", "warn", "fail", "kv", "spin":
			program = append(program, instruction{op, arg})
		default:
			emitError("unknown instruction "+op, "parse", i+1)
			ok = false
		}
	}
	return program, ok
}

func execute(program []instruction) {
	for _, in := range program {
		switch in.op {
		case "say":
			fmt.Println(in.arg)
		case "note":
			frame("META", in.arg)
		case "warn":
			fmt.Fprintln(os.Stderr, in.arg)
		case "fail":
			emitError(in.arg, "", 0)
			return
		case "kv":
			key, value, _ := strings.Cut(in.arg, " ")
			if _, errMsg := call("kv_set", map[string]any{"key": key, "value": value}); errMsg != "" {
				emitError(errMsg, "", 0)
				return
			}
			got, errMsg := call("kv_get", map[string]any{"key": key})
			if errMsg != "" {
				emitError(errMsg, "", 0)
				return
			}
			fmt.Println(got)
		case "spin":
			for {
			}
		}
	}
}

func main() {
	var program []instruction
	for stdin.Scan() {
		var cmd struct {
			Type string `json:"type"`
			Code string `json:"code"`
		}
		if err := json.Unmarshal(stdin.Bytes(), &cmd); err != nil {
			continue
		}

		switch cmd.Type {
		case "parse":
			var ok bool
			program, ok = parse(cmd.Code)
			if ok {
				frame("PARSE", "ok")
			} else {
				frame("PARSE", "fail")
			}
		case "exec":
			execute(program)
			frame("DONE", "")
		}
	}
}
