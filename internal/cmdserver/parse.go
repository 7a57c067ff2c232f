// Package cmdserver implements the line-oriented TCP command protocol: a
// single-threaded request dispatcher that mutates the shared server state
// record and toggles mode flags, serialized on the frame loop's own
// goroutine between frames.
package cmdserver

import (
	"strings"
)

// Command is one parsed request line: an upper-cased verb, any positional
// arguments, and any key=value pairs (for STARTEXP).
type Command struct {
	Verb string
	Args []string
	KV   map[string]string
}

var disconnectVerbs = map[string]bool{
	"QUIT": true, "BYE": true, "EXIT": true, "LOGOUT": true,
}

// IsDisconnect reports whether verb is one of the quiet-disconnect
// commands, which the connection handler closes without a reply.
func IsDisconnect(verb string) bool {
	return disconnectVerbs[strings.ToUpper(verb)]
}

// Tokenize splits a command line into whitespace-separated fields,
// honoring double-quoted strings as single fields (quotes stripped).
func Tokenize(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ' ' || r == '\t':
			if inQuotes {
				cur.WriteRune(r)
			} else {
				flush()
			}
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return fields
}

// Parse tokenizes and classifies line into a Command. Tokens containing
// "=" are collected as key=value pairs (case-insensitive key); all other
// tokens after the verb are positional arguments. The verb itself is
// upper-cased for case-insensitive matching.
func Parse(line string) Command {
	toks := Tokenize(line)
	if len(toks) == 0 {
		return Command{}
	}
	cmd := Command{Verb: strings.ToUpper(toks[0]), KV: map[string]string{}}
	for _, t := range toks[1:] {
		if idx := strings.Index(t, "="); idx >= 0 {
			key := strings.ToUpper(t[:idx])
			cmd.KV[key] = t[idx+1:]
			continue
		}
		cmd.Args = append(cmd.Args, t)
	}
	return cmd
}
