// Package protocol defines the line-oriented command grammar spoken by
// participants and the coordinator's response formats.
package protocol

import (
	"errors"
	"strings"
)

type Verb string

const (
	Register   Verb = "REGISTER"
	Deregister Verb = "DEREGISTER"
	Disconnect Verb = "DISCONNECT"
	Reconnect  Verb = "RECONNECT"
	MSend      Verb = "MSEND"
)

var (
	ErrUnknownCommand   = errors.New("unknown command")
	ErrMalformedCommand = errors.New("malformed command")
)

// Command is one parsed input line. Arg carries the participant id for
// REGISTER and RECONNECT and the trimmed message content for MSEND.
type Command struct {
	Verb Verb
	Arg  string
}

// ParseVerb matches a token against the known verbs, case-insensitively.
func ParseVerb(token string) (Verb, bool) {
	switch Verb(strings.ToUpper(token)) {
	case Register:
		return Register, true
	case Deregister:
		return Deregister, true
	case Disconnect:
		return Disconnect, true
	case Reconnect:
		return Reconnect, true
	case MSend:
		return MSend, true
	}
	return "", false
}

// ParseLine parses one input line into a Command.
//
// Grammar:
//
//	REGISTER <id>
//	DEREGISTER
//	DISCONNECT
//	RECONNECT [id]
//	MSEND <content...>
//
// The RECONNECT id is optional on a connection that already owns a
// registration; a fresh connection has to present it.
func ParseLine(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, ErrMalformedCommand
	}

	token, rest, _ := strings.Cut(line, " ")
	verb, ok := ParseVerb(token)
	if !ok {
		return Command{}, ErrUnknownCommand
	}

	cmd := Command{Verb: verb, Arg: strings.TrimSpace(rest)}

	switch verb {
	case Register:
		if cmd.Arg == "" || strings.ContainsAny(cmd.Arg, " \t") {
			return Command{}, ErrMalformedCommand
		}
	case MSend:
		if cmd.Arg == "" {
			return Command{}, ErrMalformedCommand
		}
	case Deregister, Disconnect:
		// Bare verbs, anything after the verb is ignored.
		cmd.Arg = ""
	case Reconnect:
		if strings.ContainsAny(cmd.Arg, " \t") {
			return Command{}, ErrMalformedCommand
		}
	}

	return cmd, nil
}
