package at

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned when a structured reply is present but its
// fields cannot be parsed.
var ErrMalformed = errors.New("malformed reply")

// Kind is the classification of a complete modem response buffer.
type Kind int

const (
	KindUnknown Kind = iota
	KindOk
	KindError
	KindTimeout
	KindPrompt
	KindStructured
)

func (k Kind) String() string {
	switch k {
	case KindOk:
		return "ok"
	case KindError:
		return "error"
	case KindTimeout:
		return "timeout"
	case KindPrompt:
		return "prompt"
	case KindStructured:
		return "structured"
	default:
		return "unknown"
	}
}

// Response is a decoded modem reply. It is only valid for the command cycle
// that produced it.
type Response struct {
	Raw   string
	Lines []string
	Kind  Kind
}

// Parse tokenizes raw modem output and classifies it. The whole buffer is
// scanned, so echoed command lines, merged lines and unsolicited lines
// before the result code do not hide the result.
func Parse(raw string) Response {
	r := Response{Raw: raw}

	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	scanner.Split(Splitter)

	var ok, failed, prompt, structured bool
	for scanner.Scan() {
		token := scanner.Text()
		line := strings.TrimSpace(token)
		if line == "" {
			continue
		}
		r.Lines = append(r.Lines, line)

		switch Classify(token) {
		case TypeFinal:
			if IsFailure(line) {
				failed = true
			} else {
				ok = true
			}
		case TypePrompt:
			prompt = true
		case TypeData:
			if isStructured(line) {
				structured = true
			}
		}
	}

	switch {
	case failed:
		r.Kind = KindError
	case ok:
		r.Kind = KindOk
	case prompt:
		r.Kind = KindPrompt
	case structured:
		r.Kind = KindStructured
	}
	return r
}

// Complete reports whether the response carries a result code or a prompt,
// i.e. nothing more belongs to the command that produced it.
func (r Response) Complete() bool {
	switch r.Kind {
	case KindOk, KindError, KindPrompt:
		return true
	}
	return false
}

// Contains reports whether any line of the response contains s.
func (r Response) Contains(s string) bool {
	for _, l := range r.Lines {
		if strings.Contains(l, s) {
			return true
		}
	}
	return false
}

// Line returns the first line starting with prefix.
func (r Response) Line(prefix string) (string, bool) {
	for _, l := range r.Lines {
		if strings.HasPrefix(l, prefix) {
			return l, true
		}
	}
	return "", false
}

// Fields returns the comma separated payload of the first structured line
// with the given prefix, e.g. Fields("+CSQ") on "+CSQ: 15,99" yields
// ["15", "99"]. Fields are trimmed of spaces and surrounding quotes.
func (r Response) Fields(prefix string) ([]string, bool) {
	l, ok := r.Line(prefix + ":")
	if !ok {
		return nil, false
	}
	return SplitFields(strings.TrimPrefix(l, prefix+":")), true
}

// SplitFields splits a structured payload positionally.
func SplitFields(payload string) []string {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil
	}
	parts := strings.Split(payload, ",")
	for i, p := range parts {
		parts[i] = strings.Trim(strings.TrimSpace(p), `"`)
	}
	return parts
}

func (r Response) String() string {
	return fmt.Sprintf("%s %q", r.Kind, r.Lines)
}

func isStructured(line string) bool {
	if !strings.HasPrefix(line, "+") {
		return false
	}
	return strings.Contains(line, ":")
}
