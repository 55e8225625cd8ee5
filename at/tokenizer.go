package at

import (
	"bufio"
	"bytes"
	"strings"
)

// Splitter is used for tokenizing AT command modem responses. It uses
// the signature of bufio.SplitFunc so it can be directly used with bufio.Scanner.
//
// It splits the input by CRLF line endings and also recognizes the data
// entry prompt ("> "). Command echoes are not special-cased here, they come
// out as ordinary lines and are told apart by Classify.
//
// The atEOF parameter indicates whether any more data will be available.
// When true, any remaining data is returned as the final token.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	// 1. Match data entry prompt
	if bytes.HasPrefix(data, []byte(Prompt)) {
		return len(Prompt), data[0:len(Prompt)], nil
	}

	// 2. Match standard line ending with CRLF
	if i := bytes.Index(data, []byte(CRLF)); i >= 0 {
		return i + len(CRLF), data[0:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter

// Classify identifies the nature of the modem output
func Classify(line string) ResponseType {
	if line == Prompt || strings.TrimSpace(line) == ">" {
		return TypePrompt
	}

	line = strings.TrimSpace(line)
	if IsSuccess(line) || IsFailure(line) {
		return TypeFinal
	}

	switch line {
	case UrcCall, UrcReady, UrcCallReady, UrcSMSReady, UrcPowerDown:
		return TypeURC
	}

	switch {
	case strings.HasPrefix(line, UrcDataInd), strings.HasPrefix(line, UrcAppPDP):
		return TypeURC
	case len(line) >= 2 && strings.EqualFold(line[:2], "AT"):
		return TypeEcho
	default:
		return TypeData
	}
}

// IsSuccess reports whether line is a final result code that completes a
// command successfully.
func IsSuccess(line string) bool {
	switch line {
	case OK, SendOK, CloseOK, ShutOK:
		return true
	}
	return false
}

// IsFailure reports whether line is a final result code that completes a
// command with an error.
func IsFailure(line string) bool {
	switch line {
	case ERROR, SendFail, ConnectFail, NoCarrier, NoDialtone, Busy, NoAnswer:
		return true
	}
	return strings.HasPrefix(line, CmeError) || strings.HasPrefix(line, CmsError)
}
