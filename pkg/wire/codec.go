package wire

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Token is a bare protocol word.
type Token string

// Tokens understood on the line.
const (
	TokenHandshake Token = "handshake"
	TokenHeartbeat Token = "heartbeat"
)

// DefaultTriggerToken is the peripheral's start/finish button.
const DefaultTriggerToken Token = "startFinish"

// MaxLineLength bounds a single inbound line.
const MaxLineLength = 4096

// Errors returned by the codec.
var (
	ErrEmptyLine    = errors.New("empty line")
	ErrUnknownToken = errors.New("unknown token")
	ErrLineTooLong  = errors.New("line too long")
)

// Encode returns the framed JSON line for msg.
func Encode(msg Message) ([]byte, error) {
	if msg.Event == "" {
		return nil, errors.New("message has no event")
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", msg.Event, err)
	}
	return append(b, '\n'), nil
}

// EncodeToken returns the framed bare token.
func EncodeToken(t Token) []byte {
	return []byte(string(t) + "\n")
}

// ParseLine decodes one inbound line into a token. Trailing carriage
// returns and surrounding whitespace are ignored. trigger names the
// configured trigger token and may be empty.
func ParseLine(line string, trigger Token) (Token, error) {
	s := strings.TrimSpace(line)
	if s == "" {
		return "", ErrEmptyLine
	}

	switch t := Token(s); t {
	case TokenHandshake, TokenHeartbeat:
		return t, nil
	default:
		if trigger != "" && t == trigger {
			return t, nil
		}
		return "", fmt.Errorf("%w: %q", ErrUnknownToken, s)
	}
}

// LineReader splits a byte stream into protocol lines.
type LineReader struct {
	br *bufio.Reader
}

// NewLineReader wraps r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{br: bufio.NewReaderSize(r, 512)}
}

// ReadLine returns the next line without its terminator. A line longer than
// MaxLineLength is consumed up to its newline and reported as
// ErrLineTooLong; the reader stays usable. It returns io.EOF once the stream
// ends cleanly.
func (r *LineReader) ReadLine() (string, error) {
	var buf []byte
	tooLong := false
	for {
		frag, err := r.br.ReadSlice('\n')
		n := len(buf) + len(frag)
		if err == nil {
			n--
		}
		if !tooLong && n > MaxLineLength {
			tooLong = true
			buf = nil
		}
		if !tooLong {
			buf = append(buf, frag...)
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == nil:
			if tooLong {
				return "", ErrLineTooLong
			}
			return strings.TrimRight(string(buf[:len(buf)-1]), "\r"), nil
		case errors.Is(err, io.EOF):
			if tooLong {
				return "", ErrLineTooLong
			}
			if len(buf) > 0 {
				return strings.TrimRight(string(buf), "\r"), nil
			}
			return "", io.EOF
		default:
			return "", err
		}
	}
}
