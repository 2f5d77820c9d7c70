// Package command is the inbound boundary of the race clock: operator and
// peripheral requests are decoded, validated and fanned out to runner slots
// here before they reach the engine.
package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/GamesDoneQuick/agdq17-layouts/pkg/engine"
	"github.com/GamesDoneQuick/agdq17-layouts/pkg/stopwatch"
)

// Command errors.
var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidCommand = errors.New("invalid command")
)

// Name identifies a command.
type Name string

// Known commands.
const (
	NameStart    Name = "startTimer"
	NameStop     Name = "stopTimer"
	NameReset    Name = "resetTimer"
	NameComplete Name = "completeRunner"
	NameResume   Name = "resumeRunner"
	NameEditTime Name = "editTime"
)

// Names lists every command in a stable order.
var Names = []Name{NameStart, NameStop, NameReset, NameComplete, NameResume, NameEditTime}

// Known reports whether n is a command name.
func (n Name) Known() bool {
	for _, k := range Names {
		if n == k {
			return true
		}
	}
	return false
}

// MasterKeyword addresses the root clock in an edit.
const MasterKeyword = "master"

// Index addresses a runner slot or the root clock. On the wire it is an
// integer, a numeric string or "master".
type Index struct {
	Master bool
	Slot   int
}

// Slot returns an Index for runner slot i.
func Slot(i int) *Index { return &Index{Slot: i} }

// Master returns the root clock Index.
func Master() *Index { return &Index{Master: true} }

// ParseIndex reads the textual form.
func ParseIndex(s string) (Index, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, MasterKeyword) {
		return Index{Master: true}, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return Index{}, fmt.Errorf("%w: index %q", ErrInvalidCommand, s)
	}
	return Index{Slot: n}, nil
}

// String returns "master" or the slot number.
func (i Index) String() string {
	if i.Master {
		return MasterKeyword
	}
	return strconv.Itoa(i.Slot)
}

// Engine returns the engine's index for i.
func (i Index) Engine() int {
	if i.Master {
		return engine.Master
	}
	return i.Slot
}

// MarshalJSON writes a slot as a number and the root clock as "master".
func (i Index) MarshalJSON() ([]byte, error) {
	if i.Master {
		return json.Marshal(MasterKeyword)
	}
	return json.Marshal(i.Slot)
}

// UnmarshalJSON accepts 2, "2" and "master".
func (i *Index) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*i = Index{Slot: n}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: index %s", ErrInvalidCommand, b)
	}
	parsed, err := ParseIndex(s)
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Command is one decoded request.
type Command struct {
	Name    Name   `json:"name"`
	Index   *Index `json:"index,omitempty"`
	Forfeit bool   `json:"forfeit,omitempty"`
	NewTime string `json:"newTime,omitempty"`
}

// Validate checks the fields each command needs. Malformed time strings
// are not rejected here; the engine discards them silently.
func (c Command) Validate() error {
	switch c.Name {
	case NameStart, NameStop, NameReset:
		return nil
	case NameComplete, NameResume:
		if c.Index == nil {
			return fmt.Errorf("%w: %s needs an index", ErrInvalidCommand, c.Name)
		}
		if c.Index.Master {
			return fmt.Errorf("%w: %s cannot address master", ErrInvalidCommand, c.Name)
		}
		return checkSlot(c.Name, c.Index.Slot)
	case NameEditTime:
		if c.Index == nil {
			return fmt.Errorf("%w: %s needs an index", ErrInvalidCommand, c.Name)
		}
		if c.Index.Master {
			return nil
		}
		return checkSlot(c.Name, c.Index.Slot)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, c.Name)
	}
}

func checkSlot(name Name, slot int) error {
	if slot < 0 || slot >= stopwatch.Slots {
		return fmt.Errorf("%w: %s index %d out of range", ErrInvalidCommand, name, slot)
	}
	return nil
}

// Decode builds a command from a name and a JSON body. The body may be
// empty, an object with index/forfeit/newTime, or, for resumeRunner, a bare
// index.
func Decode(name Name, body []byte) (Command, error) {
	cmd := Command{Name: name}
	if !name.Known() {
		return cmd, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}

	body = bytes.TrimSpace(body)
	switch {
	case len(body) == 0 || bytes.Equal(body, []byte("null")):
	case body[0] != '{':
		var idx Index
		if err := json.Unmarshal(body, &idx); err != nil {
			return cmd, err
		}
		cmd.Index = &idx
	default:
		var payload struct {
			Index   *Index `json:"index"`
			Forfeit bool   `json:"forfeit"`
			NewTime string `json:"newTime"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return cmd, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
		}
		cmd.Index = payload.Index
		cmd.Forfeit = payload.Forfeit
		cmd.NewTime = payload.NewTime
	}

	return cmd, cmd.Validate()
}
