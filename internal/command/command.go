package command

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownCommand = errors.New("unknown command")

type Kind int

const (
	Seek Kind = iota + 1
	Trim
	TrimOff
	Loop
)

func (k Kind) String() string {
	switch k {
	case Seek:
		return "seek"
	case Trim:
		return "trim"
	case TrimOff:
		return "trim_off"
	case Loop:
		return "loop"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Command is an immutable playback retarget request. Only the fields of its
// Kind are meaningful: Index for Seek, Start/End for Trim, Enabled for Loop.
type Command struct {
	Kind    Kind
	Index   int
	Start   int
	End     int
	Enabled bool
}

func NewSeek(index int) Command { return Command{Kind: Seek, Index: index} }
func NewTrim(start, end int) Command { return Command{Kind: Trim, Start: start, End: end} }
func NewTrimOff() Command { return Command{Kind: TrimOff} }
func NewLoop(enabled bool) Command { return Command{Kind: Loop, Enabled: enabled} }

func (c Command) String() string {
	switch c.Kind {
	case Seek:
		return fmt.Sprintf("seek(%d)", c.Index)
	case Trim:
		return fmt.Sprintf("trim(%d,%d)", c.Start, c.End)
	case Loop:
		return fmt.Sprintf("loop(%t)", c.Enabled)
	}
	return c.Kind.String()
}

// wire is the JSON shape used by the HTTP and MQTT control surfaces:
//
//	{"command":"seek","value":10}
//	{"command":"trim","value":[1,3]}
//	{"command":"trim_off"}
//	{"command":"loop","value":true}
type wire struct {
	Command string          `json:"command"`
	Value   json.RawMessage `json:"value,omitempty"`
}

func (c Command) MarshalJSON() ([]byte, error) {
	w := wire{Command: c.Kind.String()}
	var v any
	switch c.Kind {
	case Seek:
		v = c.Index
	case Trim:
		v = [2]int{c.Start, c.End}
	case Loop:
		v = c.Enabled
	case TrimOff:
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownCommand, c.Kind)
	}
	if v != nil {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		w.Value = raw
	}
	return json.Marshal(w)
}

func (c *Command) UnmarshalJSON(data []byte) error {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Command {
	case "seek":
		var idx int
		if err := json.Unmarshal(w.Value, &idx); err != nil {
			return fmt.Errorf("seek value: %w", err)
		}
		*c = NewSeek(idx)
	case "trim":
		var r []int
		if err := json.Unmarshal(w.Value, &r); err != nil {
			return fmt.Errorf("trim value: %w", err)
		}
		if len(r) != 2 {
			return fmt.Errorf("trim value: want [start, end], got %d numbers", len(r))
		}
		*c = NewTrim(r[0], r[1])
	case "trim_off":
		*c = NewTrimOff()
	case "loop":
		var on bool
		if err := json.Unmarshal(w.Value, &on); err != nil {
			return fmt.Errorf("loop value: %w", err)
		}
		*c = NewLoop(on)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, w.Command)
	}
	return nil
}

// Parse decodes one wire command.
func Parse(data []byte) (Command, error) {
	var c Command
	err := json.Unmarshal(data, &c)
	return c, err
}
