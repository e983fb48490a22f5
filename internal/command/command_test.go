package command

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

func TestParseWireShapes(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{`{"command":"seek","value":10}`, NewSeek(10)},
		{`{"command":"trim","value":[1,3]}`, NewTrim(1, 3)},
		{`{"command":"trim_off"}`, NewTrimOff()},
		{`{"command":"trim_off","value":null}`, NewTrimOff()},
		{`{"command":"loop","value":true}`, NewLoop(true)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse([]byte(tt.in))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}

			data, err := json.Marshal(got)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			again, err := Parse(data)
			if err != nil || again != got {
				t.Errorf("Re-parse of %s gave %v, %v", data, again, err)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{
		`{"command":"rewind"}`,
		`{"command":"seek"}`,
		`{"command":"seek","value":"x"}`,
		`{"command":"trim","value":[1]}`,
		`not json`,
	} {
		if _, err := Parse([]byte(in)); err == nil {
			t.Errorf("Expected error for %s", in)
		}
	}

	_, err := Parse([]byte(`{"command":"rewind"}`))
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Expected ErrUnknownCommand, got %v", err)
	}
}

func TestMailboxFIFO(t *testing.T) {
	m := NewMailbox()
	if _, ok := m.TryGet(); ok {
		t.Fatal("Expected empty mailbox")
	}

	m.Put(NewTrim(1, 3))
	m.Put(NewSeek(1))
	m.Put(NewLoop(true))

	want := []Command{NewTrim(1, 3), NewSeek(1), NewLoop(true)}
	for _, w := range want {
		got, ok := m.TryGet()
		if !ok || got != w {
			t.Errorf("Expected %v, got %v (ok=%v)", w, got, ok)
		}
	}
	if n := len(m.Pending()); n != 0 {
		t.Errorf("Expected empty mailbox, got %d", n)
	}
}

func TestMailboxConcurrentProducersLoseNothing(t *testing.T) {
	m := NewMailbox()
	const producers, perProducer = 8, 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				m.Put(NewSeek(p*perProducer + i))
			}
		}(p)
	}
	wg.Wait()

	seen := make(map[int]bool)
	last := make(map[int]int)
	for {
		c, ok := m.TryGet()
		if !ok {
			break
		}
		seen[c.Index] = true
		// Per-producer order is preserved.
		p := c.Index / perProducer
		if prev, ok := last[p]; ok && c.Index <= prev {
			t.Fatalf("Producer %d out of order: %d after %d", p, c.Index, prev)
		}
		last[p] = c.Index
	}
	if len(seen) != producers*perProducer {
		t.Errorf("Expected %d commands, got %d", producers*perProducer, len(seen))
	}
}

func TestMailboxClearAndPending(t *testing.T) {
	m := NewMailbox()
	m.Put(NewSeek(5))
	m.Put(NewSeek(6))

	if got := m.Pending(); len(got) != 2 || got[0].Index != 5 || got[1].Index != 6 {
		t.Errorf("Expected seek(5) then seek(6) pending, got %v", got)
	}

	if n := m.Clear(); n != 2 {
		t.Errorf("Expected 2 cleared, got %d", n)
	}
	if len(m.Pending()) != 0 {
		t.Error("Expected no pending commands after Clear")
	}
}
