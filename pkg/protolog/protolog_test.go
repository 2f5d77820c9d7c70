package protolog

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

var base = time.Date(2017, 1, 8, 12, 0, 0, 123456789, time.UTC)

const capturePath = "/captures/test.rtlog"

func writeCapture(t *testing.T, fs afero.Fs, events []Event) {
	t.Helper()

	logger, err := NewFileLogger(fs, capturePath, 0)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var out []Event
	for {
		e, err := r.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		out = append(out, e)
	}
}

func TestEventEncodingPreservesPayload(t *testing.T) {
	events := []Event{
		{
			Timestamp: base,
			SessionID: "sess-1",
			Port:      "/dev/ttyACM0",
			Direction: DirectionOut,
			Category:  CategoryLine,
			Line:      &LineEvent{Text: `{"event":"tick","arguments":[1]}`, Size: 33},
		},
		{
			Timestamp:   base,
			Port:        "/dev/ttyACM0",
			Direction:   DirectionInternal,
			Category:    CategoryState,
			StateChange: &StateChangeEvent{Entity: StateEntityLink, OldState: "HANDSHAKING", NewState: "LINKED"},
		},
		{
			Timestamp: base,
			Direction: DirectionInternal,
			Category:  CategoryError,
			Error:     &ErrorEventData{Message: "unplugged", Context: "read"},
		},
	}

	for _, want := range events {
		data, err := EncodeEvent(want)
		if err != nil {
			t.Fatalf("EncodeEvent failed: %v", err)
		}
		got, err := DecodeEvent(data)
		if err != nil {
			t.Fatalf("DecodeEvent failed: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestFileLoggerAppends(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeCapture(t, fs, []Event{{Timestamp: base, Port: "a"}})

	logger, err := NewFileLogger(fs, capturePath, 0)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	logger.Log(Event{Timestamp: base, Port: "b"})
	logger.Close()
	logger.Log(Event{Timestamp: base, Port: "ignored"})
	if err := logger.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}

	r, err := NewReader(fs, capturePath)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	got := readAll(t, r)
	if len(got) != 2 || got[0].Port != "a" || got[1].Port != "b" {
		t.Errorf("events = %+v", got)
	}
}

func TestFileLoggerRotates(t *testing.T) {
	fs := afero.NewMemMapFs()
	heartbeat := func(i int) Event {
		return Event{
			Timestamp: base.Add(time.Duration(i) * 2 * time.Second),
			SessionID: "sess-1",
			Port:      "/dev/ttyACM0",
			Direction: DirectionOut,
			Category:  CategoryControl,
			Line:      &LineEvent{Text: "heartbeat", Size: 10},
		}
	}
	one, err := EncodeEvent(heartbeat(0))
	if err != nil {
		t.Fatal(err)
	}

	// Room for three events per file.
	logger, err := NewFileLogger(fs, capturePath, int64(len(one))*3+1)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		logger.Log(heartbeat(i))
	}
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	read := func(path string) []Event {
		r, err := NewReader(fs, path)
		if err != nil {
			t.Fatalf("open %s: %v", path, err)
		}
		defer r.Close()
		return readAll(t, r)
	}

	old := read(capturePath + RotatedSuffix)
	cur := read(capturePath)
	if len(old) != 3 || len(cur) != 2 {
		t.Fatalf("rotated=%d current=%d, want 3 and 2", len(old), len(cur))
	}
	if !cur[0].Timestamp.Equal(heartbeat(3).Timestamp) {
		t.Errorf("current capture starts at %v", cur[0].Timestamp)
	}
}

func TestFilteredReader(t *testing.T) {
	in, out := DirectionIn, DirectionOut
	control := CategoryControl
	later := base.Add(time.Minute)

	fs := afero.NewMemMapFs()
	writeCapture(t, fs, []Event{
		{Timestamp: base, SessionID: "s1", Direction: DirectionIn, Category: CategoryControl},
		{Timestamp: base, SessionID: "s1", Direction: DirectionOut, Category: CategoryLine},
		{Timestamp: later, SessionID: "s2", Direction: DirectionIn, Category: CategoryControl},
		{Timestamp: later, SessionID: "s2", Direction: DirectionOut, Category: CategoryControl, Port: "COM4"},
	})

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"session", Filter{SessionID: "s2"}, 2},
		{"direction in", Filter{Direction: &in}, 2},
		{"direction out control", Filter{Direction: &out, Category: &control}, 1},
		{"port", Filter{Port: "COM4"}, 1},
		{"time start", Filter{TimeStart: &later}, 2},
		{"time end", Filter{TimeEnd: &later}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewFilteredReader(fs, capturePath, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			defer r.Close()

			if got := len(readAll(t, r)); got != tt.want {
				t.Errorf("got %d events, want %d", got, tt.want)
			}
		})
	}
}

func TestReaderMissingFile(t *testing.T) {
	_, err := NewReader(afero.NewMemMapFs(), "/nope.rtlog")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want not exist", err)
	}
}

type captureLogger struct{ events []Event }

func (c *captureLogger) Log(e Event) { c.events = append(c.events, e) }

func TestMultiLogger(t *testing.T) {
	a, b := &captureLogger{}, &captureLogger{}
	m := NewMultiLogger(a, nil, b, NoopLogger{})

	m.Log(Event{Port: "x"})

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("a=%d b=%d, want 1 each", len(a.events), len(b.events))
	}
}

func TestZerologAdapter(t *testing.T) {
	var buf bytes.Buffer
	a := NewZerologAdapter(zerolog.New(&buf).Level(zerolog.DebugLevel))

	a.Log(Event{
		SessionID:   "sess",
		Port:        "COM3",
		Direction:   DirectionInternal,
		Category:    CategoryState,
		StateChange: &StateChangeEvent{Entity: StateEntityLink, OldState: "LINKED", NewState: "RECONNECT_PENDING", Reason: "liveness timeout"},
	})

	out := buf.String()
	for _, want := range []string{`"session_id":"sess"`, `"new_state":"RECONNECT_PENDING"`, `"reason":"liveness timeout"`, `"message":"protocol"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %s missing %s", out, want)
		}
	}

	buf.Reset()
	NewZerologAdapter(zerolog.New(&buf).Level(zerolog.InfoLevel)).Log(Event{Port: "COM3"})
	if buf.Len() != 0 {
		t.Errorf("debug event written at info level: %s", buf.String())
	}
}

func TestParseNames(t *testing.T) {
	for _, d := range []Direction{DirectionIn, DirectionOut, DirectionInternal} {
		got, err := ParseDirection(strings.ToLower(d.String()))
		if err != nil || got != d {
			t.Errorf("ParseDirection(%s) = %v, %v", d, got, err)
		}
	}
	for _, c := range []Category{CategoryLine, CategoryControl, CategoryState, CategoryError} {
		got, err := ParseCategory(c.String())
		if err != nil || got != c {
			t.Errorf("ParseCategory(%s) = %v, %v", c, got, err)
		}
	}
	if _, err := ParseDirection("sideways"); err == nil {
		t.Error("ParseDirection accepted garbage")
	}
	if _, err := ParseCategory("nope"); err == nil {
		t.Error("ParseCategory accepted garbage")
	}
}
