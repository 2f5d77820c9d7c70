package protolog

import (
	"fmt"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/afero"
)

// DefaultMaxCaptureBytes caps a capture file before it is rotated. A link
// left up for a week of heartbeats stays well under it.
const DefaultMaxCaptureBytes = 64 << 20

// RotatedSuffix is appended to the previous capture on rotation.
const RotatedSuffix = ".1"

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("protolog: encoder mode: %v", err))
	}

	// Lenient so captures from newer builds still decode.
	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("protolog: decoder mode: %v", err))
	}
}

// EncodeEvent encodes one event as a self-delimiting CBOR item.
func EncodeEvent(event Event) ([]byte, error) {
	return encMode.Marshal(event)
}

// DecodeEvent decodes one CBOR item.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := decMode.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// FileLogger appends events to a capture file. Once the file would grow
// past its size cap it is renamed with RotatedSuffix, replacing any older
// rotation, and a fresh file is started.
type FileLogger struct {
	mu       sync.Mutex
	fs       afero.Fs
	path     string
	maxBytes int64

	file   afero.File
	size   int64
	closed bool
}

// NewFileLogger opens path for appending. maxBytes <= 0 disables rotation.
func NewFileLogger(fs afero.Fs, path string, maxBytes int64) (*FileLogger, error) {
	l := &FileLogger{fs: fs, path: path, maxBytes: maxBytes}
	if err := l.openLocked(); err != nil {
		return nil, err
	}
	return l, nil
}

// Log appends the event. Encoding and write errors drop the event.
func (l *FileLogger) Log(event Event) {
	data, err := EncodeEvent(event)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if l.maxBytes > 0 && l.size > 0 && l.size+int64(len(data)) > l.maxBytes {
		if err := l.rotateLocked(); err != nil {
			return
		}
	}
	if l.file == nil {
		return
	}
	n, _ := l.file.Write(data)
	l.size += int64(n)
}

// Close closes the file. Later calls to Log are ignored.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *FileLogger) openLocked() error {
	f, err := l.fs.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	l.file = f
	l.size = info.Size()
	return nil
}

func (l *FileLogger) rotateLocked() error {
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
	backup := l.path + RotatedSuffix
	_ = l.fs.Remove(backup)
	if err := l.fs.Rename(l.path, backup); err != nil {
		return err
	}
	return l.openLocked()
}

var _ Logger = (*FileLogger)(nil)
