// Package ttylog records and replays terminal sessions.
package ttylog

import (
	"io"
	"log"
	"sync"
	"time"

	"github.com/josephlewis42/pipesh/core/vos"
)

// FD identifies the stream an entry was recorded on.
type FD int

const (
	FD_STDIN  FD = 0
	FD_STDOUT FD = 1
	FD_STDERR FD = 2
)

// Entry is a single chunk of terminal I/O.
type Entry struct {
	TimestampMicros int64
	FD              FD
	Data            []byte
}

// LogSink receives log events.
type LogSink func(e *Entry) error

// LogSource adapts log readers.
type LogSource interface {
	// Next fetches the next available log entry. It reutrns io.EOF if the source
	// has no more log entries.
	Next() (*Entry, error)
}

// NewRealTimePlayback plays back the results in real-time.
// If maxSleep > 0, it's used as the maximum duration to pause.
func NewRealTimePlayback(maxSleep time.Duration, next LogSink) LogSink {
	var once sync.Once
	var prevTimeMicros int64

	return func(e *Entry) error {
		once.Do(func() {
			prevTimeMicros = e.TimestampMicros
		})

		delta := e.TimestampMicros - prevTimeMicros
		prevTimeMicros = e.TimestampMicros

		if maxSleep > 0 {
			sleepDuration := time.Duration(delta) * time.Microsecond
			if sleepDuration > maxSleep {
				sleepDuration = maxSleep
			}
			time.Sleep(sleepDuration)
		}

		return next(e)
	}
}

// NewClientOutput writes stdout and stderr to the given writer
func NewClientOutput(w io.Writer) LogSink {
	return func(e *Entry) error {
		if e.FD == FD_STDIN {
			return nil
		}
		_, err := w.Write(e.Data)
		return err
	}
}

// Replay reads a stream of events to a callback.
func Replay(recording LogSource, callback LogSink) (err error) {
	for {
		e, err := recording.Next()
		switch {
		case err == io.EOF:
			return nil
		case err != nil:
			return err
		}

		if err := callback(e); err != nil {
			return err
		}
	}
}

// Recorder wraps a session's streams and sends everything that passes through
// them to a LogSink.
type Recorder struct {
	*vos.VIOAdapter
	mutex  sync.Mutex
	output LogSink
	now    func() time.Time
}

func (r *Recorder) record(fd FD, eventTime time.Time, data []byte) {
	if len(data) == 0 {
		return
	}

	// The caller may reuse its buffer.
	data = append([]byte(nil), data...)

	r.mutex.Lock()
	err := r.output(&Entry{
		TimestampMicros: eventTime.UnixMicro(),
		FD:              fd,
		Data:            data,
	})
	r.mutex.Unlock()
	if err != nil {
		log.Print(err)
	}
}

var _ vos.VIO = (*Recorder)(nil)

type recorderReadCloser struct {
	r       *Recorder
	fd      FD
	wrapped io.ReadCloser
}

var _ io.ReadCloser = (*recorderReadCloser)(nil)

func (rc *recorderReadCloser) Read(p []byte) (int, error) {
	n, err := rc.wrapped.Read(p)
	rc.r.record(rc.fd, rc.r.now(), p[:n])
	return n, err
}

func (rc *recorderReadCloser) Close() error {
	return rc.wrapped.Close()
}

type recorderWriteCloser struct {
	r       *Recorder
	fd      FD
	wrapped io.WriteCloser
}

var _ io.WriteCloser = (*recorderWriteCloser)(nil)

func (rc *recorderWriteCloser) Write(p []byte) (int, error) {
	eventTime := rc.r.now()
	n, err := rc.wrapped.Write(p)
	rc.r.record(rc.fd, eventTime, p[:n])
	return n, err
}

func (rc *recorderWriteCloser) Close() error {
	return rc.wrapped.Close()
}

// NewRecorder creates a logger that forwards all events to output.
func NewRecorder(toWrap vos.VIO, output LogSink) *Recorder {
	recorder := &Recorder{
		output: output,
		now:    time.Now,
	}

	recorder.VIOAdapter = vos.NewVIOAdapter(
		&recorderReadCloser{fd: FD_STDIN, r: recorder, wrapped: toWrap.Stdin()},
		&recorderWriteCloser{fd: FD_STDOUT, r: recorder, wrapped: toWrap.Stdout()},
		&recorderWriteCloser{fd: FD_STDERR, r: recorder, wrapped: toWrap.Stderr()},
	)

	return recorder
}
