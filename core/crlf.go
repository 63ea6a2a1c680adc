package core

import (
	"bytes"
	"io"

	"github.com/josephlewis42/pipesh/core/vos"
)

// crlfWriter translates \n to \r\n for clients whose terminal is in raw mode
// and has no line discipline to do it for them.
type crlfWriter struct {
	io.WriteCloser
}

func (w *crlfWriter) Write(p []byte) (int, error) {
	if _, err := w.WriteCloser.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

func newCRLFIO(vio vos.VIO) vos.VIO {
	return &vos.VIOAdapter{
		IStdin:  vio.Stdin(),
		IStdout: &crlfWriter{vio.Stdout()},
		IStderr: &crlfWriter{vio.Stderr()},
	}
}
