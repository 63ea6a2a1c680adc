package pipeline

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/josephlewis42/pipesh/core/vos"
	"github.com/spf13/afero"
)

func findExecutable(fsys afero.Fs, file string) error {
	d, err := fsys.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0111 != 0 {
		return nil
	}
	return fs.ErrPermission
}

// LookPath searches for an executable named file in the directories of the
// colon separated path. If file contains a slash, it is tried directly and
// path is not consulted.
//
// It returns a *CommandNotFoundError if nothing by that name exists and a
// *PermissionError if something does but none of the matches are executable.
func LookPath(fsys afero.Fs, file, path string) (string, error) {
	if file == "" {
		return "", &CommandNotFoundError{Name: file}
	}

	if strings.Contains(file, "/") {
		err := findExecutable(fsys, file)
		switch {
		case err == nil:
			return file, nil
		case errors.Is(err, fs.ErrNotExist):
			return "", &CommandNotFoundError{Name: file}
		default:
			return "", &PermissionError{Name: file, Err: err}
		}
	}

	var denied error
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		err := findExecutable(fsys, candidate)
		if err == nil {
			return candidate, nil
		}
		if denied == nil && errors.Is(err, fs.ErrPermission) {
			denied = err
		}
	}

	if denied != nil {
		return "", &PermissionError{Name: file, Err: denied}
	}
	return "", &CommandNotFoundError{Name: file}
}

// Launcher starts external programs.
type Launcher struct {
	// Fs is searched for programs, defaults to the host filesystem.
	Fs afero.Fs
	// Stderr receives every program's standard error, defaults to os.Stderr.
	Stderr io.Writer
	// Dir is the working directory for programs, empty means the shell's.
	Dir string
}

func (l *Launcher) fs() afero.Fs {
	if l.Fs == nil {
		return afero.NewOsFs()
	}
	return l.Fs
}

func (l *Launcher) stderr() io.Writer {
	if l.Stderr == nil {
		return os.Stderr
	}
	return l.Stderr
}

// Launch starts argv[0] with the given streams and a snapshot of env. The
// program is searched for using env's PATH.
//
// Streams that are *os.File are handed to the child directly, anything else
// is copied by a goroutine owned by the returned handle.
func (l *Launcher) Launch(argv []string, stdin io.Reader, stdout io.Writer, env vos.EnvironFetcher) (*ProcessCompletion, error) {
	if len(argv) == 0 {
		return nil, &CommandNotFoundError{}
	}

	environ := env.Environ()
	if environ == nil {
		// A nil Env would make the child inherit ours.
		environ = []string{}
	}

	path, err := LookPath(l.fs(), argv[0], vos.NewMapEnvFromEnvList(environ).Getenv("PATH"))
	if err != nil {
		return nil, err
	}

	cmd := &exec.Cmd{
		Path:   path,
		Args:   argv,
		Env:    environ,
		Dir:    l.Dir,
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: l.stderr(),
	}

	if err := cmd.Start(); err != nil {
		switch {
		case errors.Is(err, fs.ErrPermission):
			return nil, &PermissionError{Name: argv[0], Err: err}
		case errors.Is(err, fs.ErrNotExist):
			return nil, &CommandNotFoundError{Name: argv[0]}
		default:
			return nil, fmt.Errorf("%s: %w", argv[0], err)
		}
	}

	return newProcessCompletion(cmd), nil
}
