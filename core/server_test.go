package core

import (
	"bytes"
	"context"
	"errors"
	"io/ioutil"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/josephlewis42/pipesh/core/config"
	"github.com/josephlewis42/pipesh/core/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gossh "golang.org/x/crypto/ssh"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type serverFixture struct {
	dir    string
	addr   string
	events *syncBuffer
}

func newServerFixture(t *testing.T, mutate func(*config.Configuration)) *serverFixture {
	t.Helper()

	dir := t.TempDir()
	cfg, err := config.Initialize(dir, log.New(ioutil.Discard, "", 0))
	require.NoError(t, err)
	cfg.SSH.Users = []config.User{{Username: "tester", Passwords: []string{"secret"}}}
	if mutate != nil {
		mutate(cfg)
	}

	events := &syncBuffer{}
	server, err := NewServer(cfg, logger.NewJSONLinesLogRecorder(events))
	require.NoError(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go server.Serve(l)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	})

	return &serverFixture{dir: dir, addr: l.Addr().String(), events: events}
}

func (f *serverFixture) dial(password string) (*gossh.Client, error) {
	return gossh.Dial("tcp", f.addr, &gossh.ClientConfig{
		User:            "tester",
		Auth:            []gossh.AuthMethod{gossh.Password(password)},
		HostKeyCallback: gossh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	})
}

func (f *serverFixture) run(t *testing.T, command string) (string, error) {
	t.Helper()

	client, err := f.dial("secret")
	require.NoError(t, err)
	defer client.Close()

	session, err := client.NewSession()
	require.NoError(t, err)
	defer session.Close()

	out, err := session.CombinedOutput(command)
	return string(out), err
}

func TestServer_command(t *testing.T) {
	f := newServerFixture(t, nil)

	out, err := f.run(t, "echo hi | wc")

	assert.NoError(t, err)
	assert.Equal(t, "1 1 3", out)
	assert.Contains(t, f.events.String(), `"pipeline_complete"`)
	assert.Contains(t, f.events.String(), `"SUCCESS"`)
}

func TestServer_sessionEnvironment(t *testing.T) {
	f := newServerFixture(t, func(cfg *config.Configuration) {
		cfg.Environment = map[string]string{"GREETING": "hello"}
	})

	out, err := f.run(t, "echo $GREETING $USER")

	assert.NoError(t, err)
	assert.Equal(t, "hello tester\n", out)
}

func TestServer_invalidClientVariable(t *testing.T) {
	f := newServerFixture(t, nil)

	client, err := f.dial("secret")
	require.NoError(t, err)
	defer client.Close()

	session, err := client.NewSession()
	require.NoError(t, err)
	defer session.Close()

	require.NoError(t, session.Setenv("", "dropped"))
	require.NoError(t, session.Setenv("GREETING", "kept"))
	out, err := session.CombinedOutput("echo $GREETING")

	assert.NoError(t, err)
	assert.Equal(t, "kept\n", string(out))
}

func TestServer_failingCommand(t *testing.T) {
	f := newServerFixture(t, nil)

	out, err := f.run(t, "pipesh-no-such-program")

	var exitErr *gossh.ExitError
	require.True(t, errors.As(err, &exitErr), "got %v", err)
	assert.Equal(t, 1, exitErr.ExitStatus())
	assert.Contains(t, out, "pipesh: pipesh-no-such-program: command not found")
	assert.Contains(t, f.events.String(), `"unknown_command"`)
}

func TestServer_badPassword(t *testing.T) {
	f := newServerFixture(t, nil)

	_, err := f.dial("wrong")

	assert.Error(t, err)
	assert.Contains(t, f.events.String(), `"FAILURE"`)
	assert.NotContains(t, f.events.String(), "wrong", "passwords are never logged")
}

func TestServer_recordSessions(t *testing.T) {
	f := newServerFixture(t, func(cfg *config.Configuration) {
		cfg.SSH.RecordSessions = true
	})

	_, err := f.run(t, "echo recorded")
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(f.dir, config.LogsDirName, "*.cast"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	contents, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(contents), `"o","recorded\n"`), string(contents))
	assert.Contains(t, f.events.String(), `"open_tty_log"`)
}
