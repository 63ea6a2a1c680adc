package core

import (
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"runtime/debug"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gliderlabs/ssh"
	"github.com/josephlewis42/pipesh/commands"
	"github.com/josephlewis42/pipesh/core/config"
	"github.com/josephlewis42/pipesh/core/logger"
	"github.com/josephlewis42/pipesh/core/pipeline"
	"github.com/josephlewis42/pipesh/core/ttylog"
	"github.com/josephlewis42/pipesh/core/vos"
	"github.com/juju/ratelimit"
	gossh "golang.org/x/crypto/ssh"
)

// Server serves a shell per SSH session.
type Server struct {
	configuration *config.Configuration
	logger        *logger.Logger
	sshServer     *ssh.Server
}

// NewServer creates a server from the configuration, events are recorded to
// eventLog.
func NewServer(configuration *config.Configuration, eventLog *logger.Logger) (*Server, error) {
	server := &Server{
		configuration: configuration,
		logger:        eventLog,
	}

	sshConfig := configuration.SSH
	server.sshServer = &ssh.Server{
		Addr:    net.JoinHostPort(sshConfig.ListenAddress, strconv.Itoa(sshConfig.Port)),
		Handler: server.HandleSession,
		PasswordHandler: func(ctx ssh.Context, password string) bool {
			return server.authenticate(ctx.User(), password, ctx.RemoteAddr())
		},
	}
	if sshConfig.Banner != "" {
		server.sshServer.Version = sshConfig.Banner
	}

	keyPem, err := configuration.PrivateKeyPem()
	if err != nil {
		return nil, fmt.Errorf("reading host key: %w", err)
	}
	signer, err := gossh.ParsePrivateKey(keyPem)
	if err != nil {
		return nil, fmt.Errorf("parsing host key: %w", err)
	}
	server.sshServer.AddHostKey(signer)

	return server, nil
}

// authenticate checks the password, failed attempts are logged here and
// successful ones once their session starts.
func (s *Server) authenticate(username, password string, remoteAddr net.Addr) bool {
	ok := false
	for _, candidate := range s.configuration.GetPasswords(username) {
		if subtle.ConstantTimeCompare([]byte(password), []byte(candidate)) == 1 {
			ok = true
		}
	}

	if !ok {
		s.logger.Sessionless().Record(&logger.LoginAttempt{
			Username:   username,
			RemoteAddr: fmt.Sprint(remoteAddr),
			Result:     logger.ResultFailure,
		})
	}

	return ok
}

// HandleSession runs the shell for a single SSH session.
func (s *Server) HandleSession(session ssh.Session) {
	sessionLogger := s.logger.NewSession()
	sessionLogger.Record(&logger.LoginAttempt{
		Username:   session.User(),
		RemoteAddr: fmt.Sprint(session.RemoteAddr()),
		Result:     logger.ResultSuccess,
		Command:    session.Command(),
	})

	defer func() {
		if r := recover(); r != nil {
			log.Printf("session %s panicked: %v", sessionLogger.SessionID(), r)
			sessionLogger.Record(&logger.Panic{
				Context:    fmt.Sprint(r),
				Stacktrace: string(debug.Stack()),
			})
			session.Exit(1)
		}
	}()

	exitCode, err := s.runSession(session, sessionLogger)
	if err != nil {
		log.Printf("session %s: %v", sessionLogger.SessionID(), err)
	}
	session.Exit(exitCode)
}

func (s *Server) runSession(session ssh.Session, sessionLogger *logger.SessionLogger) (int, error) {
	var vio vos.VIO = vos.NewVIOAdapter(
		session,
		s.throttle(session),
		s.throttle(session.Stderr()),
	)

	if s.configuration.SSH.RecordSessions {
		logName := fmt.Sprintf("%s-%s.%s", time.Now().Format(time.RFC3339), sessionLogger.SessionID(), ttylog.AsciicastFileExt)
		logFd, err := s.configuration.CreateSessionLog(logName)
		if err != nil {
			return 1, err
		}
		defer logFd.Close()

		sessionLogger.Record(&logger.OpenTTYLog{Name: logName})
		vio = ttylog.NewRecorder(vio, ttylog.NewAsciicastLogSink(logFd))
	}

	ptyInfo, winch, isPty := session.Pty()
	if isPty {
		vio = newCRLFIO(vio)
	}
	width := int64(ptyInfo.Window.Width)
	if isPty {
		go func() {
			for window := range winch {
				atomic.StoreInt64(&width, int64(window.Width))
			}
		}()
	}

	env := NewEnvironment(s.configuration, os.Environ())
	for _, kv := range session.Environ() {
		if err := vos.CopyEnv(env, vos.EnvList{kv}); err != nil {
			log.Printf("session %s: ignoring client variable: %v", sessionLogger.SessionID(), err)
		}
	}
	env.Setenv(EnvUser, session.User())

	runner := pipeline.NewRunner(commands.NewRuntime(env))
	runner.Launcher.Stderr = vio.Stderr()
	runner.Events = sessionLogger

	opts := ShellOptions{
		Prompt:   s.configuration.Prompt,
		Terminal: isPty && session.RawCommand() == "",
		Width: func() int {
			return int(atomic.LoadInt64(&width))
		},
		Color: s.configuration.UseColor(isPty),
		// The session's input belongs to the line editor.
		CommandInput: vos.NewNullIO().Stdin(),
	}
	shell, err := NewShell(runner, vio, opts)
	if err != nil {
		return 1, err
	}
	defer shell.Close()

	if raw := session.RawCommand(); raw != "" {
		if err := shell.RunLine(raw); err != nil {
			shell.ReportError(err)
			return 1, nil
		}
		return 0, nil
	}

	if err := shell.Run(); err != nil {
		return 1, nil
	}
	return 0, nil
}

func (s *Server) throttle(w io.Writer) io.Writer {
	rate := s.configuration.SSH.OutputBytesPerSecond
	if rate <= 0 {
		return w
	}
	return ratelimit.Writer(w, ratelimit.NewBucketWithRate(float64(rate), rate))
}

// ListenAndServe starts accepting connections.
func (s *Server) ListenAndServe() error {
	log.Printf("- Starting SSH server on %s\n", s.sshServer.Addr)
	return s.sshServer.ListenAndServe()
}

// Serve accepts connections on l.
func (s *Server) Serve(l net.Listener) error {
	return s.sshServer.Serve(l)
}

// Shutdown stops the server, waiting for sessions until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.sshServer.Shutdown(ctx)
}
