package logger

// LogType is implemented by every event that can be recorded.
type LogType interface {
	logTypeName() string
	// fields holds the event's non-empty values keyed by their JSON name.
	fields() map[string]interface{}
}

// strList converts required string lists, nil is kept as an empty list.
func strList(ss []string) []interface{} {
	list := make([]interface{}, len(ss))
	for i, s := range ss {
		list[i] = s
	}
	return list
}

type fieldMap map[string]interface{}

func (m fieldMap) set(key string, value interface{}) fieldMap {
	switch v := value.(type) {
	case string:
		if v == "" {
			return m
		}
	case bool:
		if !v {
			return m
		}
	case []string:
		if len(v) == 0 {
			return m
		}
		list := make([]interface{}, len(v))
		for i, s := range v {
			list[i] = s
		}
		value = list
	case []int:
		if len(v) == 0 {
			return m
		}
		list := make([]interface{}, len(v))
		for i, n := range v {
			list[i] = n
		}
		value = list
	}
	m[key] = value
	return m
}

// RunCommand is logged when a pipeline stage is started.
type RunCommand struct {
	Command      []string `json:"command"`
	Builtin      bool     `json:"builtin,omitempty"`
	ResolvedPath string   `json:"resolved_path,omitempty"`
}

func (*RunCommand) logTypeName() string { return "run_command" }

func (e *RunCommand) fields() map[string]interface{} {
	return fieldMap{"command": strList(e.Command)}.
		set("builtin", e.Builtin).
		set("resolved_path", e.ResolvedPath)
}

// Statuses for UnknownCommand.
const (
	StatusNotFound         = "NOT_FOUND"
	StatusPermissionDenied = "PERMISSION_DENIED"
	StatusStartFailed      = "START_FAILED"
)

// UnknownCommand is logged when a stage couldn't be started.
type UnknownCommand struct {
	Command      []string `json:"command"`
	Status       string   `json:"status"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

func (*UnknownCommand) logTypeName() string { return "unknown_command" }

func (e *UnknownCommand) fields() map[string]interface{} {
	return fieldMap{"command": strList(e.Command), "status": e.Status}.
		set("error_message", e.ErrorMessage)
}

// InvalidInvocation is logged when a builtin rejects its arguments.
type InvalidInvocation struct {
	Command []string `json:"command"`
	Error   string   `json:"error"`
}

func (*InvalidInvocation) logTypeName() string { return "invalid_invocation" }

func (e *InvalidInvocation) fields() map[string]interface{} {
	return fieldMap{"command": strList(e.Command), "error": e.Error}
}

// PipelineComplete is logged after every stage of a pipeline was joined.
type PipelineComplete struct {
	Stages         int    `json:"stages"`
	ExitCodes      []int  `json:"exit_codes,omitempty"`
	DurationMicros int64  `json:"duration_micros"`
	Error          string `json:"error,omitempty"`
}

func (*PipelineComplete) logTypeName() string { return "pipeline_complete" }

func (e *PipelineComplete) fields() map[string]interface{} {
	return fieldMap{"stages": e.Stages, "duration_micros": e.DurationMicros}.
		set("exit_codes", e.ExitCodes).
		set("error", e.Error)
}

// Results for LoginAttempt.
const (
	ResultSuccess = "SUCCESS"
	ResultFailure = "FAILURE"
)

// LoginAttempt is logged for each SSH authentication attempt. Passwords are
// never logged.
type LoginAttempt struct {
	Username   string   `json:"username"`
	RemoteAddr string   `json:"remote_addr,omitempty"`
	Result     string   `json:"result"`
	Command    []string `json:"command,omitempty"`
}

func (*LoginAttempt) logTypeName() string { return "login_attempt" }

func (e *LoginAttempt) fields() map[string]interface{} {
	return fieldMap{"username": e.Username, "result": e.Result}.
		set("remote_addr", e.RemoteAddr).
		set("command", e.Command)
}

// OpenTTYLog is logged when a session recording is started.
type OpenTTYLog struct {
	Name string `json:"name"`
}

func (*OpenTTYLog) logTypeName() string { return "open_tty_log" }

func (e *OpenTTYLog) fields() map[string]interface{} {
	return fieldMap{"name": e.Name}
}

// Panic is logged when a recovered panic would otherwise have been lost.
type Panic struct {
	Context    string `json:"context"`
	Stacktrace string `json:"stacktrace,omitempty"`
}

func (*Panic) logTypeName() string { return "panic" }

func (e *Panic) fields() map[string]interface{} {
	return fieldMap{"context": e.Context}.
		set("stacktrace", e.Stacktrace)
}

var logTypes = map[string]func() LogType{
	(*RunCommand)(nil).logTypeName():        func() LogType { return &RunCommand{} },
	(*UnknownCommand)(nil).logTypeName():    func() LogType { return &UnknownCommand{} },
	(*InvalidInvocation)(nil).logTypeName(): func() LogType { return &InvalidInvocation{} },
	(*PipelineComplete)(nil).logTypeName():  func() LogType { return &PipelineComplete{} },
	(*LoginAttempt)(nil).logTypeName():      func() LogType { return &LoginAttempt{} },
	(*OpenTTYLog)(nil).logTypeName():        func() LogType { return &OpenTTYLog{} },
	(*Panic)(nil).logTypeName():             func() LogType { return &Panic{} },
}
