package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/josephlewis42/pipesh/commands"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
	LogsDirName       = "session_logs"
	PrivateKeyName    = "private_key"
	EventLogName      = "events.log"
)

// Color modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

type Configuration struct {
	configFs afero.Fs

	// Prompt is the shell prompt template, see core.Shell.Prompt.
	Prompt string `json:"prompt"`
	// Color is one of auto, always or never.
	Color string `json:"color" validate:"oneof=auto always never"`
	// HistoryFile is relative to the configuration directory, empty disables
	// history.
	HistoryFile string `json:"history_file"`

	// InheritEnvironment seeds the shell's environment from the process's.
	InheritEnvironment bool `json:"inherit_environment"`
	// Environment is applied on top of the inherited environment.
	Environment map[string]string `json:"environment" validate:"dive,keys,varname,endkeys"`

	// EventLog is relative to the configuration directory, empty disables it.
	EventLog string `json:"event_log"`

	SSH SSH `json:"ssh"`
}

type SSH struct {
	ListenAddress string `json:"listen_address"`
	Port          int    `json:"port" validate:"gte=0,lte=65535"`
	Banner        string `json:"banner"`
	Users         []User `json:"users" validate:"unique=Username,dive"`
	// OutputBytesPerSecond throttles session output, zero is unlimited.
	OutputBytesPerSecond int64 `json:"output_bytes_per_second" validate:"gte=0"`
	RecordSessions       bool  `json:"record_sessions"`
}

type User struct {
	Username  string   `json:"username" validate:"required"`
	Passwords []string `json:"passwords" validate:"unique"`
}

func validateVarname(fl validator.FieldLevel) bool {
	return commands.IsValidName(fl.Field().String())
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})
	if err := validate.RegisterValidation("varname", validateVarname); err != nil {
		return err
	}

	return validate.Struct(c)
}

func (c *Configuration) fs() afero.Fs {
	return c.configFs
}

// CreateSessionLog creates a session recording with the given name.
func (c *Configuration) CreateSessionLog(name string) (afero.File, error) {
	if err := c.fs().MkdirAll(LogsDirName, 0700); err != nil {
		return nil, err
	}
	toCreate := filepath.Join(LogsDirName, name)
	return c.fs().Create(toCreate)
}

// PrivateKeyPem returns the bytes of the private key.
func (c *Configuration) PrivateKeyPem() ([]byte, error) {
	return afero.ReadFile(c.fs(), PrivateKeyName)
}

// OpenEventLog opens the event log in an append only state.
func (c *Configuration) OpenEventLog() (afero.File, error) {
	return c.fs().OpenFile(c.EventLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// ReadEventLog opens the event log for reading.
func (c *Configuration) ReadEventLog() (afero.File, error) {
	return c.fs().OpenFile(c.EventLog, os.O_RDONLY, 0600)
}

// HistoryPath gets the host path of the history file or empty if history is
// disabled.
func (c *Configuration) HistoryPath() string {
	if c.HistoryFile == "" {
		return ""
	}
	if bp, ok := c.configFs.(*afero.BasePathFs); ok {
		if path, err := bp.RealPath(c.HistoryFile); err == nil {
			return path
		}
	}
	return c.HistoryFile
}

// GetPasswords returns allowable passwords for the given username.
func (c *Configuration) GetPasswords(username string) []string {
	var out []string
	for _, v := range c.SSH.Users {
		if v.Username == username {
			out = append(out, v.Passwords...)
		}
	}
	return out
}

// UseColor resolves the color mode, terminal tells whether output is a
// terminal.
func (c *Configuration) UseColor(terminal bool) bool {
	switch c.Color {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return terminal
	}
}

// Environ returns the configured environment on top of base.
func (c *Configuration) Environ(base []string) []string {
	var out []string
	if c.InheritEnvironment {
		out = append(out, base...)
	}
	for k, v := range c.Environment {
		out = append(out, k+"="+v)
	}
	return out
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}

// Default returns the built-in configuration, it isn't backed by a directory
// so history and the event log are disabled.
func Default() *Configuration {
	cfg := defaultConfig()
	cfg.configFs = afero.NewMemMapFs()
	cfg.HistoryFile = ""
	cfg.EventLog = ""
	return cfg
}
