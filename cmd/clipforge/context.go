package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"clipforge/internal/config"
	"clipforge/internal/ipc"
)

type commandContext struct {
	socketFlag *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(socketFlag, configFlag *string) *commandContext {
	return &commandContext{
		socketFlag: socketFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) socketPath() string {
	if c.socketFlag == nil {
		return defaultSocketPath()
	}
	if strings.TrimSpace(*c.socketFlag) == "" {
		*c.socketFlag = defaultSocketPath()
	}
	return *c.socketFlag
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	client, err := c.dialClient()
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

func (c *commandContext) dialClient() (*ipc.Client, error) {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return nil, wrapDialError(err, socket)
	}
	return client, nil
}

func wrapDialError(err error, socket string) error {
	switch {
	case errors.Is(err, syscall.ENOENT) || os.IsNotExist(err):
		return fmt.Errorf("connect to daemon: socket %s not found; start the daemon with `clipforge start`", socket)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: socket %s refused the connection; verify the daemon is running", socket)
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}

func defaultSocketPath() string {
	cfg, _, _, err := config.Load("")
	if err == nil {
		return cfg.SocketPath()
	}

	logDir, err2 := config.ExpandPath("~/.local/share/clipforge/logs")
	if err2 != nil {
		return filepath.Join(os.TempDir(), "clipforged.sock")
	}
	return filepath.Join(logDir, "clipforged.sock")
}

// codeError renders a control error carried as a response code into a
// user-facing message.
func codeError(code, message string) error {
	switch code {
	case ipc.CodeAlreadyRecording:
		return errors.New("a recording is already in progress")
	case ipc.CodeNotRecording:
		return errors.New("no recording in progress")
	case ipc.CodeBusy:
		return errors.New("recorder is busy; try again in a moment")
	case ipc.CodeNoEncoderAvailable:
		return errors.New("no working encoder found; run `clipforge doctor`")
	case ipc.CodeEncoderInitFailed:
		return fmt.Errorf("encoder failed to start: %s", message)
	case ipc.CodeEncoderLost:
		return errors.New("encoder was lost mid-session; the recording was terminated")
	case ipc.CodeFinalizationFailed:
		return fmt.Errorf("failed to finalize recording: %s", message)
	case ipc.CodeReplayInactive:
		return errors.New("instant replay is not active; enable it with `clipforge replay on`")
	case ipc.CodeEmptyBuffer:
		return errors.New("replay buffer is empty; wait for at least one segment")
	case ipc.CodeNotFound:
		return errors.New("no library entry with that id")
	default:
		if message != "" {
			return errors.New(message)
		}
		return fmt.Errorf("daemon reported error %s", code)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
