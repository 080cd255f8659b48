package dispatcher

import (
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"
)

// Launcher starts an external process without waiting for it to finish.
type Launcher interface {
	Launch(name string, args ...string) error
}

// ExecLauncher launches processes with os/exec. The exit status is only
// logged, there is nobody left to report it to.
type ExecLauncher struct {
	log zerolog.Logger
}

// NewExecLauncher creates a launcher backed by os/exec
func NewExecLauncher(log zerolog.Logger) *ExecLauncher {
	return &ExecLauncher{log: log.With().Str("component", "launcher").Logger()}
}

// Launch starts the command and reaps it in the background
func (l *ExecLauncher) Launch(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}

	pid := cmd.Process.Pid
	l.log.Info().Str("command", name).Int("pid", pid).Msg("External process launched")

	go func() {
		if err := cmd.Wait(); err != nil {
			l.log.Warn().Err(err).Str("command", name).Int("pid", pid).Msg("External process exited with error")
			return
		}
		l.log.Info().Str("command", name).Int("pid", pid).Msg("External process finished")
	}()

	return nil
}
