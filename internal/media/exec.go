package media

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// stopTimeout bounds how long Stop waits after SIGTERM before killing.
const stopTimeout = 2 * time.Second

// ExecPlayer plays media by running an external command such as mpg123.
type ExecPlayer struct {
	dir     string
	command []string
	logger  *zap.SugaredLogger

	mu       sync.Mutex
	cmd      *exec.Cmd
	done     chan struct{}
	finished bool
}

// NewExecPlayer creates a player running command for each start. Relative
// refs are resolved against dir.
func NewExecPlayer(dir string, command []string, logger *zap.SugaredLogger) (*ExecPlayer, error) {
	if len(command) == 0 {
		return nil, errors.New("media command is empty")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ExecPlayer{
		dir:     dir,
		command: append([]string(nil), command...),
		logger:  logger,
	}, nil
}

func (p *ExecPlayer) path(ref string) string {
	if filepath.IsAbs(ref) || p.dir == "" {
		return ref
	}
	return filepath.Join(p.dir, ref)
}

// Start stops the current process and launches the command for ref.
func (p *ExecPlayer) Start(ref string) error {
	if err := p.Stop(); err != nil {
		p.logger.Warnf("stop before start: %v", err)
	}

	path := p.path(ref)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("media %s: %w", ref, err)
	}

	args := expand(p.command, path)
	cmd := exec.Command(args[0], args[1:]...)
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", args[0], err)
	}

	done := make(chan struct{})
	p.mu.Lock()
	p.cmd = cmd
	p.done = done
	p.finished = false
	p.mu.Unlock()

	p.logger.Infof("playing %s (pid %d)", ref, cmd.Process.Pid)

	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		current := p.cmd == cmd
		if current {
			p.cmd = nil
			// Only a clean exit means the media played to its end.
			p.finished = err == nil
		}
		p.mu.Unlock()
		close(done)

		switch {
		case err == nil:
			p.logger.Debugf("finished %s", ref)
		case current:
			p.logger.Warnf("player for %s exited with code %d", ref, exitCode(err))
		default:
			p.logger.Debugf("player for %s stopped", ref)
		}
	}()

	return nil
}

// Stop terminates the running process, if any, and waits for it to exit.
func (p *ExecPlayer) Stop() error {
	p.mu.Lock()
	cmd, done := p.cmd, p.done
	p.cmd = nil
	p.finished = false
	p.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	if err := signalGroup(cmd, syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Debugf("SIGTERM failed: %v", err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(stopTimeout):
	}

	p.logger.Warnf("player pid %d ignored SIGTERM, killing", cmd.Process.Pid)
	if err := signalGroup(cmd, syscall.SIGKILL); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill player: %w", err)
	}
	<-done
	return nil
}

// IsActive reports whether a player process is running.
func (p *ExecPlayer) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd != nil
}

// IsFinished reports whether the last process exited on its own.
func (p *ExecPlayer) IsFinished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
