// Package preview runs one local preview server for one project at a time.
package preview

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/starford/pagesmith/internal/apperr"
)

const stopGrace = 3 * time.Second

// Instance describes the running preview.
type Instance struct {
	Project   string    `json:"project"`
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
}

// Config configures the supervisor. Command arguments may contain {port},
// which is replaced with Port; PORT is also set in the child's environment.
type Config struct {
	Command []string
	Host    string
	Port    int
	Output  io.Writer
	Logger  *slog.Logger
}

type child struct {
	info Instance
	cmd  *exec.Cmd
	done chan struct{}
}

// Supervisor owns the preview child process. Start replaces any running
// child, so at most one preview exists.
type Supervisor struct {
	cfg Config

	mu  sync.Mutex
	cur *child
}

// New creates a supervisor.
func New(cfg Config) *Supervisor {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Output == nil {
		cfg.Output = io.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Supervisor{cfg: cfg}
}

// Start stops any running preview and launches the command in dir for project.
func (s *Supervisor) Start(project, dir string) (*Instance, error) {
	if len(s.cfg.Command) == 0 {
		return nil, fmt.Errorf("%w: no preview command configured", apperr.ErrRejected)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	port := strconv.Itoa(s.cfg.Port)
	args := make([]string, len(s.cfg.Command))
	for i, a := range s.cfg.Command {
		args[i] = strings.ReplaceAll(a, "{port}", port)
	}
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "PORT="+port)
	cmd.Stdout = s.cfg.Output
	cmd.Stderr = s.cfg.Output
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("preview: start %s: %w", args[0], err)
	}

	c := &child{
		info: Instance{
			Project:   project,
			PID:       cmd.Process.Pid,
			Addr:      "http://" + s.cfg.Host + ":" + port,
			StartedAt: time.Now().UTC(),
		},
		cmd:  cmd,
		done: make(chan struct{}),
	}
	s.cur = c
	go s.reap(c)

	s.cfg.Logger.Info("preview: started",
		slog.String("project", project), slog.Int("pid", c.info.PID), slog.String("addr", c.info.Addr))
	info := c.info
	return &info, nil
}

func (s *Supervisor) reap(c *child) {
	err := c.cmd.Wait()
	close(c.done)

	s.mu.Lock()
	if s.cur == c {
		s.cur = nil
	}
	s.mu.Unlock()

	attrs := []any{slog.String("project", c.info.Project), slog.Int("pid", c.info.PID)}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	s.cfg.Logger.Info("preview: exited", attrs...)
}

// Stop terminates the running preview, if any.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Supervisor) stopLocked() {
	c := s.cur
	if c == nil {
		return
	}
	s.cur = nil
	_ = c.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-c.done:
	case <-time.After(stopGrace):
		_ = c.cmd.Process.Kill()
		<-c.done
	}
}

// Status returns the running preview, or false when none is running.
func (s *Supervisor) Status() (*Instance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return nil, false
	}
	info := s.cur.info
	return &info, true
}
