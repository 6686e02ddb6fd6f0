package shim

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	taskAPI "github.com/containerd/containerd/api/runtime/task/v2"
	tasktypes "github.com/containerd/containerd/api/types/task"
	"github.com/containerd/containerd/protobuf"
	ptypes "github.com/containerd/containerd/v2/pkg/protobuf/types"
	"github.com/containerd/containerd/v2/pkg/shim"
	"github.com/containerd/containerd/v2/pkg/shutdown"
	"github.com/containerd/containerd/v2/plugins"
	"github.com/containerd/errdefs"
	"github.com/containerd/fifo"
	"github.com/containerd/log"
	"github.com/containerd/plugin"
	"github.com/containerd/plugin/registry"
	"github.com/containerd/ttrpc"
	"google.golang.org/protobuf/types/known/anypb"
)

func init() {
	registry.Register(&plugin.Registration{
		Type: plugins.TTRPCPlugin,
		ID:   "task",
		Requires: []plugin.Type{
			plugins.InternalPlugin,
		},
		InitFn: func(ic *plugin.InitContext) (interface{}, error) {
			ss, err := ic.GetByID(plugins.InternalPlugin, "shutdown")
			if err != nil {
				return nil, err
			}
			maxCells, err := DefaultMaxCells()
			if err != nil {
				return nil, err
			}
			return newTaskService(ss.(shutdown.Service), maxCells), nil
		},
	})
}

// The program is started stopped by this wrapper and continued by Start,
// so its pid can be reported from Create.
const startStoppedScript = `#!/bin/sh
kill -STOP $$
exec "$@"
`

const commandWaitDelay = 100 * time.Millisecond

type task struct {
	pid int

	done       context.Context
	exitTime   time.Time
	exitStatus int

	stdin  string
	stdout string
	stderr string
}

func (t *task) exited() bool {
	return t.done.Err() != nil
}

func (t *task) String() string {
	if t.exited() {
		return fmt.Sprintf("pid:%d, exitTime:%s, exitStatus:%d", t.pid, t.exitTime.Format(time.RFC3339), t.exitStatus)
	}
	return fmt.Sprintf("pid:%d running", t.pid)
}

type taskService struct {
	mu       sync.RWMutex
	tasks    map[string]*task
	shutdown shutdown.Service

	// tape limit for containers that do not set one
	maxCells int
}

func newTaskService(sd shutdown.Service, maxCells int) *taskService {
	return &taskService{
		tasks:    make(map[string]*task, 1),
		shutdown: sd,
		maxCells: maxCells,
	}
}

var _ = shim.TTRPCService(&taskService{})

func (s *taskService) RegisterTTRPC(server *ttrpc.Server) error {
	taskAPI.RegisterTaskService(server, s)
	return nil
}

// lookup must be called with s.mu held
func (s *taskService) lookup(id string) (*task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s not created: %w", id, errdefs.ErrNotFound)
	}
	return t, nil
}

func (s *taskService) doneContext(id string) (context.Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return t.done, nil
}

func openFifo(ctx context.Context, path string, flag int) (io.ReadWriteCloser, error) {
	ok, err := fifo.IsFifo(path)
	if err != nil {
		return nil, fmt.Errorf("checking whether file %s is a fifo: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("file %s is not a fifo: %w", path, errdefs.ErrInvalidArgument)
	}
	f, err := fifo.OpenFifo(ctx, path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("opening fifo %s: %w", path, err)
	}
	return f, nil
}

type stdio struct {
	stdin, stdout, stderr string
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}

// attachStdio connects the task's fifos to cmd and returns them for the
// caller to close once the program is done. Missing paths are left
// unconnected, in which case the program reads end of file.
func attachStdio(ctx context.Context, cmd *exec.Cmd, streams stdio) ([]io.Closer, error) {
	if streams.stderr == "" {
		streams.stderr = streams.stdout
	}
	var opened []io.Closer
	open := func(path string, flag int) (io.ReadWriteCloser, error) {
		f, err := openFifo(ctx, path, flag)
		if err != nil {
			closeAll(opened)
			return nil, err
		}
		opened = append(opened, f)
		return f, nil
	}
	if streams.stdin != "" {
		f, err := open(streams.stdin, syscall.O_RDONLY)
		if err != nil {
			return nil, err
		}
		cmd.Stdin = f
	}
	if streams.stdout != "" {
		f, err := open(streams.stdout, syscall.O_WRONLY)
		if err != nil {
			return nil, err
		}
		cmd.Stdout = f
	}
	if streams.stderr != "" {
		f, err := open(streams.stderr, syscall.O_WRONLY)
		if err != nil {
			return nil, err
		}
		cmd.Stderr = f
	}
	return opened, nil
}

// add records the started program of task id and reaps it in the
// background. It must be called with s.mu held.
func (s *taskService) add(ctx context.Context, id string, cmd *exec.Cmd, streams stdio, closers []io.Closer) *task {
	done, markDone := context.WithCancel(context.Background())
	t := &task{
		pid:    cmd.Process.Pid,
		done:   done,
		stdin:  streams.stdin,
		stdout: streams.stdout,
		stderr: streams.stderr,
	}
	s.tasks[id] = t
	go s.reap(context.WithoutCancel(ctx), id, cmd, markDone, closers)
	return t
}

func exitStatus(state *os.ProcessState) int {
	if state == nil {
		return 255
	}
	if state.Exited() {
		return state.ExitCode()
	}
	if status, ok := state.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return exitCodeSignal + int(status.Signal())
	}
	return 255
}

// reap waits for the program of task id to exit, records its status, and
// shuts the shim down once every task is done.
func (s *taskService) reap(ctx context.Context, id string, cmd *exec.Cmd, markDone func(), closers []io.Closer) {
	pid := cmd.Process.Pid
	if err := cmd.Wait(); err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			log.G(ctx).WithError(err).Errorf("failed to wait for program %d", pid)
		}
	}
	closeAll(closers)
	status := exitStatus(cmd.ProcessState)
	log.G(ctx).Debugf("program %d exited with status %d", pid, status)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer markDone()

	t, ok := s.tasks[id]
	if !ok {
		log.G(ctx).Errorf("task %s was removed before its program exited", id)
		return
	}
	t.exitStatus = status
	t.exitTime = time.Now()

	for other, ot := range s.tasks {
		if other != id && !ot.exited() {
			return
		}
	}
	log.G(ctx).Debug("all tasks exited, shutting down the shim")
	s.shutdown.Shutdown()
}

// Create a new container
func (s *taskService) Create(ctx context.Context, r *taskAPI.CreateTaskRequest) (*taskAPI.CreateTaskResponse, error) {
	log.G(ctx).WithField("id", r.ID).Debug("create")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[r.ID]; ok {
		return nil, errdefs.ErrAlreadyExists
	}

	bundle, err := ReadBundle(r.Bundle)
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}
	if bundle.MaxCells == 0 {
		bundle.MaxCells = s.maxCells
	}

	wrapper := filepath.Join(r.Bundle, wrapperFilename)
	if err := os.WriteFile(wrapper, []byte(startStoppedScript), 0755); err != nil {
		return nil, fmt.Errorf("writing %s: %w", wrapper, err)
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("getting executable of current process: %w", err)
	}

	// not tied to the request context, the program outlives this call
	args := append([]string{wrapper, self}, interpreterArgs(bundle)...)
	cmd := exec.Command("/bin/sh", args...)
	cmd.Dir = bundle.Root
	cmd.WaitDelay = commandWaitDelay

	streams := stdio{stdin: r.Stdin, stdout: r.Stdout, stderr: r.Stderr}
	closers, err := attachStdio(ctx, cmd, streams)
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		closeAll(closers)
		return nil, fmt.Errorf("running program: %w", err)
	}

	t := s.add(ctx, r.ID, cmd, streams, closers)
	if err := writePidFile(r.Bundle, t.pid); err != nil {
		log.G(ctx).WithError(err).Warn("failed to write pid file")
	}
	log.G(ctx).Debugf("created task %s running %s", r.ID, bundle.Entrypoint)

	return &taskAPI.CreateTaskResponse{
		Pid: uint32(t.pid),
	}, nil
}

// Start the primary user process inside the container
func (s *taskService) Start(ctx context.Context, r *taskAPI.StartRequest) (*taskAPI.StartResponse, error) {
	log.G(ctx).WithField("id", r.ID).Debug("start")

	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.lookup(r.ID)
	if err != nil {
		return nil, err
	}
	if err := syscall.Kill(t.pid, syscall.SIGCONT); err != nil {
		return nil, fmt.Errorf("continuing init process %d: %w", t.pid, err)
	}
	return &taskAPI.StartResponse{
		Pid: uint32(t.pid),
	}, nil
}

// Delete a process or container
func (s *taskService) Delete(ctx context.Context, r *taskAPI.DeleteRequest) (*taskAPI.DeleteResponse, error) {
	log.G(ctx).WithField("id", r.ID).Debug("delete")

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookup(r.ID)
	if err != nil {
		return nil, err
	}
	if !t.exited() {
		return nil, errdefs.ErrFailedPrecondition.WithMessage(fmt.Sprintf("init process %d is not done yet", t.pid))
	}
	delete(s.tasks, r.ID)

	return &taskAPI.DeleteResponse{
		Pid:        uint32(t.pid),
		ExitStatus: uint32(t.exitStatus),
		ExitedAt:   protobuf.ToTimestamp(t.exitTime),
	}, nil
}

// Exec an additional process inside the container
func (s *taskService) Exec(ctx context.Context, r *taskAPI.ExecProcessRequest) (*ptypes.Empty, error) {
	return nil, errdefs.ErrNotImplemented.WithMessage("Exec (task)")
}

// ResizePty of a process
func (s *taskService) ResizePty(ctx context.Context, r *taskAPI.ResizePtyRequest) (*ptypes.Empty, error) {
	return &ptypes.Empty{}, nil
}

// State returns runtime state of a process
func (s *taskService) State(ctx context.Context, r *taskAPI.StateRequest) (*taskAPI.StateResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.lookup(r.ID)
	if err != nil {
		return nil, err
	}
	log.G(ctx).Debugf("state %s: %s", r.ID, t)

	status := tasktypes.Status_RUNNING
	if t.exited() {
		status = tasktypes.Status_STOPPED
	}
	return &taskAPI.StateResponse{
		ID:         r.ID,
		Pid:        uint32(t.pid),
		Status:     status,
		Stdin:      t.stdin,
		Stdout:     t.stdout,
		Stderr:     t.stderr,
		ExitStatus: uint32(t.exitStatus),
		ExitedAt:   protobuf.ToTimestamp(t.exitTime),
	}, nil
}

// Pause the container
func (s *taskService) Pause(ctx context.Context, r *taskAPI.PauseRequest) (*ptypes.Empty, error) {
	return nil, errdefs.ErrNotImplemented.WithMessage("Pause (task)")
}

// Resume the container
func (s *taskService) Resume(ctx context.Context, r *taskAPI.ResumeRequest) (*ptypes.Empty, error) {
	return nil, errdefs.ErrNotImplemented.WithMessage("Resume (task)")
}

// signalFor picks the signal to deliver for a kill request. Zero means the
// request did not name one.
func signalFor(requested uint32) syscall.Signal {
	if requested == 0 {
		return syscall.SIGKILL
	}
	return syscall.Signal(requested)
}

// Kill a process
func (s *taskService) Kill(ctx context.Context, r *taskAPI.KillRequest) (*ptypes.Empty, error) {
	log.G(ctx).WithField("id", r.ID).Debugf("kill signal %d", r.Signal)

	alreadyExited, err := func() (bool, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()

		t, err := s.lookup(r.ID)
		if err != nil {
			return false, err
		}
		if t.exited() {
			return true, nil
		}
		if t.pid > 0 {
			sig := signalFor(r.Signal)
			// a stopped program only acts on the signal once continued
			if err := syscall.Kill(t.pid, sig); err != nil {
				return false, fmt.Errorf("sending %s to init process: %w", sig, err)
			}
			if sig != syscall.SIGKILL {
				_ = syscall.Kill(t.pid, syscall.SIGCONT)
			}
		}
		return false, nil
	}()
	if err != nil {
		log.G(ctx).WithError(err).Errorf("failed to kill init process of %s", r.ID)
		return nil, err
	}

	if alreadyExited {
		log.G(ctx).Warnf("task already exited: %s", r.ID)
		return &ptypes.Empty{}, nil
	}

	done, err := s.doneContext(r.ID)
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done.Done():
	}
	return &ptypes.Empty{}, nil
}

// Pids returns all pids inside the container
func (s *taskService) Pids(ctx context.Context, r *taskAPI.PidsRequest) (*taskAPI.PidsResponse, error) {
	return nil, errdefs.ErrNotImplemented.WithMessage("Pids (task)")
}

// CloseIO of a process
func (s *taskService) CloseIO(ctx context.Context, r *taskAPI.CloseIORequest) (*ptypes.Empty, error) {
	return nil, errdefs.ErrNotImplemented.WithMessage("CloseIO (task)")
}

// Checkpoint the container
func (s *taskService) Checkpoint(ctx context.Context, r *taskAPI.CheckpointTaskRequest) (*ptypes.Empty, error) {
	return nil, errdefs.ErrNotImplemented.WithMessage("Checkpoint (task)")
}

// Connect returns shim information of the underlying service
func (s *taskService) Connect(ctx context.Context, r *taskAPI.ConnectRequest) (*taskAPI.ConnectResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.lookup(r.ID)
	if err != nil {
		return nil, err
	}
	return &taskAPI.ConnectResponse{
		ShimPid: uint32(os.Getpid()),
		TaskPid: uint32(t.pid),
	}, nil
}

// Shutdown is called after the underlying resources of the shim are cleaned up and the service can be stopped
func (s *taskService) Shutdown(ctx context.Context, r *taskAPI.ShutdownRequest) (*ptypes.Empty, error) {
	log.G(ctx).Debug("shutdown")
	s.shutdown.Shutdown()
	return &ptypes.Empty{}, nil
}

// Stats returns container level system stats for a container and its processes
func (s *taskService) Stats(ctx context.Context, r *taskAPI.StatsRequest) (*taskAPI.StatsResponse, error) {
	return &taskAPI.StatsResponse{
		Stats: &anypb.Any{},
	}, nil
}

// Update the live container
func (s *taskService) Update(ctx context.Context, r *taskAPI.UpdateTaskRequest) (*ptypes.Empty, error) {
	return nil, errdefs.ErrAborted.WithMessage("Update (task)")
}

// Wait for a process to exit
func (s *taskService) Wait(ctx context.Context, r *taskAPI.WaitRequest) (*taskAPI.WaitResponse, error) {
	done, err := s.doneContext(r.ID)
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done.Done():
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.lookup(r.ID)
	if err != nil {
		return nil, err
	}
	return &taskAPI.WaitResponse{
		ExitStatus: uint32(t.exitStatus),
		ExitedAt:   protobuf.ToTimestamp(t.exitTime),
	}, nil
}
