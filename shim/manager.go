// Package shim runs brainfuck programs as containerd tasks. The manager
// starts a long-lived shim process which serves the task API over TTRPC;
// each container's program runs in a child process of the shim binary
// started in interpreter mode.
package shim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	apitypes "github.com/containerd/containerd/api/types"
	"github.com/containerd/containerd/v2/pkg/shim"
	"github.com/containerd/log"
)

// https://pubs.opengroup.org/onlinepubs/9699919799/utilities/V3_chap02.html#tag_18_21_18
const exitCodeSignal = 128

// files the task service leaves in the bundle directory
const (
	pidFilename     = "bf.pid"
	wrapperFilename = "start-stopped.sh"
)

// RuntimeName is the name containerd knows the runtime by
const RuntimeName = "io.containerd.bfc.v1"

const runtimeVersion = "v0.2.0"

// Annotations reported by Info
const (
	AnnotationScripts  = "io.bfc.scripts"
	AnnotationMaxCells = "io.bfc.max-cells"
)

// comptime override for debug flag
// set with `-ldflags="-X 'github.com/MarcinKonowalczyk/bfc/shim.debug=true'"`
var debug string

type manager struct {
	name string
}

func NewManager(name string) shim.Manager {
	return manager{name: name}
}

var _ = shim.Manager(manager{})

func (m manager) Name() string {
	return m.name
}

// Start launches the shim server for container id. The runtime-wide tape
// limit is checked here so a bad value fails the container before anything
// runs, and is handed to the server explicitly.
func (m manager) Start(ctx context.Context, id string, opts shim.StartOpts) (shim.BootstrapParams, error) {
	var params shim.BootstrapParams

	maxCells, err := DefaultMaxCells()
	if err != nil {
		return params, err
	}
	log.G(ctx).WithField("id", id).Debugf("starting shim, default tape limit %d", maxCells)

	bundle, err := os.Getwd()
	if err != nil {
		return params, fmt.Errorf("getting bundle directory: %w", err)
	}
	self, err := os.Executable()
	if err != nil {
		return params, fmt.Errorf("getting executable of current process: %w", err)
	}
	var args []string
	if opts.Debug || debug != "" {
		args = append(args, "-debug")
	}
	cmd, err := shim.Command(ctx, &shim.CommandConfig{
		Runtime:      self,
		Address:      opts.Address,
		TTRPCAddress: opts.TTRPCAddress,
		Path:         bundle,
		Args:         args,
	})
	if err != nil {
		return params, fmt.Errorf("creating shim command: %w", err)
	}
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.Env = append(cmd.Env, MaxCellsEnv+"="+strconv.Itoa(maxCells))

	address, err := shim.SocketAddress(ctx, opts.Address, id, opts.Debug)
	if err != nil {
		return params, fmt.Errorf("getting a socket address: %w", err)
	}
	socket, err := shim.NewSocket(address)
	if err != nil {
		return params, fmt.Errorf("creating socket: %w", err)
	}
	f, err := socket.File()
	if err != nil {
		return params, fmt.Errorf("getting shim socket file descriptor: %w", err)
	}
	defer f.Close()
	cmd.ExtraFiles = append(cmd.ExtraFiles, f)

	runtime.LockOSThread()
	err = cmd.Start()
	runtime.UnlockOSThread()
	if err != nil {
		return params, fmt.Errorf("starting shim command: %w", err)
	}
	// reap the server if it dies while this process is still around
	go func() { _ = cmd.Wait() }()

	if err := shim.AdjustOOMScore(cmd.Process.Pid); err != nil {
		return params, fmt.Errorf("adjusting shim process OOM score: %w", err)
	}

	return shim.BootstrapParams{
		Version:  2,
		Address:  address,
		Protocol: "ttrpc",
	}, nil
}

// Stop is called by containerd from the bundle directory when the shim
// server is gone. It kills the program left behind, if any, and removes
// the files the task service wrote.
func (m manager) Stop(ctx context.Context, id string) (shim.StopStatus, error) {
	bundle, err := os.Getwd()
	if err != nil {
		return shim.StopStatus{}, fmt.Errorf("getting bundle directory: %w", err)
	}
	pid, err := readPidFile(bundle)
	if err != nil {
		return shim.StopStatus{}, fmt.Errorf("reading pid file: %w", err)
	}
	log.G(ctx).WithField("id", id).Debugf("stopping program %d", pid)

	if pid > 0 {
		if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			log.G(ctx).WithError(err).Warnf("failed to kill program %d", pid)
		}
	}
	for _, name := range []string{pidFilename, wrapperFilename} {
		if err := os.Remove(filepath.Join(bundle, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.G(ctx).WithError(err).Warnf("failed to remove %s", name)
		}
	}

	return shim.StopStatus{
		Pid:        pid,
		ExitedAt:   time.Now(),
		ExitStatus: exitCodeSignal + int(syscall.SIGKILL),
	}, nil
}

// Info describes the runtime: which entry points it accepts and the tape
// limit applied to containers that do not choose one.
func (m manager) Info(ctx context.Context, optionsR io.Reader) (*apitypes.RuntimeInfo, error) {
	maxCells, err := DefaultMaxCells()
	if err != nil {
		return nil, err
	}
	return &apitypes.RuntimeInfo{
		Name: m.name,
		Version: &apitypes.RuntimeVersion{
			Version: runtimeVersion,
		},
		Annotations: map[string]string{
			AnnotationScripts:  strings.Join(scriptExtensions, ","),
			AnnotationMaxCells: strconv.Itoa(maxCells),
		},
	}, nil
}

func pidFilePath(bundle string) string {
	return filepath.Join(bundle, pidFilename)
}

// readPidFile returns 0 when the task never got as far as starting a
// program.
func readPidFile(bundle string) (int, error) {
	data, err := os.ReadFile(pidFilePath(bundle))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// writePidFile records the program's pid so Stop can find it after the
// shim server is gone.
func writePidFile(bundle string, pid int) error {
	path := pidFilePath(bundle)
	if err := shim.WritePidFile(path, pid); err != nil {
		return fmt.Errorf("writing pid file of program: %w", err)
	}
	return os.Chmod(path, 0644)
}
