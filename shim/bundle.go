package shim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/containerd/errdefs"
)

const configFilename = "config.json"

// MaxCellsEnv bounds the tape of a container's program
const MaxCellsEnv = "BFC_MAX_CELLS"

// the subset of the OCI runtime spec the shim reads
type ociSpec struct {
	Root struct {
		Path string `json:"path"`
	} `json:"root"`
	Process struct {
		Args []string `json:"args"`
		Env  []string `json:"env"`
	} `json:"process"`
}

// Bundle describes the brainfuck program a container runs.
type Bundle struct {
	// Root is the absolute path of the container rootfs
	Root string
	// Entrypoint is the script, relative to Root
	Entrypoint string
	// MaxCells is the tape limit, zero when unbounded
	MaxCells int
}

var scriptExtensions = []string{".bf", ".b", ".brainfuck"}

func isScript(path string) bool {
	return slices.Contains(scriptExtensions, filepath.Ext(path))
}

// ReadBundle reads config.json from an OCI bundle directory. The process
// must consist of exactly one argument, an existing brainfuck script.
func ReadBundle(dir string) (*Bundle, error) {
	path := filepath.Join(dir, configFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("bundle config %s: %w", path, errdefs.ErrNotFound)
		}
		return nil, err
	}
	var spec ociSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if spec.Root.Path == "" {
		return nil, errdefs.ErrInvalidArgument.WithMessage("root path not found in " + configFilename)
	}
	root := spec.Root.Path
	if !filepath.IsAbs(root) {
		root = filepath.Join(dir, root)
	}

	if len(spec.Process.Args) != 1 {
		return nil, errdefs.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("incorrect number of args in the CMD. Expected 1, got %d", len(spec.Process.Args)))
	}
	entrypoint := spec.Process.Args[0]
	if !isScript(entrypoint) {
		return nil, errdefs.ErrInvalidArgument.WithMessage(fmt.Sprintf("entry point (%s) is not a brainfuck script", entrypoint))
	}

	b := &Bundle{Root: root, Entrypoint: entrypoint}
	if _, err := os.Stat(b.Script()); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("script %s: %w", entrypoint, errdefs.ErrNotFound)
		}
		return nil, fmt.Errorf("checking script %s: %w", entrypoint, err)
	}

	for _, env := range spec.Process.Env {
		value, ok := strings.CutPrefix(env, MaxCellsEnv+"=")
		if !ok {
			continue
		}
		if b.MaxCells, err = parseMaxCells(value); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func parseMaxCells(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, errdefs.ErrInvalidArgument.WithMessage(fmt.Sprintf("invalid %s: %q", MaxCellsEnv, value))
	}
	return n, nil
}

// DefaultMaxCells is the tape limit of containers that do not set one,
// taken from the runtime's own environment. Zero means unbounded.
func DefaultMaxCells() (int, error) {
	value := os.Getenv(MaxCellsEnv)
	if value == "" {
		return 0, nil
	}
	return parseMaxCells(value)
}

// Script is the absolute path of the entrypoint.
func (b *Bundle) Script() string {
	return filepath.Join(b.Root, b.Entrypoint)
}
