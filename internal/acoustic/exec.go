package acoustic

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
)

// ExecModel runs an external inference process per window: raw
// little-endian PCM on stdin, a JSON array of log-probability rows on
// stdout. This mirrors how out-of-process recognizer backends are wired
// elsewhere in the daemon family; the engine stays agnostic of the
// model runtime on the other side.
type ExecModel struct {
	cmd     []string
	symbols int
	mu      sync.Mutex
}

// NewExec parses the backend command line. The command must be non-empty.
func NewExec(command string, symbols int) (*ExecModel, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("%w: parse acoustic command: %v", ErrInit, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: acoustic command is empty", ErrInit)
	}
	if symbols <= 1 {
		return nil, fmt.Errorf("%w: need at least one symbol plus blank, got %d", ErrInit, symbols)
	}
	return &ExecModel{cmd: args, symbols: symbols}, nil
}

// Symbols returns the expected row width.
func (m *ExecModel) Symbols() int { return m.symbols }

// Infer feeds the window to the backend process and decodes its rows.
// Calls are serialized; concurrent sessions queue on the backend.
func (m *ExecModel) Infer(window []int16) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pcm := make([]byte, len(window)*2)
	for i, s := range window {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}

	command := exec.Command(m.cmd[0], m.cmd[1:]...)
	command.Stdin = bytes.NewReader(pcm)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return nil, fmt.Errorf("%w: %v: %s", ErrRun, err, stderr.String())
	}

	var rows [][]float32
	if err := json.Unmarshal(stdout.Bytes(), &rows); err != nil {
		return nil, fmt.Errorf("%w: decode backend output: %v", ErrRun, err)
	}
	for i, row := range rows {
		if len(row) != m.symbols {
			return nil, fmt.Errorf("%w: row %d has %d entries, want %d", ErrShape, i, len(row), m.symbols)
		}
	}
	return rows, nil
}
