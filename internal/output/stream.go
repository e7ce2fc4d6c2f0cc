package output

import (
	"bytes"
	"io"
	"sync"
)

// ToolIndent is the prefix put before each line of build tool output.
const ToolIndent = "    "

// StreamHandler multiplexes stdout and stderr from a build tool,
// with line buffering and ANSI passthrough.
type StreamHandler struct {
	stdout io.Writer
	stderr io.Writer
	mu     sync.Mutex

	// Formatter processes each line before output.
	// If nil, lines pass through unchanged.
	formatter Formatter

	writers []*streamWriter

	// Stats tracking
	stdoutLines int
	stderrLines int
}

// NewStreamHandler creates a handler that writes to the given stdout/stderr.
func NewStreamHandler(stdout, stderr io.Writer) *StreamHandler {
	return &StreamHandler{
		stdout: stdout,
		stderr: stderr,
	}
}

// NewToolStream sends both streams of the named tool to w, indented and
// styled by ForTool(tool).
func NewToolStream(w io.Writer, tool string) *StreamHandler {
	h := NewStreamHandler(w, w)
	h.SetFormatter(&IndentFormatter{Inner: ForTool(tool), Prefix: ToolIndent})
	return h
}

// SetFormatter sets the line formatter.
func (h *StreamHandler) SetFormatter(f Formatter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.formatter = f
}

// Stdout returns a writer that processes lines for stdout.
func (h *StreamHandler) Stdout() io.Writer {
	return h.newWriter(false)
}

// Stderr returns a writer that processes lines for stderr.
func (h *StreamHandler) Stderr() io.Writer {
	return h.newWriter(true)
}

func (h *StreamHandler) newWriter(isStderr bool) *streamWriter {
	w := &streamWriter{handler: h, isStderr: isStderr}
	h.mu.Lock()
	h.writers = append(h.writers, w)
	h.mu.Unlock()
	return w
}

// StdoutLines returns the number of stdout lines processed.
func (h *StreamHandler) StdoutLines() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stdoutLines
}

// StderrLines returns the number of stderr lines processed.
func (h *StreamHandler) StderrLines() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stderrLines
}

// WriteStdout writes a line to stdout after processing.
func (h *StreamHandler) WriteStdout(line string) error {
	return h.writeLine(line, false)
}

// WriteStderr writes a line to stderr after processing.
func (h *StreamHandler) WriteStderr(line string) error {
	return h.writeLine(line, true)
}

func (h *StreamHandler) writeLine(line string, isStderr bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	dst := h.stdout
	if isStderr {
		dst = h.stderr
		h.stderrLines++
	} else {
		h.stdoutLines++
	}

	processedLine := line
	if h.formatter != nil {
		processedLine = h.formatter.ProcessLine(line)
	}

	_, err := dst.Write([]byte(processedLine + "\n"))
	return err
}

// Flush writes out any partial lines still buffered by the handler's
// writers. Call it once the command has exited.
func (h *StreamHandler) Flush() error {
	h.mu.Lock()
	writers := h.writers
	h.mu.Unlock()

	for _, w := range writers {
		if err := w.flush(); err != nil {
			return err
		}
	}
	return nil
}

// streamWriter wraps the handler to implement io.Writer.
type streamWriter struct {
	handler  *StreamHandler
	isStderr bool
	mu       sync.Mutex
	buf      []byte
}

// Write implements io.Writer with line buffering.
// Incomplete lines are buffered until a newline arrives.
func (w *streamWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n = len(p)
	w.buf = append(w.buf, p...)

	for {
		idx := bytes.IndexByte(w.buf, '\n')
		if idx < 0 {
			break
		}

		line := string(bytes.TrimSuffix(w.buf[:idx], []byte("\r")))
		w.buf = w.buf[idx+1:]

		if err := w.handler.writeLine(line, w.isStderr); err != nil {
			return n, err
		}
	}

	return n, nil
}

func (w *streamWriter) flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) == 0 {
		return nil
	}
	line := string(w.buf)
	w.buf = nil
	return w.handler.writeLine(line, w.isStderr)
}
