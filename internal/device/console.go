package device

import (
	"bufio"
	"io"
)

// Console is the one concrete device the spec names: it reads standard
// input a single time in full, then serves it to the CPU in BufferLen
// chunks, and prints anything the CPU sends back out as text.
type Console struct {
	in  io.Reader
	out io.Writer

	slurped bool
	backlog []byte
}

// NewConsole wraps in/out for use as a Device. Callers typically pass
// os.Stdin and os.Stdout.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: in, out: out}
}

// Poll reads the entirety of standard input the first time it is called,
// then hands it back BufferLen bytes at a time until exhausted.
func (c *Console) Poll() (data [BufferLen]byte, ok bool) {
	if !c.slurped {
		c.slurped = true
		all, _ := io.ReadAll(bufio.NewReader(c.in))
		c.backlog = all
	}

	if len(c.backlog) == 0 {
		return data, false
	}

	n := copy(data[:], c.backlog)
	c.backlog = c.backlog[n:]
	return data, true
}

// Recv writes the buffer to standard output as text, trimming the
// trailing zero padding a short write leaves behind.
func (c *Console) Recv(data [BufferLen]byte) {
	end := len(data)
	for end > 0 && data[end-1] == 0 {
		end--
	}
	c.out.Write(data[:end])
}
