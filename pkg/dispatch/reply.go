package dispatch

import "fmt"

// MaxReplyLen is the size of the reply buffer, terminator included.
const MaxReplyLen = 128

// replyWriter formats into a fixed buffer. Output beyond MaxReplyLen-1 bytes
// is dropped; the buffer never grows.
type replyWriter struct {
	buf [MaxReplyLen]byte
	n   int
}

// Write implements io.Writer. It always reports len(p) so fmt keeps going.
func (w *replyWriter) Write(p []byte) (int, error) {
	w.n += copy(w.buf[w.n:MaxReplyLen-1], p)
	return len(p), nil
}

func (w *replyWriter) WriteString(s string) {
	w.n += copy(w.buf[w.n:MaxReplyLen-1], s)
}

func (w *replyWriter) Printf(format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}

func (w *replyWriter) String() string {
	return string(w.buf[:w.n])
}
