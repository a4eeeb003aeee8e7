package vm

import (
	"bufio"
	"context"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"

	"picovm/opcode"
)

// readin transfers count bytes from the input stream into memory starting
// at addr. A short read or stream error is fatal.
func (i *Instance) readin(addr, count uint16) error {
	if i.input == nil {
		return errors.New("READIN with no input stream configured")
	}
	buf := make([]byte, count)
	if _, err := io.ReadFull(i.input, buf); err != nil {
		return errors.Wrap(err, "READIN")
	}
	copy(i.Mem[addr:], buf)
	return nil
}

// writeout transfers count bytes from memory starting at addr to the
// output stream.
func (i *Instance) writeout(addr, count uint16) error {
	if i.output == nil {
		return errors.New("WRITEOUT with no output stream configured")
	}
	if _, err := i.output.Write(i.Mem[addr : addr+count]); err != nil {
		return errors.Wrap(err, "WRITEOUT")
	}
	return nil
}

// FIFOPath is the named pipe external producers write single interrupt
// bytes to, matching the upstream INTFIFO constant.
const FIFOPath = "/tmp/picovmint.in"

// interruptByte maps the single bytes a producer writes to the FIFO onto
// the three parallel-port interrupt identities, per defs.h's INTFIFO
// protocol (main.c's vm_forwarder writes a literal 0 on every forwarded
// keystroke; 1 and 2 are reserved for the other two ports).
func interruptByte(b byte) (opcode.InterruptID, bool) {
	switch b {
	case 0:
		return opcode.P0, true
	case 1:
		return opcode.P1, true
	case 2:
		return opcode.P2, true
	default:
		return opcode.None, false
	}
}

// RunFIFOProducer opens path (normally FIFOPath) for reading and posts an
// interrupt to inst for every byte it receives, until ctx is cancelled or
// the pipe is closed. It mirrors the retry loop in main.c's try_get_fifo:
// a failed open (the pipe file not existing yet, for instance) is retried a
// bounded number of times before giving up. The open itself is blocking, so
// on an existing pipe it waits until a writer opens the other end.
func RunFIFOProducer(ctx context.Context, inst *Instance, path string) error {
	var f *os.File
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		f, err = os.OpenFile(path, os.O_RDONLY, 0)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	if err != nil {
		return errors.Wrapf(err, "opening interrupt fifo %s", path)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.Wrap(err, "reading interrupt fifo")
		}
		id, ok := interruptByte(b)
		if !ok {
			continue
		}
		inst.PostInterrupt(id)
	}
}
