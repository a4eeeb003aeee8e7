package main

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"picovm/vm"
)

// dumpRegisters prints every register in the "%N = 0xVVVV; " form the -d
// flag produces upstream, stopping at the first write failure and naming
// the register it was writing when that happened.
func dumpRegisters(i *vm.Instance, w io.Writer) error {
	for n, v := range i.Regs {
		if _, err := fmt.Fprintf(w, "%%%d = 0x%x; ", n, v); err != nil {
			return errors.Wrapf(err, "dumping register %%%d", n)
		}
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return errors.Wrap(err, "dumping registers")
	}
	return nil
}

// dumpMemory writes the full 64 KiB memory image to w, for the -D flag.
func dumpMemory(i *vm.Instance, w io.Writer) error {
	if _, err := w.Write(i.Mem[:]); err != nil {
		return errors.Wrap(err, "dumping memory image")
	}
	return nil
}
