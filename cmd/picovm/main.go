// Command picovm assembles and runs picovm assembly programs: a single
// flat command line, no subcommands, mirroring the upstream C binary's
// getopt-driven -a/-v mode switch.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"picovm/asm"
	"picovm/opcode"
	"picovm/vm"
)

var (
	asmMode    bool
	vmMode     bool
	disasmMode bool
	inFile     string
	outFile    string
	stepSleep  int
	showSteps  bool
	dumpRegs   bool
	dumpMem    bool
	execStats  bool
	noRawIO    bool
)

func romOutputName(in string) string {
	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	return "./" + base + ".rom"
}

func runAssembler() error {
	if inFile == "" {
		return errors.New("assembler mode requires -f")
	}
	src, err := os.ReadFile(inFile)
	if err != nil {
		return errors.Wrapf(err, "reading %s", inFile)
	}
	rom, symbols, err := asm.AssembleWithSymbols(string(src))
	if err != nil {
		return err
	}
	out := outFile
	if out == "" {
		out = romOutputName(inFile)
	}
	if err := vm.SaveROMFile(out, rom); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "assembled %d bytes (%d symbols) to %s\n", len(rom), len(symbols), out)
	return nil
}

// runDisassembler renders a raw ROM image back to mnemonic text, one
// instruction per line, using asm.Disassemble's decode loop — the real
// implementation the upstream disassembler never got around to.
func runDisassembler() error {
	if inFile == "" {
		return errors.New("disassemble mode requires -f")
	}
	rom, err := vm.LoadROMFile(inFile)
	if err != nil {
		return err
	}

	w := os.Stdout
	if outFile != "" {
		f, ferr := os.Create(outFile)
		if ferr != nil {
			return errors.Wrapf(ferr, "creating %s", outFile)
		}
		defer f.Close()
		w = f
	}

	for pc := 0; pc < len(rom); {
		next, text := asm.Disassemble(rom, pc)
		fmt.Fprintf(w, "%#06x: %s\n", opcode.ROMBase+pc, text)
		if next <= pc {
			break
		}
		pc = next
	}
	return nil
}

func runVM() (err error) {
	if inFile == "" {
		return errors.New("vm mode requires -f")
	}
	rom, err := vm.LoadROMFile(inFile)
	if err != nil {
		return err
	}

	stdout := bufio.NewWriter(os.Stdout)
	defer stdout.Flush()

	opts := []vm.Option{
		vm.Input(bufio.NewReader(os.Stdin)),
		vm.Output(stdout),
		vm.WithTicker(stepSleep),
	}
	if showSteps {
		opts = append(opts, vm.WithTrace(func(ip uint16, op opcode.Op) {
			fmt.Fprintf(os.Stderr, "%#04x: %#02x\n", ip, byte(op))
		}))
	}

	i, err := vm.New(opts...)
	if err != nil {
		return err
	}
	if err := i.LoadROM(rom); err != nil {
		return err
	}
	i.ResetVector()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		select {
		case <-sigCh:
			i.RequestHalt()
		case <-ctx.Done():
		}
	}()

	go func() {
		if ferr := vm.RunFIFOProducer(ctx, i, vm.FIFOPath); ferr != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "interrupt fifo producer stopped: %v\n", ferr)
		}
	}()

	var tearDown func()
	if !noRawIO {
		tearDown, err = setRawIO()
		if err == nil {
			defer tearDown()
		}
	}

	start := time.Now()
	runErr := i.Run()
	if execStats {
		delta := time.Since(start)
		n := i.InstructionCount()
		fmt.Fprintf(os.Stderr, "executed %d instructions in %v (%.3f MHz)\n",
			n, delta, float64(n)/delta.Seconds()/1e6)
	}
	if runErr != nil {
		return runErr
	}

	if dumpRegs {
		if derr := dumpRegisters(i, os.Stdout); derr != nil {
			return derr
		}
	}
	if dumpMem {
		dest := outFile
		if dest == "" {
			dest = "./vm.dump"
		}
		f, ferr := os.Create(dest)
		if ferr != nil {
			return errors.Wrap(ferr, "creating memory dump file")
		}
		defer f.Close()
		fmt.Fprintf(os.Stderr, "memory contents dumped to: %s\n", dest)
		if derr := dumpMemory(i, f); derr != nil {
			return derr
		}
	}
	return nil
}

func main() {
	root := &cobra.Command{
		Use:   "picovm",
		Short: "Assembler and virtual machine for the picovm instruction set",
		RunE: func(cmd *cobra.Command, args []string) error {
			modes := 0
			for _, m := range []bool{asmMode, vmMode, disasmMode} {
				if m {
					modes++
				}
			}
			switch {
			case modes > 1:
				return errors.New("specify only one of -a, -v or --disasm")
			case asmMode:
				return runAssembler()
			case vmMode:
				return runVM()
			case disasmMode:
				return runDisassembler()
			default:
				return errors.New("specify a mode: -a (assemble), -v (run) or --disasm")
			}
		},
	}

	root.Flags().BoolVarP(&asmMode, "asm", "a", false, "run picovm in assembler mode")
	root.Flags().BoolVarP(&vmMode, "vm", "v", false, "run picovm in vm mode")
	root.Flags().BoolVar(&disasmMode, "disasm", false, "disassemble a ROM image back to mnemonic text")
	root.Flags().StringVarP(&inFile, "file", "f", "", "input `filepath`")
	root.Flags().StringVarP(&outFile, "output", "o", "", "output `filepath`")
	root.Flags().IntVarP(&stepSleep, "sleep", "s", 0, "when running in vm mode, milliseconds between steps")
	root.Flags().BoolVarP(&showSteps, "steps", "S", false, "when running in vm mode, display current IP and opcode per step")
	root.Flags().BoolVarP(&dumpRegs, "dump-registers", "d", false, "dump registers upon exit")
	root.Flags().BoolVarP(&dumpMem, "dump-memory", "D", false, "dump the memory image upon exit")
	root.Flags().BoolVarP(&execStats, "stats", "x", false, "print execution statistics upon exit")
	root.Flags().BoolVar(&noRawIO, "noraw", false, "disable raw terminal IO in vm mode")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
