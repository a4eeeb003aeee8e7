package vm_test

import (
	"fmt"

	"picovm/asm"
	"picovm/vm"
)

// Shows assembling a tiny program and running it to completion.
func ExampleInstance_Run() {
	rom, err := asm.Assemble(`
.offset #C000h
start:
  load %0, #0005h;
  load %1, #0003h;
  mul  %0, %1;
  halt;
.set #3FFEh
.word start
`)
	if err != nil {
		panic(err)
	}

	i, err := vm.New()
	if err != nil {
		panic(err)
	}
	if err := i.LoadROM(rom); err != nil {
		panic(err)
	}
	i.ResetVector()
	if err := i.Run(); err != nil {
		panic(err)
	}

	fmt.Println(i.Regs[0])
	// Output:
	// 15
}
