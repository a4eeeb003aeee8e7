// Command picovm is the picovm assembler and virtual machine front end. Run
// with -a -f prog.asm to assemble, or -v -f prog.rom to execute; see the
// root command's flag help for the rest.
package main
