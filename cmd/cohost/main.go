// Command cohost loads a Coalescent Core ROM image and runs it, driving
// the execute -> check_dmas -> check_devices tick loop and wiring a
// console device on the identifier reserved for it.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jakintosh/cohost/internal/core"
	"github.com/jakintosh/cohost/internal/device"
)

func main() {
	var rom string
	var debug bool
	flag.StringVar(&rom, "r", "", "ROM image to load (required)")
	flag.StringVar(&rom, "rom", "", "ROM image to load (required)")
	flag.BoolVar(&debug, "d", false, "enter single-step debug mode")
	flag.BoolVar(&debug, "debug", false, "enter single-step debug mode")
	flag.Parse()

	logger := log.New(os.Stderr, "", 0)
	if rom == "" {
		logger.Fatal("cohost: --rom is required")
	}

	image, err := os.ReadFile(rom)
	if err != nil {
		logger.Fatalf("cohost: couldn't load rom: %v", err)
	}

	cpu := core.New()
	if err := cpu.LoadROM(image); err != nil {
		logger.Fatalf("cohost: %v", err)
	}

	console := device.NewConsole(os.Stdin, os.Stdout)
	var consoleID [core.DeviceIdentifierLen]byte // all-zero: reserved for console
	if _, err := cpu.ConnectDevice(consoleID); err != nil {
		logger.Fatalf("cohost: %v", err)
	}
	registry := device.Registry{consoleID: console}

	if debug {
		runDebug(cpu, registry)
		return
	}
	for cpu.Err == nil {
		cpu.Execute()
		checkDMAs(cpu)
		device.Tick(cpu, registry)
	}
	if cpu.Err != nil {
		fmt.Fprintln(os.Stderr, cpu.Err)
	}
}

// checkDMAs reads each slot's request bit. No concrete DMA peripheral is
// specified, so the payload is inspected only to demonstrate the
// REQ_BIT contract named in spec.md; nothing consumes it further.
func checkDMAs(cpu *core.CPU) {
	for i := range cpu.DMA {
		slot := cpu.DMA[i]
		if slot.Status&core.DMAReqBit == 0 {
			continue
		}
		end := int(slot.Address) + int(slot.BufferLen)
		if end > core.MemorySize {
			continue
		}
		_ = cpu.Memory[slot.Address:end]
	}
}

// runDebug reuses the teacher's n/r/b<line> interaction shape
// (vm/run.go's RunProgramDebugMode), folding in the original's
// draw()-style per-step state print: memory page around PC, the three
// stacks, and the hold register.
func runDebug(cpu *core.CPU, registry device.Registry) {
	fmt.Print("Commands:\n\tn or next: execute next instruction\n\tr or run: run program\n\tb or break <line>: break on line (or remove break on line)\n\n")

	draw(cpu)

	reader := bufio.NewReader(os.Stdin)
	waitForInput := true
	breakAtLines := make(map[int]struct{})
	lastBreak := -1

	for cpu.Err == nil {
		line := ""
		if waitForInput {
			fmt.Print("->")
			line, _ = reader.ReadString('\n')
			line = trimLine(line)
		} else if _, broke := breakAtLines[int(cpu.PC)]; broke && lastBreak != int(cpu.PC) {
			fmt.Println("breakpoint")
			draw(cpu)
			waitForInput = true
			lastBreak = int(cpu.PC)
			continue
		}

		switch {
		case !waitForInput || line == "n" || line == "next":
			lastBreak = -1
			cpu.Execute()
			checkDMAs(cpu)
			device.Tick(cpu, registry)
			if waitForInput {
				draw(cpu)
			}
		case line == "r" || line == "run":
			waitForInput = false
		case len(line) > 0 && line[0] == 'b':
			parseBreak(line, breakAtLines)
		}
	}
	fmt.Println(cpu.Err)
}

func parseBreak(line string, breakAtLines map[int]struct{}) {
	var n int
	if _, err := fmt.Sscanf(line, "b %d", &n); err != nil {
		if _, err := fmt.Sscanf(line, "break %d", &n); err != nil {
			fmt.Println("unknown line number:", err)
			return
		}
	}
	if _, ok := breakAtLines[n]; ok {
		delete(breakAtLines, n)
	} else {
		breakAtLines[n] = struct{}{}
	}
}

func trimLine(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

const debugPageSize = 16

// draw clears the terminal and prints the memory page around PC, the
// decoded current instruction, the three stacks and hold register,
// matching original_source/src/bin/cohost.rs::draw.
func draw(cpu *core.CPU) {
	fmt.Print("\033[2J")

	fmt.Println()
	fmt.Println("Memory and PC")
	fmt.Println("=============")
	fmt.Println()

	pageStart := (int(cpu.PC) / debugPageSize) * debugPageSize
	cursor := int(cpu.PC) % debugPageSize
	for i := 0; i < debugPageSize; i++ {
		addr := pageStart + i
		b := cpu.Memory[addr]
		if i == cursor {
			fmt.Printf("> %#08X %02X    %s\n", addr, b, core.Decode(b))
		} else {
			fmt.Printf("  %#08X %02X\n", addr, b)
		}
	}
	fmt.Println()

	fmt.Println("Stacks")
	fmt.Println("======")
	fmt.Println()
	fmt.Printf("DATA | LEN(%03d) | % X\n", cpu.Data.Len(), cpu.Data.Bytes())
	fmt.Printf("SWAP | LEN(%03d) | % X\n", cpu.Swap.Len(), cpu.Swap.Bytes())
	fmt.Printf("RTRN | LEN(%03d) | % X\n", cpu.Ret.Len(), cpu.Ret.Bytes())
	fmt.Printf("HOLD |  8B REG  | % X\n", cpu.Hold.Pop(8))
	fmt.Println()

	fmt.Print("ENTER >>")
	var discard [1]byte
	os.Stdin.Read(discard[:])
}
