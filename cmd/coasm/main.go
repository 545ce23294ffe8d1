// Command coasm assembles Coalescent Core source text into a flat ROM
// image: text -> tokens -> module -> resolved bytes.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jakintosh/cohost/internal/asm"
)

func main() {
	var source, output string
	flag.StringVar(&source, "s", ".", "file with source code")
	flag.StringVar(&source, "source", ".", "file with source code")
	flag.StringVar(&output, "o", "", "file for compiled output (required)")
	flag.StringVar(&output, "output", "", "file for compiled output (required)")
	flag.Parse()

	logger := log.New(os.Stderr, "", 0)

	if output == "" {
		logger.Fatal("coasm: --output is required")
	}

	src, err := os.ReadFile(source)
	if err != nil {
		logger.Fatalf("coasm: couldn't read source: %v", err)
	}

	rom, err := assemble(string(src))
	if err != nil {
		logger.Fatalf("coasm: %v", err)
	}

	if err := os.WriteFile(output, rom, 0o644); err != nil {
		logger.Fatalf("coasm: couldn't write output: %v", err)
	}
	fmt.Fprintf(os.Stderr, "coasm: wrote %d bytes to %s\n", len(rom), output)
}

// assemble runs the full pipeline against an empty library: coasm
// compiles one module at a time with no cross-module import resolution,
// matching the original assemble binary's single-source-file scope.
func assemble(src string) ([]byte, error) {
	toks, err := asm.Tokenize(src)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	mod, err := asm.ParseModule(toks)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	ctx, err := asm.NewContext(asm.NewLibrary(), mod)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	out, err := ctx.Assemble()
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	return out, nil
}
