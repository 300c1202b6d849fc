/*
shaderc compiles VSL source files to SPIR-V modules. It wraps the
engine/shaderc pipeline (lexer, parser, legaliser, SPIR-V backend) the
way glslc wraps glslang for the engine's GLSL shaders, with input files
compiled across a GOMAXPROCS-bounded worker pool rather than one at a
time.
*/
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/spaghettifunk/anima/engine/core"
	"github.com/spaghettifunk/anima/engine/shaderc"
	"github.com/spaghettifunk/anima/engine/shaderc/spirv"
)

func main() {
	outDir := flag.String("o", "", "output directory for .spv modules (default: alongside each source file)")
	jobs := flag.Int("j", runtime.GOMAXPROCS(0), "number of shaders to compile concurrently")
	flag.Parse()

	inputs := flag.Args()
	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "usage: shaderc [-o dir] [-j n] <file.vsl>...")
		os.Exit(2)
	}

	if *jobs <= 0 {
		*jobs = 1
	}

	failed := compileAll(inputs, *outDir, *jobs)
	if failed {
		os.Exit(1)
	}
}

type job struct {
	path string
}

type result struct {
	path string
	err  error
}

// compileAll compiles every input across numWorkers goroutines, mirroring
// the bounded-pool shape of renderer.WorkerPool but scoped to this
// process's lifetime instead of the engine's frame loop.
func compileAll(inputs []string, outDir string, numWorkers int) bool {
	jobs := make(chan job, len(inputs))
	results := make(chan result, len(inputs))

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- result{path: j.path, err: compileFile(j.path, outDir)}
			}
		}()
	}

	for _, path := range inputs {
		jobs <- job{path: path}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	failed := false
	for r := range results {
		if r.err != nil {
			core.LogError("%s: %v", r.path, r.err)
			failed = true
			continue
		}
		core.LogInfo("compiled %s", r.path)
	}
	return failed
}

func compileFile(path string, outDir string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	words, err := compileSource(string(src))
	if err != nil {
		return err
	}

	outPath := outputPath(path, outDir)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("creating output directory for %s: %w", outPath, err)
	}
	if err := writeSPIRV(outPath, words); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	return nil
}

// compileSource runs one source string through the full pipeline: lex,
// parse, legalise, and lower to a SPIR-V word stream.
func compileSource(src string) ([]uint32, error) {
	lexer := shaderc.NewLexer(src)
	parser := shaderc.NewParser(lexer)
	root, compileErr := parser.Parse()
	if compileErr != nil {
		return nil, compileErr
	}

	hirRoot, compileErr := shaderc.Legalize(root)
	if compileErr != nil {
		return nil, compileErr
	}

	builder := spirv.NewBuilder()
	spirv.Build(builder, hirRoot)
	return builder.Assemble(), nil
}

func outputPath(path, outDir string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".spv"
	if outDir == "" {
		return filepath.Join(filepath.Dir(path), base)
	}
	return filepath.Join(outDir, base)
}

func writeSPIRV(path string, words []uint32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, 4)
	for _, w := range words {
		binary.LittleEndian.PutUint32(buf, w)
		if _, err := f.Write(buf); err != nil {
			return err
		}
	}
	return nil
}
