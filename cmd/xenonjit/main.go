// Command xenonjit loads a Xbox 360 XEX2 executable and runs its entry
// point against the PPC interpreter or the AArch64 JIT.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/xyproto/xenonjit/arena"
	"github.com/xyproto/xenonjit/executor"
	"github.com/xyproto/xenonjit/jit"
	"github.com/xyproto/xenonjit/kernel"
	"github.com/xyproto/xenonjit/lower"
	"github.com/xyproto/xenonjit/ppc"
	"github.com/xyproto/xenonjit/xex"
)

const versionString = "xenonjit 1.0.0"

// Config holds the parsed command-line options, mirroring flapc's
// CommandContext (cli.go): one struct built once from flag.FlagSet and
// threaded through the rest of the run.
type Config struct {
	Path            string
	Mode            string
	MaxInstructions int
	Verbose         bool
	Quiet           bool
}

func parseMode(s string) (executor.Mode, error) {
	switch s {
	case "interpret":
		return executor.ModeInterpret, nil
	case "jit":
		return executor.ModeJIT, nil
	default:
		return 0, fmt.Errorf("unsupported mode: %s (supported: interpret, jit)", s)
	}
}

func main() {
	var (
		versionFlag = flag.Bool("version", false, "print version information and exit")
		verbose     = flag.Bool("v", false, "verbose mode (trace loading, lowering, and compiled blocks)")
		quiet       = flag.Bool("q", false, "suppress kernel-dispatch trace output and the final retired-instructions summary")
		mode        = flag.String("mode", "interpret", "execution mode: interpret or jit")
		maxInsns    = flag.Int("max-instructions", 1_000_000, "stop after this many retired instructions")
	)
	flag.Parse()

	if *versionFlag {
		fmt.Println(versionString)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: xenonjit [flags] <file.xex>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := Config{
		Path:            args[0],
		Mode:            *mode,
		MaxInstructions: *maxInsns,
		Verbose:         *verbose,
		Quiet:           *quiet,
	}

	if err := run(cfg); err != nil {
		log.Fatalf("xenonjit: %v", err)
	}
}

func run(cfg Config) error {
	execMode, err := parseMode(cfg.Mode)
	if err != nil {
		return err
	}

	if cfg.Verbose {
		ppc.Verbose = true
		lower.Verbose = true
		jit.Verbose = true
	}

	f, err := os.Open(cfg.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.Path, err)
	}
	defer f.Close()

	module, err := xex.Load(f)
	if err != nil {
		return fmt.Errorf("load %s: %w", cfg.Path, err)
	}

	if cfg.Verbose {
		log.Printf("loaded %s: entry=%#08x base=%#08x image=%d bytes",
			cfg.Path, module.EntryPoint, module.BaseAddress, len(module.Image))
	}

	mem := arena.New()
	if err := mem.Init(); err != nil {
		return fmt.Errorf("init guest arena: %w", err)
	}
	defer mem.Shutdown()

	if err := module.MapInto(mem); err != nil {
		return fmt.Errorf("map image: %w", err)
	}

	var dispatchOut = io.Discard
	if !cfg.Quiet {
		dispatchOut = os.Stderr
	}
	dispatch := kernel.NewLoggingDispatcher(dispatchOut)

	exec := executor.New(mem, dispatch, execMode == executor.ModeJIT)

	resolved, variables, unresolved := module.InstallImports(mem, exec.ThunkTable())
	if cfg.Verbose {
		log.Printf("imports: %d resolved, %d variable, %d unresolved", resolved, variables, unresolved)
	}

	thread := exec.CreateThread(0)
	executed, err := exec.Execute(thread, module.EntryPoint, execMode, cfg.MaxInstructions)
	if err != nil {
		return fmt.Errorf("execute entry point: %w", err)
	}

	if !cfg.Quiet {
		fmt.Printf("retired %d instructions, exit r3=%#x\n", executed, thread.R[3])
	}
	return nil
}
