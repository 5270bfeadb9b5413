// Command scriptrun assembles one program file and runs it to completion on a
// local scheduler, printing its output and exit record.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/edirooss/scriptd/internal/bytecode"
	"github.com/edirooss/scriptd/internal/host"
	"github.com/edirooss/scriptd/internal/infrastructure/processmgr"
	"github.com/edirooss/scriptd/pkg/fmtt"
)

const (
	tickMS    = 10
	idleGrace = 50 * time.Millisecond
)

func main() {
	var (
		entry   = flag.String("entry", "", "entry label (default main, else first instruction)")
		cycles  = flag.Int64("cycles", processmgr.DefaultConfig.CyclesPerRun, "cycles per quantum")
		limit   = flag.Int64("limit", 0, "kill the process after this many cycles (0 = unlimited)")
		timeout = flag.Duration("timeout", time.Minute, "give up after this long")
		dump    = flag.Bool("dump", false, "dump the assembled program before running")
		verbose = flag.Bool("verbose", false, "debug logging")
		debug   = flag.Bool("debug-errors", false, "dump error chains in detail")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: scriptrun [flags] file.asm\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	fail := func(err error) {
		fmt.Fprintf(os.Stderr, "scriptrun: %v\n", err)
		if *debug {
			fmtt.FprintErrChainDebug(os.Stderr, err)
		} else {
			fmtt.FprintErrChain(os.Stderr, err)
		}
		os.Exit(1)
	}

	src, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fail(err)
	}
	prog, err := bytecode.Assemble(string(src))
	if err != nil {
		fail(fmt.Errorf("assemble %s: %w", flag.Arg(0), err))
	}
	if *dump {
		spew.Fdump(os.Stderr, prog)
	}

	log := buildLogger(*verbose)
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rec, out, err := run(ctx, log, prog, *entry, *cycles, *limit)
	if err != nil {
		fail(err)
	}

	slices.Reverse(out)
	for _, line := range out {
		fmt.Println(line)
	}

	rec.Output = nil
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(rec)

	if rec.State != processmgr.Halted.String() {
		os.Exit(1)
	}
}

// run drives a private scheduler until the process is gone and returns its
// exit record and full captured output, newest first.
func run(ctx context.Context, log *zap.Logger, prog *bytecode.Program, entry string, cycles, limit int64) (host.ExitRecord, []string, error) {
	sys := host.NewSystem(log, nil)
	defer sys.Close()

	sched := processmgr.New(log, sys, processmgr.Config{CyclesPerRun: cycles, MaxProcs: 1})
	pid, err := sched.Exec(prog, entry, &processmgr.ProcessConfig{Name: "scriptrun", CycleLimit: limit})
	if err != nil {
		return host.ExitRecord{}, nil, err
	}

	for sched.Status(pid).State.Kind != processmgr.Gone {
		if ctx.Err() != nil {
			sched.Kill(pid, "timeout")
		}
		if sched.Run(tickMS) {
			continue
		}
		if sched.Status(pid).State.Kind == processmgr.Gone {
			break
		}
		if sys.PendingTimers() == 0 && sched.Mailbox().Len() == 0 {
			// Asleep with nothing left that could wake it, unless a timer
			// that just fired is still posting.
			select {
			case <-sched.Ready():
			case <-ctx.Done():
			case <-time.After(idleGrace):
				sched.Kill(pid, "deadlock: sleeping with no pending wake")
			}
			continue
		}

		select {
		case <-sched.Ready():
		case <-ctx.Done():
			sched.Kill(pid, "timeout")
		}
	}

	exits := sys.RecentExits(1)
	if len(exits) == 0 {
		return host.ExitRecord{}, nil, fmt.Errorf("pid %d: no exit record", pid)
	}
	return exits[0], sys.Outputs().Read(pid, -1), nil
}

func buildLogger(verbose bool) *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	logConfig.OutputPaths = []string{"stderr"}
	if verbose {
		logConfig.Level.SetLevel(zap.DebugLevel)
	} else {
		logConfig.Level.SetLevel(zap.WarnLevel)
	}
	return zap.Must(logConfig.Build())
}
