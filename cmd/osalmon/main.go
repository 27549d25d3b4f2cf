package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/osal"
	"github.com/wippyai/osal/idmap"
	"github.com/wippyai/osal/metrics"
)

func main() {
	var (
		slots       = flag.Int("slots", 3, "Scheduler slots on the shared timebase")
		period      = flag.Uint("period", 10_000, "Scheduler minor frame in microseconds")
		duration    = flag.Duration("duration", 2*time.Second, "How long to run in plain mode")
		metricsAddr = flag.String("metrics", "", "Serve Prometheus metrics on this address (e.g. :9100)")
		wasmFile    = flag.String("wasm", "", "Load a wasm module as APP")
		callSym     = flag.String("call", "", "Call an exported symbol of the loaded module with integer args")
		interactive = flag.Bool("i", false, "Interactive mode with TUI (default when stdout is a terminal)")
		plain       = flag.Bool("plain", false, "Force plain output")
		verbose     = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	tui := *interactive || (!*plain && term.IsTerminal(int(os.Stdout.Fd())))

	if err := run(options{
		slots:       *slots,
		periodUs:    uint32(*period),
		duration:    *duration,
		metricsAddr: *metricsAddr,
		wasmFile:    *wasmFile,
		callSym:     *callSym,
		callArgs:    flag.Args(),
		tui:         tui,
		verbose:     *verbose,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	slots       int
	periodUs    uint32
	duration    time.Duration
	metricsAddr string
	wasmFile    string
	callSym     string
	callArgs    []string
	tui         bool
	verbose     bool
}

func run(opts options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := zap.NewNop()
	if opts.verbose && !opts.tui {
		l, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		log = l
	}
	defer log.Sync()

	promReg := prometheus.NewRegistry()
	o := osal.NewWithConfig(ctx, &osal.Config{
		Logger:  log,
		Metrics: promReg,
	})
	if err := o.Init(ctx); err != nil {
		return err
	}
	defer func() {
		if err := o.Close(context.Background()); err != nil {
			log.Warn("close failed", zap.Error(err))
		}
	}()

	if opts.metricsAddr != "" {
		srv := metrics.Serve(opts.metricsAddr, promReg)
		defer srv.Close()
		log.Info("serving metrics", zap.String("addr", opts.metricsAddr))
	}

	if opts.wasmFile != "" {
		if err := loadModule(ctx, o, opts); err != nil {
			return err
		}
	}

	d := newDemo(o, log)
	if err := d.start(ctx, opts.slots, opts.periodUs); err != nil {
		return err
	}

	if opts.tui {
		return runInteractive(o, d)
	}

	select {
	case <-ctx.Done():
	case <-time.After(opts.duration):
	}
	printReport(o, d)
	return nil
}

func loadModule(ctx context.Context, o *osal.OS, opts options) error {
	id, err := o.Modules().Load(ctx, "APP", opts.wasmFile)
	if err != nil {
		return fmt.Errorf("load module: %w", err)
	}
	info, err := o.Modules().Info(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("Module %s (%s): %d exported functions\n", info.Name, id, len(info.Symbols))
	for _, s := range info.Symbols {
		fmt.Printf("  %s\n", s)
	}

	if opts.callSym == "" {
		return nil
	}
	sym, err := o.Modules().SymbolLookup(ctx, opts.callSym)
	if err != nil {
		return err
	}
	params := make([]uint64, len(opts.callArgs))
	for i, a := range opts.callArgs {
		v, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
		params[i] = uint64(v)
	}
	res, err := sym.Call(ctx, params...)
	if err != nil {
		return err
	}
	fmt.Printf("%s%v = %v\n", sym.Name, opts.callArgs, res)
	return nil
}

func printReport(o *osal.OS, d *demo) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tNAME\tCREATOR\tREFS\tFIRES")
	for _, s := range o.Registry().Snapshot() {
		fires := ""
		if s.Type == idmap.TypeTimeCB {
			fires = strconv.FormatUint(d.Fires(s.ID), 10)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", s.ID, s.Type, s.Name, s.Creator, s.Refcount, fires)
	}
	w.Flush()

	drained, dropped := d.Counters()
	fmt.Printf("\nTelemetry: %d drained, %d dropped\n", drained, dropped)
}
