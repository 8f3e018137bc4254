package main

import (
	"fmt"
	"net/netip"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/atrium-iot/netsvc/base/log"
)

var (
	resolveTimeout time.Duration
	printStatus    bool
	printMetrics   bool
)

func init() {
	rootCmd.AddCommand(resolveCmd)
	flags := resolveCmd.Flags()
	flags.DurationVarP(&resolveTimeout, "timeout", "t", 3*time.Second, "timeout per hostname")
	flags.BoolVar(&printStatus, "status", false, "print the resolver status afterwards")
	flags.BoolVar(&printMetrics, "metrics", false, "print the resolver metrics afterwards")
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <hostname>...",
	Short: "Resolve hostnames and print their addresses",
	Args:  cobra.MinimumNArgs(1),
	RunE:  resolve,
}

type resolveResult struct {
	addr netip.Addr
	err  error
}

func resolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	e, ifi, err := startEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer e.Stop()

	// Retransmission only runs with the link up.
	e.LinkEvents.Submit(currentLink(ifi))

	results := make([]resolveResult, len(args))
	var group errgroup.Group
	for i, host := range args {
		group.Go(func() error {
			tctx, tracer := log.AddTracer(ctx)
			defer tracer.Submit()

			addr, err := e.ResolveBlocking(tctx, host, resolveTimeout)
			results[i] = resolveResult{addr: addr, err: err}
			return nil
		})
	}
	_ = group.Wait()

	var failed int
	for i, host := range args {
		if results[i].err != nil {
			failed++
			fmt.Printf("%s\t%s\n", host, results[i].err)
			continue
		}
		fmt.Printf("%s\t%s\n", host, results[i].addr)
	}

	if printStatus {
		st, err := e.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Println()
		if err := st.Print(os.Stdout, time.Now()); err != nil {
			return err
		}
	}
	if printMetrics {
		fmt.Println()
		e.Metrics().WritePrometheus(os.Stdout)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d hostnames could not be resolved", failed, len(args))
	}
	return nil
}
