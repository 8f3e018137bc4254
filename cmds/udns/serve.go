package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/atrium-iot/netsvc/base/log"
	"github.com/atrium-iot/netsvc/service/udns"
)

var (
	linkPollInterval time.Duration
	statusInterval   time.Duration
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().DurationVar(&linkPollInterval, "link-poll", 5*time.Second, "interval for checking the interface addresses")
	serveCmd.Flags().DurationVar(&statusInterval, "status-interval", 0, "log the resolver status in this interval (0 disables)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the resolver and answer mDNS queries for the own hostname",
	RunE:  serve,
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, ifi, err := startEngine(ctx, cfg)
	if err != nil {
		return err
	}
	log.Infof("udns: serving as %s", cfg.Hostname)

	var linkChanges atomic.Uint64
	e.LinkEvents.AddCallback("count link changes", func(udns.LinkEvent) (bool, error) {
		linkChanges.Add(1)
		return false, nil
	})

	group, gctx := errgroup.WithContext(ctx)

	// Report link changes to the engine.
	group.Go(func() error {
		var last udns.LinkEvent
		ticker := time.NewTicker(linkPollInterval)
		defer ticker.Stop()

		for {
			if ev := currentLink(ifi); !ev.Equal(last) {
				e.LinkEvents.Submit(ev)
				last = ev
			}

			select {
			case <-ticker.C:
			case <-gctx.Done():
				return nil
			}
		}
	})

	if statusInterval > 0 {
		group.Go(func() error {
			ticker := time.NewTicker(statusInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					logStatus(gctx, e, linkChanges.Load())
				case <-gctx.Done():
					return nil
				}
			}
		})
	}

	group.Go(func() error {
		select {
		case <-gctx.Done():
		case <-e.Done():
		}
		log.Infof(
			"udns: shutting down (%d warnings, %d errors logged)",
			log.TotalWarningLogLines(),
			log.TotalErrorLogLines()+log.TotalCriticalLogLines(),
		)
		e.Stop()
		return nil
	})

	return group.Wait()
}

func logStatus(ctx context.Context, e *udns.Engine, linkChanges uint64) {
	st, err := e.Status(ctx)
	if err != nil {
		return
	}
	log.Infof(
		"udns: state %s after %d link changes, %d workers, %d cached (%d/%d bytes), %d aliases, %d pending",
		st.State,
		linkChanges,
		len(e.Manager().Running()),
		len(st.Cache),
		st.CacheSize,
		st.CacheBudget,
		len(st.Aliases),
		len(st.Pending),
	)
}
