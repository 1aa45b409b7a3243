package commands

import (
	"bufio"
	"context"
	"errors"
	"io"
	"lanchat/config"
	"lanchat/datamodel/peer"
	"lanchat/datastore/leveldb"
	"lanchat/helper/timer"
	"lanchat/swarm/node"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const eventQueueSize = 256

// ServeOptions carry the terminal plumbing of a chat session.
type ServeOptions struct {
	In  io.Reader
	Out io.Writer
	// QuitOnEOF ends the session when In is exhausted. Off for non-interactive input, so a node
	// started with stdin at /dev/null keeps running until it is signalled.
	QuitOnEOF bool
}

// RunServe runs an interactive chat session on stdin/stdout until /quit or ctx is cancelled.
func RunServe(ctx context.Context, cfg *config.Config) {
	opts := ServeOptions{
		In:        os.Stdin,
		Out:       os.Stdout,
		QuitOnEOF: isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()),
	}

	if err := Serve(ctx, cfg, opts); err != nil {
		log.Fatalf("Serve failed: %v", err)
	}
}

func Serve(ctx context.Context, cfg *config.Config, opts ServeOptions) error {
	var pidx peer.PeerIndex
	if cfg.DataStore.PeerIndexPath != "" {
		idx, err := leveldb.NewPeerIndex(cfg.DataStore.PeerIndexPath)
		if err != nil {
			return err
		}
		defer idx.Close()
		pidx = idx
	}

	queue := node.NewEventQueue(eventQueueSize)

	n, err := node.New(cfg, pidx, queue)
	if err != nil {
		return err
	}

	console := NewConsole(opts.Out, n)

	if err := n.Start(); err != nil {
		return err
	}
	console.banner(cfg.Network.DiscoveryPort)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg, ctx := errgroup.WithContext(ctx)

	wg.Go(func() error {
		err := timer.RunWithTicker(ctx, &timer.Interval{Duration: time.Second}, console.tick)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	if cfg.Network.MetricsAddress != "" {
		wg.Go(func() error {
			return serveMetrics(ctx, cfg.Network.MetricsAddress, n.Collector())
		})
	}

	// The reader may stay blocked in Read after we return; it only ever hands lines over
	lines := make(chan string)
	go readLines(ctx, opts.In, lines)

	wg.Go(func() error {
		defer cancel()
		eof := false
		for {
			var input <-chan string
			if !eof {
				input = lines
			}

			select {
			case <-ctx.Done():
				return nil
			case e := <-queue.Events():
				console.printEvent(e)
			case line, ok := <-input:
				if !ok {
					if opts.QuitOnEOF {
						return nil
					}
					eof = true
					continue
				}
				if !console.handleLine(ctx, line) {
					return nil
				}
			}
		}
	})

	werr := wg.Wait()

	serr := n.Stop()
	drainEvents(queue, console)

	return errors.Join(werr, serr)
}

func readLines(ctx context.Context, in io.Reader, lines chan<- string) {
	defer close(lines)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warnf("Console input error: %v", err)
	}
}

// drainEvents prints whatever is still queued without waiting for more.
func drainEvents(queue *node.EventQueue, console *Console) {
	for {
		select {
		case e := <-queue.Events():
			console.printEvent(e)
		default:
			return
		}
	}
}

func serveMetrics(ctx context.Context, addr string, collector prometheus.Collector) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collector,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, scancel := context.WithTimeout(context.Background(), time.Second)
		defer scancel()
		srv.Shutdown(sctx)
	}()

	log.Infof("Serving metrics on http://%s/metrics", l.Addr())

	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
