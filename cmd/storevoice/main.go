// Command storevoice is a terminal client for the storefront realtime
// voice assistant: it streams microphone audio to the backend, plays the
// assistant's replies, and supports text-only turns.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ketzcommerce/storevoice/pkg/catalog"
	"github.com/ketzcommerce/storevoice/pkg/realtime/audio"
	"github.com/ketzcommerce/storevoice/pkg/realtime/session"
	"github.com/ketzcommerce/storevoice/pkg/store"
)

const (
	defaultRealtimeURL = "ws://127.0.0.1:8000/api/v1/realtime/ws"
	defaultCatalogURL  = "http://127.0.0.1:8000/api/v1"
)

type appConfig struct {
	RealtimeURL  string
	CatalogURL   string
	ReadyTimeout time.Duration
	Verbose      bool
	NoPlayback   bool
	DumpAudio    string
}

func parseAppConfig(args []string, getenv func(string) string) (appConfig, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	envOr := func(name, fallback string) string {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			return v
		}
		return fallback
	}

	cfg := appConfig{}
	fs := flag.NewFlagSet("storevoice", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.RealtimeURL, "realtime-url", envOr("STOREVOICE_REALTIME_URL", defaultRealtimeURL), "realtime websocket endpoint")
	fs.StringVar(&cfg.CatalogURL, "catalog-url", envOr("STOREVOICE_CATALOG_URL", defaultCatalogURL), "catalog REST base URL")
	fs.DurationVar(&cfg.ReadyTimeout, "ready-timeout", 5*time.Second, "how long a text turn waits for the server ready signal")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "enable debug logging")
	fs.BoolVar(&cfg.NoPlayback, "no-playback", false, "discard assistant audio instead of playing it")
	fs.StringVar(&cfg.DumpAudio, "dump-audio", "", "write received assistant audio to this WAV file on exit")

	if err := fs.Parse(args); err != nil {
		return appConfig{}, err
	}
	if strings.TrimSpace(cfg.RealtimeURL) == "" {
		return appConfig{}, fmt.Errorf("realtime-url must not be empty")
	}
	if strings.TrimSpace(cfg.CatalogURL) == "" {
		return appConfig{}, fmt.Errorf("catalog-url must not be empty")
	}
	return cfg, nil
}

// printingLog wraps the in-memory log and echoes finalized entries to the
// terminal as they land.
type printingLog struct {
	inner *store.MemoryLog
	out   io.Writer
}

func (l *printingLog) Append(role, content string) store.Message {
	msg := l.inner.Append(role, content)
	fmt.Fprintf(l.out, "[%s] %s\n", role, content)
	return msg
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}

func run(ctx context.Context, cfg appConfig, in io.Reader, out io.Writer) error {
	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	catalogClient := catalog.NewClient(cfg.CatalogURL)
	resolver := catalog.NewResolver(catalogClient, catalog.WithLogger(logger.Named("resolver")))

	log := &printingLog{inner: store.NewMemoryLog(), out: out}
	products := store.NewMemoryProducts()
	cart := store.NewMemoryCart()

	opts := []session.Option{
		session.WithSource(newFFmpegSource()),
		session.WithMessageLog(log),
		session.WithProductStore(products),
		session.WithCartStore(cart),
		session.WithResolver(resolver),
		session.WithLogger(logger.Named("session")),
		session.WithReadyTimeout(cfg.ReadyTimeout),
		session.WithHooks(session.Hooks{
			OnState: func(st session.State) {
				fmt.Fprintf(out, "-- session %s\n", st)
			},
			OnImageReady: func(imageID string) {
				fmt.Fprintf(out, "-- image %s processed\n", imageID)
			},
			OnError: func(err error) {
				fmt.Fprintf(out, "-- error: %v\n", err)
			},
		}),
	}

	var sink audio.Sink
	if !cfg.NoPlayback {
		player, err := newFFplaySink()
		if err != nil {
			return err
		}
		sink = player
	}
	if cfg.DumpAudio != "" {
		if sink == nil {
			sink = audio.NewQueueSink(nil)
		}
		sink = newDumpSink(sink, cfg.DumpAudio)
	}
	if sink != nil {
		defer sink.Close()
		opts = append(opts, session.WithSink(sink))
	}

	sess := session.New(cfg.RealtimeURL, opts...)
	defer sess.Stop()

	fmt.Fprintln(out, "storevoice: /voice to talk, /stop to hang up, /cart, /products, /image <id>, /quit")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			switch {
			case line == "/quit" || line == "/exit":
				return nil
			case line == "/voice":
				if err := sess.Start(ctx); err != nil {
					fmt.Fprintf(out, "-- voice start failed: %v\n", err)
				}
			case line == "/stop":
				sess.Stop()
			case line == "/cart":
				items := cart.Items()
				if len(items) == 0 {
					fmt.Fprintln(out, "-- cart is empty")
				}
				for _, item := range items {
					fmt.Fprintf(out, "-- %dx %s (%s)\n", item.Quantity, item.Name, item.ProductID)
				}
			case line == "/products":
				tool, found := products.Current()
				if len(found) == 0 {
					fmt.Fprintln(out, "-- no products yet")
				}
				for _, p := range found {
					fmt.Fprintf(out, "-- %s: $%.2f (%s, via %s)\n", p.Name, p.Price, p.ID, tool)
				}
			case strings.HasPrefix(line, "/image "):
				imageID := strings.TrimSpace(strings.TrimPrefix(line, "/image "))
				if err := sess.SendImage(imageID); err != nil {
					fmt.Fprintf(out, "-- image notify failed: %v\n", err)
				}
			default:
				if err := sess.SendText(ctx, line); err != nil {
					fmt.Fprintf(out, "-- send failed: %v\n", err)
				}
			}
		}
	}
}

func main() {
	_ = godotenv.Load()

	cfg, err := parseAppConfig(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storevoice: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "storevoice: %v\n", err)
		os.Exit(1)
	}
}
