package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/companion-memory/internal/companion"
)

func init() {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the companion event loop on stdin",
		Long: `Read events from stdin, one per line, inside a passive session.
Plain text is a finished user utterance. Commands:

  /expr <expression>    expression changed (neutral, happy, sad, surprised, thinking, speaking, listening)
  /speech, /silence     user started or stopped speaking
  /amp <v>              voice amplitude sample
  /head <v>             head pose sample
  /attention <v>        attention estimate
  /engagement <v>       engagement estimate
  /say <text>           make the companion speak
  /stats                print memory and session statistics
  /quit                 end the session and consolidate

EOF behaves like /quit.`,
		Args: cobra.NoArgs,
		Run:  runRun,
	}

	cmd.Flags().String("metrics-addr", "", "Serve prometheus metrics on this address (default from config)")

	RootCmd.AddCommand(cmd)
}

// errQuit ends the input loop.
var errQuit = errors.New("quit")

// parseLine turns one input line into an event. A nil event with a nil error
// means the line is a local command handled by the loop (or blank).
func parseLine(line string) (companion.Event, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	if !strings.HasPrefix(line, "/") {
		return companion.UtteranceFinished{Text: line}, nil
	}

	name, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	value := func() (float64, error) {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return 0, fmt.Errorf("/%s needs a number: %w", name, err)
		}
		return v, nil
	}

	switch name {
	case "quit", "exit":
		return nil, errQuit
	case "stats":
		return nil, nil
	case "speech":
		return companion.SpeechDetected{}, nil
	case "silence":
		return companion.SilenceDetected{}, nil
	case "say":
		if arg == "" {
			return nil, fmt.Errorf("/say needs text")
		}
		return companion.Speak{Text: arg}, nil
	case "expr":
		e, err := companion.ParseExpression(arg)
		if err != nil {
			return nil, err
		}
		return companion.ExpressionChanged{Expression: e}, nil
	case "amp", "head", "attention", "engagement":
		v, err := value()
		if err != nil {
			return nil, err
		}
		switch name {
		case "amp":
			return companion.Amplitude{Value: v}, nil
		case "head":
			return companion.HeadPose{Value: v}, nil
		case "attention":
			return companion.Attention{Value: v}, nil
		default:
			return companion.Engagement{Value: v}, nil
		}
	}
	return nil, fmt.Errorf("unknown command /%s", name)
}

func runRun(cmd *cobra.Command, args []string) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := openApp(reg)
	if err != nil {
		exitErr("open store", err)
	}
	defer a.Close()

	addr, _ := cmd.Flags().GetString("metrics-addr")
	if addr == "" {
		addr = a.cfg.Metrics.Addr
	}

	out := cmd.OutOrStdout()
	coord := companion.New(a.memory, a.session,
		companion.WithLogger(a.logger),
		companion.WithMetrics(a.metrics),
		companion.WithSpeaker(companion.SpeakerFunc(func(_ context.Context, text string) error {
			_, err := fmt.Fprintf(out, "companion: %s\n", text)
			return err
		})),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := coord.Start(ctx); err != nil {
		exitErr("start session", err)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(cmd.InOrStdin())
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return coord.Run(gctx)
	})
	if addr != "" {
		srv := &http.Server{Addr: addr, Handler: metricsMux(reg), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			a.logger.Info("metrics listening", zap.String("addr", addr))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		err := inputLoop(gctx, coord, lines, out)
		if errors.Is(err, errQuit) {
			stop()
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("run failed", zap.Error(err))
	}

	res, err := coord.Stop(context.Background())
	if err != nil {
		exitErr("stop", err)
	}
	printResult(out, res, func(w io.Writer) {
		fmt.Fprintf(w, "consolidated: %d semantic, %d episodic\n", res.Semantic, res.Episodic)
	})
}

func inputLoop(ctx context.Context, coord *companion.Coordinator, lines <-chan string, out io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return errQuit
			}
			ev, err := parseLine(line)
			if errors.Is(err, errQuit) {
				return errQuit
			}
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			if ev == nil {
				if strings.TrimSpace(line) == "/stats" {
					printResult(out, coord.Stats(ctx), nil)
				}
				continue
			}
			if err := coord.Do(ctx, ev); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			switch ev.(type) {
			case companion.UtteranceFinished, companion.Speak:
				// The stdout speaker finishes as soon as the line is written.
				if err := coord.Do(ctx, companion.SpeechFinished{}); err != nil && ctx.Err() != nil {
					return ctx.Err()
				}
			}
		}
	}
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}
