// Package cli implements the companion-memory CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/companion-memory/internal/config"
	"github.com/rcliao/companion-memory/internal/embedding"
	"github.com/rcliao/companion-memory/internal/logging"
	"github.com/rcliao/companion-memory/internal/memory"
	"github.com/rcliao/companion-memory/internal/metrics"
	"github.com/rcliao/companion-memory/internal/session"
	"github.com/rcliao/companion-memory/internal/store"
)

var (
	dbPath     string
	configPath string
	formatFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "companion-memory",
	Short: "Tiered memory for a companion character",
	Long: "Working, episodic and semantic memory with session telemetry. " +
		"SQLite-backed, single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $COMPANION_MEMORY_DB or ~/.companion-memory/memory.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

// app wires the components every command needs.
type app struct {
	cfg     *config.Config
	store   *store.SQLiteStore
	logger  *zap.Logger
	metrics *metrics.Collector
	memory  *memory.Manager
	session *session.Recorder
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

// openApp opens the store and builds the memory and session layers.
// Metrics are registered on reg when it is non-nil.
func openApp(reg prometheus.Registerer) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	s, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	var mc *metrics.Collector
	if reg != nil {
		mc = metrics.NewCollector("companion_memory", reg)
	}

	embedder := embedding.New(cfg.Embedding)
	ranker, err := memory.NewRanker(cfg.Retrieval.Ranker, embedder)
	if err != nil {
		s.Close()
		return nil, err
	}
	opts := []memory.Option{
		memory.WithLogger(logger),
		memory.WithMetrics(mc),
		memory.WithRanker(ranker),
	}
	if embedder != nil {
		opts = append(opts, memory.WithEmbedder(embedder))
	}

	return &app{
		cfg:     cfg,
		store:   s,
		logger:  logger,
		metrics: mc,
		memory:  memory.NewManager(s, cfg.Memory, opts...),
		session: session.NewRecorder(s, cfg.Session,
			session.WithLogger(logger), session.WithMetrics(mc)),
	}, nil
}

func (a *app) Close() {
	a.store.Close()
	a.logger.Sync()
}

func mustOpenApp() *app {
	a, err := openApp(nil)
	if err != nil {
		exitErr("open store", err)
	}
	return a
}

// readContent returns the positional args joined, or piped stdin.
func readContent(args []string) string {
	if len(args) > 0 {
		return strings.Join(args, " ")
	}
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			exitErr("read stdin", err)
		}
		return string(b)
	}
	return ""
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// printResult writes v as indented JSON, or calls text for --format text.
func printResult(w io.Writer, v any, text func(io.Writer)) {
	if formatFlag == "text" && text != nil {
		text(w)
		return
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
