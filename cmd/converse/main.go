package main

import (
	"bufio"
	"context"
	_ "embed"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"converse/internal/articulation"
	"converse/internal/config"
	"converse/internal/domain"
	"converse/internal/engine"
	"converse/internal/logging"
	"converse/internal/perception"
	"converse/internal/store"
	"converse/internal/tactile"
)

//go:embed travel.yaml
var demoDomain []byte

var (
	// Global flags
	verbose    bool
	configPath string
	domainPath string
	storePath  string
	dialogueID string
	resume     bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "converse",
	Short: "converse - issue-based dialogue manager",
	Long: `converse is a task-oriented dialogue manager built on the
information-state approach: questions under discussion, shared commitments,
task plans, grounding feedback and negotiation over alternatives.

Run without arguments to start the interactive demo over the built-in
travel domain, or point --domain at your own library file.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(cmd.Context())
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an interactive dialogue",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(cmd.Context())
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay <script-file>",
	Short: "Replay a scripted dialogue (one user utterance per line)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReplay(cmd.Context(), args[0])
	},
}

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Manage dialogue checkpoints",
}

var checkpointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved checkpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		infos, err := st.List(dialogueID)
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Println("No checkpoints.")
			return nil
		}
		for _, info := range infos {
			fmt.Printf("%6d  %-20s %-12s %s\n",
				info.ID, info.DialogueID, info.Label, info.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var checkpointDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid checkpoint id %q", args[0])
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		return st.Delete(id)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().StringVarP(&domainPath, "domain", "d", "", "path to domain library yaml")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "path to checkpoint database")
	rootCmd.PersistentFlags().StringVar(&dialogueID, "dialogue", "default", "dialogue id for checkpoints")
	runCmd.Flags().BoolVar(&resume, "resume", false, "resume from the latest checkpoint")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replayCmd)
	checkpointCmd.AddCommand(checkpointListCmd)
	checkpointCmd.AddCommand(checkpointDeleteCmd)
	rootCmd.AddCommand(checkpointCmd)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if domainPath != "" {
		cfg.Domain.LibraryPath = domainPath
	}
	if storePath != "" {
		cfg.Store.Path = storePath
	}
	return cfg, nil
}

// buildEngine wires the full stack: domain registry (file or embedded
// demo), simulated device, keyword NLU and template NLG.
func buildEngine(cfg config.Config) (*engine.Engine, *domain.Registry, error) {
	var reg *domain.Registry
	var err error
	if cfg.Domain.LibraryPath != "" {
		reg, err = domain.LoadLibrary(cfg.Domain.LibraryPath)
	} else {
		reg, err = domain.ParseLibrary(demoDomain)
	}
	if err != nil {
		return nil, nil, err
	}

	dev := &tactile.SimDevice{Declare: reg.Postconditions}
	eng := engine.New(cfg, reg, dev, perception.NewKeywordInterpreter(), articulation.NewTemplateGenerator())
	return eng, reg, nil
}

func runInteractive(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := logging.Initialize(".converse", cfg.Logging); err != nil {
		return err
	}

	eng, _, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	if resume && cfg.Store.Path != "" {
		st, serr := store.Open(cfg.Store.Path)
		if serr != nil {
			return serr
		}
		is, lerr := st.LoadLatest(dialogueID)
		st.Close()
		if lerr != nil {
			logger.Warn("no checkpoint to resume", zap.Error(lerr))
		} else {
			eng.Restore(is)
			fmt.Println("(resumed from checkpoint)")
		}
	}

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Hot reload: a library edit takes effect at the next turn.
	if cfg.Domain.LibraryPath != "" && cfg.Domain.WatchReload {
		watcher, werr := domain.NewWatcher(cfg.Domain.LibraryPath, eng.SwapRegistry)
		if werr != nil {
			logger.Warn("domain watcher unavailable", zap.Error(werr))
		} else {
			if werr := watcher.Start(ctx); werr != nil {
				logger.Warn("domain watcher failed to start", zap.Error(werr))
			} else {
				defer watcher.Stop()
			}
		}
	}

	outputs, err := eng.Start(ctx)
	if err != nil {
		return err
	}
	printOutputs(outputs)

	scanner := bufio.NewScanner(os.Stdin)
	for !eng.Ended() {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		select {
		case <-ctx.Done():
			return saveOnExit(cfg, eng)
		default:
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		outputs, err := eng.ProcessTurn(ctx, line)
		if err != nil {
			logger.Error("turn failed", zap.Error(err))
			fmt.Println("sys: Something went wrong on my side; let's try that again.")
			continue
		}
		printOutputs(outputs)
	}
	return saveOnExit(cfg, eng)
}

func runReplay(parent context.Context, scriptPath string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := logging.Initialize(".converse", cfg.Logging); err != nil {
		return err
	}

	eng, _, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	script, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	outputs, err := eng.Start(ctx)
	if err != nil {
		return err
	}
	printOutputs(outputs)

	for _, line := range strings.Split(string(script), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fmt.Printf("> %s\n", line)
		outputs, err := eng.ProcessTurn(ctx, line)
		if err != nil {
			return fmt.Errorf("turn %q failed: %w", line, err)
		}
		printOutputs(outputs)
		if eng.Ended() {
			break
		}
	}
	return saveOnExit(cfg, eng)
}

func saveOnExit(cfg config.Config, eng *engine.Engine) error {
	if cfg.Store.Path == "" {
		return nil
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		logger.Warn("checkpoint store unavailable", zap.Error(err))
		return nil
	}
	defer st.Close()
	if _, err := st.Save(dialogueID, "exit", eng.Snapshot()); err != nil {
		logger.Warn("checkpoint save failed", zap.Error(err))
	}
	return nil
}

func printOutputs(outputs []string) {
	for _, out := range outputs {
		fmt.Printf("sys: %s\n", out)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
