package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	serverrun "github.com/ppdx999/tiny64/internal/cmd/server"
	cfgpkg "github.com/ppdx999/tiny64/internal/config"
	"github.com/ppdx999/tiny64/internal/filter"
	"github.com/ppdx999/tiny64/pkg/tiny64"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tiny64",
		Short: "Time-ordered compact unique IDs",
		Long: "Tiny64 generates 64-bit, lexically time-sortable identifiers rendered\n" +
			"as 11-character URL-safe strings. Run with no arguments to print one ID.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return generate(cmd.Context(), 1)
		},
	}

	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Generate one or more IDs",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, _ := cmd.Flags().GetInt("count")
			if n < 1 {
				return fmt.Errorf("--count must be positive")
			}
			return generate(cmd.Context(), n)
		},
	}
	newCmd.Flags().IntP("count", "n", 1, "Number of IDs to generate")
	rootCmd.AddCommand(newCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode <id>...",
		Short: "Decode IDs into their timestamp, sequence and random fields",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				id, err := tiny64.Parse(arg)
				if err != nil {
					return err
				}
				printDecoded(arg, id)
			}
			return nil
		},
	}
	rootCmd.AddCommand(decodeCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Read IDs from stdin and print decoded fields for those matching a filter",
		Long: "Reads one encoded ID per line from stdin. With --filter, only IDs whose\n" +
			"decoded fields satisfy the CEL expression are printed. Variables:\n" +
			"ts_ms, sequence, random, age_ms, now_ms, text.",
		RunE: func(cmd *cobra.Command, args []string) error {
			expr, _ := cmd.Flags().GetString("filter")
			f, err := filter.New(expr)
			if err != nil {
				return fmt.Errorf("invalid filter: %w", err)
			}
			sc := bufio.NewScanner(os.Stdin)
			for sc.Scan() {
				line := sc.Text()
				if line == "" {
					continue
				}
				id, err := tiny64.Parse(line)
				if err != nil {
					fmt.Fprintf(os.Stderr, "skipping %q: %v\n", line, err)
					continue
				}
				if f.Match(id) {
					printDecoded(line, id)
				}
			}
			return sc.Err()
		},
	}
	inspectCmd.Flags().String("filter", "", "CEL expression over decoded fields")
	rootCmd.AddCommand(inspectCmd)

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the tiny64 HTTP server",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
				cfg.DataDir = v
			}
			if v, _ := cmd.Flags().GetString("lock-dir"); v != "" {
				cfg.LockDir = v
			}
			if v, _ := cmd.Flags().GetInt("lock-timeout-ms"); v > 0 {
				cfg.LockTimeoutMs = v
			}
			if cmd.Flags().Changed("reserve") {
				cfg.Reserve.Enabled, _ = cmd.Flags().GetBool("reserve")
			}
			if v, _ := cmd.Flags().GetString("log-level"); v != "" {
				cfg.LogLevel = v
			}
			if v, _ := cmd.Flags().GetString("log-format"); v != "" {
				cfg.LogFormat = v
			}
			httpAddr, _ := cmd.Flags().GetString("http")
			if err := serverrun.Run(cmd.Context(), serverrun.Options{
				HTTPAddr: httpAddr,
				Config:   cfg,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	serverStartCmd.Flags().String("config", os.Getenv("TINY64_CONFIG"), "Path to JSON config file")
	serverStartCmd.Flags().String("http", "", "HTTP listen address (overrides config)")
	serverStartCmd.Flags().String("data-dir", "", "Data directory for the reservation store")
	serverStartCmd.Flags().String("lock-dir", "", "Cross-process lock directory")
	serverStartCmd.Flags().Int("lock-timeout-ms", 0, "Max wait for the cross-process lock")
	serverStartCmd.Flags().Bool("reserve", false, "Enable the collision-reservation store")
	serverStartCmd.Flags().String("log-level", os.Getenv("TINY64_LOG_LEVEL"), "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", os.Getenv("TINY64_LOG_FORMAT"), "Log format: text|json")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves config file then env overlay; flags are applied by the
// callers on top.
func loadConfig(path string) (cfgpkg.Config, error) {
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfgpkg.Config{}, err
	}
	cfgpkg.FromEnv(&cfg)
	return cfg, nil
}

// generate builds a one-shot generator from the environment and prints n
// IDs. With TINY64_LOCK_DIR set, concurrent invocations on this host share
// one sequence counter, which is what makes the CLI safe in shell loops.
func generate(ctx context.Context, n int) error {
	cfg, err := loadConfig(os.Getenv("TINY64_CONFIG"))
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	opts := []tiny64.Option{}
	if cfg.MachineBits > 0 {
		opts = append(opts, tiny64.WithMachineID(uint16(cfg.MachineID), cfg.MachineBits))
	}
	if cfg.LockDir != "" {
		if err := os.MkdirAll(cfg.LockDir, 0o755); err != nil {
			return err
		}
		opts = append(opts, tiny64.WithSharedState(cfg.LockDir, cfg.LockTimeout()))
	}
	g, err := tiny64.NewGenerator(opts...)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		s, err := g.NextString(ctx)
		if err != nil {
			return err
		}
		fmt.Println(s)
	}
	return nil
}

func printDecoded(encoded string, id tiny64.ID) {
	f := id.Fields()
	fmt.Printf("%s\tts_ms=%d\ttime=%s\tsequence=%d\trandom=%d\n",
		encoded, f.TimestampMs, id.Time().Format(time.RFC3339Nano), f.Sequence, f.Random)
}
