package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mahira-clipper/internal/config"
	clog "mahira-clipper/internal/log"
)

var (
	paths  config.Paths
	store  *config.JSONStore
	logger *slog.Logger

	flagHome    string // value of --home flag
	flagVerbose bool   // value of --verbose flag
)

func main() {
	rootCmd.PersistentFlags().StringVar(&flagHome, "home", "", "application root holding pipeline/, projects/ and api_config.json (default $"+config.HomeEnv+" or the executable directory)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	// never print messages
	rootCmd.SilenceErrors = true

	rootCmd.PersistentPreRunE = initClipper

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("clipper failed", "err", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "clipper",
	Short:        "Turn long videos into short vertical clips with the pipeline worker",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print build information",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("clipper: version info not available")
			return
		}

		fmt.Printf("home:    %s\n", paths.Root)
		fmt.Printf("clipper: %s\n", info.Main.Version)
		fmt.Printf("go:      %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:  %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:    %s\n", s.Value)
			}
		}
	},
}

func initClipper(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	verbose := flagVerbose || os.Getenv(config.DebugEnv) != ""
	logger = clog.New(verbose)
	slog.SetDefault(logger)

	root := flagHome
	if root == "" {
		root = config.DefaultRoot()
	}
	paths = config.ResolvePaths(root)
	store = config.NewJSONStore(paths.ConfigFile)

	logger.Debug("resolved paths", "root", paths.Root, "worker", paths.WorkerScript, "projects", paths.ProjectsDir)
	return nil
}

// loadConfig returns the stored config, or defaults with a warning when it is unreadable.
func loadConfig() map[string]any {
	cfg, err := store.Get()
	if err != nil {
		logger.Warn("config unreadable, using defaults", "path", paths.ConfigFile, "error", err)
		return config.Defaults()
	}
	return cfg
}
