// Command redirects resolves the go:redirect-from annotations of the kernel
// sources and patches the redirect table of a linked kernel image.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	rootDir string
	verbose bool

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "redirects",
	Short:         "Resolve go:redirect-from annotations in the kernel sources",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		config.Encoding = "console"
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}

		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of redirect annotations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		redirects, err := scanRedirects(rootDir)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d", len(redirects))
		return nil
	},
}

var populateTableCmd = &cobra.Command{
	Use:   "populate-table <image>",
	Short: "Write the resolved redirect addresses into the kernel image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return populateTable(rootDir, args[0])
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".", "kernel module root folder")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(countCmd, populateTableCmd)
}

// scanRedirects collects the redirects declared below the kernel folder of
// the module rooted at root.
func scanRedirects(root string) ([]*redirect, error) {
	kernelDir := filepath.Join(root, "kernel")
	if info, err := os.Stat(kernelDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s: not a kernel root folder", root)
	}

	modPath, err := modulePath(root)
	if err != nil {
		return nil, err
	}

	goFiles, err := collectGoFiles(kernelDir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", kernelDir, err)
	}

	for i, goFile := range goFiles {
		if goFiles[i], err = filepath.Rel(root, goFile); err != nil {
			return nil, err
		}
	}

	redirects, err := findRedirects(root, modPath, goFiles)
	if err != nil {
		return nil, err
	}

	for _, r := range redirects {
		logger.Debug("found redirect", zap.String("src", r.src), zap.String("dst", r.dst))
	}
	return redirects, nil
}

func populateTable(root, imgFile string) error {
	redirects, err := scanRedirects(root)
	if err != nil {
		return err
	}

	img, err := openKernelImage(imgFile)
	if err != nil {
		return err
	}

	if err = img.writeTable(redirects); err != nil {
		return err
	}

	logger.Info("populated redirect table",
		zap.String("image", imgFile),
		zap.Int("redirects", len(redirects)))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[redirects] error: %s\n", err)
		os.Exit(1)
	}
}
