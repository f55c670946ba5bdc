// Package main provides dg-export, the CLI that serializes a trained
// checkpoint into the inference engine's weight document.
package main

import (
	"log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/boomerchi/dream-go/internal/export"
)

var (
	inputPath  string
	outputPath string
	foldName   string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dg-export",
		Short: "dg-export serializes trained checkpoints for the inference engine",
		Long: `This tool takes a checkpoint (named tensors plus an ordered layer
manifest) and produces the weight document consumed by the inference
engine: batch normalization is folded into the convolution weights,
kernels are reordered to the engine's axis convention, and shared
tensors are emitted once and referenced by ID.`,
		RunE: runExport,
	}

	rootCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Path of the checkpoint JSON file")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Path of the weight document to write")
	rootCmd.Flags().StringVar(&foldName, "fold", "legacy", "Batch-norm fold strategy (legacy|corrected)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log per-layer progress")
	_ = rootCmd.MarkFlagRequired("input")
	_ = rootCmd.MarkFlagRequired("output")

	if err := rootCmd.Execute(); err != nil {
		log.Fatalln(err.Error())
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(verbose)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	fold, err := export.FoldByName(foldName)
	if err != nil {
		return err
	}

	ckpt, err := loadCheckpoint(inputPath)
	if err != nil {
		return err
	}
	logger.Info("checkpoint loaded",
		zap.String("path", inputPath),
		zap.Int("tensors", len(ckpt.Tensors)),
		zap.Int("layers", len(ckpt.Layers)),
	)

	ctx := export.NewContext(
		export.WithFold(fold),
		export.WithLogger(logger),
	)
	if err := ckpt.serialize(ctx); err != nil {
		return err
	}

	doc, err := ctx.Finalize()
	if err != nil {
		return err
	}

	w, err := export.NewDocumentWriter(outputPath)
	if err != nil {
		return err
	}
	if err := w.WriteDocument(doc); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	logger.Info("document written",
		zap.String("path", outputPath),
		zap.Int("layers", len(doc.Layers)),
	)
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}
