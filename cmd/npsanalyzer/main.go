package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"npsanalyzer/internal/logger"
	"npsanalyzer/pkg/config"
	"npsanalyzer/pkg/dataset"
	"npsanalyzer/pkg/loader"
	"npsanalyzer/pkg/nps"
	"npsanalyzer/pkg/visualization"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	inputDir := flag.String("input", "", "Dataset root directory (study/series/image files)")
	roiFile := flag.String("rois", "", "YAML file with the ROI rectangles of each image")
	outputFile := flag.String("output", "", "Report file (overrides output.reportFile)")
	numCores := flag.Int("cores", 0, "Number of series processed in parallel (overrides processing.numCores)")
	initConfig := flag.Bool("init-config", false, "Write a default configuration file and exit")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			logger.WithError(err).Fatal("Failed to write default configuration")
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *inputDir == "" || *roiFile == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if *numCores > 0 {
		cfg.Processing.NumCores = *numCores
	}
	if *outputFile != "" {
		cfg.Output.ReportFile = *outputFile
	}
	logger.SetVerbose(cfg.Output.Verbose)

	fmt.Println("================================")
	fmt.Println("NOISE POWER SPECTRUM ANALYSIS")
	fmt.Println("================================")

	hierarchy, err := dataset.Scan(*inputDir, cfg.Input.Extensions, cfg.Input.Exclude)
	if err != nil {
		logger.WithError(err).Fatal("Failed to scan dataset")
	}
	assignments, err := dataset.LoadROIAssignments(*roiFile)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load ROI assignments")
	}

	params := &nps.Params{
		Analysis: cfg.Analysis(),
		NumCores: cfg.Processing.NumCores,
		Source:   loader.NewFileLoader(),
	}
	if cfg.Output.Save2DNPS {
		previewDir := cfg.Output.PreviewDir
		if !filepath.IsAbs(previewDir) {
			previewDir = filepath.Join(filepath.Dir(cfg.Output.ReportFile), previewDir)
		}
		params.Previews = visualization.NewPreviewer(previewDir, cfg.Output.PreviewSize)
	}

	analyzer, err := nps.NewAnalyzer(params)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create analyzer")
	}

	report, runErr := analyzer.Run(hierarchy, assignments)
	if report != nil {
		if err := nps.WriteReport(report, cfg.Output.ReportFile); err != nil {
			logger.WithError(err).Fatal("Failed to write report")
		}
	}

	metrics := analyzer.GetMetrics()
	fmt.Printf("\nAnalysis finished in %.2f seconds\n", metrics.Elapsed.Seconds())
	fmt.Printf("Report saved to: %s\n\n", cfg.Output.ReportFile)
	fmt.Printf("Series processed:  %d\n", metrics.SeriesProcessed)
	fmt.Printf("Series failed:     %d\n", metrics.SeriesFailed)
	fmt.Printf("Images processed:  %d\n", metrics.ImagesProcessed)
	fmt.Printf("ROIs processed:    %d\n", metrics.ROIsProcessed)
	fmt.Printf("Unmatched entries: %d\n", metrics.UnmatchedROIs)
	fmt.Printf("Spacing fallbacks: %d\n", metrics.SpacingFallbacks)
	fmt.Printf("Cores used:        %d\n", cfg.Processing.NumCores)

	if runErr != nil {
		logger.WithError(runErr).Error("Analysis completed with failures")
		os.Exit(1)
	}
}
