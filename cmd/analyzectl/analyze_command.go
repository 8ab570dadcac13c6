package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"media-analyzer/internal/detection"
	"media-analyzer/internal/media"
	"media-analyzer/internal/shared/config"
)

type mediaExtractor interface {
	ExtractVisual(ctx context.Context, path string, maxUnits int) ([]detection.Frame, error)
	ExtractAudio(ctx context.Context, path string, rate int) (detection.Waveform, error)
}

type localReport struct {
	Results []detection.ModalityResult
	Verdict detection.AggregateVerdict
	Elapsed time.Duration
}

func newAnalyzeCommand(loadConfig func() (config.Config, error)) *cobra.Command {
	var noDelay bool

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyze a media file locally and print the verdict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if noDelay {
				cfg.FaceWorkMs = 0
				cfg.VoiceWorkMs = 0
			}

			analyzers := []detection.Analyzer{
				detection.NewFaceAnalyzer(detection.Options{Work: time.Duration(cfg.FaceWorkMs) * time.Millisecond}),
				detection.NewVoiceAnalyzer(detection.Options{Work: time.Duration(cfg.VoiceWorkMs) * time.Millisecond}),
			}
			extractor := media.NewExtractor(cfg.FFmpegBin, cfg.FFprobeBin)

			report, err := analyzeLocal(cmd.Context(), extractor, analyzers, args[0], cfg.MaxFrames, cfg.AudioSampleRate)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderReport(report))
			return nil
		},
	}
	cmd.Flags().BoolVar(&noDelay, "no-delay", false, "Skip the simulated model inference time")
	return cmd
}

func analyzeLocal(ctx context.Context, ex mediaExtractor, analyzers []detection.Analyzer, path string, maxFrames, rate int) (localReport, error) {
	started := time.Now()

	var models detection.ModelState
	loaders := make([]detection.Loader, 0, len(analyzers))
	for _, a := range analyzers {
		if l, ok := a.(detection.Loader); ok {
			loaders = append(loaders, l)
		}
	}
	if err := models.Load(ctx, loaders...); err != nil {
		return localReport{}, err
	}

	frames, err := ex.ExtractVisual(ctx, path, maxFrames)
	if err != nil {
		return localReport{}, err
	}
	audio, err := ex.ExtractAudio(ctx, path, rate)
	if err != nil {
		return localReport{}, err
	}

	in := detection.Input{Frames: frames, Audio: audio}
	results := make([]detection.ModalityResult, 0, len(analyzers))
	for _, a := range analyzers {
		res, err := a.Analyze(ctx, in)
		if err != nil {
			return localReport{}, err
		}
		results = append(results, res)
	}

	verdict, err := detection.Aggregate(results)
	if err != nil {
		return localReport{}, err
	}
	return localReport{Results: results, Verdict: verdict, Elapsed: time.Since(started)}, nil
}

func renderReport(r localReport) string {
	rows := make([][]string, 0, len(r.Results)+1)
	for _, res := range r.Results {
		rows = append(rows, []string{
			string(res.Modality),
			res.ModelName,
			strconv.FormatFloat(res.Confidence, 'f', 2, 64),
			strconv.FormatBool(res.IsAnomalous),
			strconv.Itoa(res.UnitsAnalyzed),
		})
	}
	rows = append(rows, []string{
		"overall",
		r.Verdict.Status,
		strconv.FormatFloat(r.Verdict.Confidence, 'f', 2, 64),
		strconv.FormatBool(r.Verdict.IsDeepfake),
		"",
	})
	table := renderTable(
		[]string{"Modality", "Model", "Confidence", "Anomalous", "Units"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight},
	)
	return fmt.Sprintf("%s\nProcessed in %.1fs", table, r.Elapsed.Seconds())
}
