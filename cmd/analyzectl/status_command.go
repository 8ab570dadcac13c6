package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"media-analyzer/internal/analyses"
	"media-analyzer/internal/shared/server/respond"
)

const defaultServer = "http://localhost:5001"

func newStatusCommand() *cobra.Command {
	var serverURL string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status <analysis-id>",
		Short: "Show the latest ledger record for an analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := fetchStatus(cmd.Context(), http.DefaultClient, serverURL, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}
			fmt.Fprintln(out, renderRecord(rec))
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", defaultServer, "Analyzer service base URL")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw record as JSON")
	return cmd
}

func fetchStatus(ctx context.Context, client *http.Client, serverURL, analysisID string) (analyses.Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := strings.TrimRight(serverURL, "/") + "/analyses/" + url.PathEscape(analysisID)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return analyses.Record{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return analyses.Record{}, fmt.Errorf("fetch status: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return analyses.Record{}, fmt.Errorf("read status: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var envelope respond.ErrorResponse
		if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
			return analyses.Record{}, fmt.Errorf("status %d: %s", resp.StatusCode, envelope.Error.Message)
		}
		return analyses.Record{}, fmt.Errorf("status %d", resp.StatusCode)
	}

	var rec analyses.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return analyses.Record{}, fmt.Errorf("decode status: %w", err)
	}
	return rec, nil
}

func renderRecord(rec analyses.Record) string {
	rows := [][]string{
		{"Analysis", rec.AnalysisID},
		{"Run", rec.RunID},
		{"Status", rec.Status},
		{"Stage", rec.Stage},
		{"Enqueued", rec.EnqueuedAt.Format(time.RFC3339)},
	}
	if rec.CompletedAt != nil {
		rows = append(rows, []string{"Completed", rec.CompletedAt.Format(time.RFC3339)})
	}
	if rec.ErrorCode != "" {
		rows = append(rows, []string{"Error", rec.ErrorCode + ": " + rec.ErrorMessage})
	}
	if rec.Status == analyses.StatusCompleted || rec.Status == analyses.StatusFailed {
		delivery := strconv.FormatBool(rec.Delivered)
		if rec.DeliveryStatus != 0 {
			delivery += " (HTTP " + strconv.Itoa(rec.DeliveryStatus) + ")"
		}
		rows = append(rows, []string{"Delivered", delivery})
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}
