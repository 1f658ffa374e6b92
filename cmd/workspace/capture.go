package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"notion-lite/workspace/config"
	"notion-lite/workspace/services"
)

type captureOptions struct {
	URL    string
	UserID string
	Page   string
}

func addCapture(topLevel *cobra.Command) {
	co := &captureOptions{}

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Append a line to a page of a running server",
		Example: `
workspace capture --user $USER_ID "[] Call the dentist @30m"
workspace capture --user $USER_ID --page "Reading List" "# Chapter notes"
`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("requires some content")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if co.URL == "" {
				co.URL = config.Load().CaptureURL
			}
			req := services.CaptureRequest{
				Content:   strings.Join(args, " "),
				UserID:    co.UserID,
				PageTitle: co.Page,
			}
			res, err := postCapture(cmd.Context(), http.DefaultClient, co.URL, req)
			if err != nil {
				_, _ = color.New(color.FgRed, color.Bold).Fprintf(cmd.ErrOrStderr(), "✗ %v\n", err)
				return err
			}
			_, _ = color.New(color.FgGreen, color.Bold).Fprint(cmd.OutOrStdout(), "✓ captured ")
			_, _ = color.New(color.Faint).Fprintf(cmd.OutOrStdout(), "%s on %s\n", res.BlockID, res.PageID)
			return nil
		},
	}

	cmd.Flags().StringVar(&co.URL, "url", "", "server base URL (defaults to CAPTURE_URL)")
	cmd.Flags().StringVar(&co.UserID, "user", os.Getenv("WORKSPACE_USER_ID"), "user id to capture for")
	cmd.Flags().StringVar(&co.Page, "page", services.DefaultCapturePage, "title of the page to append to")
	topLevel.AddCommand(cmd)
}

func postCapture(ctx context.Context, client *http.Client, baseURL string, req services.CaptureRequest) (services.CaptureResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return services.CaptureResponse{}, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(baseURL, "/")+"/api/capture", bytes.NewReader(body))
	if err != nil {
		return services.CaptureResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return services.CaptureResponse{}, fmt.Errorf("capture request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.CaptureResponse{}, err
	}
	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &failure) == nil && failure.Error != "" {
			return services.CaptureResponse{}, fmt.Errorf("server returned %d: %s", resp.StatusCode, failure.Error)
		}
		return services.CaptureResponse{}, fmt.Errorf("server returned %d", resp.StatusCode)
	}

	var res services.CaptureResponse
	if err := json.Unmarshal(data, &res); err != nil {
		return services.CaptureResponse{}, fmt.Errorf("invalid capture response: %w", err)
	}
	return res, nil
}
