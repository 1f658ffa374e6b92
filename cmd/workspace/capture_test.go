package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notion-lite/workspace/services"
)

func captureServer(t *testing.T, status int, body any) (*httptest.Server, *services.CaptureRequest) {
	t.Helper()
	var got services.CaptureRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/capture", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestPostCapture(t *testing.T) {
	blockID := uuid.New()
	srv, got := captureServer(t, http.StatusOK, services.CaptureResponse{Success: true, BlockID: blockID, PageID: "inbox"})

	req := services.CaptureRequest{Content: "[] Call the dentist", UserID: uuid.NewString(), PageTitle: "Inbox"}
	res, err := postCapture(context.Background(), srv.Client(), srv.URL+"/", req)
	require.NoError(t, err)
	assert.Equal(t, blockID, res.BlockID)
	assert.Equal(t, "inbox", res.PageID)
	assert.Equal(t, req, *got)
}

func TestPostCapture_ServerError(t *testing.T) {
	srv, _ := captureServer(t, http.StatusBadRequest, map[string]string{"error": "Content and userId are required"})

	_, err := postCapture(context.Background(), srv.Client(), srv.URL, services.CaptureRequest{Content: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "Content and userId are required")
}

func TestCaptureCommand(t *testing.T) {
	srv, got := captureServer(t, http.StatusOK, services.CaptureResponse{Success: true, BlockID: uuid.New(), PageID: "reading-list"})
	user := uuid.NewString()

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"capture", "--url", srv.URL, "--user", user, "--page", "Reading List", "#", "Chapter", "notes"})
	require.NoError(t, root.Execute())

	assert.Equal(t, "# Chapter notes", got.Content)
	assert.Equal(t, user, got.UserID)
	assert.Equal(t, "Reading List", got.PageTitle)
	assert.Contains(t, out.String(), "reading-list")
}

func TestSweepCommandValidatesFlags(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"sweep", "--user", "nope", "--page", "next"})
	assert.Error(t, root.Execute())
}
