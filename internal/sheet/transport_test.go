package sheet_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/geosync/internal/sheet"
)

func TestHTTPTransportReadRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rows", r.URL.Path)
		_, _ = w.Write([]byte(`{"rows": [["Acme", "1 Front St"], ["Beta", "2 Bay St"]]}`))
	}))
	defer srv.Close()

	tr := sheet.NewHTTPTransport(srv.URL, 5*time.Second)
	rows, err := tr.ReadRows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Acme", rows[0][0])
}

func TestHTTPTransportReadRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rows/3", r.URL.Path)
		_, _ = w.Write([]byte(`{"cells": ["Acme", "1 Front St", "Customer"]}`))
	}))
	defer srv.Close()

	tr := sheet.NewHTTPTransport(srv.URL, 5*time.Second)
	cells, err := tr.ReadRow(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme", "1 Front St", "Customer"}, cells)
}

func TestHTTPTransportSendsAPIKey(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"rows": []}`))
	}))
	defer srv.Close()

	tr := sheet.NewHTTPTransport(srv.URL, 5*time.Second, sheet.WithAPIKey("sheet-secret"))
	_, err := tr.ReadRows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer sheet-secret", auth)
}

func TestHTTPTransportOmitsAuthWithoutAPIKey(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"rows": []}`))
	}))
	defer srv.Close()

	tr := sheet.NewHTTPTransport(srv.URL, 5*time.Second)
	_, err := tr.ReadRows(context.Background())
	require.NoError(t, err)
	assert.Empty(t, auth)
}

func TestHTTPTransportUpdateCells(t *testing.T) {
	var got map[string]map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/rows/2", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tr := sheet.NewHTTPTransport(srv.URL, 5*time.Second)
	err := tr.UpdateCells(context.Background(), 2, map[int]string{
		sheet.ColLat: "43.6",
		sheet.ColLng: "-79.3",
	})
	require.NoError(t, err)
	assert.Equal(t, "43.6", got["cells"]["4"])
	assert.Equal(t, "-79.3", got["cells"]["5"])
}

func TestHTTPTransportErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"429 is rate limited", http.StatusTooManyRequests, "", sheet.ErrRateLimited},
		{
			"403 resource exhausted is rate limited",
			http.StatusForbidden,
			`{"code": "RESOURCE_EXHAUSTED", "message": "write quota exceeded"}`,
			sheet.ErrRateLimited,
		},
		{"404 is not found", http.StatusNotFound, "", sheet.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			tr := sheet.NewHTTPTransport(srv.URL, 5*time.Second)
			err := tr.UpdateCells(context.Background(), 1, map[int]string{sheet.ColNotes: "x"})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHTTPTransportPlainForbiddenNotRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code": "PERMISSION_DENIED", "message": "nope"}`))
	}))
	defer srv.Close()

	tr := sheet.NewHTTPTransport(srv.URL, 5*time.Second)
	err := tr.UpdateCells(context.Background(), 1, map[int]string{sheet.ColNotes: "x"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, sheet.ErrRateLimited)
}
