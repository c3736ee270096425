package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			fmt.Fprint(w, `{"city":"Reykjavik","country":"Iceland","isp":"Example ISP"}`)
		}))
	defer srv.Close()

	c := NewClient(Opts{BaseURL: srv.URL})
	got := c.Lookup(context.Background(), "1.2.3.4")
	require.Equal(t, "Reykjavik, Iceland, Example ISP", got)
	require.Equal(t, "/json/1.2.3.4", gotPath)
}

func TestLookupDropsEmptyFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"city":"","country":"Iceland","isp":""}`)
		}))
	defer srv.Close()

	c := NewClient(Opts{BaseURL: srv.URL})
	require.Equal(t, "Iceland", c.Lookup(context.Background(), "1.2.3.4"))
}

func TestLookupFailuresAreEmpty(t *testing.T) {
	t.Run("non-200", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			}))
		defer srv.Close()

		c := NewClient(Opts{BaseURL: srv.URL})
		require.Empty(t, c.Lookup(context.Background(), "1.2.3.4"))
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		c := NewClient(Opts{BaseURL: srv.URL})
		require.Empty(t, c.Lookup(context.Background(), "1.2.3.4"))
	})

	t.Run("garbage body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "not json")
			}))
		defer srv.Close()

		c := NewClient(Opts{BaseURL: srv.URL})
		require.Empty(t, c.Lookup(context.Background(), "1.2.3.4"))
	})
}
