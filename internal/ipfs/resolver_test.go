package ipfs

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"juiceWatch/internal/model"
)

func TestCID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"QmHash", "QmHash"},
		{"ipfs://QmHash", "QmHash"},
		{"/ipfs/QmHash", "QmHash"},
		{"  ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CID(tt.in), tt.in)
	}
}

func TestGatewayURL(t *testing.T) {
	assert.Equal(t, "https://ipfs.io/ipfs/QmLogo", GatewayURL("https://ipfs.io/", "https://jbx.mypinata.cloud/ipfs/QmLogo"))
	assert.Equal(t, "https://ipfs.io/ipfs/QmLogo", GatewayURL("https://ipfs.io", "QmLogo"))
	assert.Equal(t, "", GatewayURL("https://ipfs.io", ""))
}

func TestResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ipfs/QmMeta", r.URL.Path)
		fmt.Fprint(w, `{"name":"JuiceboxDAO","description":"Funding","logoUri":"ipfs://QmLogo","extra":1}`)
	}))
	defer srv.Close()

	meta, err := NewResolver(srv.URL, time.Second, nil).Resolve(context.Background(), "ipfs://QmMeta")
	require.NoError(t, err)
	assert.Equal(t, model.ProjectMetadata{Name: "JuiceboxDAO", Description: "Funding", LogoURI: "ipfs://QmLogo"}, meta)
}

func TestResolveEmptyReference(t *testing.T) {
	meta, err := NewResolver("http://unused.invalid", time.Second, nil).Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, model.ProjectMetadata{}, meta)
}

func TestResolveNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewResolver(srv.URL, time.Second, nil).Resolve(context.Background(), "QmGone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>gateway timeout</html>`)
	}))
	defer srv.Close()

	_, err := NewResolver(srv.URL, time.Second, nil).Resolve(context.Background(), "QmBad")
	assert.Error(t, err)
}

func TestResolveCachesByCID(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(10 * time.Millisecond)
		fmt.Fprint(w, `{"name":"Cached"}`)
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, time.Second, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			meta, err := r.Resolve(context.Background(), "QmSame")
			assert.NoError(t, err)
			assert.Equal(t, "Cached", meta.Name)
		}()
	}
	wg.Wait()

	_, err := r.Resolve(context.Background(), "ipfs://QmSame")
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
