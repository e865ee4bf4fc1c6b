package subgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"juiceWatch/internal/model"
	"juiceWatch/internal/retry"
)

func newTestClient(url string, pageSize int) *Client {
	return NewClient(url, Options{
		Timeout:  time.Second,
		Retry:    retry.Policy{MaxRetries: 2, Backoff: time.Millisecond},
		PageSize: pageSize,
	}, nil)
}

func decodeQuery(t *testing.T, r *http.Request) string {
	t.Helper()
	var body struct {
		Query string `json:"query"`
	}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body.Query
}

func TestPayEventsSince(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		q := decodeQuery(t, r)
		assert.Contains(t, q, "payEvents(")
		assert.Contains(t, q, "timestamp_gt: 1000")

		fmt.Fprint(w, `{"data":{"payEvents":[
			{"project":{"handle":"jb","metadataUri":"QmA"},"amount":"1000000000000000000","projectId":1,"beneficiary":"0xaa","txHash":"0x01","pv":"2","timestamp":1010},
			{"project":{"handle":"jb","metadataUri":"QmA"},"amount":"5","projectId":1,"beneficiary":"0xbb","txHash":"0x02","pv":"2","timestamp":1005}
		]}}`)
	}))
	defer srv.Close()

	events, err := newTestClient(srv.URL, 100).PayEventsSince(context.Background(), 1000)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.FlexInt(1010), events[0].Timestamp)
	assert.Equal(t, "0xbb", events[1].Beneficiary)
}

func TestQueryPaginatesByID(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := decodeQuery(t, r)
		assert.Contains(t, q, "orderBy: id")
		assert.NotContains(t, q, "skip")
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			assert.Contains(t, q, `id_gt: ""`)
			fmt.Fprint(w, `{"data":{"projectCreateEvents":[{"id":"a1","txHash":"0x1","timestamp":1},{"id":"a2","txHash":"0x2","timestamp":2}]}}`)
		default:
			assert.Contains(t, q, `id_gt: "a2"`)
			fmt.Fprint(w, `{"data":{"projectCreateEvents":[{"id":"a3","txHash":"0x3","timestamp":3}]}}`)
		}
	}))
	defer srv.Close()

	events, err := newTestClient(srv.URL, 2).ProjectCreateEventsSince(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, events, 3)
	assert.Equal(t, "a3", events[2].ID)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestQueryPagingBacklogBeyondSkipCap(t *testing.T) {
	const pageSize, total = 1000, 6500
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&calls, 1))
		start := (n - 1) * pageSize
		end := start + pageSize
		if end > total {
			end = total
		}
		rows := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			rows = append(rows, fmt.Sprintf(`{"id":"%06d","txHash":"0x%d","timestamp":%d}`, i, i, 100+i))
		}
		fmt.Fprintf(w, `{"data":{"payEvents":[%s]}}`, strings.Join(rows, ","))
	}))
	defer srv.Close()

	events, err := newTestClient(srv.URL, pageSize).PayEventsSince(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, events, total)
	assert.EqualValues(t, 7, atomic.LoadInt32(&calls))
}

func TestQueryPageWithoutIDIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"payEvents":[{"txHash":"0x1","timestamp":1}]}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 1).PayEventsSince(context.Background(), 0)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestQueryGraphQLErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errors":[{"message":"indexing error"}]}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 10).PayEventsSince(context.Background(), 0)
	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, []string{"indexing error"}, qe.Messages)
}

func TestQueryMissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 10).PayEventsSince(context.Background(), 0)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestQueryRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"data":{"payEvents":[]}}`)
	}))
	defer srv.Close()

	events, err := newTestClient(srv.URL, 10).PayEventsSince(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestQueryDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "bad query")
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 10).PayEventsSince(context.Background(), 0)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestNewStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := decodeQuery(t, r)
		if strings.Contains(q, "projectCreateEvents(") {
			fmt.Fprint(w, `{"data":{"projectCreateEvents":[{"from":"0xcc","txHash":"0x9","timestamp":7}]}}`)
			return
		}
		fmt.Fprint(w, `{"data":{"payEvents":[]}}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 10)
	s, err := NewStream(c, model.StreamProjectCreateEvents)
	require.NoError(t, err)
	assert.Equal(t, model.StreamProjectCreateEvents, s.Name())

	events, err := s.FetchSince(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "0xcc", events[0].Subject())

	_, err = NewStream(c, "transferEvents")
	assert.Error(t, err)
}
