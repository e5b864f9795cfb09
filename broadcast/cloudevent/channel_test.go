package cloudevent

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/refval/broadcast"
)

func TestPublishDeliversEvent(t *testing.T) {
	type received struct {
		body    []byte
		headers http.Header
	}
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		got <- received{body: body, headers: r.Header.Clone()}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch, err := New(srv.URL, WithSource("test/source"), WithEventType("test.published"))
	require.NoError(t, err)

	message := []byte(`{"name":"artifact"}`)
	require.NoError(t, ch.Publish(context.Background(), message))

	select {
	case r := <-got:
		assert.Equal(t, message, r.body)
		assert.Equal(t, "test/source", r.headers.Get("Ce-Source"))
		assert.Equal(t, "test.published", r.headers.Get("Ce-Type"))
		assert.NotEmpty(t, r.headers.Get("Ce-Id"))
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestPublishUnavailableTarget(t *testing.T) {
	// Reserve a port, then close it so nothing is listening.
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	ch, err := New(target)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = ch.Publish(ctx, []byte("message"))
	assert.ErrorIs(t, err, broadcast.ErrChannelUnavailable)
}

func TestDefaults(t *testing.T) {
	ch, err := New("http://localhost:0")
	require.NoError(t, err)
	assert.Equal(t, DefaultSource, ch.source)
	assert.Equal(t, DefaultEventType, ch.eventType)
}
