package logging

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterFiltersByChannelAndLevel(t *testing.T) {
	b := NewLogBroadcaster()
	go b.Run()
	defer b.Shutdown()

	delivery := b.NewClient(AppliedFilters{Channel: ChannelDelivery, Level: slog.LevelWarn})
	require.NoError(t, b.RegisterClient(delivery))

	writer := NewSSEWriterFor(b)
	_, _ = writer.Write([]byte(`{"time":"t","level":"INFO","channel":"delivery","msg":"too quiet"}`))
	_, _ = writer.Write([]byte(`{"time":"t","level":"WARN","channel":"storage","msg":"other channel"}`))
	_, _ = writer.Write([]byte(`{"time":"t","level":"WARN","channel":"delivery","msg":"fallback injected","renderId":"r1"}`))

	select {
	case msg := <-delivery.Channel:
		assert.Contains(t, string(msg), "fallback injected")
		assert.Contains(t, string(msg), `"renderId":"r1"`)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a delivery warning")
	}

	select {
	case msg := <-delivery.Channel:
		t.Fatalf("unexpected message %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestChanneledLoggerSetChannelLevel(t *testing.T) {
	logger := NewDiscardLogger()
	require.NoError(t, logger.SetChannelLevel(ChannelStorage, slog.LevelDebug))
	assert.Equal(t, "DEBUG", logger.GetChannelLevels()[string(ChannelStorage)])
	assert.Error(t, logger.SetChannelLevel(Channel("nope"), slog.LevelDebug))
}
