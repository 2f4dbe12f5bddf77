package calc

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/toolchain/pkg/config"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	// Уникальная in-memory база на каждый тест, чтобы история не протекала
	svc, err := NewService(config.CalcConfig{
		HistoryDSN:   fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		HistoryLimit: 10,
	})
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	return svc
}

func decodePayload(t *testing.T, payload string) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &out))
	return out
}

func TestService_Add(t *testing.T) {
	svc := newTestService(t)

	payload, err := svc.Handle(context.Background(), "Add", map[string]string{"A": "25", "B": "15"})
	require.NoError(t, err)

	out := decodePayload(t, payload)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "add", out["operation"])
	assert.Equal(t, 40.0, out["result"])
}

func TestService_Subtract(t *testing.T) {
	svc := newTestService(t)

	payload, err := svc.Handle(context.Background(), "Subtract", map[string]string{"A": "40", "B": "10"})
	require.NoError(t, err)

	out := decodePayload(t, payload)
	assert.Equal(t, 30.0, out["result"])
}

func TestService_InvalidParameters(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Handle(context.Background(), "Add", map[string]string{"A": "x", "B": "15"})
	require.Error(t, err)
	// Ошибка обязана эхом содержать полученные значения
	assert.Contains(t, err.Error(), `A="x"`)
	assert.Contains(t, err.Error(), `B="15"`)
}

func TestService_MissingParameters(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Handle(context.Background(), "Add", map[string]string{"A": "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid parameters")
}

func TestService_HistoryRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Handle(ctx, "Add", map[string]string{"A": "1", "B": "2"})
	require.NoError(t, err)
	_, err = svc.Handle(ctx, "Subtract", map[string]string{"A": "10", "B": "4"})
	require.NoError(t, err)

	payload, err := svc.Handle(ctx, "History", nil)
	require.NoError(t, err)

	out := decodePayload(t, payload)
	assert.Equal(t, 2.0, out["count"])

	entries := out["entries"].([]any)
	require.Len(t, entries, 2)
	// Новые первыми
	first := entries[0].(map[string]any)
	assert.Equal(t, "subtract", first["operation"])
}

func TestService_Clear(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Handle(ctx, "Add", map[string]string{"A": "1", "B": "2"})
	require.NoError(t, err)

	payload, err := svc.Handle(ctx, "Clear", nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, decodePayload(t, payload)["cleared"])

	payload, err = svc.Handle(ctx, "History", nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, decodePayload(t, payload)["count"])
}

func TestService_UnknownAction(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Handle(context.Background(), "Divide", map[string]string{"A": "1", "B": "2"})
	assert.Error(t, err)
}

func TestService_AnnounceDeclaresCoreInfo(t *testing.T) {
	svc := newTestService(t)
	doc := svc.Announce()

	require.NoError(t, doc.Validate())

	var coreCount int
	for _, h := range doc.Handlers {
		if h.IsCore() {
			coreCount++
		}
	}
	assert.Equal(t, 1, coreCount, "only Info is expected to be core")
}
