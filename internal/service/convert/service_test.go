package convert

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/zlog"

	"github.com/imgpress/imgpress/internal/model"
	"github.com/imgpress/imgpress/internal/store"
)

func TestMain(m *testing.M) {
	zlog.Init()
	os.Exit(m.Run())
}

// stubWorker runs an arbitrary function per item, so the orchestration can be
// tested without a real codec.
type stubWorker struct {
	fn func(ctx context.Context, req model.Request) (model.Result, []byte)
}

func (w *stubWorker) Convert(ctx context.Context, req model.Request) (model.Result, []byte) {
	return w.fn(ctx, req)
}

// echoWorker completes every request with a payload derived from the input
// name; names containing "bad" fail and names containing "bogus" formats are
// unsupported.
func echoWorker() *stubWorker {
	return &stubWorker{fn: func(_ context.Context, req model.Request) (model.Result, []byte) {
		res := model.Result{
			Name:         req.OriginalName,
			OutputName:   model.OutputName(req.OriginalName, req.Format),
			OriginalSize: len(req.Data),
		}

		if req.Format == "bogus" {
			res.Status = model.StatusUnsupported
			res.Error = `format "bogus" is not supported`
			return res, nil
		}
		if bytes.Contains(req.Data, []byte("bad")) {
			res.Status = model.StatusError
			res.Error = "failed to decode image"
			return res, nil
		}

		payload := []byte("converted:" + req.OriginalName)
		res.Status = model.StatusCompleted
		res.OutputSize = len(payload)
		return res, payload
	}}
}

func TestRunBatch_EmptyBatch(t *testing.T) {
	svc := NewService(echoWorker(), store.New(), nil, nil, 0)

	_, err := svc.RunBatch(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoFiles)
}

func TestRunBatch_OrderPreservedWithMixedOutcomes(t *testing.T) {
	st := store.New()
	svc := NewService(echoWorker(), st, nil, nil, 0)

	reqs := []model.Request{
		{OriginalName: "a.png", Data: []byte("ok-a"), Format: model.FormatJPEG},
		{OriginalName: "b.png", Data: []byte("bad-b"), Format: model.FormatJPEG},
		{OriginalName: "c.png", Data: []byte("ok-c"), Format: model.FormatJPEG},
		{OriginalName: "d.png", Data: []byte("ok-d"), Format: "bogus"},
	}

	results, err := svc.RunBatch(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, len(reqs))

	for i, req := range reqs {
		assert.Equal(t, req.OriginalName, results[i].Name, "result %d out of order", i)
	}
	assert.Equal(t, model.StatusCompleted, results[0].Status)
	assert.Equal(t, model.StatusError, results[1].Status)
	assert.NotEmpty(t, results[1].Error)
	assert.Equal(t, model.StatusCompleted, results[2].Status)
	assert.Equal(t, model.StatusUnsupported, results[3].Status)

	// Only the completed items are downloadable.
	assert.Equal(t, 2, st.Len())
	data, ok := st.TakeOne("a.jpeg")
	require.True(t, ok)
	assert.Equal(t, []byte("converted:a.png"), data)
	_, ok = st.TakeOne("b.jpeg")
	assert.False(t, ok)
}

func TestRunBatch_NewBatchEvictsPreviousOutputs(t *testing.T) {
	st := store.New()
	svc := NewService(echoWorker(), st, nil, nil, 0)

	_, err := svc.RunBatch(context.Background(), []model.Request{
		{OriginalName: "first.png", Data: []byte("ok"), Format: model.FormatWebP},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, st.Len())

	_, err = svc.RunBatch(context.Background(), []model.Request{
		{OriginalName: "second.png", Data: []byte("ok"), Format: model.FormatWebP},
	})
	require.NoError(t, err)

	_, ok := svc.TakeOne("first.webp")
	assert.False(t, ok, "undownloaded outputs of the previous batch must be gone")
	_, ok = svc.TakeOne("second.webp")
	assert.True(t, ok)
}

func TestRunBatch_OutputNameCollision(t *testing.T) {
	st := store.New()
	svc := NewService(echoWorker(), st, nil, nil, 0)

	results, err := svc.RunBatch(context.Background(), []model.Request{
		{OriginalName: "photo.png", Data: []byte("ok"), Format: model.FormatWebP},
		{OriginalName: "photo.jpg", Data: []byte("ok"), Format: model.FormatWebP},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "photo.webp", results[0].OutputName)
	assert.Equal(t, "photo.webp", results[1].OutputName)

	// Both reports are present, but the store holds a single entry whose
	// payload is one of the two conversions.
	assert.Equal(t, 1, st.Len())
	data, ok := svc.TakeOne("photo.webp")
	require.True(t, ok)
	assert.Contains(t, []string{"converted:photo.png", "converted:photo.jpg"}, string(data))
}

func TestRunBatch_AllUnsupportedLeavesStoreEmpty(t *testing.T) {
	st := store.New()
	svc := NewService(echoWorker(), st, nil, nil, 0)

	reqs := []model.Request{
		{OriginalName: "a.png", Data: []byte("ok"), Format: "bogus"},
		{OriginalName: "b.png", Data: []byte("ok"), Format: "bogus"},
		{OriginalName: "c.png", Data: []byte("ok"), Format: "bogus"},
	}

	results, err := svc.RunBatch(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, res := range results {
		assert.Equal(t, model.StatusUnsupported, res.Status)
	}
	assert.Equal(t, 0, st.Len())
}

func TestRunBatch_PerItemTimeout(t *testing.T) {
	hung := &stubWorker{fn: func(ctx context.Context, req model.Request) (model.Result, []byte) {
		res := model.Result{
			Name:       req.OriginalName,
			OutputName: model.OutputName(req.OriginalName, req.Format),
		}
		select {
		case <-ctx.Done():
			res.Status = model.StatusError
			res.Error = ctx.Err().Error()
			return res, nil
		case <-time.After(5 * time.Second):
			res.Status = model.StatusCompleted
			return res, []byte("late")
		}
	}}

	svc := NewService(hung, store.New(), nil, nil, 20*time.Millisecond)

	results, err := svc.RunBatch(context.Background(), []model.Request{
		{OriginalName: "slow.png", Format: model.FormatJPEG},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.StatusError, results[0].Status)
	assert.Contains(t, results[0].Error, "deadline")
}

func TestWriteArchive_EmptyStore(t *testing.T) {
	svc := NewService(echoWorker(), store.New(), nil, nil, 0)

	var buf bytes.Buffer
	require.NoError(t, svc.WriteArchive(&buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err, "empty store must still produce a valid archive")
	assert.Empty(t, zr.File)
}

func TestWriteArchive_Repeatable(t *testing.T) {
	st := store.New()
	svc := NewService(echoWorker(), st, nil, nil, 0)

	_, err := svc.RunBatch(context.Background(), []model.Request{
		{OriginalName: "a.png", Data: []byte("ok"), Format: model.FormatWebP},
		{OriginalName: "b.png", Data: []byte("ok"), Format: model.FormatWebP},
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		var buf bytes.Buffer
		require.NoError(t, svc.WriteArchive(&buf))

		zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		require.NoError(t, err)
		require.Len(t, zr.File, 2, "archive retrieval must not evict entries")
		assert.Equal(t, "a.webp", zr.File[0].Name)
		assert.Equal(t, "b.webp", zr.File[1].Name)
	}
}
