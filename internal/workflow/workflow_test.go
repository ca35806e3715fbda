package workflow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grainco/texture-analyzer/internal/materialapi"
	"github.com/grainco/texture-analyzer/internal/models"
	"github.com/grainco/texture-analyzer/internal/storage"
	"github.com/grainco/texture-analyzer/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	analyzeCalls  atomic.Int32
	generateCalls atomic.Int32
	analyze       func(ctx context.Context, file materialapi.Upload) (*models.Analysis, error)
	generate      func(ctx context.Context, material, base materialapi.Upload) (*materialapi.GeneratedBlob, error)
}

func (f *fakeBackend) Analyze(ctx context.Context, file materialapi.Upload) (*models.Analysis, error) {
	f.analyzeCalls.Add(1)
	if f.analyze == nil {
		return &models.Analysis{Material: "Oak", Colour: "Brown, Tan"}, nil
	}
	return f.analyze(ctx, file)
}

func (f *fakeBackend) Generate(ctx context.Context, material, base materialapi.Upload) (*materialapi.GeneratedBlob, error) {
	f.generateCalls.Add(1)
	if f.generate == nil {
		return &materialapi.GeneratedBlob{ContentType: "image/png", Data: []byte("generated")}, nil
	}
	return f.generate(ctx, material, base)
}

func newTestWorkflow(t *testing.T, backend *fakeBackend) (*Workflow, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore(0)
	return New("sess-1", backend, store), store
}

func selectMaterial(t *testing.T, w *Workflow) *models.SelectedFile {
	t.Helper()
	f, err := w.SelectFile(models.StageAnalyze, "oak.png", "image/png", []byte("oak"))
	require.NoError(t, err)
	return f
}

func analyzed(t *testing.T, w *Workflow) {
	t.Helper()
	selectMaterial(t, w)
	require.NoError(t, w.Analyze(context.Background()))
}

func TestWorkflow_SelectFile(t *testing.T) {
	t.Run("stores preview and replaces previous selection", func(t *testing.T) {
		w, store := newTestWorkflow(t, &fakeBackend{})

		first := selectMaterial(t, w)
		second, err := w.SelectFile(models.StageAnalyze, "slate.png", "image/png", []byte("slate"))
		require.NoError(t, err)

		assert.NotEqual(t, first.Preview, second.Preview)
		assert.Equal(t, "slate.png", w.Snapshot().MaterialFile.Name)
		assert.Equal(t, 2, store.Count())
	})

	t.Run("empty drop is ignored", func(t *testing.T) {
		w, store := newTestWorkflow(t, &fakeBackend{})
		selectMaterial(t, w)

		f, err := w.SelectFile(models.StageAnalyze, "", "", nil)
		assert.NoError(t, err)
		assert.Nil(t, f)
		assert.Equal(t, "oak.png", w.Snapshot().MaterialFile.Name)
		assert.Equal(t, 1, store.Count())
	})

	t.Run("base file needs an analysis", func(t *testing.T) {
		w, _ := newTestWorkflow(t, &fakeBackend{})

		_, err := w.SelectFile(models.StageGenerate, "wall.png", "image/png", []byte("wall"))
		assert.ErrorIs(t, err, ErrNoAnalysis)
	})
}

func TestWorkflow_Analyze(t *testing.T) {
	t.Run("no-op without a file", func(t *testing.T) {
		backend := &fakeBackend{}
		w, _ := newTestWorkflow(t, backend)

		err := w.Analyze(context.Background())
		assert.ErrorIs(t, err, ErrNoFile)
		assert.Equal(t, int32(0), backend.analyzeCalls.Load())
		assert.Equal(t, models.PhaseIdle, w.Snapshot().Analysis.Phase)
	})

	t.Run("success merges the preview reference", func(t *testing.T) {
		backend := &fakeBackend{}
		w, _ := newTestWorkflow(t, backend)
		file := selectMaterial(t, w)

		require.NoError(t, w.Analyze(context.Background()))

		snap := w.Snapshot()
		analysis, ok := snap.Analysis.Value()
		require.True(t, ok)
		assert.Equal(t, "Oak", analysis.Material)
		assert.Equal(t, file.Preview, analysis.Preview)
		assert.True(t, snap.GenerateUnlocked)
		assert.Equal(t, "properties", snap.OpenSection)
		assert.Equal(t, int32(1), backend.analyzeCalls.Load())
	})

	t.Run("failure keeps the message and an empty result", func(t *testing.T) {
		backend := &fakeBackend{analyze: func(context.Context, materialapi.Upload) (*models.Analysis, error) {
			return nil, &materialapi.RequestError{Op: "analyze", Status: 500, Message: "bad image"}
		}}
		w, _ := newTestWorkflow(t, backend)
		selectMaterial(t, w)

		err := w.Analyze(context.Background())
		require.Error(t, err)
		assert.Equal(t, "bad image", err.Error())

		snap := w.Snapshot()
		assert.Equal(t, models.PhaseFailed, snap.Analysis.Phase)
		assert.Equal(t, "bad image", snap.Analysis.Error)
		assert.Nil(t, snap.Analysis.Result)
		assert.False(t, snap.GenerateUnlocked)
	})

	t.Run("loading clears results and rejects a second start", func(t *testing.T) {
		release := make(chan struct{})
		backend := &fakeBackend{}
		w, _ := newTestWorkflow(t, backend)
		analyzed(t, w)
		_, err := w.SelectFile(models.StageGenerate, "wall.png", "image/png", []byte("wall"))
		require.NoError(t, err)
		require.NoError(t, w.Generate(context.Background()))
		require.Equal(t, models.PhaseSucceeded, w.Snapshot().Generated.Phase)

		backend.analyze = func(ctx context.Context, _ materialapi.Upload) (*models.Analysis, error) {
			<-release
			return &models.Analysis{Material: "Walnut"}, nil
		}
		done, err := w.StartAnalyze(context.Background())
		require.NoError(t, err)

		snap := w.Snapshot()
		assert.Equal(t, models.PhaseLoading, snap.Analysis.Phase)
		assert.Nil(t, snap.Analysis.Result)
		assert.Equal(t, models.PhaseIdle, snap.Generated.Phase)
		assert.Nil(t, snap.Generated.Result)
		assert.False(t, snap.GenerateUnlocked)

		_, err = w.StartAnalyze(context.Background())
		assert.ErrorIs(t, err, ErrBusy)
		_, err = w.SelectFile(models.StageAnalyze, "x.png", "image/png", []byte("x"))
		assert.ErrorIs(t, err, ErrBusy)

		close(release)
		require.NoError(t, <-done)
		analysis, ok := w.Snapshot().Analysis.Value()
		require.True(t, ok)
		assert.Equal(t, "Walnut", analysis.Material)
	})
}

func TestWorkflow_Generate(t *testing.T) {
	t.Run("locked before analysis", func(t *testing.T) {
		backend := &fakeBackend{}
		w, _ := newTestWorkflow(t, backend)
		selectMaterial(t, w)

		err := w.Generate(context.Background())
		assert.ErrorIs(t, err, ErrNoAnalysis)
		assert.Equal(t, int32(0), backend.generateCalls.Load())
	})

	t.Run("no-op without a base file", func(t *testing.T) {
		backend := &fakeBackend{}
		w, _ := newTestWorkflow(t, backend)
		analyzed(t, w)

		err := w.Generate(context.Background())
		assert.ErrorIs(t, err, ErrNoFile)
		assert.Equal(t, int32(0), backend.generateCalls.Load())
		assert.Equal(t, models.PhaseIdle, w.Snapshot().Generated.Phase)
	})

	t.Run("success stores the generated image", func(t *testing.T) {
		var gotMaterial, gotBase string
		backend := &fakeBackend{generate: func(_ context.Context, material, base materialapi.Upload) (*materialapi.GeneratedBlob, error) {
			gotMaterial, gotBase = material.Name, base.Name
			return &materialapi.GeneratedBlob{ContentType: "image/png", Data: []byte("texture")}, nil
		}}
		w, store := newTestWorkflow(t, backend)
		analyzed(t, w)
		_, err := w.SelectFile(models.StageGenerate, "wall.png", "image/png", []byte("wall"))
		require.NoError(t, err)

		require.NoError(t, w.Generate(context.Background()))

		assert.Equal(t, "oak.png", gotMaterial)
		assert.Equal(t, "wall.png", gotBase)
		img, ok := w.Snapshot().Generated.Value()
		require.True(t, ok)
		blob, err := store.Get(string(img.Preview))
		require.NoError(t, err)
		assert.Equal(t, []byte("texture"), blob.Data)
		assert.Equal(t, "generated.png", blob.Name)
	})

	t.Run("failure surfaces the message", func(t *testing.T) {
		backend := &fakeBackend{generate: func(context.Context, materialapi.Upload, materialapi.Upload) (*materialapi.GeneratedBlob, error) {
			return nil, &materialapi.RequestError{Op: "generate", Status: 400, Message: "Invalid base image file."}
		}}
		w, _ := newTestWorkflow(t, backend)
		analyzed(t, w)
		w.SelectFile(models.StageGenerate, "wall.png", "image/png", []byte("wall"))

		err := w.Generate(context.Background())
		require.Error(t, err)
		snap := w.Snapshot()
		assert.Equal(t, models.PhaseFailed, snap.Generated.Phase)
		assert.Equal(t, "Invalid base image file.", snap.Generated.Error)
	})

	t.Run("result discarded when analysis restarts mid-flight", func(t *testing.T) {
		release := make(chan struct{})
		backend := &fakeBackend{generate: func(context.Context, materialapi.Upload, materialapi.Upload) (*materialapi.GeneratedBlob, error) {
			<-release
			return &materialapi.GeneratedBlob{ContentType: "image/png", Data: []byte("stale")}, nil
		}}
		w, store := newTestWorkflow(t, backend)
		analyzed(t, w)
		w.SelectFile(models.StageGenerate, "wall.png", "image/png", []byte("wall"))
		require.Equal(t, 2, store.Count())

		genDone, err := w.StartGenerate(context.Background())
		require.NoError(t, err)
		require.NoError(t, w.Analyze(context.Background()))

		close(release)
		require.NoError(t, <-genDone)
		assert.Equal(t, models.PhaseIdle, w.Snapshot().Generated.Phase)
		// only the two previews remain; the stale image is gone
		assert.Equal(t, 2, store.Count())
	})
}

// gatedStore holds SaveBytes until released once armed.
type gatedStore struct {
	*storage.MemoryStore
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		MemoryStore: storage.NewMemoryStore(0),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
}

func (s *gatedStore) SaveBytes(owner, name, contentType string, data []byte) (*models.Blob, error) {
	if s.armed.CompareAndSwap(true, false) {
		close(s.entered)
		<-s.release
	}
	return s.MemoryStore.SaveBytes(owner, name, contentType, data)
}

func TestWorkflow_SelectFileRacesRequestStart(t *testing.T) {
	t.Run("material replaced while analysis starts", func(t *testing.T) {
		hold := make(chan struct{})
		defer close(hold)
		backend := &fakeBackend{analyze: func(context.Context, materialapi.Upload) (*models.Analysis, error) {
			<-hold
			return &models.Analysis{Material: "Oak"}, nil
		}}
		store := newGatedStore()
		w := New("sess-1", backend, store)
		selectMaterial(t, w)

		store.armed.Store(true)
		type result struct {
			file *models.SelectedFile
			err  error
		}
		selected := make(chan result, 1)
		go func() {
			f, err := w.SelectFile(models.StageAnalyze, "slate.png", "image/png", []byte("slate"))
			selected <- result{f, err}
		}()

		<-store.entered
		_, err := w.StartAnalyze(context.Background())
		require.NoError(t, err)
		close(store.release)

		res := <-selected
		assert.ErrorIs(t, res.err, ErrBusy)
		assert.Nil(t, res.file)

		snap := w.Snapshot()
		assert.True(t, snap.Analysis.IsLoading())
		assert.Equal(t, "oak.png", snap.MaterialFile.Name)
		assert.Equal(t, 1, store.Count())
	})

	t.Run("base replaced while generation starts", func(t *testing.T) {
		hold := make(chan struct{})
		defer close(hold)
		backend := &fakeBackend{generate: func(context.Context, materialapi.Upload, materialapi.Upload) (*materialapi.GeneratedBlob, error) {
			<-hold
			return &materialapi.GeneratedBlob{ContentType: "image/png", Data: []byte("texture")}, nil
		}}
		store := newGatedStore()
		w := New("sess-1", backend, store)
		analyzed(t, w)
		_, err := w.SelectFile(models.StageGenerate, "wall.png", "image/png", []byte("wall"))
		require.NoError(t, err)

		store.armed.Store(true)
		selected := make(chan error, 1)
		go func() {
			_, err := w.SelectFile(models.StageGenerate, "brick.png", "image/png", []byte("brick"))
			selected <- err
		}()

		<-store.entered
		_, err = w.StartGenerate(context.Background())
		require.NoError(t, err)
		close(store.release)

		assert.ErrorIs(t, <-selected, ErrBusy)
		snap := w.Snapshot()
		assert.True(t, snap.Generated.IsLoading())
		assert.Equal(t, "wall.png", snap.BaseFile.Name)
		assert.Equal(t, 2, store.Count())
	})
}

func TestWorkflow_ToggleSection(t *testing.T) {
	w, _ := newTestWorkflow(t, &fakeBackend{})

	_, err := w.ToggleSection("properties")
	assert.ErrorIs(t, err, ErrNoAnalysis)

	analyzed(t, w)

	_, err = w.ToggleSection("bogus")
	assert.ErrorIs(t, err, ErrUnknownSection)

	snap, err := w.ToggleSection("uses")
	require.NoError(t, err)
	assert.Equal(t, "uses", snap.OpenSection)

	snap, err = w.ToggleSection("uses")
	require.NoError(t, err)
	assert.Equal(t, "", snap.OpenSection)
}

func TestWorkflow_Events(t *testing.T) {
	backend := &fakeBackend{analyze: func(context.Context, materialapi.Upload) (*models.Analysis, error) {
		return nil, errors.New("bad image")
	}}
	w, _ := newTestWorkflow(t, backend)
	selectMaterial(t, w)

	events, cancel := w.Subscribe()
	defer cancel()

	require.Error(t, w.Analyze(context.Background()))

	var got []Event
	timeout := time.After(time.Second)
	for len(got) < 3 {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("expected 3 events, got %d", len(got))
		}
	}

	assert.Equal(t, EventState, got[0].Type)
	assert.Equal(t, models.PhaseLoading, got[0].Snapshot.Analysis.Phase)
	assert.Equal(t, EventState, got[1].Type)
	assert.Equal(t, models.PhaseFailed, got[1].Snapshot.Analysis.Phase)
	assert.Equal(t, EventError, got[2].Type)
	assert.Equal(t, "bad image", got[2].Message)
	assert.Equal(t, models.StageAnalyze, got[2].Stage)
}

func TestWorkflow_Close(t *testing.T) {
	w, _ := newTestWorkflow(t, &fakeBackend{})
	events, _ := w.Subscribe()

	w.Close()
	_, open := <-events
	assert.False(t, open)

	late, cancel := w.Subscribe()
	cancel()
	_, open = <-late
	assert.False(t, open)
}

func TestWorkflow_StoreFailure(t *testing.T) {
	store := testutil.NewMockStorage()
	w := New("sess-1", &fakeBackend{}, store)

	_, err := w.SelectFile(models.StageAnalyze, "oak.png", "image/png", []byte("oak"))
	require.NoError(t, err)
	require.NoError(t, w.Analyze(context.Background()))
	_, err = w.SelectFile(models.StageGenerate, "wall.png", "image/png", []byte("wall"))
	require.NoError(t, err)

	store.SaveErr = errors.New("out of memory")

	_, err = w.SelectFile(models.StageGenerate, "brick.png", "image/png", []byte("brick"))
	require.Error(t, err)
	assert.Equal(t, "wall.png", w.Snapshot().BaseFile.Name)

	err = w.Generate(context.Background())
	require.Error(t, err)
	snap := w.Snapshot()
	assert.Equal(t, models.PhaseFailed, snap.Generated.Phase)
	assert.Contains(t, snap.Generated.Error, "out of memory")
	assert.Nil(t, snap.Generated.Result)
}
