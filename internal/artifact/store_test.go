package artifact

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgnsrekt/docspeak-go/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "artifacts"), logging.Discard())
	require.NoError(t, err)
	return store
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestNewStore_DefaultRoot(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())

	store, err := NewStore("", logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(os.TempDir(), "docspeak"), store.Root())
	assert.DirExists(t, store.Root())
}

func TestWithInput_RemovesFileOnEveryPath(t *testing.T) {
	store := newTestStore(t)
	boom := errors.New("extraction failed")

	tests := map[string]func(path string) error{
		"success": func(path string) error { return nil },
		"error":   func(path string) error { return boom },
	}

	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			var seen string
			err := store.WithInput(context.Background(), []byte("hello"), "txt", func(path string) error {
				seen = path
				data, err := os.ReadFile(path)
				require.NoError(t, err)
				assert.Equal(t, "hello", string(data))
				assert.Equal(t, ".txt", filepath.Ext(path))
				return fn(path)
			})

			if name == "error" {
				assert.ErrorIs(t, err, boom)
			} else {
				assert.NoError(t, err)
			}
			assert.NoFileExists(t, seen)
		})
	}

	t.Run("panic", func(t *testing.T) {
		var seen string
		assert.Panics(t, func() {
			_ = store.WithInput(context.Background(), []byte("x"), "pdf", func(path string) error {
				seen = path
				panic("parser exploded")
			})
		})
		assert.NotEmpty(t, seen)
		assert.NoFileExists(t, seen)
	})

	assert.Empty(t, dirNames(t, store.Root()))
}

func TestWithInput_CancelledContext(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := store.WithInput(ctx, []byte("x"), "txt", func(string) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Empty(t, dirNames(t, store.Root()))
}

func TestWithInput_InvalidExtension(t *testing.T) {
	store := newTestStore(t)

	for _, ext := range []string{"", "../pdf", "p/df", "PDF"} {
		err := store.WithInput(context.Background(), nil, ext, func(string) error { return nil })
		assert.ErrorIs(t, err, ErrInvalidExtension, "ext %q", ext)
	}
}

func TestSaveAudioAndClaim(t *testing.T) {
	store := newTestStore(t)

	ref, err := store.SaveAudio([]byte("mp3 bytes"), "mp3")
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", ref.ContentType)
	assert.EqualValues(t, len("mp3 bytes"), ref.Size)
	assert.Equal(t, []string{ref.ID}, dirNames(t, store.Root()))

	delivery, err := store.Claim(ref.ID)
	require.NoError(t, err)
	assert.Equal(t, ref.ID, delivery.ID)
	assert.Equal(t, "audio/mpeg", delivery.ContentType)
	assert.EqualValues(t, ref.Size, delivery.Size)

	data, err := io.ReadAll(delivery)
	require.NoError(t, err)
	assert.Equal(t, "mp3 bytes", string(data))

	// a second fetch while the first is still streaming fails
	_, err = store.Claim(ref.ID)
	assert.ErrorIs(t, err, ErrArtifactNotFound)

	require.NoError(t, delivery.Close())
	assert.NoError(t, delivery.Close())
	assert.Empty(t, dirNames(t, store.Root()))

	_, err = store.Claim(ref.ID)
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestSaveAudio_RejectsNonAudio(t *testing.T) {
	_, err := newTestStore(t).SaveAudio([]byte("x"), "exe")
	assert.ErrorIs(t, err, ErrInvalidExtension)
}

func TestSaveAudio_UniqueIDs(t *testing.T) {
	store := newTestStore(t)

	seen := make(map[string]bool)
	for range 50 {
		ref, err := store.SaveAudio([]byte("x"), "wav")
		require.NoError(t, err)
		require.False(t, seen[ref.ID], "duplicate id %s", ref.ID)
		seen[ref.ID] = true
	}
}

func TestClaim_UnknownOrMalformed(t *testing.T) {
	store := newTestStore(t)
	outside := filepath.Join(filepath.Dir(store.Root()), "secret.mp3")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))

	for _, id := range []string{
		"",
		"nope",
		"0f8fad5b-d9cb-469f-a165-70867728950e.mp3",
		"0f8fad5b-d9cb-469f-a165-70867728950e.exe",
		"0F8FAD5B-D9CB-469F-A165-70867728950E.mp3",
		"../secret.mp3",
		"{0f8fad5b-d9cb-469f-a165-70867728950e}.mp3",
	} {
		_, err := store.Claim(id)
		assert.ErrorIs(t, err, ErrArtifactNotFound, "id %q", id)
	}
	assert.FileExists(t, outside)
}

func TestClaim_ExactlyOnceUnderConcurrency(t *testing.T) {
	store := newTestStore(t)
	ref, err := store.SaveAudio([]byte("payload"), "mp3")
	require.NoError(t, err)

	const callers = 32
	var (
		wins     atomic.Int32
		notFound atomic.Int32
		wg       sync.WaitGroup
		start    = make(chan struct{})
	)

	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			d, err := store.Claim(ref.ID)
			if errors.Is(err, ErrArtifactNotFound) {
				notFound.Add(1)
				return
			}
			if assert.NoError(t, err) {
				wins.Add(1)
				d.Close()
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, callers-1, notFound.Load())
	assert.Empty(t, dirNames(t, store.Root()))
}

func TestConcurrentConversionsDoNotInterfere(t *testing.T) {
	store := newTestStore(t)

	const workers = 16
	var wg sync.WaitGroup
	paths := make(chan string, workers)

	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload := []byte{byte(i)}
			err := store.WithInput(context.Background(), payload, "txt", func(path string) error {
				paths <- path
				time.Sleep(5 * time.Millisecond)
				got, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				if string(got) != string(payload) {
					return errors.New("input overwritten by another conversion")
				}
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	close(paths)

	unique := make(map[string]bool)
	for p := range paths {
		unique[p] = true
	}
	assert.Len(t, unique, workers)
	assert.Empty(t, dirNames(t, store.Root()))
}

func TestReclaim(t *testing.T) {
	store := newTestStore(t)
	ref, err := store.SaveAudio([]byte("x"), "mp3")
	require.NoError(t, err)

	require.NoError(t, store.Reclaim(ref.ID))
	assert.ErrorIs(t, store.Reclaim(ref.ID), ErrArtifactNotFound)

	_, err = store.Claim(ref.ID)
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestDeliveryClose_FileAlreadyGone(t *testing.T) {
	store := newTestStore(t)
	ref, err := store.SaveAudio([]byte("x"), "wav")
	require.NoError(t, err)

	d, err := store.Claim(ref.ID)
	require.NoError(t, err)
	require.NoError(t, os.Remove(d.path))

	assert.NoError(t, d.Close())
}

func TestStat_DoesNotClaim(t *testing.T) {
	store := newTestStore(t)
	ref, err := store.SaveAudio([]byte("mp3 bytes"), "mp3")
	require.NoError(t, err)

	for range 2 {
		got, modTime, err := store.Stat(ref.ID)
		require.NoError(t, err)
		assert.Equal(t, ref, got)
		assert.False(t, modTime.IsZero())
	}

	delivery, err := store.Claim(ref.ID)
	require.NoError(t, err)

	_, _, err = store.Stat(ref.ID)
	assert.ErrorIs(t, err, ErrArtifactNotFound, "a claimed artifact is no longer visible")
	require.NoError(t, delivery.Close())

	_, _, err = store.Stat("not-an-id.mp3")
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}
