package filter

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/radius-cacher/internal/metrics"
)

func writeFilterFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "filter.txt")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestFilterLoadsAndQueries(t *testing.T) {
	path := writeFilterFile(t, "1234567890123456\n\"987654321\"\nnot-a-number\n42\n")

	f := New(context.Background(), path, 0, nil)

	assert.True(t, f.Contains(1234567890123456))
	assert.True(t, f.Contains(987654321))
	assert.True(t, f.Contains(42))
	assert.False(t, f.Contains(1))
	assert.Equal(t, 3, f.Len())
}

func TestFilterReloadPicksUpChanges(t *testing.T) {
	path := writeFilterFile(t, "1\n")
	f := New(context.Background(), path, 0, nil)
	assert.True(t, f.Contains(1))
	assert.False(t, f.Contains(2))

	require.NoError(t, os.WriteFile(path, []byte("2\n"), 0o644))
	f.Reload()

	assert.False(t, f.Contains(1))
	assert.True(t, f.Contains(2))
}

func TestFilterKeepsPreviousSnapshotOnOpenFailure(t *testing.T) {
	path := writeFilterFile(t, "7\n")
	f := New(context.Background(), path, 0, nil)
	require.True(t, f.Contains(7))

	require.NoError(t, os.Remove(path))
	f.Reload()

	assert.True(t, f.Contains(7), "snapshot must survive a transient file-open failure")
}

func TestFilterBackgroundRefresherReloadsOnInterval(t *testing.T) {
	path := writeFilterFile(t, "1\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := New(ctx, path, 20*time.Millisecond, nil)
	require.True(t, f.Contains(1))

	require.NoError(t, os.WriteFile(path, []byte("9\n"), 0o644))

	require.Eventually(t, func() bool {
		return f.Contains(9)
	}, time.Second, 5*time.Millisecond)
}

func TestFilterConcurrentReadsDuringReload(t *testing.T) {
	path := writeFilterFile(t, "1\n2\n3\n")
	f := New(context.Background(), path, 0, nil)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					f.Contains(2)
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		f.Reload()
	}
	close(stop)
	wg.Wait()
}

func TestFilterReloadReportsMetrics(t *testing.T) {
	path := writeFilterFile(t, "1\n2\n3\n")
	m := metrics.New()
	f := New(context.Background(), path, 0, m)

	mfs, err := m.Registry().Gather()
	require.NoError(t, err)
	sizeMetric := findMetric(t, mfs, "radius_cacher_filter_size")
	require.NotNil(t, sizeMetric)
	assert.Equal(t, float64(3), sizeMetric.GetGauge().GetValue())

	require.NoError(t, os.Remove(path))
	f.Reload()

	mfs, err = m.Registry().Gather()
	require.NoError(t, err)
	reloads := findMetric(t, mfs, "radius_cacher_filter_reload_total")
	require.NotNil(t, reloads)
	var okCount, errCount float64
	for _, metric := range reloads.GetMetric() {
		for _, l := range metric.GetLabel() {
			if l.GetName() != "result" {
				continue
			}
			switch l.GetValue() {
			case "ok":
				okCount = metric.GetCounter().GetValue()
			case "error":
				errCount = metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(1), okCount, "initial load in New must report one ok reload")
	assert.Equal(t, float64(1), errCount, "the failed Reload after removing the file must report one error reload")
}

// TestFilterConcurrentWritersDoNotRace exercises the timer refresher, the
// admin-triggered Reload, and concurrent readers all at once: under
// -race this must not report a data race on snapshots[writeIdx].
func TestFilterConcurrentWritersDoNotRace(t *testing.T) {
	path := writeFilterFile(t, "1\n2\n3\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := New(ctx, path, 2*time.Millisecond, nil)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					f.Contains(2)
					f.Len()
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		f.Reload()
	}
	close(stop)
	wg.Wait()
}

func findMetric(t *testing.T, mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	t.Helper()
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestFilterCustomSource(t *testing.T) {
	f := &Filter{path: "s3://bucket/key", source: func(string) (io.ReadCloser, error) {
		return io.NopCloser(newStringReader("111\n222\n")), nil
	}}
	f.reload()
	assert.True(t, f.Contains(111))
	assert.True(t, f.Contains(222))
}

func TestFilterSourceErrorLeavesSnapshotEmpty(t *testing.T) {
	calls := 0
	f := &Filter{path: "s3://bucket/missing", source: func(string) (io.ReadCloser, error) {
		calls++
		return nil, errors.New("not found")
	}}
	f.reload()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, f.Len())
}

type stringReader struct {
	s   string
	pos int
}

func newStringReader(s string) *stringReader { return &stringReader{s: s} }

func (r *stringReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.s) {
		return 0, io.EOF
	}
	n := copy(p, r.s[r.pos:])
	r.pos += n
	return n, nil
}
