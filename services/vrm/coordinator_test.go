package vrm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHost keeps the document text in memory and can fail or block commits.
type fakeHost struct {
	mu       sync.Mutex
	text     string
	commits  []string
	failures int
	gate     chan struct{}
}

func (h *fakeHost) Text(_ context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.text, nil
}

func (h *fakeHost) Commit(_ context.Context, text string) error {
	h.mu.Lock()
	gate := h.gate
	h.mu.Unlock()
	if gate != nil {
		<-gate
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failures > 0 {
		h.failures--
		return errors.New("host busy")
	}
	h.text = text
	h.commits = append(h.commits, text)
	return nil
}

func (h *fakeHost) setText(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.text = text
}

func (h *fakeHost) commitCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.commits)
}

func (h *fakeHost) lastCommit() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.commits[len(h.commits)-1]
}

var fastRetry = RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func newTestCoordinator(t *testing.T, host *fakeHost, opts CoordinatorOptions) *Coordinator {
	t.Helper()
	if opts.Debounce == 0 {
		opts.Debounce = 20 * time.Millisecond
	}
	if opts.Retry == (RetryPolicy{}) {
		opts.Retry = fastRetry
	}
	opts.Logger = zerolog.Nop()
	return NewCoordinator(newSampleModel(t), host, opts)
}

func move(t *testing.T, c *Coordinator, id, x int) Component {
	t.Helper()
	var comp Component
	c.View(func(m *Model) {
		var err error
		comp, err = m.Get(SectionPre, id)
		require.NoError(t, err)
	})
	comp.X = x
	return comp
}

func TestCoordinator_BatchesWindowIntoOneCommit(t *testing.T) {
	host := &fakeHost{text: sampleDoc}
	coord := newTestCoordinator(t, host, CoordinatorOptions{})

	require.NoError(t, coord.Submit(move(t, coord, 1, 1)))
	require.NoError(t, coord.Submit(move(t, coord, 2, 2)))
	require.NoError(t, coord.Submit(move(t, coord, 1, 3)))
	assert.Equal(t, StateAccumulating, coord.State())

	assert.Eventually(t, func() bool { return host.commitCount() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, host.commitCount())

	doc := mustParse(t, host.lastCommit())
	assert.Equal(t, 3, doc.Pre[0].X)
	assert.Equal(t, 2, doc.Pre[1].X)
	assert.Equal(t, StateIdle, coord.State())
	coord.View(func(m *Model) { assert.False(t, m.IsDirty()) })
}

func TestCoordinator_SubmitUnknownComponent(t *testing.T) {
	host := &fakeHost{text: sampleDoc}
	coord := newTestCoordinator(t, host, CoordinatorOptions{})

	err := coord.Submit(component(50, TypeCondition, nil))

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, StateIdle, coord.State())
}

func TestCoordinator_SubmitRejectsWholeBatch(t *testing.T) {
	host := &fakeHost{text: sampleDoc}
	coord := newTestCoordinator(t, host, CoordinatorOptions{})

	err := coord.Submit(move(t, coord, 1, 77), component(50, TypeCondition, nil))

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, StateIdle, coord.State())
	coord.View(func(m *Model) {
		assert.False(t, m.IsDirty())
		c, err := m.Get(SectionPre, 1)
		require.NoError(t, err)
		assert.Equal(t, 10, c.X)
	})
	require.NoError(t, coord.Flush(context.Background()))
	assert.Equal(t, 0, host.commitCount())
}

func TestCoordinator_FlushRetriesTransientFailure(t *testing.T) {
	host := &fakeHost{text: sampleDoc, failures: 2}
	coord := newTestCoordinator(t, host, CoordinatorOptions{Debounce: time.Hour})
	require.NoError(t, coord.Submit(move(t, coord, 1, 7)))

	err := coord.Flush(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, host.commitCount())
	assert.Equal(t, 7, mustParse(t, host.lastCommit()).Pre[0].X)
}

func TestCoordinator_ExhaustedRetriesKeepDirtyState(t *testing.T) {
	host := &fakeHost{text: sampleDoc, failures: 100}
	coord := newTestCoordinator(t, host, CoordinatorOptions{Debounce: time.Hour})
	require.NoError(t, coord.Submit(move(t, coord, 1, 7)))

	err := coord.Flush(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommitFailed)
	var cerr *CommitError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 3, cerr.Attempts)
	assert.Equal(t, 0, host.commitCount())
	assert.Equal(t, StateIdle, coord.State())
	coord.View(func(m *Model) { assert.True(t, m.IsDirty()) })

	host.mu.Lock()
	host.failures = 0
	host.mu.Unlock()
	require.NoError(t, coord.Flush(context.Background()))
	assert.Equal(t, 1, host.commitCount())
}

func TestCoordinator_BackgroundFailureReported(t *testing.T) {
	host := &fakeHost{text: sampleDoc, failures: 100}
	fatal := make(chan error, 1)
	coord := newTestCoordinator(t, host, CoordinatorOptions{OnFatal: func(err error) { fatal <- err }})

	require.NoError(t, coord.Submit(move(t, coord, 1, 7)))

	select {
	case err := <-fatal:
		assert.ErrorIs(t, err, ErrCommitFailed)
	case <-time.After(2 * time.Second):
		t.Fatal("fatal commit error not reported")
	}
}

func TestCoordinator_ReadsFreshTextEachCommit(t *testing.T) {
	host := &fakeHost{text: sampleDoc}
	coord := newTestCoordinator(t, host, CoordinatorOptions{Debounce: time.Hour})
	host.setText(strings.Replace(sampleDoc, "<p>Hello</p>", "<p>Edited elsewhere</p>", 1))

	require.NoError(t, coord.Submit(move(t, coord, 2, 5)))
	require.NoError(t, coord.Flush(context.Background()))

	out := host.lastCommit()
	assert.Contains(t, out, "<p>Edited elsewhere</p>")
	assert.Equal(t, 5, mustParse(t, out).Pre[1].X)
}

func TestCoordinator_EditsDuringCommitFormNextBatch(t *testing.T) {
	gate := make(chan struct{})
	host := &fakeHost{text: sampleDoc, gate: gate}
	coord := newTestCoordinator(t, host, CoordinatorOptions{})

	require.NoError(t, coord.Submit(move(t, coord, 1, 11)))
	assert.Eventually(t, func() bool { return coord.State() == StateCommitting }, time.Second, 2*time.Millisecond)

	require.NoError(t, coord.Submit(move(t, coord, 2, 22)))
	assert.Equal(t, StateCommitting, coord.State())

	host.mu.Lock()
	host.gate = nil
	host.mu.Unlock()
	close(gate)

	assert.Eventually(t, func() bool { return host.commitCount() == 2 }, time.Second, 5*time.Millisecond)
	doc := mustParse(t, host.lastCommit())
	assert.Equal(t, 11, doc.Pre[0].X)
	assert.Equal(t, 22, doc.Pre[1].X)
	assert.Eventually(t, func() bool { return coord.State() == StateIdle }, time.Second, 5*time.Millisecond)
}

func TestCoordinator_CloseFlushes(t *testing.T) {
	host := &fakeHost{text: sampleDoc}
	coord := newTestCoordinator(t, host, CoordinatorOptions{Debounce: time.Hour})
	require.NoError(t, coord.Do(func(m *Model) error {
		return m.UpdateContent(ContentScript, "done();")
	}))

	require.NoError(t, coord.Close(context.Background()))

	assert.Equal(t, 1, host.commitCount())
	assert.Contains(t, host.lastCommit(), "<script><![CDATA[done();]]></script>")
	assert.ErrorIs(t, coord.Submit(move(t, coord, 1, 1)), ErrCoordinatorDone)
}

func TestCoordinator_FlushWithoutChanges(t *testing.T) {
	host := &fakeHost{text: sampleDoc}
	coord := newTestCoordinator(t, host, CoordinatorOptions{})

	require.NoError(t, coord.Flush(context.Background()))

	assert.Equal(t, 0, host.commitCount())
}
