package operations

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-photo-pipeline/internal/logging"
)

func newTestPending(t *testing.T) *PendingOperations {
	t.Helper()
	p := NewPendingOperations(logging.Nop(), NewMetrics(nil))
	p.Start()
	t.Cleanup(p.Close)
	return p
}

func TestPendingOperations_RejectsDuplicateSubmission(t *testing.T) {
	p := newTestPending(t)
	p.Suspend()

	require.True(t, p.SubmitDownload(1, NewOperation(context.Background(), 1, PhaseDownload, nil)))
	require.False(t, p.SubmitDownload(1, NewOperation(context.Background(), 1, PhaseDownload, nil)))
	require.Equal(t, 1, p.QueueLen(PhaseDownload))

	require.True(t, p.SubmitFiltration(1, NewOperation(context.Background(), 1, PhaseFiltration, nil)))
	require.False(t, p.SubmitFiltration(1, NewOperation(context.Background(), 1, PhaseFiltration, nil)))
	require.Equal(t, 1, p.QueueLen(PhaseFiltration))

	require.True(t, p.DownloadInFlight(1))
	require.True(t, p.FiltrationInFlight(1))
}

func TestPendingOperations_CancelAndRemoveIsImmediate(t *testing.T) {
	p := newTestPending(t)

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	op := NewOperation(context.Background(), 7, PhaseDownload, func(op *Operation) {
		close(started)
		<-release
	})
	require.True(t, p.SubmitDownload(7, op))
	<-started

	p.CancelAndRemove(7)

	require.False(t, p.DownloadInFlight(7))
	require.Empty(t, p.InFlightRows())
	require.True(t, op.IsCancelled())
}

func TestPendingOperations_FinishMatchesIdentity(t *testing.T) {
	p := newTestPending(t)
	p.Suspend()

	old := NewOperation(context.Background(), 2, PhaseFiltration, nil)
	require.True(t, p.SubmitFiltration(2, old))
	p.CancelAndRemove(2)

	replacement := NewOperation(context.Background(), 2, PhaseFiltration, nil)
	require.True(t, p.SubmitFiltration(2, replacement))

	require.False(t, p.Finish(old))
	require.True(t, p.FiltrationInFlight(2))
	require.True(t, p.Finish(replacement))
	require.False(t, p.FiltrationInFlight(2))
	require.False(t, p.Finish(replacement))
}

func TestPendingOperations_InFlightRowsIsUnion(t *testing.T) {
	p := newTestPending(t)
	p.Suspend()

	p.SubmitDownload(1, NewOperation(context.Background(), 1, PhaseDownload, nil))
	p.SubmitDownload(2, NewOperation(context.Background(), 2, PhaseDownload, nil))
	p.SubmitFiltration(2, NewOperation(context.Background(), 2, PhaseFiltration, nil))
	p.SubmitFiltration(5, NewOperation(context.Background(), 5, PhaseFiltration, nil))

	require.Equal(t, map[int]struct{}{1: {}, 2: {}, 5: {}}, p.InFlightRows())
}

func TestPendingOperations_SuspendResume(t *testing.T) {
	p := newTestPending(t)

	p.Suspend()
	require.True(t, p.Suspended())

	done := make(chan int, 2)
	p.SubmitDownload(0, NewOperation(context.Background(), 0, PhaseDownload, func(op *Operation) { done <- op.Row }))
	p.SubmitFiltration(1, NewOperation(context.Background(), 1, PhaseFiltration, func(op *Operation) { done <- op.Row }))

	select {
	case <-done:
		t.Fatal("operation ran while suspended")
	case <-time.After(30 * time.Millisecond):
	}

	p.Resume()
	require.False(t, p.Suspended())

	got := map[int]bool{}
	for range 2 {
		select {
		case row := <-done:
			got[row] = true
		case <-time.After(time.Second):
			t.Fatal("operation did not run after resume")
		}
	}
	require.Equal(t, map[int]bool{0: true, 1: true}, got)
}

func TestPendingOperations_PhasesAreSerialUnderBurst(t *testing.T) {
	p := newTestPending(t)

	var (
		downloads   concurrencyGauge
		filtrations concurrencyGauge
		wg          sync.WaitGroup
	)

	work := func(gauge *concurrencyGauge) func(op *Operation) {
		return func(op *Operation) {
			defer wg.Done()
			gauge.enter()
			defer gauge.leave()
			time.Sleep(time.Millisecond)
		}
	}

	for row := range 50 {
		wg.Add(2)
		require.True(t, p.SubmitDownload(row, NewOperation(context.Background(), row, PhaseDownload, work(&downloads))))
		require.True(t, p.SubmitFiltration(row, NewOperation(context.Background(), row, PhaseFiltration, work(&filtrations))))
	}

	wg.Wait()
	require.Equal(t, int32(1), downloads.max.Load())
	require.Equal(t, int32(1), filtrations.max.Load())
}

func TestPendingOperations_SubmitAfterCloseLeavesNoBookkeeping(t *testing.T) {
	p := NewPendingOperations(logging.Nop(), NewMetrics(nil))
	p.Start()
	p.Close()

	download := NewOperation(context.Background(), 4, PhaseDownload, nil)
	filtration := NewOperation(context.Background(), 4, PhaseFiltration, nil)

	require.False(t, p.SubmitDownload(4, download))
	require.False(t, p.SubmitFiltration(4, filtration))

	require.True(t, download.IsCancelled())
	require.True(t, filtration.IsCancelled())
	require.False(t, p.DownloadInFlight(4))
	require.False(t, p.FiltrationInFlight(4))
	require.Empty(t, p.InFlightRows())
}
