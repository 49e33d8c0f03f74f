package clientsync_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"comedor/internal/clientsync"
	"comedor/internal/push"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePoller struct {
	mu    sync.Mutex
	state clientsync.AccessState
	err   error
	calls int
}

func (p *fakePoller) PollAccessState(_ context.Context) (clientsync.AccessState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return p.state, nil
}

func (p *fakePoller) set(st clientsync.AccessState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = st
	p.err = nil
}

func (p *fakePoller) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *fakePoller) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type callbackRecorder struct {
	mu      sync.Mutex
	changes [][2]clientsync.AccessState
	revoked int
	errs    int
}

func (r *callbackRecorder) onChange(old, new clientsync.AccessState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, [2]clientsync.AccessState{old, new})
}

func (r *callbackRecorder) onRevoked() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked++
}

func (r *callbackRecorder) onError(error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs++
}

func (r *callbackRecorder) revokedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revoked
}

func (r *callbackRecorder) errCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs
}

func (r *callbackRecorder) changeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}

func newSyncFixture(t *testing.T, initial clientsync.AccessState, opts clientsync.Options) (*fakePoller, *push.Hub, *callbackRecorder, *clientsync.Synchronizer) {
	t.Helper()

	poller := &fakePoller{state: initial}
	hub := push.NewHub()
	t.Cleanup(hub.Close)

	rec := &callbackRecorder{}
	if opts.OnChange == nil {
		opts.OnChange = rec.onChange
	}
	opts.OnRevoked = rec.onRevoked
	opts.OnError = rec.onError
	if opts.PollInterval == 0 {
		opts.PollInterval = 30 * time.Millisecond
	}
	if opts.RetryBase == 0 {
		opts.RetryBase = 5 * time.Millisecond
	}

	s := clientsync.New(poller, hub, opts)
	t.Cleanup(s.Stop)
	return poller, hub, rec, s
}

func publishRequestUpdate(hub *push.Hub) {
	hub.Publish(push.Event{
		Table:    clientsync.RequestsTable,
		Type:     push.EventUpdate,
		RecordID: "req-1",
		At:       time.Now(),
	})
}

func TestSynchronizer_StartEstablishesBaseline(t *testing.T) {
	poller, _, _, s := newSyncFixture(t, clientsync.StatePending, clientsync.Options{})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, clientsync.StatePending, s.State())
	assert.Equal(t, 1, poller.count())
}

func TestSynchronizer_StartFailsWhenBaselineUnavailable(t *testing.T) {
	poller, _, _, s := newSyncFixture(t, clientsync.StateNone, clientsync.Options{})
	poller.fail(errors.New("server down"))

	err := s.Start(context.Background())
	require.Error(t, err)
}

func TestSynchronizer_DoubleStart(t *testing.T) {
	_, _, _, s := newSyncFixture(t, clientsync.StateNone, clientsync.Options{})

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), clientsync.ErrAlreadyStarted)
}

func TestSynchronizer_PushTriggersRepoll(t *testing.T) {
	poller, hub, _, s := newSyncFixture(t, clientsync.StatePending, clientsync.Options{
		// pushだけで追従できることを見るため、ポーリングはほぼ止める
		PollInterval: time.Hour,
	})
	require.NoError(t, s.Start(context.Background()))

	poller.set(clientsync.StateApproved)
	publishRequestUpdate(hub)

	require.Eventually(t, func() bool {
		return s.State() == clientsync.StateApproved
	}, time.Second, 5*time.Millisecond)
}

func TestSynchronizer_RevocationDetectedByPollingAlone(t *testing.T) {
	// pushイベントを一切流さなくても、ポーリング間隔以内に取り消しへ追従する
	poller, _, rec, s := newSyncFixture(t, clientsync.StateApproved, clientsync.Options{})
	require.NoError(t, s.Start(context.Background()))

	poller.set(clientsync.StateRejected)

	require.Eventually(t, func() bool {
		return rec.revokedCount() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, clientsync.StateRejected, s.State())
}

func TestSynchronizer_OnChangeOnlyOnRealChange(t *testing.T) {
	poller, hub, rec, s := newSyncFixture(t, clientsync.StatePending, clientsync.Options{
		PollInterval: time.Hour,
	})
	require.NoError(t, s.Start(context.Background()))
	baseline := rec.changeCount()

	// 状態が変わらない再ポーリングではOnChangeは呼ばれない
	publishRequestUpdate(hub)
	require.Eventually(t, func() bool {
		return poller.count() >= 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, baseline, rec.changeCount())

	poller.set(clientsync.StateApproved)
	publishRequestUpdate(hub)
	require.Eventually(t, func() bool {
		return rec.changeCount() == baseline+1
	}, time.Second, 5*time.Millisecond)
}

func TestSynchronizer_TerminalStateStopsPolling(t *testing.T) {
	poller, _, _, s := newSyncFixture(t, clientsync.StateRejected, clientsync.Options{
		PollInterval: 15 * time.Millisecond,
	})
	require.NoError(t, s.Start(context.Background()))

	// rejectedでは定期ポーリングが回らない
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, poller.count())
}

func TestSynchronizer_PollFailureKeepsLastKnownState(t *testing.T) {
	poller, _, rec, s := newSyncFixture(t, clientsync.StateApproved, clientsync.Options{
		PollInterval:    15 * time.Millisecond,
		MaxPollFailures: 3,
	})
	require.NoError(t, s.Start(context.Background()))

	poller.fail(errors.New("network unreachable"))

	// 失敗してもapprovedのまま保ち、閾値でOnErrorが1回届く
	require.Eventually(t, func() bool {
		return rec.errCount() >= 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, clientsync.StateApproved, s.State())
	assert.Equal(t, 0, rec.revokedCount())

	// 復旧すれば追従を再開する
	poller.set(clientsync.StateRejected)
	require.Eventually(t, func() bool {
		return s.State() == clientsync.StateRejected
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, rec.revokedCount())
}

func TestSynchronizer_RefreshForcesRepoll(t *testing.T) {
	poller, _, _, s := newSyncFixture(t, clientsync.StateNone, clientsync.Options{
		PollInterval: time.Hour,
	})
	require.NoError(t, s.Start(context.Background()))

	// noneはtickerの対象外だが、Refreshなら再ポーリングする
	poller.set(clientsync.StatePending)
	s.Refresh()

	require.Eventually(t, func() bool {
		return s.State() == clientsync.StatePending
	}, time.Second, 5*time.Millisecond)
}

func TestSynchronizer_StopIsIdempotent(t *testing.T) {
	_, _, _, s := newSyncFixture(t, clientsync.StateNone, clientsync.Options{})
	require.NoError(t, s.Start(context.Background()))

	s.Stop()
	s.Stop()
}

func TestSynchronizer_StopWithoutStart(t *testing.T) {
	_, _, _, s := newSyncFixture(t, clientsync.StateNone, clientsync.Options{})
	s.Stop()
}

func TestSynchronizer_StartAfterStopRefused(t *testing.T) {
	_, _, _, s := newSyncFixture(t, clientsync.StateNone, clientsync.Options{})
	s.Stop()

	// 停止後のStartはループを起動しない
	err := s.Start(context.Background())
	require.ErrorIs(t, err, clientsync.ErrStopped)
	s.Stop()
}

func TestSynchronizer_SurvivesPushSourceDeath(t *testing.T) {
	poller, hub, rec, s := newSyncFixture(t, clientsync.StateApproved, clientsync.Options{
		PollInterval: 15 * time.Millisecond,
	})
	require.NoError(t, s.Start(context.Background()))

	// pushチャネルを殺してもポーリングで取り消しに気づく
	hub.Close()
	poller.set(clientsync.StateRejected)

	require.Eventually(t, func() bool {
		return rec.revokedCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSynchronizer_EventBurstCoalesces(t *testing.T) {
	poller, hub, _, s := newSyncFixture(t, clientsync.StatePending, clientsync.Options{
		PollInterval: time.Hour,
	})
	require.NoError(t, s.Start(context.Background()))

	for i := 0; i < 50; i++ {
		publishRequestUpdate(hub)
	}

	require.Eventually(t, func() bool {
		return poller.count() >= 2
	}, time.Second, 5*time.Millisecond)

	// バーストが1イベント=1ポーリングに増幅されない
	time.Sleep(50 * time.Millisecond)
	assert.Less(t, poller.count(), 10)
}
