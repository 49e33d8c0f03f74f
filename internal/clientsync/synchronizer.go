// Package clientsync は「自分のアクセス状態」のクライアント側ビューを
// サーバーの真実へ収束させる。push通知と定期ポーリングの2チャネルを
// 1つの状態機械にまとめ、どちらが死んでも既定のポーリング間隔以内に
// 取り消し（approved→rejected）へ追従できることを保証する。
package clientsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"comedor/internal/push"

	"github.com/labstack/gommon/log"
)

// クライアントから見たアクセス状態。
type AccessState string

const (
	StateNone     AccessState = "none"
	StatePending  AccessState = "pending"
	StateApproved AccessState = "approved"
	StateRejected AccessState = "rejected"
)

// 依頼テーブルの購読名。
const RequestsTable = "adjustment_requests"

var (
	ErrAlreadyStarted = errors.New("synchronizer already started")
	ErrStopped        = errors.New("synchronizer stopped")
)

// サーバーへの問い合わせ。常にコミット済みの最新状態を返すこと。
type Poller interface {
	PollAccessState(ctx context.Context) (AccessState, error)
}

type Options struct {
	// 冗長化ポーリングの間隔。stateがpending/approvedの間だけ回る。
	PollInterval time.Duration

	// ポーリング失敗時の初回リトライ待ち。倍々でPollIntervalまで伸びる。
	RetryBase time.Duration

	// 連続失敗がこの回数に達したらOnErrorへ通知する（状態は消さない）。
	MaxPollFailures int

	// 状態が実際に変わったときだけ呼ばれる。
	OnChange func(old, new AccessState)

	// approved→rejected（取り消し）のときだけ呼ばれる。猶予なし。
	OnRevoked func()

	OnError func(err error)

	Logger *log.Logger
}

const (
	defaultPollInterval    = 2 * time.Second
	defaultRetryBase       = 250 * time.Millisecond
	defaultMaxPollFailures = 5
)

// Synchronizer は1クライアント分の状態同期ループ。
// pushイベントは起こすための合図としてだけ扱い、状態の更新は
// 必ず再ポーリングの結果で行う（pushのpayloadはコミット可視性と
// 競合しうるので信用しない）。
type Synchronizer struct {
	poller Poller
	source push.Source
	opts   Options
	logger *log.Logger

	mu          sync.Mutex
	state       AccessState
	lastApplied uint64

	seq atomic.Uint64

	wake     chan struct{}
	cancel   context.CancelFunc
	done     chan struct{}
	started  bool
	stopping bool
	stopped  sync.Once
}

func New(poller Poller, source push.Source, opts Options) *Synchronizer {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = defaultRetryBase
	}
	if opts.MaxPollFailures <= 0 {
		opts.MaxPollFailures = defaultMaxPollFailures
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New("clientsync")
	}
	return &Synchronizer{
		poller: poller,
		source: source,
		opts:   opts,
		logger: logger,
		state:  StateNone,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Start は基準となる1回のポーリングで初期状態を確定してから
// 同期ループを起動する。基準取得に失敗したら起動しない。
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	seq := s.seq.Add(1)
	st, err := s.poller.PollAccessState(ctx)
	if err != nil {
		return err
	}
	s.applySnapshot(seq, st)

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		cancel()
		return ErrStopped
	}
	s.cancel = cancel
	s.mu.Unlock()

	events, unsubscribe := s.source.Subscribe(RequestsTable)
	go s.run(runCtx, events, unsubscribe)
	return nil
}

// State は最後に適用された状態。
func (s *Synchronizer) State() AccessState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Refresh は次の再ポーリングを前倒しする（依頼送信直後などに使う）。
func (s *Synchronizer) Refresh() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Stop は購読とタイマーを解放してループの終了を待つ。何度呼んでもよい。
func (s *Synchronizer) Stop() {
	s.stopped.Do(func() {
		s.mu.Lock()
		s.stopping = true
		cancel := s.cancel
		s.mu.Unlock()
		if cancel == nil {
			close(s.done)
			return
		}
		cancel()
		<-s.done
	})
}

func (s *Synchronizer) run(ctx context.Context, events <-chan push.Event, unsubscribe func()) {
	defer close(s.done)
	defer unsubscribe()

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	var (
		failures int
		delay    time.Duration
		retry    <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return

		case _, ok := <-events:
			if !ok {
				// pushチャネルが死んだ。以後はポーリングだけで追従する。
				events = nil
				continue
			}
			// バーストは1回のポーリングにまとめる
			drainEvents(events)
			if retry != nil {
				continue
			}
			s.poll(ctx, &failures, &delay, &retry)

		case <-s.wake:
			if retry != nil {
				continue
			}
			s.poll(ctx, &failures, &delay, &retry)

		case <-ticker.C:
			// none/rejectedでは再照合は不要（再申請でpushかRefreshが起こす）
			if !s.needsPolling() {
				continue
			}
			if retry != nil {
				continue
			}
			s.poll(ctx, &failures, &delay, &retry)

		case <-retry:
			retry = nil
			s.poll(ctx, &failures, &delay, &retry)
		}
	}
}

func (s *Synchronizer) needsPolling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StatePending || s.state == StateApproved
}

func (s *Synchronizer) poll(ctx context.Context, failures *int, delay *time.Duration, retry *<-chan time.Time) {
	seq := s.seq.Add(1)

	st, err := s.poller.PollAccessState(ctx)
	if err != nil {
		// 失敗は「変化なし」扱い。直前の状態を保ったままリトライを予約する。
		*failures++
		if *delay == 0 {
			*delay = s.opts.RetryBase
		} else {
			*delay *= 2
		}
		if *delay > s.opts.PollInterval {
			*delay = s.opts.PollInterval
		}
		*retry = time.After(*delay)

		s.logger.Warnf("poll failed (%d consecutive): %v", *failures, err)
		if *failures == s.opts.MaxPollFailures && s.opts.OnError != nil {
			s.opts.OnError(err)
		}
		return
	}

	*failures = 0
	*delay = 0
	*retry = nil
	s.applySnapshot(seq, st)
}

// applySnapshot は発行順（seq）で新しい結果だけを適用する。
// 古いポーリング結果が遅れて届いても新しい状態を巻き戻さない。
func (s *Synchronizer) applySnapshot(seq uint64, st AccessState) {
	s.mu.Lock()
	if seq <= s.lastApplied {
		s.mu.Unlock()
		return
	}
	s.lastApplied = seq

	old := s.state
	if st == old {
		s.mu.Unlock()
		return
	}
	s.state = st
	s.mu.Unlock()

	if s.opts.OnChange != nil {
		s.opts.OnChange(old, st)
	}
	if old == StateApproved && st == StateRejected && s.opts.OnRevoked != nil {
		s.opts.OnRevoked()
	}
}

func drainEvents(events <-chan push.Event) {
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
