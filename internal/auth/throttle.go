package auth

import (
	"sync"
	"time"
)

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// Throttle は IP ごとのログイン失敗回数を数え、一定回数を超えたら一時的にロックします。
type Throttle struct {
	maxAttempts int
	window      time.Duration
	lockFor     time.Duration
	now         func() time.Time

	lock      sync.Mutex
	attempts  map[string]*attemptState
	lastSweep time.Time
}

// NewThrottle は Throttle を作成します。maxAttempts が 0 以下の場合は制限しません。
func NewThrottle(maxAttempts int, window, lockFor time.Duration) *Throttle {
	return &Throttle{
		maxAttempts: maxAttempts,
		window:      window,
		lockFor:     lockFor,
		now:         time.Now,
		attempts:    make(map[string]*attemptState),
	}
}

// Enabled は制限が有効かを返します。
func (t *Throttle) Enabled() bool {
	return t != nil && t.maxAttempts > 0
}

// Check はロック中であれば残り時間を返します。ロックされていなければ 0 です。
func (t *Throttle) Check(ip string) time.Duration {
	if !t.Enabled() {
		return 0
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	state, ok := t.attempts[ip]
	if !ok {
		return 0
	}
	now := t.now()
	if !now.Before(state.lockedUntil) {
		return 0
	}
	return state.lockedUntil.Sub(now)
}

// RecordFailure は失敗を記録し、ロックまでの残り回数を返します。
func (t *Throttle) RecordFailure(ip string) int {
	if !t.Enabled() {
		return 0
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	now := t.now()
	t.sweepLocked(now)

	state, ok := t.attempts[ip]
	if !ok || now.Sub(state.firstAttempt) > t.window {
		state = &attemptState{firstAttempt: now}
		t.attempts[ip] = state
	}

	state.count++
	if state.count >= t.maxAttempts {
		state.lockedUntil = now.Add(t.lockFor)
		state.count = t.maxAttempts
	}

	return max(t.maxAttempts-state.count, 0)
}

// Reset はログイン成功時に失敗履歴を消去します。
func (t *Throttle) Reset(ip string) {
	if !t.Enabled() {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()
	delete(t.attempts, ip)
}

// sweepLocked は期間もロックも終わったエントリを削除します。
// 走査は sweepInterval に一度だけ行います。t.lock を保持して呼び出してください。
func (t *Throttle) sweepLocked(now time.Time) {
	if now.Sub(t.lastSweep) < t.sweepInterval() {
		return
	}
	t.lastSweep = now

	for ip, state := range t.attempts {
		if now.Sub(state.firstAttempt) > t.window && !now.Before(state.lockedUntil) {
			delete(t.attempts, ip)
		}
	}
}

func (t *Throttle) sweepInterval() time.Duration {
	return max(min(t.window, t.lockFor), time.Second)
}
