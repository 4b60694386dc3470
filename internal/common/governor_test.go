package common

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGovernor_AcquireRelease(t *testing.T) {
	gov := NewGovernor(100, 2)

	err := gov.Acquire(context.Background())
	assert.NoError(t, err)
	gov.Release()
}

func TestGovernor_BoundsInFlightCalls(t *testing.T) {
	gov := NewGovernor(1000, 2)

	var inFlight, peak int64
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := gov.Guard(context.Background(), func() error {
				n := atomic.AddInt64(&inFlight, 1)
				// 记录峰值
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt64(&inFlight, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, int64(2), "同时在途的调用数不能超过上限")
}

func TestGovernor_AcquireHonorsCancellation(t *testing.T) {
	gov := NewGovernor(100, 1)

	// 占住唯一的槽位
	assert.NoError(t, gov.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := gov.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	gov.Release()
}

func TestGovernor_ObserveQuotaPausesWhenLow(t *testing.T) {
	gov := NewGovernor(1000, 4)

	reset := time.Now().Add(50 * time.Millisecond)
	gov.ObserveQuota(1, reset)

	start := time.Now()
	err := gov.Acquire(context.Background())
	assert.NoError(t, err)
	gov.Release()

	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond,
		"配额见底后应该等到重置时间再放行")
}

func TestGovernor_ObserveQuotaIgnoresHealthyQuota(t *testing.T) {
	gov := NewGovernor(1000, 4)

	gov.ObserveQuota(4000, time.Now().Add(time.Hour))

	start := time.Now()
	assert.NoError(t, gov.Acquire(context.Background()))
	gov.Release()
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestGovernor_GuardReleasesOnError(t *testing.T) {
	gov := NewGovernor(1000, 1)

	_ = gov.Guard(context.Background(), func() error {
		return assert.AnError
	})

	// 出错之后槽位必须已经被归还
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, gov.Acquire(ctx))
	gov.Release()
}

func TestGovernor_GuardNilFunction(t *testing.T) {
	gov := NewGovernor(1, 1)
	assert.Error(t, gov.Guard(context.Background(), nil))
}
