/*
scheduler.go - Background holiday cache refresh

PURPOSE:
  The business calendar caches the holiday set for the process lifetime.
  This refresher reloads it on a fixed interval so a mid-run holiday
  edit is eventually picked up without a restart. Refresh failures are
  logged and the stale cache stays in service.
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/attendance-engine/ledger"
)

// HolidayRefresher periodically reloads the calendar's holiday cache.
type HolidayRefresher struct {
	Calendar *ledger.Calendar
	Interval time.Duration
	Log      *zap.Logger

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewHolidayRefresher(calendar *ledger.Calendar, interval time.Duration, log *zap.Logger) *HolidayRefresher {
	if log == nil {
		log = zap.NewNop()
	}
	return &HolidayRefresher{
		Calendar: calendar,
		Interval: interval,
		Log:      log,
		stop:     make(chan struct{}),
	}
}

// Start launches the refresh loop. A non-positive interval disables it.
func (r *HolidayRefresher) Start() {
	if r.Interval <= 0 {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if err := r.Calendar.Refresh(ctx); err != nil {
					r.Log.Warn("holiday refresh failed, cache stays stale", zap.Error(err))
				}
				cancel()
			case <-r.stop:
				return
			}
		}
	}()
}

// Stop halts the loop and waits for it to exit.
func (r *HolidayRefresher) Stop() {
	r.once.Do(func() { close(r.stop) })
	r.wg.Wait()
}
