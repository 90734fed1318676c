package pool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerPool(t *testing.T) {
	require := require.New(t)

	t.Run("GetAndPut", func(t *testing.T) {
		timer1 := GetTimer(10 * time.Millisecond)
		require.NotNil(timer1)
		<-timer1.C
		PutTimer(timer1)

		timer2 := GetTimer(10 * time.Millisecond)
		require.NotNil(timer2)
		<-timer2.C
		PutTimer(timer2)
	})

	t.Run("ReusedTimerHasNoStaleFire", func(t *testing.T) {
		timer1 := GetTimer(10 * time.Millisecond)
		time.Sleep(30 * time.Millisecond) // let it fire without draining
		PutTimer(timer1)

		begin := time.Now()
		timer2 := GetTimer(100 * time.Millisecond)

		select {
		case fired := <-timer2.C:
			require.GreaterOrEqual(fired.Sub(begin), 90*time.Millisecond,
				"reused timer fired early, stale tick leaked from the pool")
		case <-time.After(500 * time.Millisecond):
			t.Error("reused timer never fired")
		}

		PutTimer(timer2)
	})

	t.Run("PutActiveTimer", func(t *testing.T) {
		timer1 := GetTimer(100 * time.Millisecond)
		time.Sleep(10 * time.Millisecond)
		PutTimer(timer1) // still active when returned

		begin := time.Now()
		timer2 := GetTimer(50 * time.Millisecond)

		select {
		case fired := <-timer2.C:
			require.GreaterOrEqual(fired.Sub(begin), 40*time.Millisecond)
		case <-time.After(300 * time.Millisecond):
			t.Error("timer should have fired within 300ms")
		}

		PutTimer(timer2)
	})

	t.Run("Concurrency", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				timer := GetTimer(10 * time.Millisecond)
				defer PutTimer(timer)
				<-timer.C
			}()
		}
		wg.Wait()
	})
}
