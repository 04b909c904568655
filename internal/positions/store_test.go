package positions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velocityrp/livemap/internal/model"
)

// fakeClock returns a clock function and an advance helper.
func fakeClock(start time.Time) (func() time.Time, func(time.Duration)) {
	current := start
	return func() time.Time { return current },
		func(d time.Duration) { current = current.Add(d) }
}

func somePlayers() []model.PlayerPosition {
	return []model.PlayerPosition{
		{ID: 1, Name: "Avery", X: 120.5, Y: -340.25, Z: 31.2, Health: 100},
		{ID: 2, Name: "Banks", X: 800, Y: 2200, Z: 30, Health: 85, Job: "police"},
		{ID: 3, Name: "Cole", X: -45.5, Y: 19, Z: 72.1, Health: 40},
	}
}

func TestStore_ReadBeforeAnyIngest(t *testing.T) {
	clock, _ := fakeClock(time.Unix(1000, 0))
	s := New(clock)

	players, age, ok := s.Read()
	assert.False(t, ok)
	assert.Nil(t, players)
	assert.Equal(t, time.Duration(0), age)
	assert.Negative(t, s.Age())
}

func TestStore_IngestThenRead(t *testing.T) {
	clock, _ := fakeClock(time.Unix(1000, 0))
	s := New(clock)

	in := somePlayers()
	n := s.Ingest(in)
	assert.Equal(t, 3, n)

	players, age, ok := s.Read()
	require.True(t, ok)
	assert.Equal(t, in, players)
	assert.Equal(t, time.Duration(0), age)
}

func TestStore_IngestReplacesWholeSnapshot(t *testing.T) {
	clock, _ := fakeClock(time.Unix(1000, 0))
	s := New(clock)

	s.Ingest(somePlayers())
	s.Ingest([]model.PlayerPosition{{ID: 9, Name: "Drexl", X: 1, Y: 2, Z: 3}})

	players, _, ok := s.Read()
	require.True(t, ok)
	require.Len(t, players, 1)
	assert.Equal(t, 9, players[0].ID)
}

func TestStore_EmptyIngestIsNotNoData(t *testing.T) {
	clock, _ := fakeClock(time.Unix(1000, 0))
	s := New(clock)

	s.Ingest(nil)

	players, age, ok := s.Read()
	assert.True(t, ok, "empty push means zero trackable players, not absence of data")
	assert.Empty(t, players)
	assert.Equal(t, time.Duration(0), age)
}

func TestStore_AgeTracksClock(t *testing.T) {
	clock, advance := fakeClock(time.Unix(1000, 0))
	s := New(clock)

	s.Ingest(somePlayers())
	advance(42 * time.Second)

	_, age, ok := s.Read()
	require.True(t, ok)
	assert.Equal(t, 42*time.Second, age)
	assert.Equal(t, 42*time.Second, s.Age())
}

func TestStore_ReadReturnsCopy(t *testing.T) {
	clock, _ := fakeClock(time.Unix(1000, 0))
	s := New(clock)
	s.Ingest(somePlayers())

	first, _, _ := s.Read()
	first[0].Name = "mutated"

	second, _, _ := s.Read()
	assert.Equal(t, "Avery", second[0].Name)
}

func TestStore_IngestCopiesInput(t *testing.T) {
	clock, _ := fakeClock(time.Unix(1000, 0))
	s := New(clock)

	in := somePlayers()
	s.Ingest(in)
	in[0].Name = "mutated"

	players, _, _ := s.Read()
	assert.Equal(t, "Avery", players[0].Name)
}

func TestStore_NotifiesListeners(t *testing.T) {
	start := time.Unix(1000, 0)
	clock, _ := fakeClock(start)
	s := New(clock)

	var gotCount int
	var gotTime time.Time
	s.OnIngest(func(count int, now time.Time) {
		gotCount = count
		gotTime = now
	})

	s.Ingest(somePlayers())
	assert.Equal(t, 3, gotCount)
	assert.Equal(t, start, gotTime)

	s.Ingest(nil)
	assert.Equal(t, 0, gotCount)
}

func TestStore_ConcurrentReadsDuringIngest(t *testing.T) {
	s := New(time.Now)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			s.Ingest(somePlayers())
		}
	}()

	for i := 0; i < 500; i++ {
		players, _, ok := s.Read()
		if ok {
			// A read must never observe a half-written snapshot.
			assert.Len(t, players, 3)
		}
	}
	<-done
}
