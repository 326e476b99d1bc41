package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_Memory(t *testing.T) {
	c := NewCollector("test", prometheus.NewRegistry())

	c.MemoryStored("working")
	c.MemoryStored("working")
	c.MemoryStored("semantic")
	c.MemoriesEvicted("capacity", 3)
	c.MemoriesEvicted("age", 0)
	c.MemoriesPromoted("episodic", 2)
	c.Recall(4)
	c.StoreError("store")
	c.LayerSize("working", 7)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.memoriesStored.WithLabelValues("working")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.memoriesStored.WithLabelValues("semantic")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.memoriesEvicted.WithLabelValues("capacity")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.memoriesEvicted.WithLabelValues("age")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.memoriesPromoted.WithLabelValues("episodic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.recalls))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.storeErrors.WithLabelValues("store")))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.layerSize.WithLabelValues("working")))
}

func TestCollector_Session(t *testing.T) {
	c := NewCollector("test", prometheus.NewRegistry())

	c.SessionStarted("passive")
	c.SessionEnded(30 * time.Second)
	c.SignalRecorded("expression")
	c.SignalRecorded("expression")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionsStarted.WithLabelValues("passive")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.signalsRecorded.WithLabelValues("expression")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.sessionDuration))
}

func TestCollector_Events(t *testing.T) {
	c := NewCollector("test", prometheus.NewRegistry())

	c.EventHandled("speak", nil)
	c.EventHandled("speak", nil)
	c.EventHandled("speak", errors.New("speaker gone"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.eventsHandled.WithLabelValues("speak", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.eventsHandled.WithLabelValues("speak", "error")))
}

func TestCollector_Nil(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.MemoryStored("working")
		c.MemoriesEvicted("age", 1)
		c.Recall(1)
		c.SessionEnded(time.Second)
		c.SignalRecorded("attention")
		c.EventHandled("amplitude", nil)
	})
}
