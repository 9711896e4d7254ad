package gpu

import (
	"errors"
	"strings"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/waveline"
	"github.com/gogpu/waveline/pack"
)

func newTestBufferManager(t *testing.T, budget datasize.ByteSize) (*BufferManager, *countingDevice, *checkingQueue) {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	t.Cleanup(cleanup)
	cd := newCountingDevice(device)
	cq := &checkingQueue{Queue: queue, dev: cd}
	return NewBufferManager(cd, cq, BufferManagerConfig{Budget: budget}), cd, cq
}

// vertexBytes returns the packed size of n vertices.
func vertexBytes(n int) []byte {
	return make([]byte, n*pack.VertexStrideBytes)
}

func TestGrowCapacity(t *testing.T) {
	tests := []struct {
		n    int
		want uint64
	}{
		{0, 4},
		{1, 4},
		{3, 8},
		{10, 16},
		{2000, 3000},
		{100000, 150000},
	}
	for _, tt := range tests {
		got := GrowCapacity(tt.n)
		if got != tt.want {
			t.Errorf("GrowCapacity(%d) = %d, want %d", tt.n, got, tt.want)
		}
		if got%4 != 0 {
			t.Errorf("GrowCapacity(%d) = %d, not 4-byte aligned", tt.n, got)
		}
		if got < uint64(tt.n) {
			t.Errorf("GrowCapacity(%d) = %d, smaller than data", tt.n, got)
		}
	}
}

func TestBufferManagerReusesWhenLargeEnough(t *testing.T) {
	m, cd, _ := newTestBufferManager(t, 0)

	first, allocated, err := m.Upsert("v", vertexBytes(100), gputypes.BufferUsageVertex)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if !allocated {
		t.Error("first Upsert did not report an allocation")
	}

	second, allocated, err := m.Upsert("v", vertexBytes(50), gputypes.BufferUsageVertex)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if allocated {
		t.Error("smaller Upsert reallocated")
	}
	if first != second {
		t.Error("smaller Upsert returned a different buffer")
	}
	if cd.creates != 1 || cd.destroys != 0 {
		t.Errorf("creates=%d destroys=%d, want 1 and 0", cd.creates, cd.destroys)
	}
	if s := m.Stats(); s.Reuses != 1 || s.Allocations != 1 {
		t.Errorf("Stats() = %+v, want 1 reuse and 1 allocation", s)
	}
}

// Streaming 100, then 5000, then 200 points must grow once and then keep
// the large buffer.
func TestBufferManagerGrowThenShrink(t *testing.T) {
	m, cd, cq := newTestBufferManager(t, 0)

	small, _, err := m.Upsert("vertices", vertexBytes(100), gputypes.BufferUsageVertex)
	if err != nil {
		t.Fatalf("Upsert(100): %v", err)
	}
	if got := m.Capacity("vertices"); got < 2000 || got > 3000 {
		t.Errorf("capacity after 100 points = %d, want within [2000, 3000]", got)
	}

	large, allocated, err := m.Upsert("vertices", vertexBytes(5000), gputypes.BufferUsageVertex)
	if err != nil {
		t.Fatalf("Upsert(5000): %v", err)
	}
	if !allocated || large == small {
		t.Fatal("growing Upsert did not allocate a new buffer")
	}
	if !cd.wasDestroyed(small) {
		t.Error("old buffer not destroyed on growth")
	}
	capacity := m.Capacity("vertices")
	if capacity < 100000 || capacity > 150000 {
		t.Errorf("capacity after 5000 points = %d, want within [100000, 150000]", capacity)
	}

	again, allocated, err := m.Upsert("vertices", vertexBytes(200), gputypes.BufferUsageVertex)
	if err != nil {
		t.Fatalf("Upsert(200): %v", err)
	}
	if allocated || again != large {
		t.Error("shrinking Upsert replaced the buffer")
	}
	if got := m.Capacity("vertices"); got != capacity {
		t.Errorf("capacity after shrink = %d, want %d", got, capacity)
	}

	if cd.doubleDestroys != 0 {
		t.Errorf("doubleDestroys = %d, want 0", cd.doubleDestroys)
	}
	if cq.writesDestroyed != 0 {
		t.Errorf("writes into destroyed buffers = %d, want 0", cq.writesDestroyed)
	}
	if cd.liveBuffers() != 1 {
		t.Errorf("live buffers = %d, want 1", cd.liveBuffers())
	}
}

func TestBufferManagerUsageChangeReallocates(t *testing.T) {
	m, cd, _ := newTestBufferManager(t, 0)

	if _, _, err := m.Upsert("b", make([]byte, 64), gputypes.BufferUsageVertex); err != nil {
		t.Fatal(err)
	}
	if _, allocated, err := m.Upsert("b", make([]byte, 64), gputypes.BufferUsageUniform); err != nil || !allocated {
		t.Fatalf("Upsert with new usage: allocated=%v err=%v, want a new allocation", allocated, err)
	}
	if cd.creates != 2 || cd.destroys != 1 {
		t.Errorf("creates=%d destroys=%d, want 2 and 1", cd.creates, cd.destroys)
	}
}

func TestBufferManagerDestroyAllIdempotent(t *testing.T) {
	m, cd, _ := newTestBufferManager(t, 0)

	for _, name := range []string{"a", "b", "c"} {
		if _, _, err := m.Upsert(name, make([]byte, 16), gputypes.BufferUsageVertex); err != nil {
			t.Fatal(err)
		}
	}
	if got := strings.Join(m.Names(), ","); got != "a,b,c" {
		t.Errorf("Names() = %q, want a,b,c", got)
	}

	m.DestroyAll()
	m.DestroyAll()

	if cd.destroys != 3 {
		t.Errorf("destroys = %d, want 3", cd.destroys)
	}
	if cd.doubleDestroys != 0 {
		t.Errorf("doubleDestroys = %d, want 0", cd.doubleDestroys)
	}
	if m.Buffer("a") != nil || m.Capacity("a") != 0 {
		t.Error("buffer still registered after DestroyAll")
	}
	if s := m.Stats(); s.Buffers != 0 || s.CapacityBytes != 0 {
		t.Errorf("Stats() after DestroyAll = %+v, want empty", s)
	}

	// The manager stays usable.
	if _, _, err := m.Upsert("a", make([]byte, 16), gputypes.BufferUsageVertex); err != nil {
		t.Errorf("Upsert after DestroyAll: %v", err)
	}
}

func TestBufferManagerClose(t *testing.T) {
	m, cd, _ := newTestBufferManager(t, 0)

	if _, _, err := m.Upsert("a", make([]byte, 16), gputypes.BufferUsageVertex); err != nil {
		t.Fatal(err)
	}
	m.Close()
	m.Close()

	if cd.destroys != 1 || cd.doubleDestroys != 0 {
		t.Errorf("destroys=%d doubleDestroys=%d, want 1 and 0", cd.destroys, cd.doubleDestroys)
	}
	_, _, err := m.Upsert("a", make([]byte, 16), gputypes.BufferUsageVertex)
	if !errors.Is(err, waveline.ErrBufferManagerClosed) {
		t.Errorf("Upsert after Close = %v, want ErrBufferManagerClosed", err)
	}
}

func TestBufferManagerBudget(t *testing.T) {
	m, cd, _ := newTestBufferManager(t, 4*datasize.KB)

	if _, _, err := m.Upsert("a", make([]byte, 2000), gputypes.BufferUsageVertex); err != nil {
		t.Fatalf("first Upsert within budget: %v", err)
	}
	_, _, err := m.Upsert("b", make([]byte, 2000), gputypes.BufferUsageVertex)
	if !errors.Is(err, waveline.ErrBufferBudgetExceeded) {
		t.Fatalf("Upsert over budget = %v, want ErrBufferBudgetExceeded", err)
	}
	if m.Buffer("b") != nil {
		t.Error("buffer registered despite budget failure")
	}
	if cd.creates != 1 {
		t.Errorf("creates = %d, want 1", cd.creates)
	}
	if s := m.Stats(); s.BudgetBytes != 4096 || s.CapacityBytes != 3000 {
		t.Errorf("Stats() = %+v, want budget 4096 and 3000 bytes in use", s)
	}
}

func TestBufferManagerAllocFailureUnregisters(t *testing.T) {
	m, cd, cq := newTestBufferManager(t, 0)

	old, _, err := m.Upsert("v", make([]byte, 100), gputypes.BufferUsageVertex)
	if err != nil {
		t.Fatal(err)
	}

	cd.setFailCreate(true)
	_, _, err = m.Upsert("v", make([]byte, 10000), gputypes.BufferUsageVertex)
	if !errors.Is(err, waveline.ErrBufferAlloc) {
		t.Fatalf("Upsert with failing device = %v, want ErrBufferAlloc", err)
	}
	if m.Buffer("v") != nil {
		t.Error("stale buffer still registered after allocation failure")
	}
	if !cd.wasDestroyed(old) {
		t.Error("old buffer not released after allocation failure")
	}

	cd.setFailCreate(false)
	if _, allocated, err := m.Upsert("v", make([]byte, 100), gputypes.BufferUsageVertex); err != nil || !allocated {
		t.Errorf("Upsert after recovery: allocated=%v err=%v", allocated, err)
	}
	if cd.doubleDestroys != 0 || cq.writesDestroyed != 0 {
		t.Errorf("doubleDestroys=%d writesDestroyed=%d, want 0", cd.doubleDestroys, cq.writesDestroyed)
	}
}

func TestBufferStatsString(t *testing.T) {
	s := BufferStats{Buffers: 2, CapacityBytes: 3000, Allocations: 3, Reuses: 4, Destroys: 1}
	got := s.String()
	for _, want := range []string{"2 live", "2.9 KB", "unlimited", "3 allocs", "4 reuses", "1 destroys"} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, missing %q", got, want)
		}
	}

	s.BudgetBytes = uint64(datasize.MB * 2)
	if got := s.String(); !strings.Contains(got, "of 2.0 MB") {
		t.Errorf("String() = %q, want budget 2.0 MB", got)
	}
}
