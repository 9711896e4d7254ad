package gpu

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/c2h5oh/datasize"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/waveline"
)

// GrowthFactor is the headroom applied when a buffer must be reallocated.
const GrowthFactor = 1.5

// bufferAlignment is the copy alignment every allocation is rounded up to.
const bufferAlignment = 4

// BufferStats contains buffer manager statistics.
type BufferStats struct {
	// Buffers is the number of live buffers.
	Buffers int

	// CapacityBytes is the total capacity of live buffers.
	CapacityBytes uint64

	// BudgetBytes is the configured budget, or 0 for unlimited.
	BudgetBytes uint64

	// Allocations is the total number of buffers created.
	Allocations uint64

	// Reuses is the total number of uploads written in place.
	Reuses uint64

	// Destroys is the total number of buffers released.
	Destroys uint64
}

// String returns a human-readable string of buffer stats.
func (s BufferStats) String() string {
	budget := "unlimited"
	if s.BudgetBytes > 0 {
		budget = datasize.ByteSize(s.BudgetBytes).HumanReadable()
	}
	return fmt.Sprintf("Buffers[%d live, %s of %s, %d allocs, %d reuses, %d destroys]",
		s.Buffers,
		datasize.ByteSize(s.CapacityBytes).HumanReadable(),
		budget,
		s.Allocations, s.Reuses, s.Destroys)
}

// BufferManagerConfig holds configuration for creating a BufferManager.
type BufferManagerConfig struct {
	// Budget caps the total capacity of live buffers. Zero means unlimited.
	Budget datasize.ByteSize

	// LabelPrefix is prepended to buffer debug labels.
	LabelPrefix string
}

type managedBuffer struct {
	buf      hal.Buffer
	capacity uint64
	usage    gputypes.BufferUsage
}

// BufferManager owns the GPU buffers of one renderer, keyed by logical name.
//
// Each name maps to at most one live allocation. Upsert writes in place when
// the existing allocation is large enough and otherwise replaces it with a
// larger one, destroying the old allocation exactly once. A destroyed buffer
// is never written again.
//
// BufferManager is safe for concurrent use.
type BufferManager struct {
	mu sync.Mutex

	device hal.Device
	queue  hal.Queue
	config BufferManagerConfig

	buffers   map[string]*managedBuffer
	usedBytes uint64

	allocations uint64
	reuses      uint64
	destroys    uint64

	closed bool
}

// NewBufferManager creates a buffer manager on device and queue.
func NewBufferManager(device hal.Device, queue hal.Queue, config BufferManagerConfig) *BufferManager {
	return &BufferManager{
		device:  device,
		queue:   queue,
		config:  config,
		buffers: make(map[string]*managedBuffer),
	}
}

// GrowCapacity returns the allocation size for n bytes of data:
// ceil(n*GrowthFactor) rounded up to the copy alignment.
func GrowCapacity(n int) uint64 {
	c := uint64(math.Ceil(float64(n) * GrowthFactor))
	if c == 0 {
		c = bufferAlignment
	}
	return (c + bufferAlignment - 1) &^ (bufferAlignment - 1)
}

// Upsert uploads data under name and returns the buffer holding it.
//
// If a buffer is registered under name with capacity >= len(data) and the
// same usage, data is written at offset 0 and the same buffer is returned.
// Usage is fixed at creation, so a usage change reallocates. Otherwise the old
// buffer (if any) is destroyed and a new one of GrowCapacity(len(data))
// bytes is allocated, written and registered. The returned bool reports
// whether a new allocation was made.
//
// CopyDst is always added to usage. On failure no buffer remains registered
// under name.
func (m *BufferManager) Upsert(name string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, false, waveline.ErrBufferManagerClosed
	}
	usage |= gputypes.BufferUsageCopyDst

	if mb, ok := m.buffers[name]; ok {
		if mb.capacity >= uint64(len(data)) && mb.usage == usage {
			if err := m.queue.WriteBuffer(mb.buf, 0, data); err != nil {
				m.releaseLocked(name, mb)
				return nil, false, fmt.Errorf("%w: write %s: %w", waveline.ErrBufferAlloc, name, err)
			}
			m.reuses++
			return mb.buf, false, nil
		}
		m.releaseLocked(name, mb)
	}

	capacity := GrowCapacity(len(data))
	if budget := uint64(m.config.Budget); budget > 0 && m.usedBytes+capacity > budget {
		return nil, false, fmt.Errorf("%w: %s needs %s, %s of %s in use",
			waveline.ErrBufferBudgetExceeded, name,
			datasize.ByteSize(capacity).HumanReadable(),
			datasize.ByteSize(m.usedBytes).HumanReadable(),
			m.config.Budget.HumanReadable())
	}

	buf, err := m.device.CreateBuffer(&hal.BufferDescriptor{
		Label: m.config.LabelPrefix + name,
		Size:  capacity,
		Usage: usage,
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: create %s (%d bytes): %w", waveline.ErrBufferAlloc, name, capacity, err)
	}
	if err := m.queue.WriteBuffer(buf, 0, data); err != nil {
		m.device.DestroyBuffer(buf)
		m.destroys++
		return nil, false, fmt.Errorf("%w: write %s: %w", waveline.ErrBufferAlloc, name, err)
	}

	m.buffers[name] = &managedBuffer{buf: buf, capacity: capacity, usage: usage}
	m.usedBytes += capacity
	m.allocations++

	slogger().Debug("gpu: buffer allocated",
		"name", name,
		"data", len(data),
		"capacity", capacity)

	return buf, true, nil
}

// releaseLocked destroys mb and unregisters name. Must hold m.mu.
func (m *BufferManager) releaseLocked(name string, mb *managedBuffer) {
	delete(m.buffers, name)
	m.device.DestroyBuffer(mb.buf)
	m.usedBytes -= mb.capacity
	m.destroys++
	mb.buf = nil
}

// Buffer returns the buffer registered under name, or nil.
func (m *BufferManager) Buffer(name string) hal.Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mb, ok := m.buffers[name]; ok {
		return mb.buf
	}
	return nil
}

// Capacity returns the capacity in bytes of the buffer registered under
// name, or 0.
func (m *BufferManager) Capacity(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mb, ok := m.buffers[name]; ok {
		return mb.capacity
	}
	return 0
}

// Names returns the registered buffer names in sorted order.
func (m *BufferManager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.buffers))
	for name := range m.buffers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns current statistics.
func (m *BufferManager) Stats() BufferStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return BufferStats{
		Buffers:       len(m.buffers),
		CapacityBytes: m.usedBytes,
		BudgetBytes:   uint64(m.config.Budget),
		Allocations:   m.allocations,
		Reuses:        m.reuses,
		Destroys:      m.destroys,
	}
}

// DestroyAll releases every registered buffer exactly once. Calling it on
// an empty manager is a no-op. The manager stays usable.
func (m *BufferManager) DestroyAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyAllLocked()
}

func (m *BufferManager) destroyAllLocked() {
	for name, mb := range m.buffers {
		m.releaseLocked(name, mb)
	}
}

// Close releases all buffers and rejects further uploads. Safe to call
// multiple times.
func (m *BufferManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.destroyAllLocked()
	m.closed = true
}
