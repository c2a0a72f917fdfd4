// Package skin adapts engine/renderer/animator's skeletal compute-dispatch
// backend to drawable.Drawable's SkinIndex scheme: instead of one Animator
// per unique Model (the teacher's per-GameObject pooling), one Animator
// backs each skinned entity's joint-matrix compute pass, addressed by the
// scene-wide SkinIndex recorded on its Drawable.
package skin

import (
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/oxy-go/renderer-core/engine/renderer/animator"
)

// Manager owns the scene's skinned-drawable animators, indexed by the
// SkinIndex a drawable.Registry.Finalize call assigned them.
type Manager struct {
	mu      sync.RWMutex
	entries []animator.Animator
	pool    worker.DynamicWorkerPool
}

// NewManager creates an empty skin manager with a worker pool sized for
// parallel per-frame joint-matrix prep, mirroring the teacher's compute
// pool sizing in engine/scene (one pool, reused across frames).
func NewManager(workers int) *Manager {
	if workers < 1 {
		workers = 1
	}
	return &Manager{
		pool: worker.NewDynamicWorkerPool(workers, 256, time.Second),
	}
}

// Reserve allocates the next SkinIndex and binds anim to it. Called once
// per skinned primitive from drawable.Registry.Finalize's nextSkinIndex
// callback.
func (m *Manager) Reserve(anim animator.Animator) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := int32(len(m.entries))
	m.entries = append(m.entries, anim)
	return idx
}

// Get returns the Animator bound to skinIndex, or ok=false for a static
// drawable's SkinIndex of -1 or an out-of-range index.
func (m *Manager) Get(skinIndex int32) (animator.Animator, bool) {
	if skinIndex < 0 {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if int(skinIndex) >= len(m.entries) {
		return nil, false
	}
	return m.entries[skinIndex], true
}

// PrepareAll advances every registered animator's CPU-side animation state
// and flushes its staged joint-matrix writes in parallel, following the
// teacher's PrepareCompute "submit to pool, WaitGroup barrier" idiom rather
// than pool.Wait() (which blocks on worker idle-exit, not per-frame
// completion).
//
// Parameters:
//   - deltaTime: elapsed time since the last frame in seconds
//   - uniformBinding, instanceBinding, boneBinding, modelBinding: bind
//     group binding indices resolved from the skinning compute shader's
//     annotations, shared across all skinned drawables in the scene
func (m *Manager) PrepareAll(deltaTime float32, uniformBinding, instanceBinding, boneBinding, modelBinding int) {
	m.mu.RLock()
	entries := make([]animator.Animator, len(m.entries))
	copy(entries, m.entries)
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for i, anim := range entries {
		if anim == nil || anim.InstanceCount() == 0 {
			continue
		}
		wg.Add(1)
		a := anim
		m.pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				a.PrepareFrame(deltaTime, uniformBinding)
				a.Flush(instanceBinding, boneBinding, modelBinding)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

// Bind rebinds an already-reserved SkinIndex to a concrete Animator, once the
// loader has constructed it. Reserve is called during drawable.Registry.Finalize,
// before the loader has necessarily built the corresponding Animator, so a skin
// slot starts out nil and must be bound afterward via this method.
func (m *Manager) Bind(skinIndex int32, anim animator.Animator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if skinIndex < 0 || int(skinIndex) >= len(m.entries) {
		return
	}
	m.entries[skinIndex] = anim
}

// Len returns the number of skin entries registered so far.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
