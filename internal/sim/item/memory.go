package item

// Memory is a Spawner that keeps live items in a map. Release of an unknown or
// already released handle is counted as a double release.
type Memory struct {
	next     Handle
	live     map[Handle]Item
	spawned  int
	released int
	doubles  int
}

func NewMemory() *Memory {
	return &Memory{live: map[Handle]Item{}}
}

func (m *Memory) Spawn(it Item) Handle {
	m.next++
	m.live[m.next] = it
	m.spawned++
	return m.next
}

func (m *Memory) Release(h Handle) {
	if _, ok := m.live[h]; !ok {
		m.doubles++
		return
	}
	delete(m.live, h)
	m.released++
}

func (m *Memory) Live() int           { return len(m.live) }
func (m *Memory) Spawned() int        { return m.spawned }
func (m *Memory) ReleasedCount() int  { return m.released }
func (m *Memory) DoubleReleases() int { return m.doubles }

// Each visits live items in no particular order.
func (m *Memory) Each(fn func(Handle, Item)) {
	for h, it := range m.live {
		fn(h, it)
	}
}
