package lesson

import "sync"

// Snapshot published state of one category. Items is shared between
// subscribers and must not be modified.
type Snapshot struct {
	Category   Category
	Items      []Item
	Loading    bool
	Err        error // last fetch failure, Items keeps the last good list
	Generation uint64
}

// ObservableList current Snapshot of a category plus its subscribers.
// Subscribers are called synchronously, in publish order, and must not
// subscribe or publish from inside the callback.
type ObservableList struct {
	notify sync.Mutex // serializes deliveries

	mu      sync.Mutex
	current Snapshot
	subs    []subscriber
	nextID  int
}

type subscriber struct {
	id int
	fn func(Snapshot)
}

func newObservableList(category Category) *ObservableList {
	return &ObservableList{
		current: Snapshot{Category: category},
	}
}

// Value current snapshot
func (ol *ObservableList) Value() Snapshot {
	ol.mu.Lock()
	defer ol.mu.Unlock()
	return ol.current
}

// Subscribe delivers the current snapshot to fn right away and every later
// one until cancel is called
func (ol *ObservableList) Subscribe(fn func(Snapshot)) (cancel func()) {
	ol.notify.Lock()
	defer ol.notify.Unlock()

	ol.mu.Lock()
	id := ol.nextID
	ol.nextID++
	ol.subs = append(ol.subs, subscriber{id, fn})
	current := ol.current
	ol.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			ol.mu.Lock()
			defer ol.mu.Unlock()
			for i, sub := range ol.subs {
				if sub.id == id {
					ol.subs = append(ol.subs[:i:i], ol.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (ol *ObservableList) publish(s Snapshot) {
	ol.notify.Lock()
	defer ol.notify.Unlock()

	ol.mu.Lock()
	ol.current = s
	subs := ol.subs
	ol.mu.Unlock()

	for _, sub := range subs {
		sub.fn(s)
	}
}
