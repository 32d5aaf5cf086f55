package pkg

import "sync"

// KeyedMutex serializes callers that share a key. Entries are dropped once nobody holds or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		locks: make(map[string]*keyedLock),
	}
}

// Lock - blocks until key is free and returns the function releasing it.
func (that *KeyedMutex) Lock(key string) func() {
	that.mu.Lock()
	lock, ok := that.locks[key]
	if !ok {
		lock = &keyedLock{}
		that.locks[key] = lock
	}
	lock.refs++
	that.mu.Unlock()

	lock.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			lock.mu.Unlock()

			that.mu.Lock()
			lock.refs--
			if lock.refs == 0 {
				delete(that.locks, key)
			}
			that.mu.Unlock()
		})
	}
}

// Len - returns the number of keys currently held or awaited.
func (that *KeyedMutex) Len() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.locks)
}
