package client

import (
	"context"
	"sync"

	"github.com/anlik-eleman/backend/internal/models"
)

type authDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]chan models.AuthEvent
	nextID      int64
	bufferSize  int
}

func newAuthDispatcher() *authDispatcher {
	return &authDispatcher{
		subscribers: make(map[int64]chan models.AuthEvent),
		bufferSize:  16,
	}
}

// Subscribe registers a listener until ctx ends or the returned cleanup runs.
// The stream is never closed; listeners select on their own lifetime.
func (d *authDispatcher) Subscribe(ctx context.Context) (<-chan models.AuthEvent, func()) {
	stream := make(chan models.AuthEvent, d.bufferSize)
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subscribers[id] = stream
	d.mu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subscribers, id)
			d.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return stream, cleanup
}

// Publish delivers event to every listener without blocking. When a listener's
// buffer is full its oldest queued event is discarded so the newest state wins.
func (d *authDispatcher) Publish(event models.AuthEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, stream := range d.subscribers {
		for {
			select {
			case stream <- event:
			default:
				select {
				case <-stream:
				default:
				}
				continue
			}
			break
		}
	}
}

func (d *authDispatcher) subscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}
