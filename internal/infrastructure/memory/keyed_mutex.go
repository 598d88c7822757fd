package memory

import (
	"context"
	"sync"
)

// KeyedMutex tabla de locks exclusivos por producto. Productos distintos nunca comparten lock.
// La adquisición respeta la cancelación del contexto; las entradas se liberan al quedar sin uso.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*keyLock
}

type keyLock struct {
	sem  chan struct{} // capacidad 1: lleno = tomado
	refs int           // holders + waiters
}

// NewKeyedMutex crea una tabla vacía.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[int64]*keyLock)}
}

// Lock bloquea key hasta obtener el lock o hasta que ctx termine.
// Devuelve la función de liberación; llamarla más de una vez no tiene efecto.
func (k *KeyedMutex) Lock(ctx context.Context, key int64) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		k.release(key, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			k.release(key, l)
		})
	}, nil
}

// Len número de claves con holders o waiters (tests).
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func (k *KeyedMutex) release(key int64, l *keyLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}
