package sio

import "sync"

// State описывает состояние соединения.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// StateChange публикуется при каждом переходе состояния.
// Err != nil, если переход вызван ошибкой (ErrConnectionFailed/ErrConnectionLost).
type StateChange struct {
	State State
	Err   error
	// Final: реконнекта не будет (Close, отказ сервера или реконнект выключен).
	Final bool
}

type watchers struct {
	mu      sync.Mutex
	chans   map[chan StateChange]struct{}
	last    *StateChange
	dropped int
}

func (w *watchers) subscribe(buf int) (<-chan StateChange, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.chans == nil {
		w.chans = make(map[chan StateChange]struct{})
	}
	ch := make(chan StateChange, buf)
	w.chans[ch] = struct{}{}
	// новый подписчик сразу получает последний переход
	if w.last != nil {
		ch <- *w.last
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			delete(w.chans, ch)
			close(ch)
		})
	}
}

// notify не блокируется: медленный подписчик теряет события.
func (w *watchers) notify(sc StateChange) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.last = &sc
	for ch := range w.chans {
		select {
		case ch <- sc:
		default:
			w.dropped++
		}
	}
}
