// Package sio реализует WebSocket-клиент Socket.IO (Engine.IO v4, Socket.IO v5).
// Клиент подключается к серверу socket.io по адресу http(s)://host:port,
// отправляет события (с ack или без) и получает события сервера,
// автоматически реконнектится с экспоненциальным backoff.
//
// Возможности:
//
//   - On: накопительная регистрация обработчиков событий сервера;
//   - Emit: отправка события с одним payload и, опционально, AckFunc;
//   - Watch: поток StateChange (idle, connecting, connected, disconnected);
//   - Metrics: счётчики go-metrics (пакеты, ack, реконнекты).
//
// Безопасность и устойчивость:
//   - Запись в сокет сериализована (мьютекс + write-deadline).
//   - Heartbeat: сервер шлёт ping, клиент отвечает pong; read-deadline равен
//     pingInterval+pingTimeout из handshake.
//   - При разрыве все ожидающие AckFunc получают ErrConnectionLost.
//   - Обработчики и AckFunc вызываются из одной горутины чтения.
//
// Пример:
//
//	c := sio.New(sio.DefaultConfig())
//	c.On("RT:chat", func(args []json.RawMessage) { fmt.Println(args) })
//	c.Connect("http://localhost:3000")
//	defer c.Close()
//
//	_ = c.Emit("GET:users", map[string]any{}, func(args []json.RawMessage, err error) {
//	    fmt.Println(args, err)
//	})
package sio
