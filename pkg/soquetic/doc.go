// Package soquetic даёт REST-подобную обёртку над одним socket.io соединением.
//
// Клиент даёт три операции поверх событий socket.io:
//
//   - GetEvent("users?active=true", cb) отправляет GET:users с {query} и ждёт ack;
//   - PostEvent("users", data, cb) отправляет POST:users с {data, query};
//   - SubscribeRealTimeEvent("chat", cb) слушает broadcast RT:chat.
//
// Ответ сервера приходит конвертом {status, message?, data}. В callback попадает
// только data и только при status == 200; иначе в Options.OnError приходит
// *RemoteError. Пока соединение не в состоянии connected, операции сразу
// возвращают ErrNotConnected и ничего не отправляют.
//
// Ошибки подключения и разрывы не паникуют, а публикуются в States().
//
// Пример:
//
//	c := soquetic.New(soquetic.Options{Logger: logger})
//	_ = c.Connect(3000)
//	if err := c.WaitConnected(ctx); err != nil { log.Fatal(err) }
//	defer c.Close()
//
//	_ = c.GetEvent("users?active=true", func(d soquetic.Data) {
//	    var users []User
//	    _ = d.Decode(&users)
//	})
//
//	// или синхронно:
//	d, err := c.Post(ctx, "users", User{Name: "ana"})
package soquetic
