package soquetic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Request описывает payload запросов GET:/POST:.
type Request struct {
	Query map[string]string `json:"query,omitempty"`
	Data  any               `json:"data,omitempty"`
}

// Response описывает конверт ответа в ack.
type Response struct {
	Status  int             `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// Data хранит поле data ответа или аргумент broadcast в виде сырого JSON.
type Data json.RawMessage

// Decode разбирает JSON в v.
func (d Data) Decode(v any) error {
	if len(d) == 0 {
		return json.Unmarshal([]byte("null"), v)
	}
	return json.Unmarshal(d, v)
}

func (d Data) IsNull() bool {
	t := bytes.TrimSpace(d)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func (d Data) String() string {
	if len(d) == 0 {
		return "null"
	}
	return string(d)
}

func (d Data) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("null"), nil
	}
	return d, nil
}

// Value возвращает данные как structpb.Value, удобно для ответов без схемы.
func (d Data) Value() (*structpb.Value, error) {
	if d.IsNull() {
		return structpb.NewNullValue(), nil
	}
	v := &structpb.Value{}
	if err := protojson.Unmarshal(d, v); err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	return v, nil
}

// unwrap разбирает аргументы ack: status != 200 превращается в RemoteError,
// иначе возвращается только data.
func unwrap(tag string, args []json.RawMessage, err error) (Data, error) {
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	var resp Response
	if len(args) > 0 {
		if err := json.Unmarshal(args[0], &resp); err != nil {
			return nil, fmt.Errorf("%s: malformed response: %w", tag, err)
		}
	}
	if resp.Status != http.StatusOK {
		msg := resp.Message
		if msg == "" {
			msg = defaultRemoteMessage
		}
		return nil, &RemoteError{Event: tag, Status: resp.Status, Message: msg}
	}
	return Data(resp.Data), nil
}

func firstArg(args []json.RawMessage) Data {
	if len(args) == 0 {
		return nil
	}
	return Data(args[0])
}
