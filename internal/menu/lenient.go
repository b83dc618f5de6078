package menu

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// 上流フィードはスキーマが不安定なため、型の食い違いはゼロ値として扱う。
// ここで定義する型のUnmarshalJSONはエラーを返さない。

// looseString は文字列または数値を受け付ける。それ以外は空文字列になる。
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		*s = ""
		return nil
	}
	switch t := v.(type) {
	case string:
		*s = looseString(t)
	case float64:
		*s = looseString(strconv.FormatFloat(t, 'f', -1, 64))
	default:
		*s = ""
	}
	return nil
}

// looseInt は数値または数字のみの文字列を受け付ける。それ以外は0になる。
type looseInt int

func (n *looseInt) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		*n = 0
		return nil
	}
	switch t := v.(type) {
	case float64:
		*n = looseInt(t)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			i = 0
		}
		*n = looseInt(i)
	default:
		*n = 0
	}
	return nil
}

// looseList は配列以外を空リストとして扱い、デコードできない要素は個別に捨てる。
type looseList[T any] []T

func (l *looseList[T]) UnmarshalJSON(data []byte) error {
	*l = nil
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if !decodeElement(raw, &v) {
			continue
		}
		out = append(out, v)
	}
	*l = out
	return nil
}

// orderedObject はJSONオブジェクトの値をドキュメント上のキー順で保持する。
// mapを経由するとキー順が失われるため、トークン単位で読む。
type orderedObject[T any] []T

func (o *orderedObject[T]) UnmarshalJSON(data []byte) error {
	*o = nil
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}

	var out []T
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			break
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			break
		}
		var v T
		if !decodeElement(raw, &v) {
			continue
		}
		out = append(out, v)
	}
	*o = out
	return nil
}

// decodeElement は要素そのものの型が合わない場合のみfalseを返す。
// フィールド単位の型エラーはそのフィールドをゼロ値のまま残して続行する。
func decodeElement[T any](raw json.RawMessage, v *T) bool {
	err := json.Unmarshal(raw, v)
	return err == nil || isFieldTypeError(err)
}

func isFieldTypeError(err error) bool {
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &typeErr) && typeErr.Field != ""
}
