// Package signature 实现求解服务回调的 HMAC-SHA256 签名校验。
//
// 签名对象是去掉 "hash" 字段后的回调体，先规范化再签名：
// 对象键按字典序递归排序，数组保持原顺序，数字按 ES6 规则输出，
// 不转义 HTML 字符，无多余空白。
package signature

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// HashField 回调体中携带签名的字段名
const HashField = "hash"

var (
	ErrMissingHash = errors.New("回调缺少签名字段")
	ErrNotObject   = errors.New("回调体必须是 JSON 对象")
)

// Canonicalize 输出 v 的规范化 JSON
// v 可以是任意可被 encoding/json 序列化的值
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("序列化签名载荷失败: %w", err)
	}
	return CanonicalizeJSON(raw)
}

// CanonicalizeJSON 规范化一段 JSON 文本
func CanonicalizeJSON(raw []byte) ([]byte, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("解析签名载荷失败: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeScalar(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return writeScalar(buf, t)
	}
	return nil
}

// writeScalar 字符串、数字、布尔与 null 交给 encoding/json，关闭 HTML 转义
func writeScalar(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("序列化签名载荷失败: %w", err)
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// Compute 计算载荷的十六进制 HMAC-SHA256 签名
func Compute(secret string, payload any) (string, error) {
	canonical, err := Canonicalize(payload)
	if err != nil {
		return "", err
	}
	return sign(secret, canonical), nil
}

func sign(secret string, canonical []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify 常量时间比较签名，长度不一致直接判为不通过
func Verify(secret string, payload any, hash string) bool {
	expected, err := Compute(secret, payload)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(hash)))
}

// VerifyBody 校验完整回调体：取出 hash 字段，对其余字段验签
func VerifyBody(secret string, body []byte) (bool, error) {
	var envelope map[string]any
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false, ErrNotObject
	}
	if envelope == nil {
		return false, ErrNotObject
	}

	hash, ok := envelope[HashField].(string)
	if !ok || hash == "" {
		return false, ErrMissingHash
	}
	delete(envelope, HashField)

	return Verify(secret, envelope, hash), nil
}

// Sign 为载荷追加 hash 字段，返回完整回调体
func Sign(secret string, payload map[string]any) ([]byte, error) {
	hash, err := Compute(secret, payload)
	if err != nil {
		return nil, err
	}

	signed := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		signed[k] = v
	}
	signed[HashField] = hash
	return json.Marshal(signed)
}
