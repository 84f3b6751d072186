package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	applogger "project-selector/backend/pkg/logger"
)

// SolvePath 求解服务的提交路由
const SolvePath = "/solve"

// 上游错误体最多保留的字节数
const maxErrorBody = 64 << 10

// ServiceError 求解服务调用失败
// StatusCode 为 0 表示请求未到达服务（网络错误、超时等）
type ServiceError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("求解服务请求失败: %v", e.Err)
	}
	if e.Body != "" {
		return e.Body
	}
	return fmt.Sprintf("求解服务返回 HTTP %d", e.StatusCode)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Client 求解服务 HTTP 客户端
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient 创建客户端，timeout 为单次请求总超时（同步模式需覆盖整个求解时长）
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Solve 同步求解，响应体即求解结果
func (c *Client) Solve(ctx context.Context, req *Request) (*Result, error) {
	body, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}

	var res Result
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, &ServiceError{StatusCode: http.StatusOK, Body: "求解结果格式错误: " + err.Error(), Err: err}
	}
	return &res, nil
}

// SubmitDeferred 异步提交，2xx 即表示已受理
func (c *Client) SubmitDeferred(ctx context.Context, req *DeferredRequest) error {
	_, err := c.post(ctx, req)
	return err
}

func (c *Client) post(ctx context.Context, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化求解请求失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+SolvePath, bytes.NewReader(raw))
	if err != nil {
		return nil, &ServiceError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if rid := applogger.RequestID(ctx); rid != "" {
		httpReq.Header.Set(applogger.RequestIDHeader, rid)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &ServiceError{Err: err}
	}
	defer resp.Body.Close()

	// 同步结果大小随学生数增长，不做截断；错误响应只保留前 maxErrorBody 字节
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &ServiceError{StatusCode: resp.StatusCode, Body: string(text)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Err: err}
	}
	return body, nil
}
