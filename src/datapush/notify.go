package datapush

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DingTalkResponse 机器人接口响应
type DingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

type textMessage struct {
	MsgType string `json:"msgtype"`
	Text    struct {
		Content string `json:"content"`
	} `json:"text"`
}

// 钉钉机器人每分钟最多20条
const messagesPerMinute = 20

// Notifier 向钉钉兼容的机器人webhook推送文本消息
type Notifier struct {
	URL      string
	Retries  int
	Interval time.Duration
	Client   *http.Client
	Limiter  *rate.Limiter
}

func NewNotifier(url string, retries int, interval time.Duration) *Notifier {
	if retries < 1 {
		retries = 1
	}
	return &Notifier{
		URL:      url,
		Retries:  retries,
		Interval: interval,
		Client:   &http.Client{Timeout: 10 * time.Second},
		Limiter:  rate.NewLimiter(rate.Every(time.Minute/messagesPerMinute), messagesPerMinute),
	}
}

// Enabled 未配置URL时不推送
func (n *Notifier) Enabled() bool { return n != nil && n.URL != "" }

// Send 失败时按Interval重试, 共尝试Retries次
func (n *Notifier) Send(ctx context.Context, content string) error {
	var msg textMessage
	msg.MsgType = "text"
	msg.Text.Content = content
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化请求体失败: %w", err)
	}

	return retry(ctx, func() error {
		if n.Limiter != nil {
			if err := n.Limiter.Wait(ctx); err != nil {
				return err
			}
		}
		return n.post(ctx, payload)
	}, n.Retries, n.Interval)
}

func (n *Notifier) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook返回 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result DingTalkResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &result); err != nil {
			return fmt.Errorf("解析响应失败: %w", err)
		}
	}
	if result.ErrCode != 0 {
		return fmt.Errorf("发送消息失败: %s", result.ErrMsg)
	}
	return nil
}

// 重试函数
func retry(ctx context.Context, fn func() error, times int, interval time.Duration) error {
	var err error
	for i := 0; i < times; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < times-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
	}
	return fmt.Errorf("重试 %d 次后失败: %w", times, err)
}

// Summary 运行概况的文本形式, 键按字母排序
func Summary(b *Bundle) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "航线数据处理完成 run=%s\n", b.RunID)
	if b.Source != "" {
		fmt.Fprintf(&sb, "source: %s\n", b.Source)
	}
	if b.Result != nil {
		m := b.Result.CalculateMetrics()
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "%s: %v\n", k, m[k])
		}
	}
	if len(b.Summary) > 0 {
		best := b.Summary[0]
		for _, s := range b.Summary[1:] {
			if s.OpportunityScore != nil && (best.OpportunityScore == nil || *s.OpportunityScore > *best.OpportunityScore) {
				best = s
			}
		}
		if best.OpportunityScore != nil {
			fmt.Fprintf(&sb, "top opportunity: %s (%.3f)\n", best.Route, *best.OpportunityScore)
		}
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
