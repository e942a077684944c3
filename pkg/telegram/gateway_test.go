package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"fitclub/backend/config"
)

// fakeBotServer 模拟 Telegram Bot API，记录 sendMessage 请求
type fakeBotServer struct {
	mu       sync.Mutex
	sent     []url.Values
	failSend bool
}

func (f *fakeBotServer) handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"FitClub","username":"fitclub_bot"}}`)
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		_ = r.ParseForm()
		f.mu.Lock()
		f.sent = append(f.sent, r.PostForm)
		f.mu.Unlock()
		if f.failSend {
			fmt.Fprint(w, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)
			return
		}
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":123,"type":"private"}}}`)
	default:
		http.NotFound(w, r)
	}
}

func setupGateway(t *testing.T, fake *fakeBotServer) *Gateway {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(srv.Close)

	gw, err := newGateway(&config.TelegramConfig{
		BotToken:    "test-token",
		SendTimeout: 5 * time.Second,
	}, srv.URL+"/bot%s/%s", zap.NewNop())
	if err != nil {
		t.Fatalf("newGateway 应成功: %v", err)
	}
	return gw
}

func TestSend_Success(t *testing.T) {
	fake := &fakeBotServer{}
	gw := setupGateway(t, fake)

	ok := gw.Send(context.Background(), "123", Message{
		Text: "<b>Напоминание</b>",
		Buttons: [][]Button{
			{{Text: "Открыть", URL: "https://meet.example.com/x"}},
			{{Text: "Добавить", CallbackData: "meal_lunch"}},
		},
	})
	if !ok {
		t.Fatal("Send 应成功")
	}

	if len(fake.sent) != 1 {
		t.Fatalf("期望 1 次 sendMessage，实际 %d", len(fake.sent))
	}
	form := fake.sent[0]
	if form.Get("chat_id") != "123" {
		t.Errorf("chat_id 期望 123，实际 %s", form.Get("chat_id"))
	}
	if form.Get("parse_mode") != "HTML" {
		t.Errorf("parse_mode 期望 HTML，实际 %s", form.Get("parse_mode"))
	}
	if form.Get("disable_web_page_preview") != "true" {
		t.Errorf("应禁用链接预览")
	}
	markup := form.Get("reply_markup")
	if !strings.Contains(markup, "https://meet.example.com/x") || !strings.Contains(markup, "meal_lunch") {
		t.Errorf("reply_markup 缺少按钮: %s", markup)
	}
}

func TestSend_APIError(t *testing.T) {
	fake := &fakeBotServer{failSend: true}
	gw := setupGateway(t, fake)

	if gw.Send(context.Background(), "123", Message{Text: "hi"}) {
		t.Error("API 返回错误时 Send 应返回 false")
	}
}

func TestSend_InvalidHandle(t *testing.T) {
	fake := &fakeBotServer{}
	gw := setupGateway(t, fake)

	if gw.Send(context.Background(), "not-a-number", Message{Text: "hi"}) {
		t.Error("无效 handle 应返回 false")
	}
	if gw.Send(context.Background(), "", Message{Text: "hi"}) {
		t.Error("空 handle 应返回 false")
	}
	if len(fake.sent) != 0 {
		t.Errorf("无效 handle 不应发出请求，实际 %d 次", len(fake.sent))
	}
}

func TestSend_CanceledContext(t *testing.T) {
	fake := &fakeBotServer{}
	gw := setupGateway(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if gw.Send(ctx, "123", Message{Text: "hi"}) {
		t.Error("已取消的 context 不应发送")
	}
}

func TestNewGateway_Disabled(t *testing.T) {
	gw, err := NewGateway(&config.TelegramConfig{}, zap.NewNop())
	if err != nil {
		t.Fatalf("未配置 token 不应报错: %v", err)
	}
	if gw.Enabled() {
		t.Error("未配置 token 时网关应禁用")
	}
	if gw.Send(context.Background(), "123", Message{Text: "hi"}) {
		t.Error("禁用网关的 Send 应返回 false")
	}
}
