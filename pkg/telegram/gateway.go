package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"fitclub/backend/config"
)

// Button 内联键盘按钮；URL 与 CallbackData 二选一
type Button struct {
	Text         string
	URL          string
	CallbackData string
}

// Message 待发送的消息
// Text 使用 HTML 解析模式；Buttons 每个元素为一行
type Message struct {
	Text    string
	Buttons [][]Button
}

// Gateway Telegram 消息网关
// 每条消息只做一次尽力投递，失败不重试
type Gateway struct {
	bot    *tgbotapi.BotAPI
	logger *zap.Logger
}

// NewGateway 创建消息网关
// 未配置 bot_token 时返回禁用状态的网关，所有发送均视为失败
func NewGateway(cfg *config.TelegramConfig, logger *zap.Logger) (*Gateway, error) {
	return newGateway(cfg, tgbotapi.APIEndpoint, logger)
}

func newGateway(cfg *config.TelegramConfig, endpoint string, logger *zap.Logger) (*Gateway, error) {
	if cfg.BotToken == "" {
		logger.Warn("未配置 Telegram bot_token，消息网关已禁用")
		return &Gateway{logger: logger}, nil
	}

	client := &http.Client{Timeout: cfg.SendTimeout}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("Telegram 初始化失败: %w", err)
	}
	bot.Debug = cfg.Debug

	logger.Info("Telegram 网关就绪", zap.String("bot", bot.Self.UserName))
	return &Gateway{bot: bot, logger: logger}, nil
}

// Enabled 网关是否可用
func (g *Gateway) Enabled() bool {
	return g.bot != nil
}

// Send 向 handle 发送一条消息，返回是否投递成功
// handle 为数字 chat_id 或 @channel 用户名
func (g *Gateway) Send(ctx context.Context, handle string, msg Message) bool {
	if g.bot == nil || handle == "" {
		return false
	}
	if err := ctx.Err(); err != nil {
		return false
	}

	out, err := buildMessage(handle, msg)
	if err != nil {
		g.logger.Warn("无效的 Telegram 接收方", zap.String("handle", handle), zap.Error(err))
		return false
	}

	if _, err := g.bot.Send(out); err != nil {
		g.logger.Warn("Telegram 发送失败", zap.String("handle", handle), zap.Error(err))
		return false
	}
	return true
}

func buildMessage(handle string, msg Message) (tgbotapi.MessageConfig, error) {
	var out tgbotapi.MessageConfig
	if strings.HasPrefix(handle, "@") {
		out = tgbotapi.NewMessageToChannel(handle, msg.Text)
	} else {
		chatID, err := strconv.ParseInt(handle, 10, 64)
		if err != nil {
			return out, err
		}
		out = tgbotapi.NewMessage(chatID, msg.Text)
	}

	out.ParseMode = tgbotapi.ModeHTML
	out.DisableWebPagePreview = true

	if len(msg.Buttons) > 0 {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(msg.Buttons))
		for _, row := range msg.Buttons {
			buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, b := range row {
				if b.URL != "" {
					buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
				} else {
					buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.CallbackData))
				}
			}
			rows = append(rows, buttons)
		}
		out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}

	return out, nil
}
