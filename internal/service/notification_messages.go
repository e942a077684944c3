package service

import (
	"fmt"
	"html"
	"strings"
	"time"

	"fitclub/backend/internal/model"
	"fitclub/backend/pkg/telegram"
)

// ── Telegram 消息模板（面向会员，俄语） ──

var mealTitles = map[string]string{
	"breakfast": "🍳 Завтрак",
	"lunch":     "🍲 Обед",
	"dinner":    "🍝 Ужин",
}

var mealNames = map[string]string{
	"breakfast": "завтрак",
	"lunch":     "обед",
	"dinner":    "ужин",
}

func portalLink(base, path string) string {
	base = strings.TrimRight(base, "/")
	if base == "" {
		return ""
	}
	return base + path
}

func ruDate(t time.Time) string {
	return t.Format("02.01.2006")
}

func trainingHourMessage(t *model.Training, portalURL string) telegram.Message {
	text := fmt.Sprintf(
		"⏰ <b>Через час тренировка</b>\n«%s»\n🗓 %s, %s–%s\n\nСсылка на занятие откроется за %d минут до начала.",
		html.EscapeString(t.Title), ruDate(time.Time(t.Date)), t.StartTime, t.EndTime, int(LinkRevealLead.Minutes()),
	)

	msg := telegram.Message{Text: text}
	if link := portalLink(portalURL, "/trainings/"+t.TrainingID); link != "" {
		msg.Buttons = [][]telegram.Button{{{Text: "📅 Открыть тренировку", URL: link}}}
	}
	return msg
}

func trainingStartMessage(t *model.Training) telegram.Message {
	text := fmt.Sprintf(
		"🏁 <b>Тренировка начинается!</b>\n«%s»\n🕒 %s–%s\n\n<a href=\"%s\">Подключиться</a>",
		html.EscapeString(t.Title), t.StartTime, t.EndTime, html.EscapeString(t.MeetingLink),
	)
	return telegram.Message{
		Text:    text,
		Buttons: [][]telegram.Button{{{Text: "▶️ Подключиться", URL: t.MeetingLink}}},
	}
}

func renewalMessage(sub *model.Subscription, leadDays int, portalURL string) telegram.Message {
	var until string
	if sub.EndDate != nil {
		until = ruDate(time.Time(*sub.EndDate))
	}
	text := fmt.Sprintf(
		"💳 <b>Абонемент заканчивается через %d дн.</b>\nСрок действия: до %s.\nПродлите заранее, чтобы не прерывать тренировки.",
		leadDays, until,
	)

	msg := telegram.Message{Text: text}
	if link := portalLink(portalURL, "/subscription"); link != "" {
		msg.Buttons = [][]telegram.Button{{{Text: "🔄 Продлить", URL: link}}}
	}
	return msg
}

func mealMessage(kind, portalURL string) telegram.Message {
	title, ok := mealTitles[kind]
	if !ok {
		title = "🍽 Приём пищи"
	}
	name, ok := mealNames[kind]
	if !ok {
		name = "приём"
	}

	msg := telegram.Message{
		Text: fmt.Sprintf("%s: самое время добавить приём пищи!\nНажмите кнопку ниже, чтобы зафиксировать его.", title),
		Buttons: [][]telegram.Button{
			{{Text: "➕ Добавить " + name, CallbackData: "meal_" + kind}},
		},
	}
	if link := portalLink(portalURL, "/meals"); link != "" {
		msg.Buttons = append(msg.Buttons, []telegram.Button{{Text: "Открыть дневник /meals", URL: link}})
	}
	return msg
}
