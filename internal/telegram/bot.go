package telegram

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"meal-plan-generator/internal/auth"
	"meal-plan-generator/internal/config"
	"meal-plan-generator/internal/metrics"
	"meal-plan-generator/internal/planner"
	"meal-plan-generator/internal/shared"
	"meal-plan-generator/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// PlanService generates and edits plans.
type PlanService interface {
	GeneratePlan(ctx context.Context, identity *auth.Identity, req planner.PlanRequest) (*planner.Plan, []shared.AgentMeta, error)
	SwapMeal(ctx context.Context, identity *auth.Identity, plan *planner.Plan, dayIndex, position int) (*planner.Plan, []shared.AgentMeta, error)
}

// Store is the persistence the bot reads from.
type Store interface {
	RecentPlans(ctx context.Context, userID string, since time.Time, limit int) ([]storage.StoredPlan, error)
}

// MetricsStore records and summarises provider calls.
type MetricsStore interface {
	RecordMeta(ctx context.Context, meta shared.AgentMeta) error
	GetDailyUsage(ctx context.Context, days int) ([]metrics.DailyUsage, error)
}

const contextBloatTokens = 4000

// Bot wraps the Telegram API and the planner.
type Bot struct {
	api          *tgbotapi.BotAPI
	planner      PlanService
	store        Store
	metricsStore MetricsStore
	cfg          *config.Config
	dataDir      string
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(cfg *config.Config, svc PlanService, store Store, metricsStore MetricsStore, dataDir string) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	log.WithField("account", bot.Self.UserName).Info("telegram bot authorized")

	wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("failed to build webhook for %s: %w", cfg.TelegramWebhookURL, err)
	}
	resp, err := bot.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	log.WithField("description", resp.Description).Info("webhook set")

	return &Bot{
		api:          bot,
		planner:      svc,
		store:        store,
		metricsStore: metricsStore,
		cfg:          cfg,
		dataDir:      dataDir,
	}, nil
}

// RegisterHandlers registers the webhook and health handlers on mux.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", b.handleWebhook)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func (b *Bot) handleWebhook(_ http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		log.WithError(err).Warn("failed to parse telegram update")
		return
	}
	if update.Message == nil || update.Message.From == nil {
		return
	}

	if !isAllowed(b.cfg, update.Message.From.ID) {
		log.WithFields(log.Fields{
			"user_id":  update.Message.From.ID,
			"username": update.Message.From.UserName,
		}).Warn("unauthorized access attempt")
		return
	}

	go b.processMessage(update.Message)
}

func isAllowed(cfg *config.Config, userID int64) bool {
	if len(cfg.TelegramAllowedUserIDs) == 0 {
		return true
	}
	return slices.Contains(cfg.TelegramAllowedUserIDs, userID)
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "metrics":
		b.handleMetricsRequest(msg)
	case "swap":
		b.handleSwapRequest(msg)
	case "start", "help":
		b.reply(msg.Chat.ID, helpText)
	case "plan":
		b.handlePlannerRequest(msg, msg.CommandArguments())
	default:
		if msg.IsCommand() {
			b.reply(msg.Chat.ID, helpText)
			return
		}
		b.handlePlannerRequest(msg, msg.Text)
	}
}

func identityFor(msg *tgbotapi.Message) *auth.Identity {
	return &auth.Identity{UserID: fmt.Sprintf("tg:%d", msg.From.ID)}
}

func (b *Bot) handlePlannerRequest(msg *tgbotapi.Message, args string) {
	ctx := context.Background()
	identity := identityFor(msg)

	req, err := parsePlanRequest(args)
	if err != nil {
		b.reply(msg.Chat.ID, fmt.Sprintf("❌ %s\n\n%s", err.Error(), helpText))
		return
	}

	sent, err := b.api.Send(markdown(msg.Chat.ID, "🧑‍🍳 *Cooking up your plan...*"))
	if err != nil {
		log.WithError(err).Warn("failed to send initial reply")
		return
	}

	log.WithFields(log.Fields{"user": identity.UserID, "days": req.DaysCount, "meals": req.MealsPerDay}).Info("generating plan")
	plan, metas, err := b.planner.GeneratePlan(ctx, identity, req)
	b.recordMetas(ctx, metas)

	text := ""
	if err != nil {
		text = formatError(err)
	} else {
		text = formatPlanMarkdown(plan)
	}
	edit := tgbotapi.NewEditMessageText(msg.Chat.ID, sent.MessageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(edit); err != nil {
		log.WithError(err).Warn("failed to send plan")
	}
}

func (b *Bot) handleSwapRequest(msg *tgbotapi.Message) {
	ctx := context.Background()
	identity := identityFor(msg)

	dayIndex, position, err := parseSwapArgs(msg.CommandArguments())
	if err != nil {
		b.reply(msg.Chat.ID, "❌ Usage: /swap <day> <meal number>, e.g. /swap 2 1")
		return
	}

	recent, err := b.store.RecentPlans(ctx, identity.UserID, time.Now().AddDate(0, 0, -30), 1)
	if err != nil || len(recent) == 0 {
		b.reply(msg.Chat.ID, "🤷 No recent plan to edit. Send /plan first.")
		return
	}
	plan, err := decodePlan(recent[0])
	if err != nil {
		log.WithError(err).WithField("plan", recent[0].ID).Error("stored plan is unreadable")
		b.reply(msg.Chat.ID, "❌ Could not load your last plan.")
		return
	}

	updated, metas, err := b.planner.SwapMeal(ctx, identity, plan, dayIndex, position)
	b.recordMetas(ctx, metas)
	if err != nil {
		b.reply(msg.Chat.ID, formatError(err))
		return
	}
	b.reply(msg.Chat.ID, formatPlanMarkdown(updated))
}

func (b *Bot) recordMetas(ctx context.Context, metas []shared.AgentMeta) {
	for _, m := range metas {
		if err := b.metricsStore.RecordMeta(ctx, m); err != nil {
			log.WithError(err).Warn("failed to record execution metric")
		}
		if m.Usage.PromptTokens > contextBloatTokens {
			b.sendAdminAlert(fmt.Sprintf("⚠️ *Context Bloat Alert*\nAgent: %s\nModel: %s\nPrompt Tokens: %d",
				m.AgentName, m.Usage.Model, m.Usage.PromptTokens))
		}
	}
}

func (b *Bot) handleMetricsRequest(msg *tgbotapi.Message) {
	if msg.From.ID != b.cfg.AdminTelegramID {
		b.reply(msg.Chat.ID, "⛔ *Access Denied*: Admin only.")
		return
	}

	usage, err := b.metricsStore.GetDailyUsage(context.Background(), 7)
	if err != nil {
		log.WithError(err).Error("failed to fetch metrics")
		b.reply(msg.Chat.ID, "❌ Error fetching metrics.")
		return
	}
	b.reply(msg.Chat.ID, formatMetricsReport(usage, metrics.GetSysHealth(b.dataDir)))
}

func (b *Bot) sendAdminAlert(text string) {
	if b.cfg.AdminTelegramID == 0 {
		return
	}
	b.reply(b.cfg.AdminTelegramID, text)
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(markdown(chatID, text)); err != nil {
		log.WithError(err).WithField("chat", chatID).Warn("failed to send message")
	}
}

func markdown(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	return msg
}
