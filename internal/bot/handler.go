package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"atelier-ai/internal/billing"
	"atelier-ai/internal/catalog"
	"atelier-ai/internal/generation"
	"atelier-ai/internal/mediagroup"
	"atelier-ai/internal/telegram"
)

type Options struct {
	Telegram *telegram.Client
	Service  *generation.Service
	Ledger   *billing.Ledger
	Catalog  *catalog.Registry
	Logger   *slog.Logger
}

// Handler drives the Telegram surface over the same pipeline as the HTTP
// API. Telegram users are mapped to stable requester ids, so tier and credit
// accounting is shared across surfaces.
type Handler struct {
	tg         *telegram.Client
	service    *generation.Service
	ledger     *billing.Ledger
	catalog    *catalog.Registry
	logger     *slog.Logger
	aggregator *mediagroup.Aggregator
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		tg:      opts.Telegram,
		service: opts.Service,
		ledger:  opts.Ledger,
		catalog: opts.Catalog,
		logger:  logger,
	}
}

func (h *Handler) SetMediaGroupAggregator(ag *mediagroup.Aggregator) {
	h.aggregator = ag
}

// RequesterID derives a stable account id from a Telegram user id.
func RequesterID(userID int64) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("telegram:%d", userID)))
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.Message == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, userID, msg)
	}

	if len(msg.Photo) > 0 {
		return h.handlePhoto(ctx, chatID, userID, msg)
	}

	if msg.Text != "" {
		return h.tg.SendText(chatID, "Send me photos of your garments (as an album for a full outfit). Use /help for the shoot options.")
	}

	return nil
}

func (h *Handler) HandleMediaGroup(ctx context.Context, group mediagroup.Group) {
	if err := h.runShoot(ctx, group.ChatID, group.UserID, group.Caption, group.FileIDs); err != nil {
		h.logger.Error("album shoot failed", "err", err)
	}
}

func (h *Handler) handleCommand(ctx context.Context, chatID int64, userID int64, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return h.tg.SendText(chatID,
			"Atelier AI — virtual fashion shoots.\n\n"+
				"Send one or more garment photos and I will photograph them on a model.\n"+
				"Add directives to the caption, e.g.:\n"+
				"  model=amara_editorial pose=walking_motion golden_hour\n\n"+
				"Commands:\n"+
				"/options — selectable models, backgrounds, poses, angles, styles, lighting\n"+
				"/balance — your credit balance\n"+
				"/help — usage",
		)
	case "help":
		return h.tg.SendText(chatID,
			"Send garment photos (an album counts as one outfit).\n"+
				"Caption tokens pick the shoot facets: category=id or a bare facet id.\n"+
				"Add \"premium\" for the editorial shoot (costs 2 credits).\n"+
				"/options lists every facet id.",
		)
	case "options":
		return h.tg.SendText(chatID, h.renderOptions())
	case "balance":
		requester := RequesterID(userID)
		account, err := h.ledger.EnsureAccount(ctx, requester)
		if err != nil {
			h.logger.Error("balance lookup failed", "err", err)
			return h.tg.SendText(chatID, "Could not load your balance, please try again.")
		}
		return h.tg.SendText(chatID, fmt.Sprintf("Tier: %s\nCredits: %d", account.Tier, account.Balance))
	default:
		return h.tg.SendText(chatID, "Unknown command. Use /help.")
	}
}

func (h *Handler) handlePhoto(ctx context.Context, chatID int64, userID int64, msg *tgbotapi.Message) error {
	photo := msg.Photo[len(msg.Photo)-1]

	if msg.MediaGroupID != "" && h.aggregator != nil {
		h.aggregator.Add(mediagroup.Item{
			ChatID:       chatID,
			UserID:       userID,
			Username:     msg.From.UserName,
			MediaGroupID: msg.MediaGroupID,
			Caption:      msg.Caption,
			FileID:       photo.FileID,
		})
		return nil
	}

	return h.runShoot(ctx, chatID, userID, msg.Caption, []string{photo.FileID})
}

func (h *Handler) runShoot(ctx context.Context, chatID int64, userID int64, caption string, fileIDs []string) error {
	h.tg.SendUploadingPhoto(chatID)

	garmentRefs := make([]string, len(fileIDs))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, fileID := range fileIDs {
		i, fileID := i, fileID
		eg.Go(func() error {
			ref, err := h.tg.DownloadFileDataURL(egCtx, fileID)
			if err != nil {
				return err
			}
			garmentRefs[i] = ref
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		h.logger.Error("garment download failed", "err", err)
		return h.tg.SendText(chatID, "Could not read your garment photos, please resend them.")
	}

	shoot := ParseCaption(caption, h.catalog)
	requester := RequesterID(userID)

	outcome, err := h.service.Generate(ctx, generation.Request{
		RequesterID: &requester,
		GarmentRefs: garmentRefs,
		Facets:      shoot.Facets,
		Service:     shoot.Service,
		RequestedAt: time.Now(),
	})
	if err != nil {
		return h.tg.SendText(chatID, shootErrorText(err))
	}

	if outcome.Result.Status != generation.StatusSucceeded {
		if outcome.Result.ErrorKind == generation.ErrorKindTimeout {
			return h.tg.SendText(chatID, "The shoot timed out, your credit was released. Please try again.")
		}
		return h.tg.SendText(chatID, "The shoot failed upstream. Please try again later.")
	}

	caption = strings.TrimSpace(outcome.Result.Description)
	if outcome.Result.ImageRef == "" {
		return h.tg.SendText(chatID, caption)
	}
	return h.tg.SendPhotoDataURL(chatID, outcome.Result.ImageRef, caption)
}

func shootErrorText(err error) string {
	var validationErr *generation.ValidationError
	var accessErr *billing.AccessDeniedError

	switch {
	case errors.As(err, &validationErr):
		return "Invalid shoot request: " + validationErr.Error()
	case errors.As(err, &accessErr):
		return "Your tier cannot use this shoot. " + accessErr.Error() + "."
	case errors.Is(err, billing.ErrInsufficientCredit):
		return "You are out of credits."
	default:
		return "Something went wrong, please try again."
	}
}

func (h *Handler) renderOptions() string {
	var b strings.Builder
	b.WriteString("Shoot options (use the id in your caption):\n")
	for _, cat := range catalog.Categories() {
		b.WriteString("\n" + string(cat) + ":\n")
		for _, f := range h.catalog.List(cat) {
			b.WriteString("  " + f.ID + "\n")
		}
	}
	return b.String()
}
