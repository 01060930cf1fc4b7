// Package notify delivers admin notifications over Telegram.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"venuepark/internal/events"
	"venuepark/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Sender is the subset of *tgbotapi.BotAPI used here.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram fans messages out to the configured admin chats.
type Telegram struct {
	sender  Sender
	chatIDs []int64
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewTelegram stays under Telegram's bot limit of roughly 30 messages per second.
func NewTelegram(sender Sender, chatIDs []int64, logger zerolog.Logger) *Telegram {
	return &Telegram{
		sender:  sender,
		chatIDs: chatIDs,
		limiter: rate.NewLimiter(rate.Limit(20), 30),
		logger:  logger.With().Str("component", "telegram").Logger(),
	}
}

// NotifyAdmins sends text to every admin chat and returns the joined failures.
func (t *Telegram) NotifyAdmins(ctx context.Context, text string) error {
	var errs []error
	for _, chatID := range t.chatIDs {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := t.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			t.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("send message")
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

// SendDocument uploads a local file to every admin chat.
func (t *Telegram) SendDocument(ctx context.Context, path, caption string) error {
	var errs []error
	for _, chatID := range t.chatIDs {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
		doc.Caption = caption
		if _, err := t.sender.Send(doc); err != nil {
			t.logger.Warn().Err(err).Int64("chat_id", chatID).Str("path", path).Msg("send document")
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

// HandleEvent turns booking events and capacity rejections into admin
// messages. Other events are ignored.
func (t *Telegram) HandleEvent(ctx context.Context, e events.Event) error {
	var text string
	switch e.Type {
	case events.BookingCreated, events.BookingCancelled:
		var b models.Booking
		if err := json.Unmarshal(e.Payload, &b); err != nil {
			return fmt.Errorf("decode %s: %w", e.Type, err)
		}
		text = bookingMessage(e.Type, &b)
	case events.ParkingCapacityRejected:
		var r models.ParkingRecord
		if err := json.Unmarshal(e.Payload, &r); err != nil {
			return fmt.Errorf("decode %s: %w", e.Type, err)
		}
		start, end := r.Window()
		text = fmt.Sprintf("Parking full: reservation for %s on %s %s-%s was turned away", r.PlateNumber, r.ReserveDate, start, end)
	default:
		return nil
	}
	if text == "" {
		return nil
	}
	return t.NotifyAdmins(ctx, text)
}

func bookingMessage(eventType string, b *models.Booking) string {
	slot := fmt.Sprintf("%s %s %s-%s", b.VenueName, b.Date, b.StartTime, b.EndTime)
	switch eventType {
	case events.BookingCreated:
		if b.Status != models.BookingPending {
			return ""
		}
		return fmt.Sprintf("New booking awaiting approval\n%s\n%s, %s", slot, b.UserName, b.UserPhone)
	case events.BookingCancelled:
		msg := fmt.Sprintf("Booking cancelled\n%s\n%s, %s", slot, b.UserName, b.UserPhone)
		if b.CancelReason != "" {
			msg += "\nReason: " + b.CancelReason
		}
		return msg
	}
	return ""
}
