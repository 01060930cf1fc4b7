package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"venuepark/internal/events"
	"venuepark/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

func bookingEvent(t *testing.T, eventType string, b models.Booking) events.Event {
	t.Helper()
	payload, err := json.Marshal(b)
	require.NoError(t, err)
	return events.Event{ID: "e1", Type: eventType, Payload: payload}
}

func TestTelegram_NotifyAdmins(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 1
	})).Return(nil).Once()
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 2
	})).Return(errors.New("chat not found")).Once()

	tg := NewTelegram(sender, []int64{1, 2}, zerolog.Nop())
	err := tg.NotifyAdmins(context.Background(), "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat 2")
	sender.AssertExpectations(t)
}

func TestTelegram_HandleEvent(t *testing.T) {
	booking := models.Booking{
		VenueName: "Court A", Date: "2026-10-16", StartTime: "10:00", EndTime: "11:00",
		UserName: "Li", UserPhone: "13800000000",
	}

	tests := []struct {
		name      string
		eventType string
		status    models.BookingStatus
		wantSend  bool
	}{
		{"pending booking notifies", events.BookingCreated, models.BookingPending, true},
		{"auto-confirmed booking is silent", events.BookingCreated, models.BookingConfirmed, false},
		{"cancellation notifies", events.BookingCancelled, models.BookingCancelled, true},
		{"parking events are ignored", events.ParkingEntered, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := new(mockSender)
			if tt.wantSend {
				sender.On("Send", mock.Anything).Return(nil).Once()
			}
			tg := NewTelegram(sender, []int64{42}, zerolog.Nop())

			b := booking
			b.Status = tt.status
			require.NoError(t, tg.HandleEvent(context.Background(), bookingEvent(t, tt.eventType, b)))

			sender.AssertExpectations(t)
			if !tt.wantSend {
				sender.AssertNotCalled(t, "Send", mock.Anything)
			}
		})
	}
}

func TestTelegram_CapacityRejected(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.Text == "Parking full: reservation for A12345 on 2026-10-16 09:00-23:59 was turned away"
	})).Return(nil).Once()

	payload, err := json.Marshal(models.ParkingRecord{
		PlateNumber: "A12345", Type: models.ParkingReserve, ReserveDate: "2026-10-16", ReserveStartTime: "09:00",
	})
	require.NoError(t, err)

	tg := NewTelegram(sender, []int64{1}, zerolog.Nop())
	require.NoError(t, tg.HandleEvent(context.Background(), events.Event{Type: events.ParkingCapacityRejected, Payload: payload}))
	sender.AssertExpectations(t)
}

func TestTelegram_SendDocument(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		doc, ok := c.(tgbotapi.DocumentConfig)
		return ok && doc.Caption == "October export"
	})).Return(nil).Once()

	tg := NewTelegram(sender, []int64{7}, zerolog.Nop())
	require.NoError(t, tg.SendDocument(context.Background(), "/tmp/export.xlsx", "October export"))
	sender.AssertExpectations(t)
}
