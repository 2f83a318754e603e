package challenge

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veristamp/internal/events"
	"veristamp/internal/verification/models"
	"veristamp/internal/verification/store"
	dErrors "veristamp/pkg/domain-errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedRecord(t *testing.T, st store.Store, status models.VerificationStatus) *models.VerificationRecord {
	t.Helper()
	record, err := models.NewVerificationRecord(models.NewVerificationID(), models.SubmitContent{
		Prompt:           "prompt",
		Output:           "output",
		Model:            "gpt-4o",
		OutputHash:       strings.Repeat("ab", 32),
		RequesterAddress: "0xabc",
	}, time.Now())
	require.NoError(t, err)

	switch status {
	case models.StatusVerified:
		record.ApplyResolution(models.Fulfillment{AttestationID: "att-1", Verified: true}, time.Now())
	case models.StatusRejected:
		record.ApplyResolution(models.Fulfillment{AttestationID: "att-1", Verified: false}, time.Now())
	}
	require.NoError(t, st.Create(context.Background(), record))
	return record
}

func TestChallenge(t *testing.T) {
	t.Run("files a challenge against a verified record", func(t *testing.T) {
		st := store.NewInMemory()
		publisher := events.NewInMemory()
		svc := New(st, publisher, nil, discardLogger())
		record := seedRecord(t, st, models.StatusVerified)

		filed, err := svc.Challenge(context.Background(), record.ID, "0xchallenger", "output is fabricated", "ipfs://evidence")
		require.NoError(t, err)
		assert.Equal(t, record.ID, filed.VerificationID)
		assert.Equal(t, models.ChallengePending, filed.Status)
		assert.Equal(t, "output is fabricated", filed.Reason)

		stored, err := st.FindByID(context.Background(), record.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusChallenged, stored.Status)
		require.Len(t, stored.Challenges, 1)
		assert.Equal(t, filed.ID, stored.Challenges[0].ID)

		published := publisher.Events()
		require.Len(t, published, 1)
		assert.Equal(t, events.TransitionChallenged, published[0].Transition)
	})

	t.Run("evidence is optional", func(t *testing.T) {
		st := store.NewInMemory()
		svc := New(st, events.NewInMemory(), nil, discardLogger())
		record := seedRecord(t, st, models.StatusVerified)

		_, err := svc.Challenge(context.Background(), record.ID, "0xchallenger", "reason", "")
		require.NoError(t, err)
	})

	t.Run("rejects empty challenger address and reason", func(t *testing.T) {
		st := store.NewInMemory()
		svc := New(st, events.NewInMemory(), nil, discardLogger())
		record := seedRecord(t, st, models.StatusVerified)

		_, err := svc.Challenge(context.Background(), record.ID, "", "reason", "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

		_, err = svc.Challenge(context.Background(), record.ID, "0xchallenger", "", "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("refuses non-verified records", func(t *testing.T) {
		st := store.NewInMemory()
		svc := New(st, events.NewInMemory(), nil, discardLogger())

		for _, status := range []models.VerificationStatus{models.StatusPending, models.StatusRejected} {
			record := seedRecord(t, st, status)
			_, err := svc.Challenge(context.Background(), record.ID, "0xchallenger", "reason", "")
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
		}
	})

	t.Run("refuses a second challenge", func(t *testing.T) {
		st := store.NewInMemory()
		svc := New(st, events.NewInMemory(), nil, discardLogger())
		record := seedRecord(t, st, models.StatusVerified)

		_, err := svc.Challenge(context.Background(), record.ID, "0xchallenger", "first", "")
		require.NoError(t, err)

		_, err = svc.Challenge(context.Background(), record.ID, "0xother", "second", "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	t.Run("unknown record returns not found", func(t *testing.T) {
		svc := New(store.NewInMemory(), events.NewInMemory(), nil, discardLogger())
		_, err := svc.Challenge(context.Background(), models.NewVerificationID(), "0xchallenger", "reason", "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
