package contextbuilder

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"claudestation/internal/apperrors"
	"claudestation/internal/pricing"
	"claudestation/internal/store"
	"claudestation/internal/tokenest"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	est, err := tokenest.NewEstimator()
	require.NoError(t, err)
	tracker := pricing.NewTokenTracker(pricing.DefaultPricingTable())
	return NewBuilder(est, tracker)
}

func baseInput() BuildInput {
	return BuildInput{
		Project: store.Project{
			ID:           "proj-1",
			SystemPrompt: "You are a Python expert.",
			Settings:     store.DefaultProjectSettings(),
		},
		Conversation:    store.Conversation{ID: "conv-1", ProjectID: "proj-1"},
		UserMessageText: "Hello",
		ModelID:         "claude-sonnet-4.5",
	}
}

func TestLayer1IsByteStableAcrossTurnsWhenNothingChanges(t *testing.T) {
	b := newTestBuilder(t)
	in := baseInput()

	out1, err := b.Build(context.Background(), in)
	require.NoError(t, err)

	in2 := in
	in2.UserMessageText = "And now?"
	out2, err := b.Build(context.Background(), in2)
	require.NoError(t, err)

	require.Equal(t, out1.System[0].Text, out2.System[0].Text)
	require.Equal(t, out1.Layer1Signature, out2.Layer1Signature)
}

func TestLayer1ChangesWhenDocumentAdded(t *testing.T) {
	b := newTestBuilder(t)
	in := baseInput()
	out1, err := b.Build(context.Background(), in)
	require.NoError(t, err)

	in2 := in
	in2.Documents = []store.Document{{ID: "d1", ExtractedText: "some doc text", CreatedAt: time.Now()}}
	out2, err := b.Build(context.Background(), in2)
	require.NoError(t, err)

	require.NotEqual(t, out1.Layer1Signature, out2.Layer1Signature)
}

func TestLayer2AbsentWhenNoSummary(t *testing.T) {
	b := newTestBuilder(t)
	out, err := b.Build(context.Background(), baseInput())
	require.NoError(t, err)
	require.Len(t, out.System, 1)
	require.False(t, out.Layer2Present)
}

func TestLayer2CacheMarkedOnlyAboveFloor(t *testing.T) {
	b := newTestBuilder(t)

	inSmall := baseInput()
	inSmall.Conversation.RollingSummary = "short summary"
	inSmall.Conversation.LastCompressedMsgID = "m1"
	inSmall.Conversation.SummaryTokenCount = 400
	outSmall, err := b.Build(context.Background(), inSmall)
	require.NoError(t, err)
	require.True(t, outSmall.Layer2Present)
	require.False(t, outSmall.Layer2CacheMarked)
	require.Nil(t, outSmall.System[1].CacheControl)

	inBig := baseInput()
	inBig.Conversation.ID = "conv-2"
	inBig.Conversation.RollingSummary = strings.Repeat("word ", 2000)
	inBig.Conversation.LastCompressedMsgID = "m1"
	inBig.Conversation.SummaryTokenCount = 1200
	outBig, err := b.Build(context.Background(), inBig)
	require.NoError(t, err)
	require.True(t, outBig.Layer2CacheMarked)
	require.NotNil(t, outBig.System[1].CacheControl)
}

func TestLayer3ExcludesCompressedMessages(t *testing.T) {
	b := newTestBuilder(t)
	in := baseInput()
	in.Messages = []store.Message{
		{ID: "m1", Role: store.RoleUser, Content: "old 1"},
		{ID: "m2", Role: store.RoleAssistant, Content: "old 2"},
		{ID: "m3", Role: store.RoleUser, Content: "recent 1"},
		{ID: "m4", Role: store.RoleAssistant, Content: "recent 2"},
	}
	in.Conversation.LastCompressedMsgID = "m2"
	in.Conversation.RollingSummary = "summary"
	in.Conversation.SummaryTokenCount = 400

	out, err := b.Build(context.Background(), in)
	require.NoError(t, err)
	// Layer 3 (2 recent messages) + Layer 4 (new user message) = 3.
	require.Len(t, out.Messages, 3)
	require.Equal(t, "recent 1", out.Messages[0].Content[0].Text)
}

func TestBudgetFittingDropsOldestPairs(t *testing.T) {
	est, err := tokenest.NewEstimator()
	require.NoError(t, err)
	// Force a tiny context window (20k tokens after the output reserve)
	// with a custom pricing row, then synthesize a Layer-3 history far
	// larger than that.
	tracker := pricing.NewTokenTracker([]pricing.ModelPricing{
		{ModelID: "tiny-window-model", InputPerMTok: 3, OutputPerMTok: 15, ContextWindow: reservedOutputTokens + 20_000},
	})
	b := NewBuilder(est, tracker)
	in := baseInput()
	in.ModelID = "tiny-window-model"
	longText := strings.Repeat("filler words to consume tokens ", 500)
	for i := 0; i < 20; i++ {
		in.Messages = append(in.Messages,
			store.Message{ID: "u" + strconv.Itoa(i), Role: store.RoleUser, Content: longText},
			store.Message{ID: "a" + strconv.Itoa(i), Role: store.RoleAssistant, Content: longText},
		)
	}

	out, err := b.Build(context.Background(), in)
	require.NoError(t, err)
	require.Less(t, len(out.Messages), 41) // fewer than all 40 history + 1 new
}

func TestContextTooLargeWhenBaselineAloneExceedsBudget(t *testing.T) {
	b := newTestBuilder(t)
	in := baseInput()
	in.Project.SystemPrompt = strings.Repeat("gigantic prompt text ", 200000)

	_, err := b.Build(context.Background(), in)
	require.ErrorIs(t, err, apperrors.ErrContextTooLarge)
}

func TestEstimateClassifiesFirstTurnAsCacheCreation(t *testing.T) {
	b := newTestBuilder(t)
	in := baseInput()
	in.Conversation.ID = "conv-estimate-1"

	res, err := b.Estimate(context.Background(), in)
	require.NoError(t, err)
	require.Greater(t, res.EstimatedCostUSD, 0.0)

	// The same input again now hits the recorded Layer-1 signature and is
	// priced as a cache read, so the first (cache-write) estimate costs more.
	again, err := b.Estimate(context.Background(), in)
	require.NoError(t, err)
	require.Greater(t, res.EstimatedCostUSD, again.EstimatedCostUSD)
}

func TestEstimateClassifiesSecondTurnAsCacheRead(t *testing.T) {
	b := newTestBuilder(t)
	in := baseInput()
	in.Conversation.ID = "conv-estimate-2"

	_, err := b.Build(context.Background(), in) // seed prior signature
	require.NoError(t, err)

	in2 := in
	in2.UserMessageText = "second turn"
	res, err := b.Estimate(context.Background(), in2)
	require.NoError(t, err)
	require.Greater(t, res.EstimatedCachedTokens, 0)

	// A builder with no prior signature prices Layer 1 as a cache write.
	fresh, err := newTestBuilder(t).Estimate(context.Background(), in2)
	require.NoError(t, err)
	require.Less(t, res.EstimatedCostUSD, fresh.EstimatedCostUSD)
}

