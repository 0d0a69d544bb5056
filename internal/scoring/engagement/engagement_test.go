package engagement

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"follicle-match/internal/common/logger"
	"follicle-match/internal/docstore"
	"follicle-match/internal/follicle"
	"follicle-match/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	fpUser    = "3A-HP-MD-CT-D2"
	fpNear    = "3B-HP-MD-CT-D2" // very high
	fpFar     = "1-LP-LD-FT-D0"  // below threshold
	productID = "prod-x"
)

var productRef = models.EntityRef{Type: models.EntityProduct, ID: productID}

type stubReader struct {
	interactions []models.Interaction
	err          error
	limit        int
}

func (s *stubReader) RecentInteractions(_ context.Context, _ models.EntityRef, limit int) ([]models.Interaction, error) {
	s.limit = limit
	return s.interactions, s.err
}

func interaction(user, fp string, t models.InteractionType) models.Interaction {
	return models.Interaction{
		ID: user + "_" + string(t), UserID: user, EntityID: productID,
		EntityType: models.EntityProduct, Type: t, FollicleID: fp,
	}
}

func newTestScorer(t *testing.T, r Reader) *Scorer {
	return NewScorer(r, DefaultConfig(), logger.NewTestLogger(t))
}

// ==========================
// Neutral cases
// ==========================

func TestScore_NoInteractions(t *testing.T) {
	res := newTestScorer(t, &stubReader{}).Score(context.Background(), productRef, "me", fpUser)

	assert.Equal(t, 0.5, res.Score)
	assert.Empty(t, res.Reasons)
	assert.False(t, res.Degraded)
}

func TestScore_AllBelowThreshold(t *testing.T) {
	r := &stubReader{interactions: []models.Interaction{
		interaction("a", fpFar, models.InteractionLike),
		interaction("b", fpFar, models.InteractionLike),
		interaction("c", fpFar, models.InteractionLike),
		interaction("d", fpFar, models.InteractionLike),
	}}

	res := newTestScorer(t, r).Score(context.Background(), productRef, "me", fpUser)
	assert.Equal(t, 0.5, res.Score)
	assert.Empty(t, res.Reasons)
	assert.Equal(t, 0, res.Sample)
}

func TestScore_BelowMinSample(t *testing.T) {
	r := &stubReader{interactions: []models.Interaction{
		interaction("a", fpUser, models.InteractionLike),
		interaction("b", fpUser, models.InteractionLike),
	}}

	res := newTestScorer(t, r).Score(context.Background(), productRef, "me", fpUser)
	assert.Equal(t, 0.5, res.Score)
	assert.Empty(t, res.Reasons)
	assert.Equal(t, 2, res.Sample)
}

func TestScore_ReadFailureDegrades(t *testing.T) {
	r := &stubReader{err: errors.New("store offline")}

	res := newTestScorer(t, r).Score(context.Background(), productRef, "me", fpUser)
	assert.Equal(t, 0.5, res.Score)
	assert.Empty(t, res.Reasons)
	assert.True(t, res.Degraded)
}

func TestScore_NoFingerprint(t *testing.T) {
	r := &stubReader{interactions: []models.Interaction{
		interaction("a", "", models.InteractionLike),
		interaction("b", "", models.InteractionLike),
		interaction("c", "", models.InteractionLike),
	}}
	res := newTestScorer(t, r).Score(context.Background(), productRef, "me", "")
	assert.Equal(t, 0.5, res.Score)
}

// ==========================
// Aggregation
// ==========================

func TestScore_ThreeIdenticalLikes(t *testing.T) {
	r := &stubReader{interactions: []models.Interaction{
		interaction("a", fpUser, models.InteractionLike),
		interaction("b", fpUser, models.InteractionLike),
		interaction("c", fpUser, models.InteractionLike),
	}}

	res := newTestScorer(t, r).Score(context.Background(), productRef, "me", fpUser)

	assert.Equal(t, 1.0, res.Score)
	assert.Equal(t, 3, res.Buckets.Count(follicle.BandExact, models.InteractionLike))
	require.NotEmpty(t, res.Reasons)
	assert.Equal(t, "3 people with identical hair liked this", res.Reasons[0])
	assert.Equal(t, 100, r.limit)
}

func TestScore_ExcludesRequester(t *testing.T) {
	r := &stubReader{interactions: []models.Interaction{
		interaction("me", fpUser, models.InteractionDislike),
		interaction("a", fpUser, models.InteractionLike),
		interaction("b", fpUser, models.InteractionLike),
		interaction("c", fpUser, models.InteractionLike),
	}}

	res := newTestScorer(t, r).Score(context.Background(), productRef, "me", fpUser)
	assert.Equal(t, 3, res.Sample)
	assert.Equal(t, 1.0, res.Score)
}

func TestScore_MixedSignals(t *testing.T) {
	r := &stubReader{interactions: []models.Interaction{
		interaction("a", fpUser, models.InteractionLike),
		interaction("b", fpUser, models.InteractionDislike),
		interaction("c", fpNear, models.InteractionSave),
		interaction("d", fpNear, models.InteractionAllergic),
		interaction("e", fpFar, models.InteractionLike),
	}}

	res := newTestScorer(t, r).Score(context.Background(), productRef, "me", fpUser)

	simNear := follicle.Similarity(fpUser, fpNear)
	sumWeighted := 1.0 - 0.8 + 0.8*simNear - 1.0*simNear
	sumSim := 2 + 2*simNear
	want := (sumWeighted/sumSim + 1) / 2

	assert.InDelta(t, want, res.Score, 1e-9)
	assert.Equal(t, 4, res.Sample)
	assert.Equal(t, []string{
		"1 person with identical hair liked this",
		"1 person with identical hair disliked this",
		"1 person with very similar hair saved this",
	}, res.Reasons, "exact band first, positive before negative, capped at 3")
}

func TestScore_AllNegativeStaysInRange(t *testing.T) {
	var ins []models.Interaction
	for i := 0; i < 5; i++ {
		ins = append(ins, interaction(fmt.Sprintf("u%d", i), fpUser, models.InteractionAllergic))
	}
	res := newTestScorer(t, &stubReader{interactions: ins}).Score(context.Background(), productRef, "me", fpUser)
	assert.Equal(t, 0.0, res.Score)
	assert.Equal(t, []string{"5 people with identical hair reported an allergy to this"}, res.Reasons)
}

// ==========================
// DocstoreReader
// ==========================

func TestDocstoreReader_NewestFirstCapped(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		in := interaction(fmt.Sprintf("u%d", i), fpUser, models.InteractionLike)
		in.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Set(ctx, InteractionsCollection, in.ID, in))
	}
	other := interaction("u9", fpUser, models.InteractionLike)
	other.EntityID = "other"
	require.NoError(t, store.Set(ctx, InteractionsCollection, "other", other))

	got, err := NewDocstoreReader(store).RecentInteractions(ctx, productRef, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "u4", got[0].UserID)
	assert.Equal(t, "u2", got[2].UserID)
}
