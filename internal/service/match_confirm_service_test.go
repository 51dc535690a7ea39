package service

import (
	"context"
	"testing"

	"github.com/nsxzhou1114/sighting-api/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// pendingMatch 创建 mp-x 与 s-y 的待确认匹配，接收人为 U2
func pendingMatch(t *testing.T, f *fixture) *model.Notification {
	t.Helper()
	f.missingPerson(t, "mp-x", "Alice", strPtr("U1"))
	f.sighting(t, "s-y", "Harbour Road", strPtr("U2"))
	require.NoError(t, f.alerts.SendMatchAlert(context.Background(), "U1", "mp-x", "s-y"))
	return f.only(t, "type = ?", model.NotificationMatchFound)
}

func missingStatus(t *testing.T, f *fixture, id string) model.RecordStatus {
	t.Helper()
	var mp model.MissingPerson
	require.NoError(t, f.db.Where("id = ?", id).First(&mp).Error)
	return mp.Status
}

func TestConfirmMatchCascade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := pendingMatch(t, f)

	confirmed, err := f.confirms.ConfirmMatch(ctx, n.ID, "U2", true)
	require.NoError(t, err)
	assert.True(t, confirmed)

	stored, err := f.notifications.Get(ctx, n.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Confirmed)
	assert.True(t, *stored.Confirmed)
	assert.True(t, stored.IsRead)

	assert.Equal(t, model.RecordStatusFound, missingStatus(t, f, "mp-x"))

	assert.EqualValues(t, 2, f.count(t, "type = ?", model.NotificationStatusUpdate))
	targeted := f.only(t, "type = ? AND is_global = ?", model.NotificationStatusUpdate, false)
	assert.Equal(t, "U1", *targeted.RecipientID)
	assert.Equal(t, "mp-x", targeted.RelatedEntityID)
	announcement := f.only(t, "type = ? AND is_global = ?", model.NotificationStatusUpdate, true)
	assert.Nil(t, announcement.RecipientID)
	assert.Equal(t, 1, f.fanout.globalPushes())
}

func TestRejectMatchHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := pendingMatch(t, f)

	confirmed, err := f.confirms.ConfirmMatch(ctx, n.ID, "U2", false)
	require.NoError(t, err)
	assert.False(t, confirmed)

	stored, err := f.notifications.Get(ctx, n.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Confirmed)
	assert.False(t, *stored.Confirmed)

	assert.Equal(t, model.RecordStatusMissing, missingStatus(t, f, "mp-x"))
	assert.EqualValues(t, 1, f.count(t, "1 = 1"))
}

func TestConfirmMatchIsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := pendingMatch(t, f)

	_, err := f.confirms.ConfirmMatch(ctx, n.ID, "U2", true)
	require.NoError(t, err)

	_, err = f.confirms.ConfirmMatch(ctx, n.ID, "U2", false)
	assert.ErrorIs(t, err, ErrAlreadyDecided)
	assert.Equal(t, KindConflict, KindOf(err))

	stored, err := f.notifications.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, *stored.Confirmed, "first decision stands")
	assert.EqualValues(t, 2, f.count(t, "type = ?", model.NotificationStatusUpdate), "cascade runs once")
}

func TestConfirmMatchLosesRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := pendingMatch(t, f)

	// 另一个请求已经在读取之后写入了结果
	applied, err := f.notifications.decide(ctx, n.ID, false)
	require.NoError(t, err)
	require.True(t, applied)
	applied, err = f.notifications.decide(ctx, n.ID, true)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestConfirmMatchPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := pendingMatch(t, f)

	plain, err := f.notifications.Create(ctx, NotificationSpec{
		RecipientID:       "U2",
		Type:              model.NotificationSystem,
		Title:             "hi",
		Message:           "hi",
		RelatedEntityID:   "U2",
		RelatedEntityType: model.RelatedUser,
	})
	require.NoError(t, err)

	_, err = f.confirms.ConfirmMatch(ctx, "missing-id", "U2", true)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = f.confirms.ConfirmMatch(ctx, n.ID, "U1", true)
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = f.confirms.ConfirmMatch(ctx, plain.ID, "U2", true)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = f.confirms.ConfirmMatch(ctx, "", "U2", true)
	assert.Equal(t, KindValidation, KindOf(err))

	stored, err := f.notifications.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Confirmed, "failed preconditions do not mutate")
}

func TestConfirmMatchSurvivesRecordStoreFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := pendingMatch(t, f)

	confirms := NewMatchConfirmService(f.notifications, failingRecordStore{RecordStore: f.records}, zap.NewNop().Sugar())
	confirmed, err := confirms.ConfirmMatch(ctx, n.ID, "U2", true)
	require.NoError(t, err)
	assert.True(t, confirmed)

	stored, err := f.notifications.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, *stored.Confirmed)
	assert.Equal(t, model.RecordStatusMissing, missingStatus(t, f, "mp-x"))
	assert.Zero(t, f.count(t, "type = ?", model.NotificationStatusUpdate))
}

func TestMarkFoundIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.missingPerson(t, "mp-x", "Alice", nil)

	require.NoError(t, f.records.MarkMissingPersonFound(ctx, "mp-x"))
	require.NoError(t, f.records.MarkMissingPersonFound(ctx, "mp-x"))
	assert.Equal(t, model.RecordStatusFound, missingStatus(t, f, "mp-x"))
	assert.ErrorIs(t, f.records.MarkMissingPersonFound(ctx, "nope"), ErrRecordNotFound)
}
