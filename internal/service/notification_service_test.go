package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/beontime/internal/db"
	"github.com/beontime/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var notifyNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func TestNotifySystemPersistsAndDelivers(t *testing.T) {
	f := newFixture(t, notifyNow)
	ctx := context.Background()

	n, err := f.svc.Notifications.NotifySystem(ctx, f.owner, "Maintenance", "The service restarts at 02:00 UTC.", map[string]interface{}{"window": "02:00"})
	require.NoError(t, err)
	assert.Equal(t, db.NotificationSystem, n.Type)
	assert.False(t, n.Read)

	require.Equal(t, 1, f.sender.count())
	sent := f.sender.sent[0]
	assert.Equal(t, f.owner, sent.actorID)
	assert.Equal(t, "Maintenance", sent.subject)
	assert.Contains(t, sent.html, "<h2>Maintenance</h2>")

	_, err = f.svc.Notifications.NotifySystem(ctx, f.owner, "", "body", nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDispatchSurvivesDeliveryFailure(t *testing.T) {
	f := newFixture(t, notifyNow)
	f.sender.err = errors.New("connection refused")

	n, err := f.svc.Notifications.NotifySystem(context.Background(), f.owner, "Heads up", "Something happened.", nil)
	require.NoError(t, err)

	list, err := f.svc.Notifications.List(context.Background(), f.owner, 0)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, n.ID, list.Items[0].ID)
	assert.EqualValues(t, 1, list.Unread)
}

type blockingSender struct{}

func (blockingSender) Send(ctx context.Context, _ uint, _, _, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestDispatchDeliveryTimeout(t *testing.T) {
	f := newFixture(t, notifyNow)
	svc := NewNotificationService(f.svc.Notifications.store, blockingSender{}, f.clock, time.Second, 20*time.Millisecond)

	started := time.Now()
	n, err := svc.NotifySystem(context.Background(), f.owner, "Slow", "Delivery hangs.", nil)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Less(t, time.Since(started), 5*time.Second)
}

func TestMarkReadOwnershipAndIdempotence(t *testing.T) {
	f := newFixture(t, notifyNow)
	ctx := context.Background()
	other := testutil.CreateUser(t, f.gdb, "bob")

	n, err := f.svc.Notifications.NotifySystem(ctx, f.owner, "Welcome", "Glad you are here.", nil)
	require.NoError(t, err)

	_, err = f.svc.Notifications.MarkRead(ctx, n.ID, other)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Notifications.MarkRead(ctx, "missing", f.owner)
	require.ErrorIs(t, err, ErrNotificationNotFound)

	read, err := f.svc.Notifications.MarkRead(ctx, n.ID, f.owner)
	require.NoError(t, err)
	assert.True(t, read.Read)
	require.NotNil(t, read.ReadAt)
	firstReadAt := *read.ReadAt

	f.clock.Advance(time.Hour)
	again, err := f.svc.Notifications.MarkRead(ctx, n.ID, f.owner)
	require.NoError(t, err)
	assert.True(t, again.Read)
	assert.True(t, again.ReadAt.Equal(firstReadAt))
}

func TestListAndMarkAllReadAreOwnerScoped(t *testing.T) {
	f := newFixture(t, notifyNow)
	ctx := context.Background()
	other := testutil.CreateUser(t, f.gdb, "bob")

	for i := 0; i < 3; i++ {
		f.clock.Advance(time.Minute)
		_, err := f.svc.Notifications.NotifySystem(ctx, f.owner, "Note", "Owner message.", nil)
		require.NoError(t, err)
	}
	_, err := f.svc.Notifications.NotifySystem(ctx, other, "Note", "Other message.", nil)
	require.NoError(t, err)

	list, err := f.svc.Notifications.List(ctx, f.owner, 2)
	require.NoError(t, err)
	assert.Len(t, list.Items, 2)
	assert.EqualValues(t, 3, list.Unread)
	assert.True(t, list.Items[0].CreatedAt.After(list.Items[1].CreatedAt))

	changed, err := f.svc.Notifications.MarkAllRead(ctx, f.owner)
	require.NoError(t, err)
	assert.EqualValues(t, 3, changed)

	changed, err = f.svc.Notifications.MarkAllRead(ctx, f.owner)
	require.NoError(t, err)
	assert.EqualValues(t, 0, changed)

	otherList, err := f.svc.Notifications.List(ctx, other, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, otherList.Unread)
}
