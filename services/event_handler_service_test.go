package services

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"notion-lite/workspace/broker"
	"notion-lite/workspace/database"
	"notion-lite/workspace/models"
	"notion-lite/workspace/store"
	"notion-lite/workspace/testutils"
)

func TestEventHandlerService_ProcessPendingEvents(t *testing.T) {
	db, sqlMock, close := testutils.SetupMockDB()
	defer close()

	change, _ := json.Marshal(models.BlockChange{UserID: uuid.New(), PageIDs: []string{"inbox"}})
	sqlMock.ExpectQuery(`SELECT \* FROM "events" WHERE dispatched = \$1 ORDER BY timestamp LIMIT`).
		WillReturnRows(testutils.MockEventRows([]models.Event{
			{Event: store.BlockChangedEvent, Entity: store.BlockEntity, Data: change},
		}))

	// Expect update after processing
	sqlMock.ExpectBegin()
	sqlMock.ExpectExec(`UPDATE "events" SET`).
		WillReturnResult(testutils.NewResult(1, 1))
	sqlMock.ExpectCommit()

	producer := &testutils.MockProducer{}
	producer.On("Publish", broker.BlockEventsSubject, mock.Anything).Return(nil)

	service := NewEventHandlerService(db, producer, 10*time.Millisecond)
	service.Start()
	require.Eventually(t, func() bool { return len(producer.Messages()) == 1 }, 2*time.Second, 10*time.Millisecond)
	service.Stop()

	env, err := broker.DecodeEnvelope(producer.Messages()[0].Data)
	require.NoError(t, err)
	assert.Equal(t, broker.BlockChanged, env.Event)
	assert.JSONEq(t, string(change), string(env.Data))
	assert.Eventually(t, func() bool { return sqlMock.ExpectationsWereMet() == nil }, time.Second, 10*time.Millisecond)
}

func TestEventHandlerService_Lifecycle(t *testing.T) {
	db := &database.Database{}
	service := NewEventHandlerService(db, &testutils.MockProducer{}, time.Hour)

	// Test Start
	service.Start()
	assert.True(t, service.(*EventHandlerService).isRunning)

	// Test double Start
	service.Start() // Should be no-op
	assert.True(t, service.(*EventHandlerService).isRunning)

	// Test Stop
	service.Stop()
	assert.False(t, service.(*EventHandlerService).isRunning)

	// Test double Stop
	service.Stop() // Should be no-op
	assert.False(t, service.(*EventHandlerService).isRunning)
}

func TestEventHandlerService_DispatchPendingInOrder(t *testing.T) {
	db := testutils.SetupSQLiteDB(t)
	st := store.NewGormStore(db)
	user := uuid.New()
	for i, page := range []string{"inbox", "next"} {
		b := models.Block{ID: uuid.New(), UserID: user, PageID: page, Type: models.ParagraphBlock, Order: float64(i)}
		require.NoError(t, st.CreateBlock(ctx, &b))
		time.Sleep(time.Millisecond)
	}

	producer := &testutils.MockProducer{}
	producer.On("Publish", broker.BlockEventsSubject, mock.Anything).Return(nil)
	service := NewEventHandlerService(db, producer, time.Hour)

	sent, err := service.DispatchPending()
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	var pages []string
	for _, msg := range producer.Messages() {
		env, err := broker.DecodeEnvelope(msg.Data)
		require.NoError(t, err)
		change, err := models.DecodeBlockChange(env.Data)
		require.NoError(t, err)
		pages = append(pages, change.PageIDs...)
	}
	assert.Equal(t, []string{"inbox", "next"}, pages)

	pending, err := service.PendingEvents()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestEventHandlerService_PublishFailureKeepsEventsPending(t *testing.T) {
	db := testutils.SetupSQLiteDB(t)
	st := store.NewGormStore(db)
	b := models.Block{ID: uuid.New(), UserID: uuid.New(), PageID: "inbox", Type: models.ParagraphBlock}
	require.NoError(t, st.CreateBlock(ctx, &b))

	producer := &testutils.MockProducer{}
	producer.On("Publish", broker.BlockEventsSubject, mock.Anything).Return(errors.New("no responders"))
	service := NewEventHandlerService(db, producer, time.Hour)

	sent, err := service.DispatchPending()
	assert.Error(t, err)
	assert.Zero(t, sent)

	pending, err := service.PendingEvents()
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	producer.AssertNumberOfCalls(t, "Publish", 1)
}
