package repositories_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"messenger-core/internal/db"
	"messenger-core/internal/envelope"
	"messenger-core/internal/logging"
	"messenger-core/internal/mocks"
	"messenger-core/internal/models"
	"messenger-core/internal/repositories"
	"messenger-core/internal/services"
)

func startPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "chat",
				"POSTGRES_PASSWORD": "chat",
				"POSTGRES_DB":       "chat",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://chat:chat@%s:%s/chat?sslmode=disable", host, port.Port())
	database, err := db.Connect(ctx, dsn, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func strPtr(s string) *string { return &s }

func envelopeText(s string) envelope.Payload {
	return envelope.Payload{Content: &s}
}

func seedUsers(t *testing.T, database *sqlx.DB, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := database.Exec(`INSERT INTO users (id, name, public_key) VALUES ($1, $2, $3)`, id, "user "+id, "pk-"+id)
		require.NoError(t, err)
	}
}

func TestIntegration(t *testing.T) {
	database := startPostgres(t)
	store := repositories.NewStore(database)
	ctx := context.Background()
	log := logging.Discard()

	t.Run("concurrent direct requests open one room", func(t *testing.T) {
		seedUsers(t, database, "a1", "b1")
		invites := services.NewInvitationService(store, &mocks.FramePublisher{}, log)

		var wg sync.WaitGroup
		errs := make(chan error, 20)
		for i := 0; i < 10; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, err := invites.CreateDirect(ctx, "a1", "b1")
				errs <- err
			}()
			go func() {
				defer wg.Done()
				_, err := invites.CreateDirect(ctx, "b1", "a1")
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		var rooms, pending int
		require.NoError(t, database.Get(&rooms, `SELECT COUNT(*) FROM chat_rooms WHERE direct_key=$1`, models.DirectKey("a1", "b1")))
		require.NoError(t, database.Get(&pending, `SELECT COUNT(*) FROM direct_chat_invitations WHERE status='pending'
            AND LEAST(inviter_id, invitee_id)='a1' AND GREATEST(inviter_id, invitee_id)='b1'`))
		var accepted int
		require.NoError(t, database.Get(&accepted, `SELECT COUNT(*) FROM direct_chat_invitations WHERE status='accepted'
            AND LEAST(inviter_id, invitee_id)='a1' AND GREATEST(inviter_id, invitee_id)='b1'`))
		assert.Equal(t, 1, rooms)
		assert.Equal(t, 0, pending)
		assert.Equal(t, 1, accepted)
	})

	t.Run("history pages are stable for equal timestamps", func(t *testing.T) {
		seedUsers(t, database, "p1")
		room, err := store.Repos().Rooms.CreateRoom(ctx, models.Room{Type: models.RoomGroup, Name: strPtr("pages")})
		require.NoError(t, err)

		sender := "p1"
		var ids []string
		err = store.WithinTx(ctx, func(r repositories.Repos) error {
			for i := 0; i < 5; i++ {
				msg, err := r.Messages.Create(ctx, models.Message{RoomID: room.ID, SenderID: &sender, Type: models.MessageText, Content: fmt.Sprint(i)})
				if err != nil {
					return err
				}
				ids = append(ids, msg.ID)
			}
			return nil
		})
		require.NoError(t, err)

		first, err := store.Repos().Messages.List(ctx, room.ID, 2, 0)
		require.NoError(t, err)
		second, err := store.Repos().Messages.List(ctx, room.ID, 2, 2)
		require.NoError(t, err)
		require.Len(t, first, 2)
		require.Len(t, second, 2)
		assert.Equal(t, []string{ids[4], ids[3]}, []string{first[0].ID, first[1].ID})
		assert.Equal(t, []string{ids[2], ids[1]}, []string{second[0].ID, second[1].ID})
	})

	t.Run("owner leaving hands over and last leaver deletes", func(t *testing.T) {
		seedUsers(t, database, "o1", "o2", "o3")
		rooms := services.NewRoomService(store, &mocks.FramePublisher{}, log)
		room, err := store.Repos().Rooms.CreateRoom(ctx, models.Room{Type: models.RoomGroup, Name: strPtr("leave")})
		require.NoError(t, err)
		for _, m := range []struct {
			id   string
			role models.Role
		}{{"o1", models.RoleOwner}, {"o2", models.RoleMember}, {"o3", models.RoleAdmin}} {
			_, err := store.Repos().Rooms.AddMember(ctx, models.Member{RoomID: room.ID, UserID: m.id, Role: m.role})
			require.NoError(t, err)
		}

		res, err := rooms.Leave(ctx, room.ID, "o1")
		require.NoError(t, err)
		require.NotNil(t, res.NewOwnerID)
		assert.Equal(t, "o3", *res.NewOwnerID)

		_, err = rooms.Leave(ctx, room.ID, "o3")
		require.NoError(t, err)
		res, err = rooms.Leave(ctx, room.ID, "o2")
		require.NoError(t, err)
		assert.True(t, res.RoomDeleted)

		_, err = store.Repos().Rooms.GetRoom(ctx, room.ID)
		assert.ErrorIs(t, err, repositories.ErrRoomNotFound)
	})

	t.Run("unread counts follow the last read marker", func(t *testing.T) {
		seedUsers(t, database, "r1", "r2")
		messages := services.NewMessageService(store, &mocks.FramePublisher{}, log)
		room, err := store.Repos().Rooms.CreateRoom(ctx, models.Room{Type: models.RoomGroup, Name: strPtr("unread")})
		require.NoError(t, err)
		for _, id := range []string{"r1", "r2"} {
			_, err := store.Repos().Rooms.AddMember(ctx, models.Member{RoomID: room.ID, UserID: id})
			require.NoError(t, err)
		}

		var sent []string
		for i := 0; i < 3; i++ {
			msg, err := messages.Send(ctx, room.ID, "r1", services.SendInput{Payload: envelopeText(fmt.Sprint("m", i)), Source: "rest"})
			require.NoError(t, err)
			sent = append(sent, msg.ID)
		}

		n, err := messages.UnreadCount(ctx, room.ID, "r2")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		n, err = messages.UnreadCount(ctx, room.ID, "r1")
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		// The reader's clock runs an hour ahead; the marker must still follow the database clock.
		skewed := services.NewMessageService(store, &mocks.FramePublisher{}, log).
			WithClock(func() time.Time { return time.Now().Add(time.Hour) })
		marked, err := skewed.MarkRead(ctx, room.ID, "r2", sent)
		require.NoError(t, err)
		assert.Equal(t, 3, marked)
		n, err = messages.UnreadCount(ctx, room.ID, "r2")
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		_, err = messages.Send(ctx, room.ID, "r1", services.SendInput{Payload: envelopeText("later"), Source: "rest"})
		require.NoError(t, err)
		n, err = messages.UnreadCount(ctx, room.ID, "r2")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("direct text is stored as ciphertext only", func(t *testing.T) {
		seedUsers(t, database, "e1", "e2")
		messages := services.NewMessageService(store, &mocks.FramePublisher{}, log)
		key := models.DirectKey("e1", "e2")
		room, err := store.Repos().Rooms.CreateRoom(ctx, models.Room{Type: models.RoomDirect, CreatedBy: strPtr("e1"), DirectKey: &key})
		require.NoError(t, err)
		for _, id := range []string{"e1", "e2"} {
			_, err := store.Repos().Rooms.AddMember(ctx, models.Member{RoomID: room.ID, UserID: id})
			require.NoError(t, err)
		}

		sent, err := messages.Send(ctx, room.ID, "e1", services.SendInput{
			Payload: envelope.Payload{MessageType: "text", EncryptedContent: strPtr("c1")},
			Source:  "rest",
		})
		require.NoError(t, err)

		var content string
		require.NoError(t, database.Get(&content, `SELECT content FROM messages WHERE id=$1`, sent.ID))
		assert.Equal(t, "", content)

		page, err := messages.List(ctx, room.ID, "e2", 1, 50)
		require.NoError(t, err)
		require.Len(t, page.Results, 1)
		assert.Equal(t, 1, page.Total)
		assert.False(t, page.HasNext)
		require.NotNil(t, page.Results[0].EncryptedContent)
		assert.Equal(t, "c1", *page.Results[0].EncryptedContent)
	})

	t.Run("fingerprints are globally unique", func(t *testing.T) {
		seedUsers(t, database, "d1", "d2")
		devices := services.NewDeviceCustodian(store, nil, log)
		in := services.RegisterInput{DeviceName: "laptop", DeviceFingerprint: "fp-shared", EncryptedPrivateKey: "blob"}

		first, err := devices.Register(ctx, "d1", in)
		require.NoError(t, err)
		assert.True(t, first.IsPrimary)

		_, err = devices.Register(ctx, "d2", in)
		require.Error(t, err)
	})
}
