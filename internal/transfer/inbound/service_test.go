package inbound

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/josuedanielbust/docucol/internal/platform/metrics"
	"github.com/josuedanielbust/docucol/internal/transfer/inbound/mocks"
	"github.com/josuedanielbust/docucol/internal/transfer/models"
	"github.com/josuedanielbust/docucol/internal/transfer/state"
	"github.com/josuedanielbust/docucol/internal/transfer/store/session"
	domainerrors "github.com/josuedanielbust/docucol/pkg/domain-errors"
)

type fixture struct {
	service   *Service
	sessions  *session.IncomingMemory
	publisher *mocks.MockPublisher
	directory *mocks.MockDirectory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		sessions:  session.NewIncomingMemory(),
		publisher: mocks.NewMockPublisher(ctrl),
		directory: mocks.NewMockDirectory(ctrl),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.service = NewService(f.sessions, f.publisher, f.directory,
		"op-docucol", "DocuCol", "http://docucol.example",
		metrics.NewWith(prometheus.NewRegistry()), logger)
	return f
}

func payload() models.IncomingPayload {
	return models.IncomingPayload{
		ID:             "u-1",
		CitizenName:    "Ada Lovelace",
		CitizenEmail:   "ada@example.com",
		CitizenAddress: "Cra 1 #2-3",
		URLDocuments:   map[string][]string{"passport": {"https://peer.example/p.pdf"}},
	}
}

// received opens a saga and returns its transferId.
func (f *fixture) received(t *testing.T) string {
	t.Helper()
	f.publisher.EXPECT().
		Publish(gomock.Any(), models.TopicIncomingInitiate, gomock.Any(), gomock.Any()).
		Return(nil)
	result, err := f.service.ReceiveTransfer(context.Background(), payload())
	require.NoError(t, err)
	return result.TransferID
}

// awaiting drives the saga to AWAITING_CONFIRMATION.
func (f *fixture) awaiting(t *testing.T) string {
	t.Helper()
	transferID := f.received(t)
	require.NoError(t, f.service.HandleUserResponse(context.Background(), models.IncomingUserResponse{
		TransferID: transferID,
		Payload:    payload(),
		User:       models.CitizenProfile{ID: "u-1", FirstName: "Ada", Email: "ada@example.com"},
		Password:   "s3cret!A",
	}))
	require.NoError(t, f.service.HandleNotificationsResponse(context.Background(), models.IncomingNotificationsResponse{
		TransferID: transferID,
	}))
	return transferID
}

func TestReceiveTransferOpensSaga(t *testing.T) {
	f := newFixture(t)

	var initiate models.IncomingInitiate
	f.publisher.EXPECT().
		Publish(gomock.Any(), models.TopicIncomingInitiate, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, key string, p any) error {
			initiate = p.(models.IncomingInitiate)
			assert.Equal(t, key, initiate.TransferID)
			return nil
		}).
		Times(1)

	result, err := f.service.ReceiveTransfer(context.Background(), payload())
	require.NoError(t, err)
	assert.Equal(t, "received", result.Status)
	assert.Equal(t, "http://docucol.example", initiate.Payload.ConfirmAPI)

	sess, err := f.sessions.Get(context.Background(), result.TransferID)
	require.NoError(t, err)
	assert.Equal(t, state.PendingUserCreation, sess.State)
	assert.Equal(t, "u-1", sess.UserID)
}

func TestReceiveTransferRejectsIncompletePayload(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.ReceiveTransfer(context.Background(), models.IncomingPayload{ID: "u-1"})

	var derr domainerrors.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domainerrors.CodeBadRequest, derr.Code)
}

func TestDuplicateReceiveReusesOpenSession(t *testing.T) {
	f := newFixture(t)
	transferID := f.received(t)

	// No second initiate publish is expected.
	result, err := f.service.ReceiveTransfer(context.Background(), payload())
	require.NoError(t, err)
	assert.Equal(t, transferID, result.TransferID)
}

func TestHandleUserResponseAdvancesThroughMaterialization(t *testing.T) {
	f := newFixture(t)
	transferID := f.received(t)

	require.NoError(t, f.service.HandleUserResponse(context.Background(), models.IncomingUserResponse{
		TransferID: transferID,
		Payload:    payload(),
		User:       models.CitizenProfile{ID: "u-1", FirstName: "Ada"},
		Password:   "s3cret!A",
	}))

	sess, err := f.sessions.Get(context.Background(), transferID)
	require.NoError(t, err)
	assert.Equal(t, state.PendingNotification, sess.State)
	assert.Equal(t, "s3cret!A", sess.Password)
}

func TestNotificationsResponseParksSagaAndBlanksPassword(t *testing.T) {
	f := newFixture(t)
	transferID := f.awaiting(t)

	sess, err := f.sessions.Get(context.Background(), transferID)
	require.NoError(t, err)
	assert.Equal(t, state.AwaitingConfirmation, sess.State)
	assert.Empty(t, sess.Password)
}

func TestDuplicateUserResponseIsDiscarded(t *testing.T) {
	f := newFixture(t)
	transferID := f.awaiting(t)

	// Redelivered user.response after the saga moved on: no effect.
	require.NoError(t, f.service.HandleUserResponse(context.Background(), models.IncomingUserResponse{
		TransferID: transferID,
		Password:   "other",
	}))

	sess, err := f.sessions.Get(context.Background(), transferID)
	require.NoError(t, err)
	assert.Equal(t, state.AwaitingConfirmation, sess.State)
	assert.Empty(t, sess.Password)
}

func TestConfirmByEncodedIDRequestsUserDetails(t *testing.T) {
	f := newFixture(t)
	transferID := f.awaiting(t)

	f.publisher.EXPECT().
		Publish(gomock.Any(), models.TopicGetUserDetails, transferID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ string, p any) error {
			req := p.(models.GetUserDetails)
			assert.Equal(t, "u-1", req.UserID)
			return nil
		})

	token := base64.StdEncoding.EncodeToString([]byte("u-1"))
	result, err := f.service.ConfirmByEncodedID(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "confirming", result.Status)
}

func TestConfirmByEncodedIDRejectsBadToken(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.ConfirmByEncodedID(context.Background(), "%%%not-base64%%%")

	var derr domainerrors.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domainerrors.CodeBadRequest, derr.Code)
}

func TestConfirmBeforeAwaitingConfirmationConflicts(t *testing.T) {
	f := newFixture(t)
	f.received(t)

	_, err := f.service.ConfirmOrReject(context.Background(), "u-1", "approved")
	var derr domainerrors.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domainerrors.CodeConflict, derr.Code)
}

func TestGetUserDetailsResponseRegistersAndConfirms(t *testing.T) {
	f := newFixture(t)
	transferID := f.awaiting(t)

	f.directory.EXPECT().
		RegisterCitizen(gomock.Any(), "u-1", "Ada Lovelace", "Cra 1 #2-3", "ada@example.com", "op-docucol", "DocuCol").
		Return(nil)

	require.NoError(t, f.service.HandleGetUserDetailsResponse(context.Background(), models.GetUserDetailsResponse{
		TransferID: transferID,
		User: models.CitizenProfile{
			ID: "u-1", FirstName: "Ada", LastName: "Lovelace",
			Email: "ada@example.com", Address: "Cra 1 #2-3",
		},
	}))

	sess, err := f.sessions.Get(context.Background(), transferID)
	require.NoError(t, err)
	assert.Equal(t, state.Confirmed, sess.State)

	// Redelivery against the terminal session is a no-op.
	require.NoError(t, f.service.HandleGetUserDetailsResponse(context.Background(), models.GetUserDetailsResponse{
		TransferID: transferID,
	}))
}

func TestDirectoryRegistrationFailureFailsSaga(t *testing.T) {
	f := newFixture(t)
	transferID := f.awaiting(t)

	f.directory.EXPECT().
		RegisterCitizen(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(errors.New("directory down"))
	f.publisher.EXPECT().
		Publish(gomock.Any(), models.TopicIncomingError, transferID, gomock.Any()).
		Return(nil).
		Times(1)

	require.NoError(t, f.service.HandleGetUserDetailsResponse(context.Background(), models.GetUserDetailsResponse{
		TransferID: transferID,
		User:       models.CitizenProfile{ID: "u-1"},
	}))

	sess, err := f.sessions.Get(context.Background(), transferID)
	require.NoError(t, err)
	assert.Equal(t, state.Failed, sess.State)
}

func TestRejectTriggersCompensation(t *testing.T) {
	f := newFixture(t)
	transferID := f.awaiting(t)

	f.publisher.EXPECT().
		Publish(gomock.Any(), models.TopicIncomingConfirmationInitiate, transferID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ string, p any) error {
			decision := p.(models.ConfirmationInitiate)
			assert.Equal(t, "rejected", decision.Payload.ReqStatus)
			assert.Equal(t, "u-1", decision.Payload.ID)
			return nil
		}).
		Times(1)

	result, err := f.service.ConfirmOrReject(context.Background(), "u-1", "rejected")
	require.NoError(t, err)
	assert.Equal(t, "rejected", result.Status)

	sess, err := f.sessions.Get(context.Background(), transferID)
	require.NoError(t, err)
	assert.Equal(t, state.Rejected, sess.State)

	// A confirm after the rejection must not resurrect the saga.
	_, err = f.service.ConfirmOrReject(context.Background(), "u-1", "approved")
	var derr domainerrors.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domainerrors.CodeConflict, derr.Code)
}

func TestRejectBeforeNotificationSettles(t *testing.T) {
	f := newFixture(t)
	transferID := f.received(t)
	require.NoError(t, f.service.HandleUserResponse(context.Background(), models.IncomingUserResponse{
		TransferID: transferID,
		Payload:    payload(),
		User:       models.CitizenProfile{ID: "u-1"},
	}))

	f.publisher.EXPECT().
		Publish(gomock.Any(), models.TopicIncomingConfirmationInitiate, transferID, gomock.Any()).
		Return(nil)

	_, err := f.service.ConfirmOrReject(context.Background(), "u-1", "rejected")
	require.NoError(t, err)

	sess, err := f.sessions.Get(context.Background(), transferID)
	require.NoError(t, err)
	assert.Equal(t, state.Rejected, sess.State)
}

func TestConfirmOrRejectUnknownDecision(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.ConfirmOrReject(context.Background(), "u-1", "maybe")

	var derr domainerrors.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domainerrors.CodeBadRequest, derr.Code)
}

func TestHandleErrorTerminatesSaga(t *testing.T) {
	f := newFixture(t)
	transferID := f.received(t)

	require.NoError(t, f.service.HandleError(context.Background(), models.ErrorMessage{
		TransferID: transferID,
		Message:    "identity store unavailable",
	}))

	sess, err := f.sessions.Get(context.Background(), transferID)
	require.NoError(t, err)
	assert.Equal(t, state.Failed, sess.State)
	assert.Equal(t, "identity store unavailable", sess.LastError)
}
