package outbound

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/josuedanielbust/docucol/internal/directory"
	"github.com/josuedanielbust/docucol/internal/platform/metrics"
	"github.com/josuedanielbust/docucol/internal/transfer/models"
	"github.com/josuedanielbust/docucol/internal/transfer/outbound/mocks"
	"github.com/josuedanielbust/docucol/internal/transfer/state"
	"github.com/josuedanielbust/docucol/internal/transfer/store/session"
	domainerrors "github.com/josuedanielbust/docucol/pkg/domain-errors"
)

type fixture struct {
	service   *Service
	sessions  *session.OutboundMemory
	publisher *mocks.MockPublisher
	directory *mocks.MockDirectory
	gateway   *mocks.MockOperatorGateway
}

func newFixture(t *testing.T, validateUser bool) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		sessions:  session.NewOutboundMemory(),
		publisher: mocks.NewMockPublisher(ctrl),
		directory: mocks.NewMockDirectory(ctrl),
		gateway:   mocks.NewMockOperatorGateway(ctrl),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.service = NewService(f.sessions, f.publisher, f.directory, f.gateway,
		validateUser, metrics.NewWith(prometheus.NewRegistry()), logger)
	return f
}

// initiated runs Initiate and returns the minted transferId.
func (f *fixture) initiated(t *testing.T) string {
	t.Helper()
	f.publisher.EXPECT().
		Publish(gomock.Any(), models.TopicTransferInitiate, gomock.Any(), gomock.Any()).
		Return(nil)
	result, err := f.service.Initiate(context.Background(), "u-1", "op-2")
	require.NoError(t, err)
	return result.TransferID
}

func TestInitiatePublishesExactlyOneMessage(t *testing.T) {
	f := newFixture(t, false)

	var initiate models.InitiateTransfer
	f.publisher.EXPECT().
		Publish(gomock.Any(), models.TopicTransferInitiate, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, key string, payload any) error {
			initiate = payload.(models.InitiateTransfer)
			assert.Equal(t, key, initiate.TransferID)
			return nil
		}).
		Times(1)

	result, err := f.service.Initiate(context.Background(), "u-1", "op-2")
	require.NoError(t, err)
	assert.Equal(t, "initiated", result.Status)
	assert.Equal(t, result.TransferID, initiate.TransferID)
	assert.Equal(t, "u-1", initiate.UserID)
	assert.Equal(t, "op-2", initiate.OperatorID)

	sess, err := f.sessions.Get(context.Background(), result.TransferID)
	require.NoError(t, err)
	assert.Equal(t, state.PendingUserDetails, sess.State)
}

func TestInitiateRejectsMissingFields(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.service.Initiate(context.Background(), "", "op-2")

	var derr domainerrors.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domainerrors.CodeBadRequest, derr.Code)
}

func TestInitiateValidatesCitizenWhenEnabled(t *testing.T) {
	f := newFixture(t, true)

	f.directory.EXPECT().ValidateUser(gomock.Any(), "u-1").Return(false, "", nil)
	_, err := f.service.Initiate(context.Background(), "u-1", "op-2")

	var derr domainerrors.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domainerrors.CodeBadRequest, derr.Code)

	f.directory.EXPECT().ValidateUser(gomock.Any(), "u-1").Return(true, "registered with DocuCol", nil)
	f.publisher.EXPECT().
		Publish(gomock.Any(), models.TopicTransferInitiate, gomock.Any(), gomock.Any()).
		Return(nil)
	_, err = f.service.Initiate(context.Background(), "u-1", "op-2")
	require.NoError(t, err)
}

func TestInitiatePublishFailureMarksSessionFailed(t *testing.T) {
	f := newFixture(t, false)

	f.publisher.EXPECT().
		Publish(gomock.Any(), models.TopicTransferInitiate, gomock.Any(), gomock.Any()).
		Return(errors.New("broker down"))

	_, err := f.service.Initiate(context.Background(), "u-1", "op-2")
	require.Error(t, err)
}

func TestHandleUserResponseStoresProfile(t *testing.T) {
	f := newFixture(t, false)
	transferID := f.initiated(t)

	require.NoError(t, f.service.HandleUserResponse(context.Background(), models.UserResponse{
		TransferID: transferID,
		Success:    true,
		User:       models.CitizenProfile{ID: "u-1", FirstName: "Ada", Email: "ada@example.com"},
	}))

	sess, err := f.sessions.Get(context.Background(), transferID)
	require.NoError(t, err)
	assert.Equal(t, state.PendingDocuments, sess.State)
	require.NotNil(t, sess.User)
	assert.Equal(t, "Ada", sess.User.FirstName)
}

func TestDuplicateUserResponseIsDiscarded(t *testing.T) {
	f := newFixture(t, false)
	transferID := f.initiated(t)

	response := models.UserResponse{
		TransferID: transferID,
		User:       models.CitizenProfile{ID: "u-1", FirstName: "Ada"},
	}
	require.NoError(t, f.service.HandleUserResponse(context.Background(), response))

	// Redelivery: the session already moved on, nothing changes.
	require.NoError(t, f.service.HandleUserResponse(context.Background(), response))

	sess, err := f.sessions.Get(context.Background(), transferID)
	require.NoError(t, err)
	assert.Equal(t, state.PendingDocuments, sess.State)
}

func TestUnknownTransferIsAcked(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.service.HandleUserResponse(context.Background(), models.UserResponse{
		TransferID: "tr-unknown",
	}))
}

func TestHandleDocumentsResponseDeliversTransfer(t *testing.T) {
	f := newFixture(t, false)
	transferID := f.initiated(t)
	require.NoError(t, f.service.HandleUserResponse(context.Background(), models.UserResponse{
		TransferID: transferID,
		User: models.CitizenProfile{
			ID: "u-1", FirstName: "Ada", LastName: "Lovelace",
			Email: "ada@example.com", Address: "Cra 1 #2-3",
		},
	}))

	f.directory.EXPECT().UnregisterCitizen(gomock.Any(), "u-1").Return(nil)
	f.directory.EXPECT().GetOperatorByID(gomock.Any(), "op-2").Return(&directory.OperatorRecord{
		ID: "op-2", OperatorName: "OtherOp", TransferAPIURL: "https://other.example/transfer",
	}, nil)

	var delivered models.IncomingPayload
	f.gateway.EXPECT().
		Deliver(gomock.Any(), "https://other.example/transfer", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, payload models.IncomingPayload) error {
			delivered = payload
			return nil
		})

	require.NoError(t, f.service.HandleDocumentsResponse(context.Background(), models.DocumentsResponse{
		TransferID: transferID,
		Documents: []models.DocumentLink{
			{ID: "d-1", Title: "passport", PresignedURL: "https://docucol.example/dl/1"},
			{ID: "d-2", Title: "passport", PresignedURL: "https://docucol.example/dl/2"},
			{ID: "d-3", Title: "license", PresignedURL: "https://docucol.example/dl/3"},
		},
	}))

	assert.Equal(t, "u-1", delivered.ID)
	assert.Equal(t, "Ada Lovelace", delivered.CitizenName)
	assert.Equal(t, []string{"https://docucol.example/dl/1", "https://docucol.example/dl/2"}, delivered.URLDocuments["passport"])
	assert.Len(t, delivered.URLDocuments["license"], 1)

	sess, err := f.sessions.Get(context.Background(), transferID)
	require.NoError(t, err)
	assert.Equal(t, state.Delivered, sess.State)
}

func TestDeregisterFailureFailsSagaWithOneErrorMessage(t *testing.T) {
	f := newFixture(t, false)
	transferID := f.initiated(t)
	require.NoError(t, f.service.HandleUserResponse(context.Background(), models.UserResponse{
		TransferID: transferID,
		User:       models.CitizenProfile{ID: "u-1"},
	}))

	f.directory.EXPECT().UnregisterCitizen(gomock.Any(), "u-1").Return(errors.New("directory says no"))
	f.publisher.EXPECT().
		Publish(gomock.Any(), models.TopicTransferError, transferID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ string, payload any) error {
			errMsg := payload.(models.ErrorMessage)
			assert.Contains(t, errMsg.Message, "deregister")
			return nil
		}).
		Times(1)

	require.NoError(t, f.service.HandleDocumentsResponse(context.Background(), models.DocumentsResponse{
		TransferID: transferID,
	}))

	sess, err := f.sessions.Get(context.Background(), transferID)
	require.NoError(t, err)
	assert.Equal(t, state.Failed, sess.State)
	assert.Contains(t, sess.LastError, "deregister")
}

func TestPeerDeliveryFailureFailsSaga(t *testing.T) {
	f := newFixture(t, false)
	transferID := f.initiated(t)
	require.NoError(t, f.service.HandleUserResponse(context.Background(), models.UserResponse{
		TransferID: transferID,
		User:       models.CitizenProfile{ID: "u-1"},
	}))

	f.directory.EXPECT().UnregisterCitizen(gomock.Any(), "u-1").Return(nil)
	f.directory.EXPECT().GetOperatorByID(gomock.Any(), "op-2").Return(&directory.OperatorRecord{
		ID: "op-2", TransferAPIURL: "https://other.example/transfer",
	}, nil)
	f.gateway.EXPECT().
		Deliver(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(errors.New("peer operator rejected transfer: status 500"))
	f.publisher.EXPECT().
		Publish(gomock.Any(), models.TopicTransferError, transferID, gomock.Any()).
		Return(nil).
		Times(1)

	require.NoError(t, f.service.HandleDocumentsResponse(context.Background(), models.DocumentsResponse{
		TransferID: transferID,
	}))

	sess, err := f.sessions.Get(context.Background(), transferID)
	require.NoError(t, err)
	assert.Equal(t, state.Failed, sess.State)
}

func TestDeliveredSagaIgnoresEarlierStateMessages(t *testing.T) {
	f := newFixture(t, false)
	transferID := f.initiated(t)
	require.NoError(t, f.service.HandleUserResponse(context.Background(), models.UserResponse{
		TransferID: transferID,
		User:       models.CitizenProfile{ID: "u-1"},
	}))

	f.directory.EXPECT().UnregisterCitizen(gomock.Any(), "u-1").Return(nil)
	f.directory.EXPECT().GetOperatorByID(gomock.Any(), "op-2").Return(&directory.OperatorRecord{
		ID: "op-2", TransferAPIURL: "https://other.example/transfer",
	}, nil)
	f.gateway.EXPECT().Deliver(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	require.NoError(t, f.service.HandleDocumentsResponse(context.Background(), models.DocumentsResponse{
		TransferID: transferID,
	}))

	// A late user.response and a redelivered documents.response must have
	// no side effects: no directory calls, no gateway calls, no publishes.
	require.NoError(t, f.service.HandleUserResponse(context.Background(), models.UserResponse{
		TransferID: transferID,
		User:       models.CitizenProfile{ID: "u-evil"},
	}))
	require.NoError(t, f.service.HandleDocumentsResponse(context.Background(), models.DocumentsResponse{
		TransferID: transferID,
	}))

	sess, err := f.sessions.Get(context.Background(), transferID)
	require.NoError(t, err)
	assert.Equal(t, state.Delivered, sess.State)
	assert.Equal(t, "u-1", sess.User.ID)
}

func TestHandleErrorTerminatesSaga(t *testing.T) {
	f := newFixture(t, false)
	transferID := f.initiated(t)

	require.NoError(t, f.service.HandleError(context.Background(), models.ErrorMessage{
		TransferID: transferID,
		Message:    "user u-1 not found",
	}))

	sess, err := f.sessions.Get(context.Background(), transferID)
	require.NoError(t, err)
	assert.Equal(t, state.Failed, sess.State)
	assert.Equal(t, "user u-1 not found", sess.LastError)

	// Redelivered error for an already-terminal saga is a no-op.
	require.NoError(t, f.service.HandleError(context.Background(), models.ErrorMessage{
		TransferID: transferID,
		Message:    "again",
	}))
	sess, _ = f.sessions.Get(context.Background(), transferID)
	assert.Equal(t, "user u-1 not found", sess.LastError)
}

func TestStatus(t *testing.T) {
	f := newFixture(t, false)
	transferID := f.initiated(t)

	sess, err := f.service.Status(context.Background(), transferID)
	require.NoError(t, err)
	assert.Equal(t, state.PendingUserDetails, sess.State)

	_, err = f.service.Status(context.Background(), "tr-unknown")
	var derr domainerrors.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domainerrors.CodeNotFound, derr.Code)
}
