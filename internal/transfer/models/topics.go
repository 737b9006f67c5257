package models

// Topic names for the transfer sagas. Both operators on a transfer use the
// same names; the payload for each topic is the matching struct in
// messages.go and nothing else.
const (
	TopicTransferInitiate              = "document.transfer.initiate"
	TopicTransferUserResponse          = "document.transfer.user.response"
	TopicTransferDocumentsResponse     = "document.transfer.documents.response"
	TopicTransferNotificationsResponse = "document.transfer.notifications.response"
	TopicTransferError                 = "document.transfer.error"

	TopicIncomingInitiate              = "document.incoming-transfer.initiate"
	TopicIncomingUserResponse          = "document.incoming-transfer.user.response"
	TopicIncomingNotificationsResponse = "document.incoming-transfer.notifications.response"
	TopicIncomingError                 = "document.incoming-transfer.error"

	TopicIncomingConfirmationInitiate = "document.incoming-confirmation.initiate"

	TopicGetUserDetails         = "transfer.get.user.details"
	TopicGetUserDetailsResponse = "transfer.get.user.details.response"
)

// AllTopics lists every saga topic, for startup topic creation.
func AllTopics() []string {
	return []string{
		TopicTransferInitiate,
		TopicTransferUserResponse,
		TopicTransferDocumentsResponse,
		TopicTransferNotificationsResponse,
		TopicTransferError,
		TopicIncomingInitiate,
		TopicIncomingUserResponse,
		TopicIncomingNotificationsResponse,
		TopicIncomingError,
		TopicIncomingConfirmationInitiate,
		TopicGetUserDetails,
		TopicGetUserDetailsResponse,
	}
}
